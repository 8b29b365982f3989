package credentials

import (
	"fmt"
	"time"
)

type (
	// Credential is an OAuth token pair for a connected account
	Credential struct {
		AccountID    string    `json:"account_id"`
		AccessToken  string    `json:"access_token"`
		RefreshToken string    `json:"refresh_token"`
		ExpiresAt    time.Time `json:"expires_at"`
	}

	// Binding links a workspace to a target project of a connected account
	Binding struct {
		WorkspaceID string `json:"workspace_id"`
		AccountID   string `json:"account_id"`
		ProjectRef  string `json:"project_ref"`
		APIKey      string `json:"api_key,omitempty"`
	}

	// RefreshError is returned when a token refresh fails
	RefreshError struct {
		AccountID string
		Err       error
	}

	// NotConnectedError is returned when no usable credential exists for a workspace
	NotConnectedError struct {
		WorkspaceID string
		AccountID   string
		Reason      string
	}
)

func (e *RefreshError) Error() string {
	return fmt.Sprintf("refresh token for account %s: %s", e.AccountID, e.Err)
}

// Cause returns the underlying error
func (e *RefreshError) Cause() error { return e.Err }

// Unwrap returns the underlying error
func (e *RefreshError) Unwrap() error { return e.Err }

func (e *NotConnectedError) Error() string {
	if e.AccountID != "" {
		return fmt.Sprintf("workspace %s is not connected (account %s): %s", e.WorkspaceID, e.AccountID, e.Reason)
	}
	return fmt.Sprintf("workspace %s is not connected: %s", e.WorkspaceID, e.Reason)
}
