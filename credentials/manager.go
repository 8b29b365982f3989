package credentials

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"golang.org/x/oauth2"
	"golang.org/x/sync/singleflight"
)

// DefaultRefreshWindow is how long before expiry a credential is refreshed
const DefaultRefreshWindow = 5 * time.Minute

// Manager tracks OAuth credentials per account and workspace bindings
type Manager struct {
	store     Store
	refresher Refresher
	log       logrus.FieldLogger

	refreshes singleflight.Group

	RefreshWindow time.Duration
	Now           func() time.Time
}

// NewManager creates a *Manager over store
func NewManager(store Store, refresher Refresher, log logrus.FieldLogger) *Manager {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Manager{
		store:         store,
		refresher:     refresher,
		log:           log,
		RefreshWindow: DefaultRefreshWindow,
		Now:           time.Now,
	}
}

// Store returns the underlying store
func (m *Manager) Store() Store {
	return m.store
}

func credentialFromToken(accountID string, token *oauth2.Token, previous *Credential) *Credential {
	cred := &Credential{
		AccountID:    accountID,
		AccessToken:  token.AccessToken,
		RefreshToken: token.RefreshToken,
		ExpiresAt:    token.Expiry,
	}
	if cred.RefreshToken == "" && previous != nil {
		cred.RefreshToken = previous.RefreshToken
	}
	return cred
}

// Connect runs the authorization handoff and stores the resulting credential
func (m *Manager) Connect(ctx context.Context, accountID string, auth Authorizer) (*Credential, error) {
	if accountID == "" {
		return nil, errors.New("account id is required")
	}
	token, err := auth.Authorize(ctx)
	if err != nil {
		return nil, errors.Wrapf(err, "authorizing account %s", accountID)
	}
	if token.AccessToken == "" {
		return nil, errors.Errorf("authorizing account %s: empty access token", accountID)
	}

	cred := credentialFromToken(accountID, token, nil)
	if err := m.store.PutCredential(ctx, cred); err != nil {
		return nil, errors.Wrapf(err, "storing credential for account %s", accountID)
	}
	m.log.WithField("account", accountID).Info("account connected")
	return cred, nil
}

// NeedsRefresh returns true when cred expires within the refresh window
func (m *Manager) NeedsRefresh(cred *Credential) bool {
	if cred.ExpiresAt.IsZero() {
		return false
	}
	return !m.Now().Add(m.RefreshWindow).Before(cred.ExpiresAt)
}

// Refresh swaps the refresh token for a new access token. On failure the
// stored credential is left as it was.
func (m *Manager) Refresh(ctx context.Context, accountID string) (*Credential, error) {
	return m.refresh(ctx, accountID, true)
}

// refresh runs at most one refresh per account at a time; unless forced,
// a credential refreshed by a concurrent caller is returned as is
func (m *Manager) refresh(ctx context.Context, accountID string, force bool) (*Credential, error) {
	result, err, _ := m.refreshes.Do(accountID, func() (interface{}, error) {
		current, err := m.store.Credential(ctx, accountID)
		if errors.Cause(err) == ErrNotFound {
			return nil, &NotConnectedError{AccountID: accountID, Reason: "account is disconnected"}
		}
		if err != nil {
			return nil, errors.Wrapf(err, "loading credential for account %s", accountID)
		}
		if !force && !m.NeedsRefresh(current) {
			return current, nil
		}

		token, err := m.refresher.Refresh(ctx, current.RefreshToken)
		if err != nil {
			return nil, &RefreshError{AccountID: accountID, Err: err}
		}
		if token.AccessToken == "" {
			return nil, &RefreshError{AccountID: accountID, Err: errors.New("empty access token")}
		}

		next := credentialFromToken(accountID, token, current)
		if err := m.store.PutCredential(ctx, next); err != nil {
			return nil, &RefreshError{AccountID: accountID, Err: err}
		}
		m.log.WithField("account", accountID).Info("credential refreshed")
		return next, nil
	})
	if err != nil {
		return nil, err
	}
	cred := *result.(*Credential)
	return &cred, nil
}

// Disconnect deletes the credential of an account. Bindings are kept but
// stop working until the account is connected again.
func (m *Manager) Disconnect(ctx context.Context, accountID string) error {
	if err := m.store.DeleteCredential(ctx, accountID); err != nil {
		return errors.Wrapf(err, "deleting credential for account %s", accountID)
	}
	m.log.WithField("account", accountID).Info("account disconnected")
	return nil
}

// Bind links a workspace to a target project
func (m *Manager) Bind(ctx context.Context, binding *Binding) error {
	if binding.WorkspaceID == "" || binding.AccountID == "" || binding.ProjectRef == "" {
		return errors.New("binding requires workspace, account and project ref")
	}
	return errors.Wrapf(m.store.PutBinding(ctx, binding), "storing binding for workspace %s", binding.WorkspaceID)
}

// UnbindWorkspace removes a workspace binding; the credential is untouched
func (m *Manager) UnbindWorkspace(ctx context.Context, workspaceID string) error {
	return errors.Wrapf(m.store.DeleteBinding(ctx, workspaceID), "deleting binding for workspace %s", workspaceID)
}

// Binding resolves a workspace binding
func (m *Manager) Binding(ctx context.Context, workspaceID string) (*Binding, error) {
	binding, err := m.store.Binding(ctx, workspaceID)
	if errors.Cause(err) == ErrNotFound {
		return nil, &NotConnectedError{WorkspaceID: workspaceID, Reason: "workspace is not bound"}
	}
	return binding, errors.Wrapf(err, "loading binding for workspace %s", workspaceID)
}

// Token returns the binding and a usable access token for a workspace,
// refreshing the credential first if it is about to expire
func (m *Manager) Token(ctx context.Context, workspaceID string) (*Binding, string, error) {
	binding, err := m.Binding(ctx, workspaceID)
	if err != nil {
		return nil, "", err
	}

	cred, err := m.store.Credential(ctx, binding.AccountID)
	if errors.Cause(err) == ErrNotFound {
		return nil, "", &NotConnectedError{WorkspaceID: workspaceID, AccountID: binding.AccountID, Reason: "account is disconnected"}
	}
	if err != nil {
		return nil, "", errors.Wrapf(err, "loading credential for account %s", binding.AccountID)
	}

	if m.NeedsRefresh(cred) {
		cred, err = m.refresh(ctx, binding.AccountID, false)
		if nc, ok := err.(*NotConnectedError); ok {
			return nil, "", &NotConnectedError{WorkspaceID: workspaceID, AccountID: nc.AccountID, Reason: nc.Reason}
		}
		if err != nil {
			return nil, "", err
		}
	}
	return binding, cred.AccessToken, nil
}
