package migrate

import (
	"fmt"

	"github.com/pkg/errors"
)

// ErrUnknownGroup is returned for a schema group the catalog doesn't have
var ErrUnknownGroup = errors.New("unknown schema group")

type (
	// LoadError is returned for a malformed or duplicate migration source
	LoadError struct {
		Filename string
		Reason   string
	}

	// ConnectionError is returned when the target can't be reached
	ConnectionError struct {
		Target string
		Err    error
	}

	// AuthError is returned when the target rejects our credentials
	AuthError struct {
		Target string
		Err    error
	}

	// ExecutionError is returned when a migration fails to apply or roll back
	ExecutionError struct {
		Group   Group
		Version string
		Name    string
		Err     error
	}

	// AlreadyAppliedError is returned when a version is already recorded
	AlreadyAppliedError struct {
		Group   Group
		Version string
	}

	// MissingDownScriptError is returned on rollback of a migration without a down script
	MissingDownScriptError struct {
		Group   Group
		Version string
		Name    string
	}

	// OrderingError is returned when a pending version sorts before an applied one
	OrderingError struct {
		Group   Group
		Version string
		Latest  string
	}
)

func (e *LoadError) Error() string {
	return fmt.Sprintf("load migration %s: %s", e.Filename, e.Reason)
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("connect to %s: %s", e.Target, e.Err)
}

// Cause returns the underlying error
func (e *ConnectionError) Cause() error { return e.Err }

// Unwrap returns the underlying error
func (e *ConnectionError) Unwrap() error { return e.Err }

func (e *AuthError) Error() string {
	return fmt.Sprintf("authenticate to %s: %s", e.Target, e.Err)
}

// Cause returns the underlying error
func (e *AuthError) Cause() error { return e.Err }

// Unwrap returns the underlying error
func (e *AuthError) Unwrap() error { return e.Err }

func (e *ExecutionError) Error() string {
	return fmt.Sprintf("migration %s/%s_%s failed: %s", e.Group, e.Version, e.Name, e.Err)
}

// Cause returns the underlying error
func (e *ExecutionError) Cause() error { return e.Err }

// Unwrap returns the underlying error
func (e *ExecutionError) Unwrap() error { return e.Err }

func (e *AlreadyAppliedError) Error() string {
	return fmt.Sprintf("migration %s/%s is already applied", e.Group, e.Version)
}

func (e *MissingDownScriptError) Error() string {
	return fmt.Sprintf("migration %s/%s_%s has no down script", e.Group, e.Version, e.Name)
}

func (e *OrderingError) Error() string {
	return fmt.Sprintf("migration %s/%s is pending but %s is already applied", e.Group, e.Version, e.Latest)
}
