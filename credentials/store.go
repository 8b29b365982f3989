package credentials

import (
	"context"

	"github.com/pkg/errors"
)

// ErrNotFound is returned by a Store for a missing credential or binding
var ErrNotFound = errors.New("not found")

// Store persists credentials and workspace bindings
type Store interface {
	Credential(ctx context.Context, accountID string) (*Credential, error)
	PutCredential(ctx context.Context, cred *Credential) error
	DeleteCredential(ctx context.Context, accountID string) error

	Binding(ctx context.Context, workspaceID string) (*Binding, error)
	PutBinding(ctx context.Context, binding *Binding) error
	DeleteBinding(ctx context.Context, workspaceID string) error

	Close() error
}
