package db

import (
	"context"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"go.uber.org/atomic"

	"github.com/titpetric/cmsmigrate/migrate"
)

// Local is the migration backend over a direct database connection
type Local struct {
	db      *sqlx.DB
	name    string
	dialect migrate.Dialect
	exec    *executor
	runner  *migrate.Runner

	closed *atomic.Bool
}

var _ migrate.Backend = &Local{}

// NewLocal creates a *Local backend; name identifies the database in logs and locks
func NewLocal(handle *sqlx.DB, name string, runner *migrate.Runner) (*Local, error) {
	dialect, err := migrate.DialectFor(handle.DriverName())
	if err != nil {
		return nil, err
	}
	return &Local{
		db:      handle,
		name:    name,
		dialect: dialect,
		exec: &executor{
			db:    handle,
			split: dialect == migrate.MySQL,
		},
		runner: runner,
		closed: atomic.NewBool(false),
	}, nil
}

// Target returns the database name
func (l *Local) Target() string { return l.name }

// Dialect returns the SQL dialect of the database
func (l *Local) Dialect() migrate.Dialect { return l.dialect }

// Executor returns the pooled SQL executor
func (l *Local) Executor() migrate.Executor { return l.exec }

// Prepare is a no-op, tracking tables are created on demand
func (l *Local) Prepare(context.Context) error { return nil }

// Authenticate runs a round trip query on a single checked out connection
func (l *Local) Authenticate(ctx context.Context) error {
	if l.closed.Load() {
		return &migrate.ConnectionError{Target: l.name, Err: errors.New("connection pool is closed")}
	}

	conn, err := l.db.Connx(ctx)
	if err != nil {
		return &migrate.ConnectionError{Target: l.name, Err: err}
	}
	defer conn.Close()

	var one int
	if err := conn.GetContext(ctx, &one, "select 1"); err != nil {
		return &migrate.ConnectionError{Target: l.name, Err: err}
	}
	return nil
}

// Close releases the connection pool, subsequent calls are no-ops
func (l *Local) Close() error {
	if l.closed.CompareAndSwap(false, true) {
		return l.db.Close()
	}
	return nil
}
