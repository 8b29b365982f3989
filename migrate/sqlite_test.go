package migrate

import (
	"context"
	"strings"
	"sync"
	"testing"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"

	_ "modernc.org/sqlite"
)

// sqliteBackend is an in-memory Backend which counts writes
type sqliteBackend struct {
	db *sqlx.DB

	mu       sync.Mutex
	writes   int
	prepared int
	failAuth error
	// block makes ExecTx wait for ctx cancellation on statements containing it
	block string
}

func newSQLiteBackend(t *testing.T) *sqliteBackend {
	t.Helper()
	db, err := sqlx.Open("sqlite", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })
	return &sqliteBackend{db: db}
}

func (b *sqliteBackend) Target() string { return "sqlite" }

func (b *sqliteBackend) Authenticate(ctx context.Context) error {
	if b.failAuth != nil {
		return b.failAuth
	}
	return b.db.PingContext(ctx)
}

func (b *sqliteBackend) Prepare(context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.prepared++
	return nil
}

func (b *sqliteBackend) Executor() Executor { return b }
func (b *sqliteBackend) Dialect() Dialect   { return SQLite }
func (b *sqliteBackend) Close() error       { return b.db.Close() }

func (b *sqliteBackend) Writes() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.writes
}

func (b *sqliteBackend) count() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.writes++
}

func (b *sqliteBackend) Exec(ctx context.Context, query string) error {
	b.count()
	_, err := b.db.ExecContext(ctx, query)
	return err
}

func (b *sqliteBackend) ExecTx(ctx context.Context, statements ...string) error {
	b.count()
	if b.block != "" {
		for _, stmt := range statements {
			if strings.Contains(stmt, b.block) {
				<-ctx.Done()
				return errors.WithStack(ctx.Err())
			}
		}
	}
	tx, err := b.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	for _, stmt := range statements {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			tx.Rollback()
			return errors.WithStack(err)
		}
	}
	return tx.Commit()
}

func (b *sqliteBackend) Strings(ctx context.Context, query string) ([]string, error) {
	result := []string{}
	err := b.db.SelectContext(ctx, &result, query)
	return result, err
}

func (b *sqliteBackend) tableExists(t *testing.T, name string) bool {
	t.Helper()
	tables, err := b.Strings(context.Background(), "select name from sqlite_master where type = 'table' and name = '"+name+"'")
	require.NoError(t, err)
	return len(tables) > 0
}
