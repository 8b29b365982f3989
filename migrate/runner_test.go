package migrate

import (
	"bytes"
	"context"
	"sync"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testCatalog(t *testing.T, defs ...Definition) *Catalog {
	t.Helper()
	if len(defs) == 0 {
		defs = []Definition{
			{Version: "20240101000000", Name: "create_users", Group: "a", Up: "create table users (id int)", Down: "drop table users"},
			{Version: "20240102000000", Name: "add_posts", Group: "a", Up: "create table posts (id int)", Down: "drop table posts"},
		}
	}
	catalog, err := NewCatalog(defs...)
	require.NoError(t, err)
	return catalog
}

func testRunner(t *testing.T, catalog *Catalog) *Runner {
	t.Helper()
	return NewRunner(catalog, nil)
}

func names(defs []Definition) []string {
	result := []string{}
	for _, def := range defs {
		result = append(result, def.Name)
	}
	return result
}

func TestRunner_Up(t *testing.T) {
	ctx := context.Background()
	backend := newSQLiteBackend(t)
	runner := testRunner(t, testCatalog(t))

	pending, err := runner.Pending(ctx, backend)
	require.NoError(t, err)
	assert.Equal(t, []string{"create_users", "add_posts"}, names(pending))

	applied, err := runner.Up(ctx, backend)
	require.NoError(t, err)
	assert.Equal(t, []string{"create_users", "add_posts"}, names(applied))
	assert.True(t, backend.tableExists(t, "users"))
	assert.True(t, backend.tableExists(t, "posts"))

	status, err := runner.Status(ctx, backend)
	require.NoError(t, err)
	assert.Equal(t, []string{"20240101000000", "20240102000000"}, status["a"].Sorted())

	pending, err = runner.Pending(ctx, backend)
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestRunner_UpIdempotent(t *testing.T) {
	ctx := context.Background()
	backend := newSQLiteBackend(t)
	runner := testRunner(t, testCatalog(t))

	_, err := runner.Up(ctx, backend)
	require.NoError(t, err)

	writes := backend.Writes()
	applied, err := runner.Up(ctx, backend)
	require.NoError(t, err)
	assert.Empty(t, applied)

	// only the create-if-not-exists of the tracking table runs again
	assert.Equal(t, writes+len(SQLite.Ensure("a")), backend.Writes())
}

func TestRunner_UpPartialFailure(t *testing.T) {
	ctx := context.Background()
	backend := newSQLiteBackend(t)
	runner := testRunner(t, testCatalog(t,
		Definition{Version: "20240101000000", Name: "create_users", Group: "a", Up: "create table users (id int)"},
		Definition{Version: "20240102000000", Name: "broken", Group: "a", Up: "this is not sql"},
		Definition{Version: "20240103000000", Name: "add_tags", Group: "a", Up: "create table tags (id int)"},
	))

	applied, err := runner.Up(ctx, backend)
	require.Error(t, err)
	assert.Equal(t, []string{"create_users"}, names(applied))

	var execErr *ExecutionError
	require.True(t, errors.As(err, &execErr))
	assert.Equal(t, Group("a"), execErr.Group)
	assert.Equal(t, "20240102000000", execErr.Version)
	assert.Equal(t, "broken", execErr.Name)

	// the first migration stays applied, the rest never ran
	assert.True(t, backend.tableExists(t, "users"))
	assert.False(t, backend.tableExists(t, "tags"))

	status, err := runner.Status(ctx, backend)
	require.NoError(t, err)
	assert.Equal(t, []string{"20240101000000"}, status["a"].Sorted())
}

func TestRunner_UpStatementTimeout(t *testing.T) {
	ctx := context.Background()
	backend := newSQLiteBackend(t)
	backend.block = "create table slow"
	runner := testRunner(t, testCatalog(t,
		Definition{Version: "20240101000000", Name: "create_users", Group: "a", Up: "create table users (id int)"},
		Definition{Version: "20240102000000", Name: "create_slow", Group: "a", Up: "create table slow (id int)"},
		Definition{Version: "20240103000000", Name: "add_tags", Group: "a", Up: "create table tags (id int)"},
	))
	runner.StatementTimeout = 50 * time.Millisecond

	applied, err := runner.Up(ctx, backend)
	require.Error(t, err)
	assert.Equal(t, []string{"create_users"}, names(applied))

	var execErr *ExecutionError
	require.True(t, errors.As(err, &execErr))
	assert.Equal(t, "20240102000000", execErr.Version)
	assert.Equal(t, "create_slow", execErr.Name)
	assert.True(t, errors.Is(err, context.DeadlineExceeded))

	backend.block = ""
	status, err := runner.Status(ctx, backend)
	require.NoError(t, err)
	assert.Equal(t, []string{"20240101000000"}, status["a"].Sorted())
	assert.False(t, backend.tableExists(t, "slow"))
	assert.False(t, backend.tableExists(t, "tags"))
}

func TestRunner_PreviewHasNoSideEffects(t *testing.T) {
	ctx := context.Background()
	backend := newSQLiteBackend(t)
	runner := testRunner(t, testCatalog(t))

	defs, err := runner.Preview(ctx, backend)
	require.NoError(t, err)
	require.Len(t, defs, 2)
	assert.Equal(t, "create table users (id int)", defs[0].Up)

	assert.Zero(t, backend.Writes())
	assert.Zero(t, backend.prepared)
	assert.False(t, backend.tableExists(t, "a_schema_migrations"))

	buf := new(bytes.Buffer)
	require.NoError(t, Print(buf, defs))
	assert.Contains(t, buf.String(), "create_users [a]")
	assert.Zero(t, backend.Writes())
}

func TestRunner_UpDownRoundTrip(t *testing.T) {
	ctx := context.Background()
	backend := newSQLiteBackend(t)
	runner := testRunner(t, testCatalog(t))

	_, err := runner.Up(ctx, backend)
	require.NoError(t, err)

	rolled, err := runner.Down(ctx, backend, "a", 1)
	require.NoError(t, err)
	assert.Equal(t, []string{"add_posts"}, names(rolled))
	assert.False(t, backend.tableExists(t, "posts"))
	assert.True(t, backend.tableExists(t, "users"))

	pending, err := runner.Pending(ctx, backend)
	require.NoError(t, err)
	assert.Equal(t, []string{"add_posts"}, names(pending))

	rolled, err = runner.Down(ctx, backend, "a", 5)
	require.NoError(t, err)
	assert.Equal(t, []string{"create_users"}, names(rolled))
	assert.False(t, backend.tableExists(t, "users"))

	_, err = runner.Up(ctx, backend)
	require.NoError(t, err)
	assert.True(t, backend.tableExists(t, "posts"))
}

func TestRunner_DownMissingScript(t *testing.T) {
	ctx := context.Background()
	backend := newSQLiteBackend(t)
	runner := testRunner(t, testCatalog(t,
		Definition{Version: "20240101000000", Name: "create_users", Group: "a", Up: "create table users (id int)", Down: "drop table users"},
		Definition{Version: "20240102000000", Name: "add_posts", Group: "a", Up: "create table posts (id int)"},
	))

	_, err := runner.Up(ctx, backend)
	require.NoError(t, err)

	writes := backend.Writes()
	_, err = runner.Down(ctx, backend, "a", 2)
	var missing *MissingDownScriptError
	require.True(t, errors.As(err, &missing))
	assert.Equal(t, "add_posts", missing.Name)

	// nothing was rolled back
	assert.True(t, backend.tableExists(t, "users"))
	assert.True(t, backend.tableExists(t, "posts"))
	assert.Equal(t, writes+len(SQLite.Ensure("a")), backend.Writes())

	_, err = runner.Down(ctx, backend, "a", 0)
	assert.Error(t, err)
}

func TestRunner_Ordering(t *testing.T) {
	ctx := context.Background()
	backend := newSQLiteBackend(t)
	first := testRunner(t, testCatalog(t,
		Definition{Version: "20240102000000", Name: "add_posts", Group: "a", Up: "create table posts (id int)"},
	))
	_, err := first.Up(ctx, backend)
	require.NoError(t, err)

	// a migration added with an older version than what's applied
	second := testRunner(t, testCatalog(t,
		Definition{Version: "20240101000000", Name: "create_users", Group: "a", Up: "create table users (id int)"},
		Definition{Version: "20240102000000", Name: "add_posts", Group: "a", Up: "create table posts (id int)"},
	))

	_, err = second.Pending(ctx, backend)
	var ordering *OrderingError
	require.True(t, errors.As(err, &ordering))
	assert.Equal(t, "20240101000000", ordering.Version)
	assert.Equal(t, "20240102000000", ordering.Latest)
	assert.Error(t, second.Verify(ctx, backend))

	_, err = second.Up(ctx, backend)
	require.True(t, errors.As(err, &ordering))
	assert.False(t, backend.tableExists(t, "users"))
}

func TestRunner_Groups(t *testing.T) {
	ctx := context.Background()
	backend := newSQLiteBackend(t)
	runner := testRunner(t, testCatalog(t,
		Definition{Version: "20240101000000", Name: "create_users", Group: "a", Up: "create table users (id int)"},
		Definition{Version: "20240101000000", Name: "create_threads", Group: "b", Up: "create table threads (id int)"},
	))

	applied, err := runner.Up(ctx, backend, "b")
	require.NoError(t, err)
	assert.Equal(t, []string{"create_threads"}, names(applied))

	pending, err := runner.Pending(ctx, backend)
	require.NoError(t, err)
	assert.Equal(t, []string{"create_users"}, names(pending))

	_, err = runner.Up(ctx, backend, "missing")
	assert.True(t, errors.Is(err, ErrUnknownGroup))
	_, err = runner.Down(ctx, backend, "missing", 1)
	assert.True(t, errors.Is(err, ErrUnknownGroup))
}

func TestRunner_AuthenticateFirst(t *testing.T) {
	ctx := context.Background()
	backend := newSQLiteBackend(t)
	backend.failAuth = &AuthError{Target: "sqlite", Err: errors.New("bad token")}
	runner := testRunner(t, testCatalog(t))

	_, err := runner.Up(ctx, backend)
	var authErr *AuthError
	require.True(t, errors.As(err, &authErr))
	assert.Zero(t, backend.Writes())
	assert.Zero(t, backend.prepared)
}

func TestRunner_Concurrent(t *testing.T) {
	ctx := context.Background()
	backend := newSQLiteBackend(t)
	runner := testRunner(t, testCatalog(t))

	var (
		wg    sync.WaitGroup
		mu    sync.Mutex
		total []Definition
	)
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			applied, err := runner.Up(ctx, backend)
			if err != nil {
				t.Error(err)
				return
			}
			mu.Lock()
			total = append(total, applied...)
			mu.Unlock()
		}()
	}
	wg.Wait()

	// each migration is applied exactly once
	assert.ElementsMatch(t, []string{"create_users", "add_posts"}, names(total))
}

func TestTracker_Record(t *testing.T) {
	ctx := context.Background()
	backend := newSQLiteBackend(t)
	tracker := NewTracker(backend, SQLite)
	def := Definition{Version: "20240101000000", Name: "it's", Group: "a", Up: "select 1"}

	applied, err := tracker.Peek(ctx, "a")
	require.NoError(t, err)
	assert.Empty(t, applied)
	assert.Zero(t, backend.Writes())

	require.NoError(t, tracker.Record(ctx, def))

	err = tracker.Record(ctx, def)
	var already *AlreadyAppliedError
	require.True(t, errors.As(err, &already))
	assert.Equal(t, "20240101000000", already.Version)

	applied, err = tracker.Peek(ctx, "a")
	require.NoError(t, err)
	assert.True(t, applied.Has("20240101000000"))

	require.NoError(t, tracker.Unrecord(ctx, "a", "20240101000000"))
	applied, err = tracker.Applied(ctx, "a")
	require.NoError(t, err)
	assert.Empty(t, applied)
}

func TestDialectFor(t *testing.T) {
	for driver, name := range map[string]string{"postgres": "postgres", "pgx": "postgres", "mysql": "mysql", "sqlite": "sqlite"} {
		dialect, err := DialectFor(driver)
		require.NoError(t, err)
		assert.Equal(t, name, dialect.Name())
	}
	_, err := DialectFor("oracle")
	assert.Error(t, err)

	assert.Equal(t, `"content".schema_migrations`, Postgres.Table("content"))
	assert.Equal(t, `'it''s'`, Postgres.Literal("it's"))
	assert.Equal(t, "`content_schema_migrations`", MySQL.Table("content"))
}
