package remote

import (
	"context"
	"strings"

	"github.com/lib/pq"
	"github.com/sirupsen/logrus"

	"github.com/titpetric/cmsmigrate/credentials"
	"github.com/titpetric/cmsmigrate/migrate"
)

// APIRoles are the platform roles granted usage on exposed schema groups
var APIRoles = []string{"anon", "authenticated", "service_role"}

// Backend applies migrations to bound workspaces through the management API
type Backend struct {
	client *Client
	creds  *credentials.Manager
	runner *migrate.Runner
	log    logrus.FieldLogger
}

// NewBackend creates a *Backend
func NewBackend(client *Client, creds *credentials.Manager, runner *migrate.Runner, log logrus.FieldLogger) *Backend {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Backend{
		client: client,
		creds:  creds,
		runner: runner,
		log:    log,
	}
}

// Workspace resolves the migration target of a workspace. The access
// token is checked for expiry here and again before every request.
func (b *Backend) Workspace(ctx context.Context, workspaceID string) (*Target, error) {
	binding, _, err := b.creds.Token(ctx, workspaceID)
	if err != nil {
		return nil, err
	}
	token := func(ctx context.Context) (string, error) {
		_, token, err := b.creds.Token(ctx, workspaceID)
		return token, err
	}
	return &Target{
		binding: binding,
		groups:  b.runner.Catalog().Groups(),
		client:  b.client,
		exec: &executor{
			client: b.client,
			token:  token,
			ref:    binding.ProjectRef,
		},
		log: b.log.WithField("workspace", workspaceID).WithField("project", binding.ProjectRef),
	}, nil
}

// EnsurePrerequisites creates schema group namespaces and tracking tables
func (b *Backend) EnsurePrerequisites(ctx context.Context, workspaceID string) error {
	target, err := b.Workspace(ctx, workspaceID)
	if err != nil {
		return err
	}
	return target.EnsurePrerequisites(ctx)
}

// EnsureAPIExposure adds the schema groups to the REST exposed schemas.
// It returns true if the configuration was written.
func (b *Backend) EnsureAPIExposure(ctx context.Context, workspaceID string) (bool, error) {
	target, err := b.Workspace(ctx, workspaceID)
	if err != nil {
		return false, err
	}
	return target.EnsureAPIExposure(ctx)
}

// Pending lists pending migrations for a workspace
func (b *Backend) Pending(ctx context.Context, workspaceID string) ([]migrate.Definition, error) {
	target, err := b.Workspace(ctx, workspaceID)
	if err != nil {
		return nil, err
	}
	return b.runner.Pending(ctx, target)
}

// Preview returns pending migrations with SQL; it performs no writes at all
func (b *Backend) Preview(ctx context.Context, workspaceID string) ([]migrate.Definition, error) {
	target, err := b.Workspace(ctx, workspaceID)
	if err != nil {
		return nil, err
	}
	return b.runner.Preview(ctx, target)
}

// ApplyAll applies every pending migration of group in ascending order,
// stopping at the first failure
func (b *Backend) ApplyAll(ctx context.Context, workspaceID string, group migrate.Group) ([]migrate.Definition, error) {
	target, err := b.Workspace(ctx, workspaceID)
	if err != nil {
		return nil, err
	}
	return b.runner.Up(ctx, target, group)
}

// Target is the migration backend of one bound workspace
type Target struct {
	binding *credentials.Binding
	groups  []migrate.Group
	client  *Client
	exec    *executor
	log     logrus.FieldLogger
}

var _ migrate.Backend = &Target{}

// Target returns the project ref, shared by all workspaces bound to it
func (t *Target) Target() string { return "project:" + t.binding.ProjectRef }

// Dialect is always postgres
func (t *Target) Dialect() migrate.Dialect { return migrate.Postgres }

// Executor returns the management API executor
func (t *Target) Executor() migrate.Executor { return t.exec }

// Close is a no-op, there's no connection to release
func (t *Target) Close() error { return nil }

// Binding returns the workspace binding
func (t *Target) Binding() *credentials.Binding { return t.binding }

// Authenticate runs a trivial query with the workspace credential
func (t *Target) Authenticate(ctx context.Context) error {
	if err := t.exec.Exec(ctx, "select 1"); err != nil {
		switch err.(type) {
		case *migrate.AuthError, *migrate.ConnectionError:
			return err
		}
		return &migrate.ConnectionError{Target: t.Target(), Err: err}
	}
	return nil
}

// Prepare ensures prerequisites and REST exposure before migrations run
func (t *Target) Prepare(ctx context.Context) error {
	if err := t.EnsurePrerequisites(ctx); err != nil {
		return err
	}
	_, err := t.EnsureAPIExposure(ctx)
	return err
}

// EnsurePrerequisites sends one idempotent statement creating every
// schema group, its grants and its tracking table
func (t *Target) EnsurePrerequisites(ctx context.Context) error {
	roles := strings.Join(APIRoles, ", ")
	stmts := []string{}
	for _, group := range t.groups {
		stmts = append(stmts, migrate.Postgres.Ensure(group)...)
		stmts = append(stmts, "grant usage on schema "+pq.QuoteIdentifier(string(group))+" to "+roles)
	}
	if err := t.exec.ExecTx(ctx, stmts...); err != nil {
		return err
	}
	t.log.Debug("prerequisites ensured")
	return nil
}

// EnsureAPIExposure reads the exposed schema list and appends missing
// schema groups; nothing is written when all groups are already listed
func (t *Target) EnsureAPIExposure(ctx context.Context) (bool, error) {
	token, err := t.exec.token(ctx)
	if err != nil {
		return false, err
	}
	config, err := t.client.PostgrestConfig(ctx, token, t.binding.ProjectRef)
	if err != nil {
		return false, err
	}

	schemas := splitSchemas(config.DBSchema)
	exposed := make(map[string]bool, len(schemas))
	for _, schema := range schemas {
		exposed[schema] = true
	}

	missing := []string{}
	for _, group := range t.groups {
		if !exposed[string(group)] {
			missing = append(missing, string(group))
		}
	}
	if len(missing) == 0 {
		return false, nil
	}

	schemas = append(schemas, missing...)
	if err := t.client.UpdatePostgrestConfig(ctx, token, t.binding.ProjectRef, strings.Join(schemas, ",")); err != nil {
		return false, err
	}
	t.log.WithField("schemas", missing).Info("exposed schema groups")
	return true, nil
}

func splitSchemas(value string) []string {
	result := []string{}
	for _, schema := range strings.Split(value, ",") {
		schema = strings.TrimSpace(schema)
		if schema != "" {
			result = append(result, schema)
		}
	}
	return result
}
