package migrate

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// Backend is a migration target reachable through an Executor
type Backend interface {
	// Target identifies the database for locking and logging
	Target() string

	// Authenticate checks the target is reachable with our credentials
	Authenticate(ctx context.Context) error

	// Prepare provisions anything the target needs before migrations run
	Prepare(ctx context.Context) error

	Executor() Executor
	Dialect() Dialect
	Close() error
}

// IDGenerator produces unique run IDs
type IDGenerator interface {
	NextID() (uint64, error)
}

// DefaultStatementTimeout bounds every SQL statement or HTTP call
const DefaultStatementTimeout = 60 * time.Second

// Runner computes pending migrations and applies them in order
type Runner struct {
	catalog *Catalog
	log     logrus.FieldLogger

	Locker           Locker
	IDs              IDGenerator
	StatementTimeout time.Duration
}

// NewRunner creates a *Runner over catalog
func NewRunner(catalog *Catalog, log logrus.FieldLogger) *Runner {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Runner{
		catalog:          catalog,
		log:              log,
		Locker:           NewKeyedLock(),
		StatementTimeout: DefaultStatementTimeout,
	}
}

// Catalog returns the runner catalog
func (r *Runner) Catalog() *Catalog {
	return r.catalog
}

func (r *Runner) groups(groups []Group) ([]Group, error) {
	if len(groups) == 0 {
		return r.catalog.Groups(), nil
	}
	for _, group := range groups {
		if !r.catalog.Has(group) {
			return nil, errors.Wrap(ErrUnknownGroup, string(group))
		}
	}
	return groups, nil
}

func (r *Runner) tracker(b Backend) (Executor, *Tracker) {
	exec := withTimeout(b.Executor(), r.StatementTimeout)
	return exec, NewTracker(exec, b.Dialect())
}

func (r *Runner) logger(b Backend) logrus.FieldLogger {
	log := r.log.WithField("target", b.Target())
	if r.IDs != nil {
		if id, err := r.IDs.NextID(); err == nil {
			log = log.WithField("run", id)
		}
	}
	return log
}

// Pending returns unapplied migrations in execution order; it never writes
func (r *Runner) Pending(ctx context.Context, b Backend, groups ...Group) ([]Definition, error) {
	groups, err := r.groups(groups)
	if err != nil {
		return nil, err
	}

	_, tracker := r.tracker(b)
	result := []Definition{}
	for _, group := range groups {
		applied, err := tracker.Peek(ctx, group)
		if err != nil {
			return nil, err
		}
		defs, err := pending(r.catalog.Definitions(group), applied)
		if err != nil {
			return nil, err
		}
		result = append(result, defs...)
	}
	return result, nil
}

// Preview returns the pending migrations with their SQL, without side effects
func (r *Runner) Preview(ctx context.Context, b Backend, groups ...Group) ([]Definition, error) {
	return r.Pending(ctx, b, groups...)
}

// Status returns the applied versions per schema group; it never writes
func (r *Runner) Status(ctx context.Context, b Backend) (map[Group]Versions, error) {
	_, tracker := r.tracker(b)
	result := make(map[Group]Versions)
	for _, group := range r.catalog.Groups() {
		applied, err := tracker.Peek(ctx, group)
		if err != nil {
			return nil, err
		}
		result[group] = applied
	}
	return result, nil
}

// Verify checks that no applied version is preceded by an unapplied one
func (r *Runner) Verify(ctx context.Context, b Backend) error {
	_, err := r.Pending(ctx, b)
	return err
}

// Up applies pending migrations for groups (all groups if none given).
// It returns the migrations applied by this call, also on failure.
func (r *Runner) Up(ctx context.Context, b Backend, groups ...Group) ([]Definition, error) {
	groups, err := r.groups(groups)
	if err != nil {
		return nil, err
	}

	log := r.logger(b)
	if err := b.Authenticate(ctx); err != nil {
		return nil, err
	}
	if err := b.Prepare(ctx); err != nil {
		return nil, err
	}

	result := []Definition{}
	for _, group := range groups {
		applied, err := r.up(ctx, b, group, log.WithField("group", group))
		result = append(result, applied...)
		if err != nil {
			return result, err
		}
	}
	return result, nil
}

func (r *Runner) up(ctx context.Context, b Backend, group Group, log logrus.FieldLogger) ([]Definition, error) {
	release, err := r.Locker.Acquire(ctx, lockKey(b.Target(), group))
	if err != nil {
		return nil, err
	}
	defer release()

	exec, tracker := r.tracker(b)
	applied, err := tracker.Applied(ctx, group)
	if err != nil {
		return nil, err
	}
	defs, err := pending(r.catalog.Definitions(group), applied)
	if err != nil {
		return nil, err
	}
	if len(defs) == 0 {
		log.Info("schema up to date")
		return nil, nil
	}

	result := []Definition{}
	for _, def := range defs {
		log := log.WithField("version", def.Version)
		log.Infof("applying %s", def.Source)

		if err := exec.ExecTx(ctx, def.Up, tracker.RecordStatement(def)); err != nil {
			log.WithError(err).Error("migration failed")
			if current, perr := tracker.Peek(ctx, group); perr == nil && current.Has(def.Version) {
				return result, &AlreadyAppliedError{Group: group, Version: def.Version}
			}
			return result, &ExecutionError{Group: group, Version: def.Version, Name: def.Name, Err: err}
		}
		result = append(result, def)
	}
	log.Infof("applied %d migrations", len(result))
	return result, nil
}

// Down rolls back the latest steps migrations of group, newest first
func (r *Runner) Down(ctx context.Context, b Backend, group Group, steps int) ([]Definition, error) {
	if !r.catalog.Has(group) {
		return nil, errors.Wrap(ErrUnknownGroup, string(group))
	}
	if steps < 1 {
		return nil, errors.Errorf("invalid rollback steps: %d", steps)
	}

	log := r.logger(b).WithField("group", group)
	if err := b.Authenticate(ctx); err != nil {
		return nil, err
	}

	release, err := r.Locker.Acquire(ctx, lockKey(b.Target(), group))
	if err != nil {
		return nil, err
	}
	defer release()

	exec, tracker := r.tracker(b)
	applied, err := tracker.Applied(ctx, group)
	if err != nil {
		return nil, err
	}

	versions := applied.Sorted()
	defs := []Definition{}
	for i := len(versions) - 1; i >= 0 && len(defs) < steps; i-- {
		def, ok := r.catalog.Lookup(group, versions[i])
		if !ok {
			return nil, errors.Errorf("applied migration %s/%s is not in the catalog", group, versions[i])
		}
		if !def.HasDown() {
			return nil, &MissingDownScriptError{Group: group, Version: def.Version, Name: def.Name}
		}
		defs = append(defs, def)
	}

	result := []Definition{}
	for _, def := range defs {
		log := log.WithField("version", def.Version)
		log.Infof("rolling back %s", def.Source)

		if err := exec.ExecTx(ctx, def.Down, tracker.UnrecordStatement(group, def.Version)); err != nil {
			log.WithError(err).Error("rollback failed")
			return result, &ExecutionError{Group: group, Version: def.Version, Name: def.Name, Err: err}
		}
		result = append(result, def)
	}
	return result, nil
}

func pending(defs []Definition, applied Versions) ([]Definition, error) {
	latest := applied.Latest()
	result := []Definition{}
	for _, def := range defs {
		if applied.Has(def.Version) {
			continue
		}
		if def.Version < latest {
			return nil, &OrderingError{Group: def.Group, Version: def.Version, Latest: latest}
		}
		result = append(result, def)
	}
	return result, nil
}

type timeoutExecutor struct {
	Executor
	timeout time.Duration
}

func withTimeout(exec Executor, timeout time.Duration) Executor {
	if timeout <= 0 {
		return exec
	}
	return &timeoutExecutor{exec, timeout}
}

func (e *timeoutExecutor) Exec(ctx context.Context, query string) error {
	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()
	return e.Executor.Exec(ctx, query)
}

func (e *timeoutExecutor) ExecTx(ctx context.Context, statements ...string) error {
	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()
	return e.Executor.ExecTx(ctx, statements...)
}

func (e *timeoutExecutor) Strings(ctx context.Context, query string) ([]string, error) {
	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()
	return e.Executor.Strings(ctx, query)
}
