package migrate

import (
	"context"
	"fmt"

	"github.com/pkg/errors"
)

// Executor runs SQL text against a migration target
type Executor interface {
	// Exec runs a query, discarding results
	Exec(ctx context.Context, query string) error

	// ExecTx runs statements as one atomic unit
	ExecTx(ctx context.Context, statements ...string) error

	// Strings runs a query and returns the first column of every row
	Strings(ctx context.Context, query string) ([]string, error)
}

// Tracker persists applied markers, one tracking table per schema group
type Tracker struct {
	exec    Executor
	dialect Dialect
}

// NewTracker creates a *Tracker
func NewTracker(exec Executor, dialect Dialect) *Tracker {
	return &Tracker{
		exec:    exec,
		dialect: dialect,
	}
}

// Ensure creates the tracking table for group if it doesn't exist
func (t *Tracker) Ensure(ctx context.Context, group Group) error {
	for _, stmt := range t.dialect.Ensure(group) {
		if err := t.exec.Exec(ctx, stmt); err != nil {
			return errors.Wrapf(err, "creating tracking table for %s", group)
		}
	}
	return nil
}

// Applied returns the applied versions, creating the tracking table as needed
func (t *Tracker) Applied(ctx context.Context, group Group) (Versions, error) {
	if err := t.Ensure(ctx, group); err != nil {
		return nil, err
	}
	return t.read(ctx, group)
}

// Peek returns the applied versions without writing anything.
// A missing tracking table reads as an empty set.
func (t *Tracker) Peek(ctx context.Context, group Group) (Versions, error) {
	tables, err := t.exec.Strings(ctx, t.dialect.Exists(group))
	if err != nil {
		return nil, errors.Wrapf(err, "checking tracking table for %s", group)
	}
	if len(tables) == 0 {
		return Versions{}, nil
	}
	return t.read(ctx, group)
}

func (t *Tracker) read(ctx context.Context, group Group) (Versions, error) {
	query := fmt.Sprintf("select version from %s order by version", t.dialect.Table(group))
	versions, err := t.exec.Strings(ctx, query)
	if err != nil {
		return nil, errors.Wrapf(err, "reading tracking table for %s", group)
	}
	return NewVersions(versions...), nil
}

// Record marks def as applied
func (t *Tracker) Record(ctx context.Context, def Definition) error {
	applied, err := t.Applied(ctx, def.Group)
	if err != nil {
		return err
	}
	if applied.Has(def.Version) {
		return &AlreadyAppliedError{Group: def.Group, Version: def.Version}
	}
	return errors.Wrapf(t.exec.Exec(ctx, t.RecordStatement(def)), "recording %s/%s", def.Group, def.Version)
}

// Unrecord removes the applied marker for a version
func (t *Tracker) Unrecord(ctx context.Context, group Group, version string) error {
	return errors.Wrapf(t.exec.Exec(ctx, t.UnrecordStatement(group, version)), "unrecording %s/%s", group, version)
}

// RecordStatement renders the tracking insert for def
func (t *Tracker) RecordStatement(def Definition) string {
	return fmt.Sprintf("insert into %s (version, name) values (%s, %s)",
		t.dialect.Table(def.Group),
		t.dialect.Literal(def.Version),
		t.dialect.Literal(def.Name),
	)
}

// UnrecordStatement renders the tracking delete for a version
func (t *Tracker) UnrecordStatement(group Group, version string) string {
	return fmt.Sprintf("delete from %s where version = %s", t.dialect.Table(group), t.dialect.Literal(version))
}
