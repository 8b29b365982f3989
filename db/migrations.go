package db

import (
	"context"
	"regexp"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
)

var statementSplitter = regexp.MustCompilePOSIX(";$")

// statements splits a migration into single statements, for drivers
// which don't take multiple statements per Exec
func statements(contents string) []string {
	result := []string{}
	for _, stmt := range statementSplitter.Split(contents, -1) {
		stmt = strings.TrimSpace(stmt)
		if stmt != "" {
			result = append(result, stmt)
		}
	}
	return result
}

// executor runs migration SQL over a pooled connection; every call
// checks out a connection and returns it before returning.
//
// ExecTx is only atomic where DDL is transactional. MySQL commits
// implicitly on DDL, so a failing migration may leave partial schema
// behind and the tracking insert is not tied to the migration body.
type executor struct {
	db    *sqlx.DB
	split bool
}

func (e *executor) queries(query string) []string {
	if e.split {
		return statements(query)
	}
	return []string{query}
}

// Exec runs query
func (e *executor) Exec(ctx context.Context, query string) error {
	for _, stmt := range e.queries(query) {
		if _, err := e.db.ExecContext(ctx, stmt); err != nil {
			return errors.WithStack(err)
		}
	}
	return nil
}

// ExecTx runs statements inside one transaction
func (e *executor) ExecTx(ctx context.Context, stmts ...string) error {
	tx, err := e.db.BeginTxx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "begin transaction")
	}
	for _, query := range stmts {
		for _, stmt := range e.queries(query) {
			if _, err := tx.ExecContext(ctx, stmt); err != nil {
				tx.Rollback()
				return errors.WithStack(err)
			}
		}
	}
	return errors.Wrap(tx.Commit(), "commit transaction")
}

// Strings returns the first column of all rows
func (e *executor) Strings(ctx context.Context, query string) ([]string, error) {
	result := []string{}
	if err := e.db.SelectContext(ctx, &result, query); err != nil {
		return nil, errors.WithStack(err)
	}
	return result, nil
}
