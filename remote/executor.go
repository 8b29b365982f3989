package remote

import (
	"context"
	"fmt"
	"strings"

	"github.com/pkg/errors"
)

// executor sends SQL text to the management API of one project. The
// access token is resolved for every request, so a long run picks up a
// refreshed credential instead of reusing one that expired mid-run.
type executor struct {
	client *Client
	token  func(ctx context.Context) (string, error)
	ref    string
}

func (e *executor) query(ctx context.Context, query string) ([]map[string]interface{}, error) {
	token, err := e.token(ctx)
	if err != nil {
		return nil, err
	}
	return e.client.Query(ctx, token, e.ref, query)
}

// Exec runs query, discarding results
func (e *executor) Exec(ctx context.Context, query string) error {
	_, err := e.query(ctx, query)
	return err
}

// ExecTx sends statements as a single request; the database runs a
// multi statement query in one implicit transaction
func (e *executor) ExecTx(ctx context.Context, statements ...string) error {
	parts := make([]string, 0, len(statements))
	for _, stmt := range statements {
		stmt = strings.TrimSpace(stmt)
		stmt = strings.TrimRight(stmt, ";")
		if stmt != "" {
			parts = append(parts, stmt)
		}
	}
	return e.Exec(ctx, strings.Join(parts, ";\n")+";")
}

// Strings returns the single column of every result row
func (e *executor) Strings(ctx context.Context, query string) ([]string, error) {
	rows, err := e.query(ctx, query)
	if err != nil {
		return nil, err
	}
	result := make([]string, 0, len(rows))
	for _, row := range rows {
		if len(row) != 1 {
			return nil, errors.Errorf("expected a single column, got %d", len(row))
		}
		for _, value := range row {
			if value == nil {
				continue
			}
			result = append(result, fmt.Sprint(value))
		}
	}
	return result, nil
}
