package db

import (
	"context"
	"io"

	"github.com/titpetric/cmsmigrate/migrate"
)

// Preview returns pending migrations without touching the database
func (l *Local) Preview(ctx context.Context) ([]migrate.Definition, error) {
	return l.runner.Preview(ctx, l)
}

// Print writes the pending migrations to w in execution order
func (l *Local) Print(ctx context.Context, w io.Writer) error {
	defs, err := l.Preview(ctx)
	if err != nil {
		return err
	}
	return migrate.Print(w, defs)
}
