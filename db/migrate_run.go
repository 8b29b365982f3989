package db

import (
	"context"

	"github.com/titpetric/cmsmigrate/migrate"
)

// Up applies every pending migration of every schema group
func (l *Local) Up(ctx context.Context) ([]migrate.Definition, error) {
	return l.runner.Up(ctx, l)
}

// Down rolls back the latest steps migrations of group
func (l *Local) Down(ctx context.Context, group migrate.Group, steps int) ([]migrate.Definition, error) {
	return l.runner.Down(ctx, l, group, steps)
}
