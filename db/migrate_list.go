package db

import (
	"context"
	"fmt"

	"github.com/pkg/errors"

	"github.com/titpetric/cmsmigrate/migrate"
)

// Applied lists applied versions per schema group
func (l *Local) Applied(ctx context.Context) (map[migrate.Group]migrate.Versions, error) {
	return l.runner.Status(ctx, l)
}

// History returns the tracking rows of group in version order; a group
// without a tracking table has no history
func (l *Local) History(ctx context.Context, group migrate.Group) ([]migrate.Record, error) {
	exists, err := l.exec.Strings(ctx, l.dialect.Exists(group))
	if err != nil {
		return nil, err
	}
	result := []migrate.Record{}
	if len(exists) == 0 {
		return result, nil
	}

	query := fmt.Sprintf("select version, name, applied_at from %s order by version", l.dialect.Table(group))
	if err := l.db.SelectContext(ctx, &result, query); err != nil {
		return nil, errors.Wrapf(err, "reading history of %s", group)
	}
	for k := range result {
		result[k].Group = group
	}
	return result, nil
}
