package db

import (
	"os"

	"github.com/titpetric/cmsmigrate/migrate"
)

// LoadDir loads a migration catalog from a directory on disk,
// one subdirectory per schema group
func LoadDir(dir string) (*migrate.Catalog, error) {
	if _, err := os.Stat(dir); err != nil {
		return nil, &migrate.LoadError{Filename: dir, Reason: err.Error()}
	}
	return migrate.Load(os.DirFS(dir))
}
