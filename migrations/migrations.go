// Package migrations embeds the SQL migrations of the CMS schema groups.
package migrations

import (
	"embed"
	"io/fs"

	"github.com/titpetric/cmsmigrate/migrate"
)

//go:embed content/*.sql comments/*.sql
var files embed.FS

const (
	// Content holds collections, fields and entries
	Content migrate.Group = "content"
	// Comments holds comment threads and moderation state
	Comments migrate.Group = "comments"
)

// FS returns the embedded migration source
func FS() fs.FS {
	return files
}

// Catalog loads the embedded migrations
func Catalog() (*migrate.Catalog, error) {
	return migrate.Load(files)
}
