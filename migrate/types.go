package migrate

import (
	"sort"
	"time"
)

type (
	// Group is a schema group, an independent namespace of migrations
	Group string

	// Definition is a single migration loaded from the catalog
	Definition struct {
		// yyyymmddHHMMSS
		Version string `json:"version"`
		Name    string `json:"name"`
		Group   Group  `json:"group"`

		// Path of the up script within the migration source
		Source string `json:"source"`

		Up   string `json:"sql"`
		Down string `json:"-"`
	}

	// Record is a row of a tracking table
	Record struct {
		Group     Group      `db:"-" json:"group"`
		Version   string     `db:"version" json:"version"`
		Name      string     `db:"name" json:"name"`
		AppliedAt *time.Time `db:"applied_at" json:"applied_at,omitempty"`
	}

	// Versions is a set of applied versions
	Versions map[string]struct{}
)

// HasDown returns true if a down script exists
func (d Definition) HasDown() bool {
	return d.Down != ""
}

// Has checks if version is in the set
func (v Versions) Has(version string) bool {
	_, ok := v[version]
	return ok
}

// Sorted returns the versions in ascending order
func (v Versions) Sorted() []string {
	result := make([]string, 0, len(v))
	for version := range v {
		result = append(result, version)
	}
	sort.Strings(result)
	return result
}

// Latest returns the highest version in the set or empty string
func (v Versions) Latest() string {
	latest := ""
	for version := range v {
		if version > latest {
			latest = version
		}
	}
	return latest
}

// NewVersions builds a set from a list of versions
func NewVersions(versions ...string) Versions {
	result := make(Versions, len(versions))
	for _, version := range versions {
		result[version] = struct{}{}
	}
	return result
}
