package migrate

import (
	"io/fs"
	"path"
	"regexp"
	"sort"
	"strings"

	"github.com/pkg/errors"
)

var (
	filenameMatcher = regexp.MustCompile(`^([0-9]{14})_([A-Za-z0-9][A-Za-z0-9_\-]*?)(\.down)?\.sql$`)
	groupMatcher    = regexp.MustCompile(`^[a-z_][a-z0-9_]*$`)
)

// Catalog is an ordered, immutable list of migrations per schema group
type Catalog struct {
	groups      []Group
	definitions map[Group][]Definition
}

// Load reads migrations from fsys; each top level directory is a schema group
func Load(fsys fs.FS) (*Catalog, error) {
	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return nil, errors.Wrap(err, "reading migration source")
	}

	catalog := &Catalog{
		definitions: make(map[Group][]Definition),
	}
	for _, entry := range entries {
		if !entry.IsDir() {
			if strings.HasSuffix(entry.Name(), ".sql") {
				return nil, &LoadError{Filename: entry.Name(), Reason: "migration outside of a schema group directory"}
			}
			continue
		}
		if err := catalog.loadGroup(fsys, entry.Name()); err != nil {
			return nil, err
		}
	}
	catalog.sort()
	return catalog, nil
}

// NewCatalog builds a catalog from definitions, applying the same checks as Load
func NewCatalog(definitions ...Definition) (*Catalog, error) {
	catalog := &Catalog{
		definitions: make(map[Group][]Definition),
	}
	seen := map[string]bool{}
	for _, def := range definitions {
		source := def.Source
		if source == "" {
			source = path.Join(string(def.Group), def.Version+"_"+def.Name+".sql")
			def.Source = source
		}
		if !groupMatcher.MatchString(string(def.Group)) {
			return nil, &LoadError{Filename: source, Reason: "invalid schema group name"}
		}
		if matched, _ := regexp.MatchString(`^[0-9]{14}$`, def.Version); !matched {
			return nil, &LoadError{Filename: source, Reason: "version must be a 14 digit timestamp"}
		}
		key := string(def.Group) + "/" + def.Version
		if seen[key] {
			return nil, &LoadError{Filename: source, Reason: "duplicate version " + def.Version}
		}
		seen[key] = true
		if _, ok := catalog.definitions[def.Group]; !ok {
			catalog.groups = append(catalog.groups, def.Group)
		}
		catalog.definitions[def.Group] = append(catalog.definitions[def.Group], def)
	}
	catalog.sort()
	return catalog, nil
}

func (c *Catalog) loadGroup(fsys fs.FS, dir string) error {
	group := Group(dir)
	if !groupMatcher.MatchString(dir) {
		return &LoadError{Filename: dir, Reason: "invalid schema group name"}
	}

	entries, err := fs.ReadDir(fsys, dir)
	if err != nil {
		return errors.Wrapf(err, "reading schema group %s", dir)
	}

	ups := map[string]*Definition{}
	downs := map[string]string{}
	downFiles := map[string]string{}
	for _, entry := range entries {
		filename := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(filename, ".sql") {
			continue
		}
		source := path.Join(dir, filename)

		match := filenameMatcher.FindStringSubmatch(filename)
		if match == nil {
			return &LoadError{Filename: source, Reason: "expected <14-digit-version>_<name>.sql"}
		}
		version, name, isDown := match[1], match[2], match[3] != ""

		contents, err := fs.ReadFile(fsys, source)
		if err != nil {
			return &LoadError{Filename: source, Reason: err.Error()}
		}

		if isDown {
			downs[version] = string(contents)
			downFiles[version] = source
			continue
		}
		if _, ok := ups[version]; ok {
			return &LoadError{Filename: source, Reason: "duplicate version " + version}
		}
		if strings.TrimSpace(string(contents)) == "" {
			return &LoadError{Filename: source, Reason: "empty migration"}
		}
		ups[version] = &Definition{
			Version: version,
			Name:    name,
			Group:   group,
			Source:  source,
			Up:      string(contents),
		}
	}

	for version, contents := range downs {
		def, ok := ups[version]
		if !ok {
			return &LoadError{Filename: downFiles[version], Reason: "down script without a matching up script"}
		}
		def.Down = contents
	}

	if len(ups) == 0 {
		return nil
	}
	c.groups = append(c.groups, group)
	for _, def := range ups {
		c.definitions[group] = append(c.definitions[group], *def)
	}
	return nil
}

func (c *Catalog) sort() {
	sort.Slice(c.groups, func(i, j int) bool {
		return c.groups[i] < c.groups[j]
	})
	for _, defs := range c.definitions {
		sort.Slice(defs, func(i, j int) bool {
			return defs[i].Version < defs[j].Version
		})
	}
}

// Groups returns the schema groups in name order
func (c *Catalog) Groups() []Group {
	result := make([]Group, len(c.groups))
	copy(result, c.groups)
	return result
}

// Definitions returns migrations for a group in ascending version order
func (c *Catalog) Definitions(group Group) []Definition {
	defs := c.definitions[group]
	result := make([]Definition, len(defs))
	copy(result, defs)
	return result
}

// All returns every migration, grouped by schema group and ordered by version
func (c *Catalog) All() []Definition {
	result := []Definition{}
	for _, group := range c.groups {
		result = append(result, c.definitions[group]...)
	}
	return result
}

// Lookup finds a migration by group and version
func (c *Catalog) Lookup(group Group, version string) (Definition, bool) {
	for _, def := range c.definitions[group] {
		if def.Version == version {
			return def, true
		}
	}
	return Definition{}, false
}

// Has returns true if the catalog knows about group
func (c *Catalog) Has(group Group) bool {
	_, ok := c.definitions[group]
	return ok
}
