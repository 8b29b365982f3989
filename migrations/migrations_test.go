package migrations

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/titpetric/cmsmigrate/migrate"
)

func TestCatalog(t *testing.T) {
	catalog, err := Catalog()
	require.NoError(t, err)

	assert.Equal(t, []migrate.Group{Comments, Content}, catalog.Groups())

	content := catalog.Definitions(Content)
	require.Len(t, content, 3)
	assert.Equal(t, "create_collections", content[0].Name)
	assert.True(t, content[0].HasDown())
	assert.Equal(t, "entries_search", content[2].Name)
	assert.False(t, content[2].HasDown())

	for _, def := range catalog.All() {
		assert.Contains(t, def.Up, string(def.Group)+".", "%s should target its own schema", def.Source)
	}
}
