package migrate

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExcerpt(t *testing.T) {
	assert.Equal(t, "create table users ( id int );", Excerpt("create table users (\n\tid int\n);", 40))
	assert.Equal(t, "create table users (id int);", Excerpt("create  table users (id int);", 28))
	assert.Equal(t, "create ...", Excerpt("create table users (id int);", 10))
}

func TestPrint(t *testing.T) {
	buf := new(bytes.Buffer)
	require.NoError(t, Print(buf, nil))
	assert.Equal(t, "No pending migrations\n", buf.String())

	buf.Reset()
	defs := []Definition{
		{Version: "20240101000000", Name: "create_users", Group: "a", Source: "a/20240101000000_create_users.sql", Up: "create table users (id int);"},
		{Version: "20240102000000", Name: "add_posts", Group: "a", Source: "a/20240102000000_add_posts.sql", Up: strings.Repeat("x", 200)},
	}
	require.NoError(t, Print(buf, defs))

	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	require.Len(t, lines, 4)
	assert.Equal(t, "  1. create_users [a] a/20240101000000_create_users.sql", lines[0])
	assert.Equal(t, "     create table users (id int);", lines[1])
	assert.Equal(t, "  2. add_posts [a] a/20240102000000_add_posts.sql", lines[2])
	assert.Equal(t, "     "+strings.Repeat("x", ExcerptLength-3)+"...", lines[3])
}
