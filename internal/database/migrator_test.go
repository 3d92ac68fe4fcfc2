package database

import (
	"io/fs"
	"strings"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestListMigrations(t *testing.T) {
	fsys := fstest.MapFS{
		"0002_second.up.sql":  {Data: []byte("SELECT 2")},
		"0001_first.up.sql":   {Data: []byte("SELECT 1")},
		"0001_first.down.sql": {Data: []byte("SELECT 0")},
		"README.md":           {Data: []byte("docs")},
		"nested/0003.up.sql":  {Data: []byte("SELECT 3")},
	}

	names, err := ListMigrations(fsys, ".")
	require.NoError(t, err)
	assert.Equal(t, []string{"0001_first.up.sql", "0002_second.up.sql"}, names)
}

func TestPending(t *testing.T) {
	names := []string{"0001.up.sql", "0002.up.sql", "0003.up.sql"}

	assert.Equal(t, names, Pending(names, nil))
	assert.Equal(t, []string{"0002.up.sql"}, Pending(names, map[string]bool{"0001.up.sql": true, "0003.up.sql": true}))
	assert.Empty(t, Pending(names, map[string]bool{"0001.up.sql": true, "0002.up.sql": true, "0003.up.sql": true}))
}

func TestEmbeddedMigrations(t *testing.T) {
	names, err := ListMigrations(Migrations(), ".")
	require.NoError(t, err)
	require.NotEmpty(t, names)

	data, err := fs.ReadFile(Migrations(), names[0])
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(data), "chat_states"))
}
