package dbmigrate

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMigrator_LoadMigrations_SkipsDownFilesAndSortsByVersion(t *testing.T) {
	dir := t.TempDir()
	files := map[string]string{
		"002_add_indexes.sql":          "CREATE INDEX foo ON bar (baz);",
		"001_initial_schema.sql":       "CREATE TABLE foo (id INT);",
		"001_initial_schema_down.sql":  "DROP TABLE foo;",
		"not_a_migration.txt":          "ignored",
	}
	for name, content := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
	}

	SetMigrationsDir(dir)
	defer SetMigrationsDir("migrations")

	m := NewMigrator(nil)
	migrations, err := m.loadMigrations()
	require.NoError(t, err)
	require.Len(t, migrations, 2)

	assert.Equal(t, 1, migrations[0].Version)
	assert.Equal(t, "initial schema", migrations[0].Description)
	assert.Equal(t, 2, migrations[1].Version)
}

func TestMigrator_LoadMigrations_RejectsBadFilename(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "bad-name.sql"), []byte("SELECT 1;"), 0o644))

	SetMigrationsDir(dir)
	defer SetMigrationsDir("migrations")

	m := NewMigrator(nil)
	_, err := m.loadMigrations()
	assert.Error(t, err)
}
