package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNextSequence(t *testing.T) {
	dir := t.TempDir()

	seq, err := nextSequence(dir)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), seq)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "000007_add_index.up.sql"), []byte("--"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "000007_add_index.down.sql"), []byte("--"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "README.md"), []byte("notes"), 0o644))

	seq, err = nextSequence(dir)
	require.NoError(t, err)
	assert.Equal(t, uint64(8), seq)
}

func TestNextSequence_MissingDirStartsAtOne(t *testing.T) {
	seq, err := nextSequence(filepath.Join(t.TempDir(), "does-not-exist"))
	require.NoError(t, err)
	assert.Equal(t, uint64(1), seq)
}

func TestCreateMigration_WritesNumberedPair(t *testing.T) {
	dir := t.TempDir()

	files, err := createMigration(dir, "add_categories")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "000001_add_categories.up.sql"), files[0])
	assert.Equal(t, filepath.Join(dir, "000001_add_categories.down.sql"), files[1])
	for _, f := range files {
		_, err := os.Stat(f)
		assert.NoError(t, err)
	}

	files, err = createMigration(dir, "drop_categories")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "000002_drop_categories.up.sql"), files[0])
}

func TestShippedMigrationsPairUp(t *testing.T) {
	entries, err := os.ReadDir(filepath.Join("..", "..", "migrations"))
	require.NoError(t, err)
	require.NotEmpty(t, entries)

	ups := map[string]bool{}
	downs := map[string]bool{}
	for _, e := range entries {
		name := e.Name()
		switch {
		case strings.HasSuffix(name, ".up.sql"):
			ups[strings.TrimSuffix(name, ".up.sql")] = true
		case strings.HasSuffix(name, ".down.sql"):
			downs[strings.TrimSuffix(name, ".down.sql")] = true
		default:
			t.Errorf("unexpected file %s in migrations directory", name)
		}
	}
	assert.Equal(t, ups, downs, "every up migration needs a matching down")
}
