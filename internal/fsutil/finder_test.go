package fsutil

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, path string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))
}

func TestFindFilesByExtension(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "b.yaml"))
	writeFile(t, filepath.Join(dir, "nested", "a.yml"))
	writeFile(t, filepath.Join(dir, "notes.txt"))

	got, err := FindFilesByExtension(dir, ".yaml", ".yml")
	require.NoError(t, err)
	assert.Equal(t, []string{
		filepath.Join(dir, "b.yaml"),
		filepath.Join(dir, "nested", "a.yml"),
	}, got)
}

func TestCollectFiles(t *testing.T) {
	dir := t.TempDir()
	main := filepath.Join(dir, "sim.hcl")
	extra := filepath.Join(dir, "extra.conf")
	writeFile(t, main)
	writeFile(t, extra)

	got, err := CollectFiles([]string{extra, dir, main}, ".hcl")
	require.NoError(t, err)
	assert.Equal(t, []string{extra, main}, got)

	_, err = CollectFiles([]string{filepath.Join(dir, "missing.hcl")}, ".hcl")
	require.Error(t, err)
}
