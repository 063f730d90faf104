package fetcher

import (
	"archive/zip"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func makeZip(t *testing.T, entries map[string]string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.zip")
	f, err := os.Create(path)
	require.NoError(t, err)
	zw := zip.NewWriter(f)
	for name, content := range entries {
		w, err := zw.Create(name)
		require.NoError(t, err)
		_, err = w.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	require.NoError(t, f.Close())
	return path
}

func TestExtractZIP_RoundTrip(t *testing.T) {
	archive := makeZip(t, map[string]string{
		"gadm_410-levels.gpkg": "not really a geopackage",
		"doc/readme.txt":       "docs",
	})

	dest := t.TempDir()
	paths, err := ExtractZIP(archive, dest)
	require.NoError(t, err)
	assert.Len(t, paths, 2)

	data, err := os.ReadFile(filepath.Join(dest, "gadm_410-levels.gpkg"))
	require.NoError(t, err)
	assert.Equal(t, "not really a geopackage", string(data))

	data, err = os.ReadFile(filepath.Join(dest, "doc", "readme.txt"))
	require.NoError(t, err)
	assert.Equal(t, "docs", string(data))
}

func TestExtractZIP_CorruptArchive(t *testing.T) {
	path := filepath.Join(t.TempDir(), "broken.zip")
	require.NoError(t, os.WriteFile(path, []byte("this is not a zip"), 0o644))

	_, err := ExtractZIP(path, t.TempDir())
	require.Error(t, err)

	var cae *CorruptArchiveError
	require.True(t, errors.As(err, &cae))
	assert.Equal(t, path, cae.Path)
}

func TestExtractZIP_RejectsEscapingEntry(t *testing.T) {
	archive := makeZip(t, map[string]string{
		"../evil.txt": "escaped",
	})

	dest := t.TempDir()
	_, err := ExtractZIP(archive, dest)
	require.Error(t, err)

	var cae *CorruptArchiveError
	require.True(t, errors.As(err, &cae))
	assert.Contains(t, err.Error(), "escapes destination")

	_, statErr := os.Stat(filepath.Join(filepath.Dir(dest), "evil.txt"))
	assert.True(t, os.IsNotExist(statErr))
}

func TestFindByExt(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "nested"), 0o755))
	for _, name := range []string{"b.gpkg", "a.gpkg", "notes.txt", "nested/c.GPKG"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("x"), 0o644))
	}

	path, err := FindByExt(dir, ".gpkg")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "a.gpkg"), path)

	_, err = FindByExt(dir, ".shp")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no .shp file")
}
