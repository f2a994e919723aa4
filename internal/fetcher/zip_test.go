package fetcher

import (
	"archive/zip"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func createTestZIP(t *testing.T, files map[string]string) string {
	t.Helper()
	zipPath := filepath.Join(t.TempDir(), "test.zip")
	f, err := os.Create(zipPath)
	require.NoError(t, err)
	defer f.Close() //nolint:errcheck

	w := zip.NewWriter(f)
	for name, content := range files {
		fw, err := w.Create(name)
		require.NoError(t, err)
		_, err = fw.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())
	return zipPath
}

func TestExtractZIP_Shapefile(t *testing.T) {
	zipPath := createTestZIP(t, map[string]string{
		"tl_2024_13_bg.shp": "shp",
		"tl_2024_13_bg.dbf": "dbf",
		"tl_2024_13_bg.shx": "shx",
	})

	destDir := t.TempDir()
	extracted, err := ExtractZIP(zipPath, destDir)
	require.NoError(t, err)
	assert.Len(t, extracted, 3)

	data, err := os.ReadFile(filepath.Join(destDir, "tl_2024_13_bg.dbf"))
	require.NoError(t, err)
	assert.Equal(t, "dbf", string(data))

	shp, err := FindByExt(extracted, ".shp")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(destDir, "tl_2024_13_bg.shp"), shp)
}

func TestExtractZIP_FlattensDirectories(t *testing.T) {
	zipPath := createTestZIP(t, map[string]string{
		"nested/dir/a.txt": "aaa",
	})

	destDir := t.TempDir()
	extracted, err := ExtractZIP(zipPath, destDir)
	require.NoError(t, err)
	require.Len(t, extracted, 1)
	assert.Equal(t, filepath.Join(destDir, "a.txt"), extracted[0])
}

func TestExtractZIP_ZipSlipFlattened(t *testing.T) {
	zipPath := createTestZIP(t, map[string]string{
		"../../evil.txt": "pwned",
	})

	destDir := t.TempDir()
	extracted, err := ExtractZIP(zipPath, destDir)
	require.NoError(t, err)
	require.Len(t, extracted, 1)
	assert.Equal(t, filepath.Join(destDir, "evil.txt"), extracted[0])
	_, err = os.Stat(filepath.Join(filepath.Dir(filepath.Dir(destDir)), "evil.txt"))
	assert.True(t, os.IsNotExist(err))
}

func TestExtractZIP_NotAZip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.zip")
	require.NoError(t, os.WriteFile(path, []byte("not a zip"), 0o644))

	_, err := ExtractZIP(path, t.TempDir())
	assert.Error(t, err)
}

func TestFindByExt(t *testing.T) {
	paths := []string{"/tmp/a.dbf", "/tmp/a.SHP"}

	got, err := FindByExt(paths, ".shp")
	require.NoError(t, err)
	assert.Equal(t, "/tmp/a.SHP", got)

	_, err = FindByExt(paths, ".prj")
	assert.Error(t, err)
}
