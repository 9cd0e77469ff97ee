package main

import (
	"io"
	"os"
	"path/filepath"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, name, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(name), 0o755))
	require.NoError(t, os.WriteFile(name, []byte(content), 0o644))
}

func TestOpenItems_WalksFolders(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "photos", "a.jpg"), "aaaa")
	writeFile(t, filepath.Join(dir, "photos", "2024", "b.png"), "bb")
	writeFile(t, filepath.Join(dir, "notes.txt"), "n")

	items, closeAll, err := openItems([]string{filepath.Join(dir, "photos"), filepath.Join(dir, "notes.txt")}, "/backup")
	require.NoError(t, err)
	defer closeAll()

	folders := make(map[string]string, len(items))
	for _, it := range items {
		folders[it.Name] = it.Folder
	}
	assert.Equal(t, map[string]string{
		"a.jpg":     "/backup/photos",
		"b.png":     "/backup/photos/2024",
		"notes.txt": "",
	}, folders)

	sort.Slice(items, func(i, j int) bool { return items[i].Name < items[j].Name })
	assert.Equal(t, int64(4), items[0].Size)
	assert.Equal(t, "image/png", items[1].MimeType)

	got := make([]byte, 4)
	n, err := items[0].Data.ReadAt(got, 0)
	require.NoError(t, err)
	assert.Equal(t, "aaaa", string(got[:n]))
	require.NoError(t, items[0].Data.(io.Closer).Close())
}

func TestOpenItems_Errors(t *testing.T) {
	dir := t.TempDir()

	_, _, err := openItems([]string{filepath.Join(dir, "missing.txt")}, "/")
	assert.Error(t, err)

	require.NoError(t, os.Mkdir(filepath.Join(dir, "empty"), 0o755))
	_, _, err = openItems([]string{filepath.Join(dir, "empty")}, "/")
	assert.EqualError(t, err, "no files to upload")
}
