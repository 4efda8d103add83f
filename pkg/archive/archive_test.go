package archive

import (
	"archive/tar"
	"archive/zip"
	"compress/gzip"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeZip(t *testing.T, path string, files map[string]string) {
	t.Helper()
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()

	w := zip.NewWriter(f)
	for name, content := range files {
		fw, err := w.Create(name)
		require.NoError(t, err)
		_, err = fw.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())
}

func writeTarGz(t *testing.T, path string, files map[string]string) {
	t.Helper()
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()

	gz := gzip.NewWriter(f)
	tw := tar.NewWriter(gz)
	for name, content := range files {
		require.NoError(t, tw.WriteHeader(&tar.Header{
			Name:     name,
			Mode:     0o644,
			Size:     int64(len(content)),
			Typeflag: tar.TypeReg,
		}))
		_, err := tw.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, tw.Close())
	require.NoError(t, gz.Close())
}

func TestExtractZip(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "miner-2.0.zip")
	writeZip(t, src, map[string]string{
		"miner-2.0/conf/app.conf": "key={{API_KEY}}",
		"miner-2.0/bin/miner":     "#!/bin/sh",
	})

	dest := filepath.Join(dir, "dist")
	require.NoError(t, os.MkdirAll(dest, 0o755))
	require.NoError(t, Default{}.Extract(src, dest))

	data, err := os.ReadFile(filepath.Join(dest, "miner-2.0", "conf", "app.conf"))
	require.NoError(t, err)
	assert.Equal(t, "key={{API_KEY}}", string(data))
}

func TestExtractZipWithoutExtension(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "release.bin")
	writeZip(t, src, map[string]string{"miner-2.0/README": "hi"})

	dest := filepath.Join(dir, "dist")
	require.NoError(t, Default{}.Extract(src, dest))
	assert.FileExists(t, filepath.Join(dest, "miner-2.0", "README"))
}

func TestExtractZipRejectsTraversal(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "evil.zip")
	writeZip(t, src, map[string]string{"../escape.txt": "nope"})

	dest := filepath.Join(dir, "dist")
	require.NoError(t, os.MkdirAll(dest, 0o755))
	err := Default{}.Extract(src, dest)
	assert.Error(t, err)
	assert.NoFileExists(t, filepath.Join(dir, "escape.txt"))
}

func TestExtractTarGz(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "miner-2.0.tar.gz")
	writeTarGz(t, src, map[string]string{"miner-2.0/conf/app.conf": "id={{CLIENT_ID}}"})

	dest := filepath.Join(dir, "dist")
	require.NoError(t, os.MkdirAll(dest, 0o755))
	require.NoError(t, Default{}.Extract(src, dest))

	data, err := os.ReadFile(filepath.Join(dest, "miner-2.0", "conf", "app.conf"))
	require.NoError(t, err)
	assert.Equal(t, "id={{CLIENT_ID}}", string(data))
}

func TestExtractCorruptArchive(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "broken.zip")
	require.NoError(t, os.WriteFile(src, []byte("not a zip"), 0o600))

	assert.Error(t, Default{}.Extract(src, filepath.Join(dir, "dist")))
}
