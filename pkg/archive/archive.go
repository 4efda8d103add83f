// Package archive unpacks release archives into an install root.
package archive

import (
	"archive/zip"
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	goarchive "github.com/moby/go-archive"
	log "github.com/sirupsen/logrus"
)

// Extractor unpacks the archive at src into the directory dest.
type Extractor interface {
	Extract(src, dest string) error
}

// Default extracts zip archives and (optionally compressed) tarballs.
type Default struct{}

var zipMagic = []byte("PK\x03\x04")

// Extract picks the format from the file name, falling back to the magic bytes.
func (Default) Extract(src, dest string) error {
	isZip, err := looksLikeZip(src)
	if err != nil {
		return err
	}
	if isZip {
		return extractZip(src, dest)
	}
	return extractTar(src, dest)
}

func looksLikeZip(src string) (bool, error) {
	if strings.EqualFold(filepath.Ext(src), ".zip") {
		return true, nil
	}
	f, err := os.Open(src)
	if err != nil {
		return false, fmt.Errorf("failed to open archive %s: %w", src, err)
	}
	defer f.Close()

	head := make([]byte, len(zipMagic))
	n, err := io.ReadFull(f, head)
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		return false, fmt.Errorf("failed to read archive %s: %w", src, err)
	}
	return bytes.Equal(head[:n], zipMagic), nil
}

func extractTar(src, dest string) error {
	f, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("failed to open archive %s: %w", src, err)
	}
	defer f.Close()

	log.Debugf("Extracting tarball %s to %s", src, dest)
	if err := goarchive.Untar(f, dest, &goarchive.TarOptions{NoLchown: true}); err != nil {
		return fmt.Errorf("failed to extract %s: %w", src, err)
	}
	return nil
}

func extractZip(src, dest string) error {
	r, err := zip.OpenReader(src)
	if err != nil {
		return fmt.Errorf("failed to open zip %s: %w", src, err)
	}
	defer r.Close()

	log.Debugf("Extracting zip %s to %s (%d entries)", src, dest, len(r.File))
	for _, f := range r.File {
		if err := extractZipFile(f, dest); err != nil {
			return fmt.Errorf("failed to extract %s from %s: %w", f.Name, src, err)
		}
	}
	return nil
}

func extractZipFile(f *zip.File, dest string) error {
	target, err := sanitizePath(dest, f.Name)
	if err != nil {
		return err
	}

	mode := f.Mode()
	if f.FileInfo().IsDir() {
		return os.MkdirAll(target, 0o755)
	}
	if mode&os.ModeSymlink != 0 {
		return fmt.Errorf("symlinks are not supported in release archives")
	}
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return err
	}

	rc, err := f.Open()
	if err != nil {
		return err
	}
	defer rc.Close()

	perm := mode.Perm()
	if perm == 0 {
		perm = 0o644
	}
	out, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, perm)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, rc); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

// sanitizePath joins name onto dest and rejects entries escaping dest.
func sanitizePath(dest, name string) (string, error) {
	target := filepath.Join(dest, filepath.FromSlash(name))
	rel, err := filepath.Rel(dest, target)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("illegal path in archive: %s", name)
	}
	return target, nil
}
