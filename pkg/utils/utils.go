package utils

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/hashicorp/go-multierror"
	log "github.com/sirupsen/logrus"
)

const DefaultDirPerm fs.FileMode = 0o755

// DeduplicateStringSlice removes duplicate and blank strings from a slice while preserving order.
func DeduplicateStringSlice(input []string) []string {
	seen := make(map[string]bool)
	var result []string
	for _, item := range input {
		item = strings.TrimSpace(item)
		if item == "" || seen[item] {
			continue
		}
		seen[item] = true
		result = append(result, item)
	}
	return result
}

// EnsurePath creates path if it does not exist and reports whether it did.
func EnsurePath(path string, perm fs.FileMode) (bool, error) {
	st, err := os.Stat(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return false, err
		}
		if err := os.MkdirAll(path, perm); err != nil {
			return false, err
		}
		return true, nil
	}
	if !st.IsDir() {
		return false, fmt.Errorf("%s: %w", path, fs.ErrExist)
	}
	return false, nil
}

// IsNonEmptyFile reports whether dir/file is a regular file with content.
func IsNonEmptyFile(dir, file string) bool {
	p := filepath.Join(dir, file)
	info, err := os.Stat(p)
	if err != nil {
		return false
	}
	return !info.IsDir() && info.Size() > 0
}

// RemoveDirsContaining deletes every directory directly under root whose name
// contains substr. Files are left alone. It keeps going past failures and
// returns the removed paths along with any errors.
func RemoveDirsContaining(root, substr string) ([]string, error) {
	if substr == "" {
		return nil, fmt.Errorf("refusing to purge %s with an empty match", root)
	}
	entries, err := os.ReadDir(root)
	if err != nil {
		return nil, err
	}

	var removed []string
	var errs *multierror.Error
	for _, entry := range entries {
		if !entry.IsDir() || !strings.Contains(entry.Name(), substr) {
			continue
		}
		path := filepath.Join(root, entry.Name())
		log.Debugf("Deleting %s", path)
		if err := os.RemoveAll(path); err != nil {
			errs = multierror.Append(errs, err)
			continue
		}
		removed = append(removed, path)
	}
	return removed, errs.ErrorOrNil()
}
