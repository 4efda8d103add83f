package confpatch

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/containerd/errdefs"
	"github.com/hostsync/hostsync/pkg/types"
	log "github.com/sirupsen/logrus"
)

// Folder is a logical sub-directory of a versioned install.
type Folder string

const (
	FolderConf Folder = "conf"
	FolderBin  Folder = "bin"
)

// AppDir returns the versioned install directory for entry.
// Directory names always contain the alias so that a purge by alias finds them.
func AppDir(dist, alias, version string) string {
	return filepath.Join(dist, alias+"-"+version)
}

// FilePath returns the path of file within folder of the versioned install.
func FilePath(dist string, entry types.Entry, version string, folder Folder, file string) string {
	return filepath.Join(AppDir(dist, entry.Alias, version), string(folder), filepath.FromSlash(file))
}

// Read returns the config text installed for version. A missing file is
// reported as errdefs.ErrNotFound.
func Read(dist string, entry types.Entry, version string) (string, error) {
	if entry.Conf == nil || version == "" {
		return "", fmt.Errorf("no config for %s@%q: %w", entry.Alias, version, errdefs.ErrNotFound)
	}
	path := FilePath(dist, entry, version, FolderConf, entry.Conf.File)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", fmt.Errorf("config %s: %w", path, errdefs.ErrNotFound)
		}
		return "", fmt.Errorf("failed to read config %s: %w", path, err)
	}
	return string(data), nil
}

// IsBad reports whether the config installed for version still carries
// either placeholder token, meaning a previous substitution never completed.
func IsBad(dist string, entry types.Entry, version string) bool {
	if entry.Conf == nil {
		return false
	}
	text, err := Read(dist, entry, version)
	if err != nil {
		if !errdefs.IsNotFound(err) {
			log.Warnf("Failed to read previous conf file for %s:%s: %v", entry.Alias, version, err)
		}
		return false
	}
	return patternIsPresent(entry.Conf.APIKeyPattern, text) ||
		patternIsPresent(entry.Conf.ClientIDPattern, text)
}

func patternIsPresent(pattern, text string) bool {
	return pattern != "" && strings.Contains(text, pattern)
}

// Patch replaces every literal occurrence of the placeholder tokens with the
// real credentials. Tokens are not escaped and collisions with ordinary
// config content are not detected. Empty tokens are left alone.
func Patch(text, apiKeyPattern, apiKey, clientIDPattern, clientID string) string {
	if apiKeyPattern != "" {
		text = strings.ReplaceAll(text, apiKeyPattern, apiKey)
	}
	if clientIDPattern != "" {
		text = strings.ReplaceAll(text, clientIDPattern, clientID)
	}
	return text
}
