// Package upgrade installs one release of a managed application: it stops the
// running instance, replaces every prior install of the alias with the new
// archive, carries the configuration forward and only then records the version.
package upgrade

import (
	"context"
	"os"
	"path/filepath"

	"github.com/Masterminds/semver/v3"
	"github.com/containerd/errdefs"
	"github.com/hostsync/hostsync/pkg/archive"
	"github.com/hostsync/hostsync/pkg/confpatch"
	"github.com/hostsync/hostsync/pkg/release"
	"github.com/hostsync/hostsync/pkg/supervisor"
	"github.com/hostsync/hostsync/pkg/types"
	"github.com/hostsync/hostsync/pkg/utils"
	"github.com/hostsync/hostsync/pkg/versions"
	"github.com/moby/sys/atomicwriter"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

// ClientIDFunc maps an identifier to the client ID written into configs.
type ClientIDFunc func(identifier string) string

// Engine performs installs and upgrades.
type Engine struct {
	Supervisor supervisor.Supervisor
	Downloader release.Downloader
	Extractor  archive.Extractor
	APIKey     string
	ClientID   ClientIDFunc
}

// Upgrade installs entry into dist and commits entry.Version into record for
// the alias. The record is left untouched unless every step succeeds, so an
// interrupted install is retried on the next cycle.
//
// A download failure returns an error wrapping types.ErrDownloadFailed before
// anything on disk has been touched.
func (e *Engine) Upgrade(
	ctx context.Context,
	identifier string,
	entry types.Entry,
	currentVersion string,
	record *versions.Record,
	dist string,
) error {
	if err := entry.Validate(); err != nil {
		return err
	}
	logger := log.WithFields(log.Fields{"identifier": identifier, "alias": entry.Alias})
	logDirection(logger, currentVersion, entry.Version)

	pending := record.Stage(entry.Alias, entry.Version)

	logger.Infof("Stopping %s", entry.Name())
	if err := e.Supervisor.Stop(dist, entry.Alias); err != nil && !errdefs.IsNotFound(err) {
		logger.Debugf("Stop before upgrade failed: %v", err)
	}

	data, err := e.Downloader.Download(ctx, entry.Release)
	if err == nil && len(data) == 0 {
		err = errors.Wrapf(types.ErrDownloadFailed, "%s returned no content", entry.Release.URL)
	}
	if err != nil {
		logger.Warnf("Failed to obtain the release: %v", err)
		if !errors.Is(err, types.ErrDownloadFailed) {
			err = errors.Wrap(types.ErrDownloadFailed, err.Error())
		}
		return err
	}

	oldConf := e.captureConf(logger, dist, entry, currentVersion)

	archivePath, err := writeArchive(logger, dist, entry, data)
	if err != nil {
		return err
	}

	if removed, err := utils.RemoveDirsContaining(dist, entry.Alias); err != nil {
		logger.Warnf("Failed to delete directory: %v", err)
	} else if len(removed) > 0 {
		logger.Debugf("Deleted previous installs: %v", removed)
	}

	logger.Infof("Unzipping %s to %s", archivePath, dist)
	if err := e.Extractor.Extract(archivePath, dist); err != nil {
		return errors.Wrapf(err, "failed to extract %s", archivePath)
	}

	if entry.Conf != nil {
		if err := e.configure(identifier, dist, entry, oldConf); err != nil {
			return err
		}
	}

	if err := os.Remove(archivePath); err != nil {
		logger.Warnf("Failed to delete zip: %s: %v", archivePath, err)
	}

	pending.Commit()
	logger.Infof("Installed %s %s", entry.Name(), entry.Version)
	return nil
}

// captureConf returns the config text of the currently installed version so
// that it survives the purge. Failure to read it is not fatal.
func (e *Engine) captureConf(logger *log.Entry, dist string, entry types.Entry, currentVersion string) string {
	if entry.Conf == nil || currentVersion == "" {
		return ""
	}
	text, err := confpatch.Read(dist, entry, currentVersion)
	if err != nil {
		logger.Warnf("Failed to read previous conf file for %s:%s: %v", entry.Alias, currentVersion, err)
		return ""
	}
	return text
}

func writeArchive(logger *log.Entry, dist string, entry types.Entry, data []byte) (string, error) {
	if _, err := utils.EnsurePath(dist, utils.DefaultDirPerm); err != nil {
		return "", errors.Wrapf(err, "failed to create dist %s", dist)
	}

	path := filepath.Join(dist, entry.Release.ArchiveName())
	logger.Infof("Writing release to disk: %s", path)
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return "", errors.Wrapf(err, "failed to remove stale archive %s", path)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", errors.Wrapf(err, "failed to write archive %s", path)
	}
	return path, nil
}

// configure writes the authoritative config for the new version: the captured
// text when there was one, otherwise the default shipped in the release.
func (e *Engine) configure(identifier, dist string, entry types.Entry, oldConf string) error {
	path := confpatch.FilePath(dist, entry, entry.Version, confpatch.FolderConf, entry.Conf.File)

	text := oldConf
	if text == "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return errors.Wrapf(err, "failed to read default conf %s", path)
		}
		text = string(data)
	}

	clientID := ""
	if e.ClientID != nil {
		clientID = e.ClientID(identifier)
	}
	text = confpatch.Patch(text, entry.Conf.APIKeyPattern, e.APIKey, entry.Conf.ClientIDPattern, clientID)

	// keep the mode the release shipped the config with
	mode := os.FileMode(0o600)
	if st, err := os.Stat(path); err == nil {
		mode = st.Mode().Perm()
	}
	if err := os.MkdirAll(filepath.Dir(path), utils.DefaultDirPerm); err != nil {
		return errors.Wrapf(err, "failed to create conf dir for %s", path)
	}
	if err := atomicwriter.WriteFile(path, []byte(text), mode); err != nil {
		return errors.Wrapf(err, "failed to write conf %s", path)
	}
	return nil
}

// logDirection is informational only; any version difference triggers a
// full reinstall regardless of ordering.
func logDirection(logger *log.Entry, current, next string) {
	if current == "" {
		logger.Infof("Installing version %s", next)
		return
	}
	from, ferr := semver.NewVersion(current)
	to, terr := semver.NewVersion(next)
	switch {
	case ferr != nil || terr != nil:
		logger.Infof("Replacing version %s with %s", current, next)
	case to.LessThan(from):
		logger.Infof("Downgrading from %s to %s", current, next)
	default:
		logger.Infof("Upgrading from %s to %s", current, next)
	}
}
