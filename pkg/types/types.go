package types

import (
	"fmt"
	"path"
	"path/filepath"
	"strings"
)

// Conf describes the configuration file shipped inside a release and the
// placeholder tokens that must be replaced with real credentials.
type Conf struct {
	File            string `json:"file"`
	APIKeyPattern   string `json:"apiKeyPattern"`
	ClientIDPattern string `json:"clientIdPattern"`
}

// Release locates the archive for one version of an application.
type Release struct {
	URL    string `json:"zipUrl"`
	Name   string `json:"name"`
	Digest string `json:"digest,omitempty"`
}

// RunSpec is the command used to launch an installed application, relative
// to its versioned install directory.
type RunSpec struct {
	Command string   `json:"command"`
	Args    []string `json:"args,omitempty"`
}

// Entry is one application in the desired-state manifest.
type Entry struct {
	Alias     string   `json:"alias"`
	App       string   `json:"app,omitempty"`
	Version   string   `json:"version"`
	Windows   bool     `json:"windows"`
	Platforms []string `json:"platforms,omitempty"`
	Conf      *Conf    `json:"conf,omitempty"`
	Release   Release  `json:"github"`
	Run       *RunSpec `json:"run,omitempty"`
}

// Name returns the display name of the application, falling back to the alias.
func (e Entry) Name() string {
	if e.App != "" {
		return e.App
	}
	return e.Alias
}

// ArchiveName returns the file name the release archive is written to.
func (r Release) ArchiveName() string {
	name := r.Name
	if name == "" {
		name = r.URL
	}
	// split on both separators whatever the host
	base := path.Base(strings.ReplaceAll(name, `\`, "/"))
	if base == "." || base == "/" || base == ".." {
		return ""
	}
	return base
}

// Validate reports entries that cannot be installed safely. An empty alias
// would match every directory under dist during the purge step.
func (e Entry) Validate() error {
	switch {
	case strings.TrimSpace(e.Alias) == "":
		return fmt.Errorf("manifest entry %q has no alias", e.App)
	case strings.ContainsAny(e.Alias, `/\`):
		return fmt.Errorf("alias %q must not contain path separators", e.Alias)
	case e.Version == "":
		return fmt.Errorf("alias %q has no version", e.Alias)
	case strings.ContainsAny(e.Version, `/\`):
		return fmt.Errorf("version %q of %s must not contain path separators", e.Version, e.Alias)
	case e.Release.URL == "":
		return fmt.Errorf("alias %q has no release url", e.Alias)
	case e.Release.ArchiveName() == "":
		return fmt.Errorf("alias %q has no usable archive name", e.Alias)
	case e.Conf != nil && !isLocal(e.Conf.File):
		return fmt.Errorf("conf file %q of %s must be a relative path inside the install", e.Conf.File, e.Alias)
	case e.Run != nil && e.Run.Command != "" && !isLocal(e.Run.Command):
		return fmt.Errorf("run command %q of %s must be a relative path inside the install", e.Run.Command, e.Alias)
	}
	return nil
}

// isLocal reports whether p, written with either separator, stays beneath
// the directory it is joined to.
func isLocal(p string) bool {
	return p != "" && filepath.IsLocal(strings.ReplaceAll(p, `\`, "/"))
}

type Manifest []Entry
