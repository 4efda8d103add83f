package versions

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/moby/sys/atomicwriter"
	log "github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

// FileStore persists versions as a YAML document of identifier -> alias -> version.
type FileStore struct {
	Path string
}

// NewFileStore returns a store backed by the file at path.
func NewFileStore(path string) *FileStore {
	return &FileStore{Path: path}
}

// GetVersions reads the state file. A missing file yields empty versions.
func (s *FileStore) GetVersions() (*Versions, error) {
	data, err := os.ReadFile(s.Path)
	if err != nil {
		if os.IsNotExist(err) {
			log.Debugf("No version state at %s, starting empty", s.Path)
			return New(nil), nil
		}
		return nil, fmt.Errorf("failed to read version state %s: %w", s.Path, err)
	}

	seed := map[string]map[string]string{}
	if err := yaml.Unmarshal(data, &seed); err != nil {
		return nil, fmt.Errorf("failed to parse version state %s: %w", s.Path, err)
	}
	return New(seed), nil
}

// SaveVersions atomically replaces the state file.
func (s *FileStore) SaveVersions(v *Versions) error {
	data, err := yaml.Marshal(v.Snapshot())
	if err != nil {
		return fmt.Errorf("failed to encode version state: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(s.Path), 0o755); err != nil {
		return fmt.Errorf("failed to create state directory: %w", err)
	}
	if err := atomicwriter.WriteFile(s.Path, data, 0o600); err != nil {
		return fmt.Errorf("failed to write version state %s: %w", s.Path, err)
	}
	return nil
}

// MemoryStore keeps versions in memory. It hands out the same Versions on
// every call, which matches how a long-lived agent shares its record.
type MemoryStore struct {
	versions *Versions
	Saves    int
}

// NewMemoryStore returns a store seeded with the provided versions.
func NewMemoryStore(seed map[string]map[string]string) *MemoryStore {
	return &MemoryStore{versions: New(seed)}
}

func (s *MemoryStore) GetVersions() (*Versions, error) {
	return s.versions, nil
}

func (s *MemoryStore) SaveVersions(v *Versions) error {
	s.versions = v
	s.Saves++
	return nil
}
