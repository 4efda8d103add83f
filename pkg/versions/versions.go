package versions

import (
	"sort"
	"sync"
)

// Versions holds one Record per identifier.
type Versions struct {
	mu      sync.Mutex
	records map[string]*Record
}

// New returns Versions seeded from a plain identifier -> alias -> version map.
func New(seed map[string]map[string]string) *Versions {
	v := &Versions{records: make(map[string]*Record, len(seed))}
	for identifier, record := range seed {
		v.records[identifier] = NewRecord(record)
	}
	return v
}

// For returns the record for identifier, creating an empty one if there is
// no prior record.
func (v *Versions) For(identifier string) *Record {
	v.mu.Lock()
	defer v.mu.Unlock()
	r, ok := v.records[identifier]
	if !ok {
		r = NewRecord(nil)
		v.records[identifier] = r
	}
	return r
}

// Identifiers returns the identifiers with a record, sorted.
func (v *Versions) Identifiers() []string {
	v.mu.Lock()
	defer v.mu.Unlock()
	ids := make([]string, 0, len(v.records))
	for id := range v.records {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Snapshot returns a deep copy suitable for serialization.
func (v *Versions) Snapshot() map[string]map[string]string {
	v.mu.Lock()
	defer v.mu.Unlock()
	out := make(map[string]map[string]string, len(v.records))
	for id, r := range v.records {
		out[id] = r.Snapshot()
	}
	return out
}

// Store loads and persists installed versions.
type Store interface {
	GetVersions() (*Versions, error)
	SaveVersions(*Versions) error
}
