package versions

import (
	"sync"

	"k8s.io/apimachinery/pkg/util/sets"
)

// Record maps application alias to the installed version for one identifier.
// It is safe for concurrent use, but versions only change through Stage and
// Commit so that a half-finished install never looks complete.
type Record struct {
	mu       sync.RWMutex
	versions map[string]string
}

// NewRecord returns a record seeded with the provided versions.
func NewRecord(seed map[string]string) *Record {
	r := &Record{versions: make(map[string]string, len(seed))}
	for alias, version := range seed {
		r.versions[alias] = version
	}
	return r
}

// Get returns the recorded version for alias, or "" when none is recorded.
func (r *Record) Get(alias string) string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.versions[alias]
}

// Aliases returns the set of aliases with a recorded version.
func (r *Record) Aliases() sets.Set[string] {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s := sets.New[string]()
	for alias := range r.versions {
		s.Insert(alias)
	}
	return s
}

// Snapshot returns a copy of the recorded versions.
func (r *Record) Snapshot() map[string]string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string]string, len(r.versions))
	for alias, version := range r.versions {
		out[alias] = version
	}
	return out
}

// Stage begins a version transition for alias. Nothing changes until the
// returned Pending is committed.
func (r *Record) Stage(alias, version string) *Pending {
	return &Pending{record: r, alias: alias, version: version}
}

func (r *Record) set(alias, version string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.versions[alias] = version
}

// Pending is an uncommitted version change for one alias.
type Pending struct {
	record    *Record
	alias     string
	version   string
	committed bool
}

// Commit writes the staged version into the record. It is idempotent.
func (p *Pending) Commit() {
	if p.committed {
		return
	}
	p.record.set(p.alias, p.version)
	p.committed = true
}

// Committed reports whether Commit has been called.
func (p *Pending) Committed() bool {
	return p.committed
}

// Alias returns the alias being transitioned.
func (p *Pending) Alias() string {
	return p.alias
}

// Version returns the version that Commit will record.
func (p *Pending) Version() string {
	return p.version
}
