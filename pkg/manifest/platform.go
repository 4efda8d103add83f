package manifest

import (
	"github.com/containerd/platforms"
	"github.com/hostsync/hostsync/pkg/types"
	ocispec "github.com/opencontainers/image-spec/specs-go/v1"
	log "github.com/sirupsen/logrus"
)

// Filter keeps the manifest entries applicable to a host platform.
type Filter struct {
	host    ocispec.Platform
	matcher platforms.MatchComparer
}

// NewFilter returns a filter for the platform specifier, or for the running
// host when spec is empty.
func NewFilter(spec string) (*Filter, error) {
	host := platforms.DefaultSpec()
	if spec != "" {
		p, err := platforms.Parse(spec)
		if err != nil {
			return nil, err
		}
		host = p
	}
	return &Filter{host: host, matcher: platforms.Only(host)}, nil
}

// Host returns the platform entries are matched against.
func (f *Filter) Host() string {
	return platforms.Format(f.host)
}

// Applicable reports whether entry targets the host. Entries listing
// platforms match on any of them; otherwise the legacy windows flag applies.
func (f *Filter) Applicable(entry types.Entry) bool {
	if len(entry.Platforms) == 0 {
		return entry.Windows && f.host.OS == "windows"
	}
	for _, spec := range entry.Platforms {
		p, err := platforms.Parse(spec)
		if err != nil {
			log.Warnf("Ignoring invalid platform %q for %s: %v", spec, entry.Alias, err)
			continue
		}
		if f.matcher.Match(p) {
			return true
		}
	}
	return false
}

// Apply returns the applicable entries in manifest order.
func (f *Filter) Apply(m types.Manifest) types.Manifest {
	out := make(types.Manifest, 0, len(m))
	for _, entry := range m {
		if f.Applicable(entry) {
			out = append(out, entry)
		}
	}
	return out
}
