package manifest

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/hostsync/hostsync/pkg/types"
	log "github.com/sirupsen/logrus"
)

// Source supplies the desired-state manifest.
type Source interface {
	Fetch(ctx context.Context) (types.Manifest, error)
}

// HTTPSource fetches the manifest as a JSON array with a single GET.
type HTTPSource struct {
	URL    string
	Client *http.Client
}

// NewHTTPSource returns a source for url. A zero timeout means no timeout.
func NewHTTPSource(url string, timeout time.Duration) *HTTPSource {
	return &HTTPSource{
		URL:    url,
		Client: &http.Client{Timeout: timeout},
	}
}

// Fetch returns the manifest. A transport error, a non-200 status, an
// undecodable body or a null body are all reported as types.ErrFetchFailed.
func (s *HTTPSource) Fetch(ctx context.Context) (types.Manifest, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid manifest url %q: %v", types.ErrFetchFailed, s.URL, err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "hostsync")

	log.Debugf("Fetching app manifest from %s", s.URL)
	resp, err := s.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", types.ErrFetchFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("%w: %s returned status %d - %s", types.ErrFetchFailed, s.URL, resp.StatusCode, string(body))
	}

	var m types.Manifest
	if err := json.NewDecoder(resp.Body).Decode(&m); err != nil {
		return nil, fmt.Errorf("%w: failed to decode manifest from %s: %v", types.ErrFetchFailed, s.URL, err)
	}
	if m == nil {
		return nil, fmt.Errorf("%w: %s returned no manifest", types.ErrFetchFailed, s.URL)
	}
	return m, nil
}
