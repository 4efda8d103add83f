package release

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/hostsync/hostsync/pkg/types"
	"github.com/opencontainers/go-digest"
	log "github.com/sirupsen/logrus"
)

// Downloader fetches the raw bytes of a release archive.
type Downloader interface {
	Download(ctx context.Context, release types.Release) ([]byte, error)
}

// HTTPDownloader downloads releases with a single blocking GET.
type HTTPDownloader struct {
	Client    *http.Client
	UserAgent string
}

// NewHTTPDownloader returns a downloader. A zero timeout means no timeout.
func NewHTTPDownloader(timeout time.Duration) *HTTPDownloader {
	return &HTTPDownloader{
		Client:    &http.Client{Timeout: timeout},
		UserAgent: "hostsync",
	}
}

// Download returns the release bytes. An empty body, a non-200 status or a
// digest mismatch are all reported as types.ErrDownloadFailed.
func (d *HTTPDownloader) Download(ctx context.Context, release types.Release) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, release.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid release url %q: %v", types.ErrDownloadFailed, release.URL, err)
	}
	req.Header.Set("User-Agent", d.UserAgent)

	log.Debugf("Downloading release %s", release.URL)
	resp, err := d.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", types.ErrDownloadFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: %s returned status %d", types.ErrDownloadFailed, release.URL, resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: reading %s: %v", types.ErrDownloadFailed, release.URL, err)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: %s returned no content", types.ErrDownloadFailed, release.URL)
	}

	if err := Verify(release, data); err != nil {
		return nil, err
	}
	return data, nil
}

// Verify checks data against the release digest, if one is declared.
func Verify(release types.Release, data []byte) error {
	if release.Digest == "" {
		return nil
	}
	expected, err := digest.Parse(release.Digest)
	if err != nil {
		return fmt.Errorf("%w: invalid digest %q: %v", types.ErrDownloadFailed, release.Digest, err)
	}
	actual := expected.Algorithm().FromBytes(data)
	if actual != expected {
		return fmt.Errorf("%w: %w: expected %s, got %s", types.ErrDownloadFailed, types.ErrDigestMismatch, expected, actual)
	}
	return nil
}
