package manifest

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/hostsync/hostsync/pkg/types"
	log "github.com/sirupsen/logrus"
)

// RetrySource retries a failed fetch with exponential backoff. It is a caller
// convenience; the reconciler itself never retries.
type RetrySource struct {
	Source     Source
	MaxElapsed time.Duration
}

// WithRetry wraps src when maxElapsed is positive and returns src unchanged otherwise.
func WithRetry(src Source, maxElapsed time.Duration) Source {
	if maxElapsed <= 0 {
		return src
	}
	return &RetrySource{Source: src, MaxElapsed: maxElapsed}
}

func (r *RetrySource) Fetch(ctx context.Context) (types.Manifest, error) {
	b := backoff.NewExponentialBackOff()
	b.MaxElapsedTime = r.MaxElapsed

	var m types.Manifest
	op := func() error {
		var err error
		m, err = r.Source.Fetch(ctx)
		return err
	}
	notify := func(err error, wait time.Duration) {
		log.Debugf("Manifest fetch failed, retrying in %v: %v", wait, err)
	}
	if err := backoff.RetryNotify(op, backoff.WithContext(b, ctx), notify); err != nil {
		return nil, err
	}
	return m, nil
}
