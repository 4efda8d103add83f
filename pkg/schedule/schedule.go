package schedule

import (
	"context"
	"time"

	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/semaphore"
	"k8s.io/apimachinery/pkg/util/wait"
)

// Loop runs a cycle on a fixed cadence. Cycles started through RunOnce never
// overlap, whether they come from Run or from other callers.
type Loop struct {
	Interval time.Duration
	// Jitter spreads hosts apart; 0.1 delays each wait by up to 10%.
	Jitter float64
	Cycle  func(ctx context.Context)

	inFlight *semaphore.Weighted
}

// New returns a loop running cycle every interval.
func New(interval time.Duration, cycle func(ctx context.Context)) *Loop {
	return &Loop{
		Interval: interval,
		Cycle:    cycle,
		inFlight: semaphore.NewWeighted(1),
	}
}

// RunOnce runs a single cycle unless one is already in progress, in which
// case it returns false immediately. Run never overlaps its own calls; the
// guard covers callers invoking RunOnce concurrently with it, such as an
// on-demand check.
func (l *Loop) RunOnce(ctx context.Context) bool {
	if !l.inFlight.TryAcquire(1) {
		log.Warn("Previous check is still running, skipping this one")
		return false
	}
	defer l.inFlight.Release(1)

	start := time.Now()
	l.Cycle(ctx)
	log.Debugf("Check completed in %v", time.Since(start))
	return true
}

// Run blocks, running a cycle immediately and then every interval after the
// previous cycle finished, until ctx is done.
func (l *Loop) Run(ctx context.Context) {
	log.Infof("Checking for application updates every %v", l.Interval)
	wait.JitterUntilWithContext(ctx, func(ctx context.Context) {
		l.RunOnce(ctx)
	}, l.Interval, l.Jitter, true)
}
