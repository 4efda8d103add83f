// Package reconcile drives a host toward the desired application set. Each
// cycle fetches the manifest once and, per identifier, upgrades stale or
// missing applications, starts every desired application and stops every
// installed application that is no longer desired.
//
// Cycles are not safe to run concurrently; callers serialize them.
package reconcile

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/containerd/errdefs"
	"github.com/hostsync/hostsync/pkg/confpatch"
	"github.com/hostsync/hostsync/pkg/manifest"
	"github.com/hostsync/hostsync/pkg/supervisor"
	"github.com/hostsync/hostsync/pkg/types"
	"github.com/hostsync/hostsync/pkg/versions"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"k8s.io/apimachinery/pkg/util/sets"
)

// Upgrader installs one release; see upgrade.Engine.
type Upgrader interface {
	Upgrade(ctx context.Context, identifier string, entry types.Entry, currentVersion string, record *versions.Record, dist string) error
}

// Reconciler checks and upgrades the configured identifiers.
type Reconciler struct {
	Source      manifest.Source
	Filter      *manifest.Filter
	Store       versions.Store
	Supervisor  supervisor.Supervisor
	Upgrader    Upgrader
	AgentDist   string
	Identifiers []string
}

// ShouldUpgrade reports whether newVersion differs from the installed one.
// Versions are opaque: a lexically older version is still installed.
func ShouldUpgrade(currentVersion, newVersion string) bool {
	return currentVersion == "" || currentVersion != newVersion
}

// ConfIsBad reports whether the config of the installed version still holds
// a placeholder token, meaning its substitution never completed.
func ConfIsBad(dist string, entry types.Entry, currentVersion string) bool {
	if currentVersion == "" {
		return false
	}
	return confpatch.IsBad(dist, entry, currentVersion)
}

// Dist returns the install root of identifier.
func (r *Reconciler) Dist(identifier string) string {
	return filepath.Join(r.AgentDist, identifier)
}

// Check runs one reconciliation cycle. It never fails as a whole: a missing
// manifest turns the cycle into a no-op and per-app failures are logged and
// collected into the report.
func (r *Reconciler) Check(ctx context.Context) *Report {
	report := &Report{}

	m, err := r.Source.Fetch(ctx)
	if err != nil || m == nil {
		log.Warnf("Failed to obtain app manifests: %v", err)
		return report
	}
	report.Fetched = true

	all, err := r.Store.GetVersions()
	if err != nil {
		log.Errorf("Failed to load installed versions: %v", err)
		report.Fetched = false
		return report
	}

	apps := m
	if r.Filter != nil {
		apps = r.Filter.Apply(m)
	}
	log.Debugf("%d of %d manifest entries apply to this host", len(apps), len(m))

	for _, identifier := range r.Identifiers {
		r.checkManifest(ctx, report, identifier, apps, r.Dist(identifier), all)
	}
	return report
}

// checkManifest reconciles one identifier against the filtered manifest.
func (r *Reconciler) checkManifest(
	ctx context.Context,
	report *Report,
	identifier string,
	apps types.Manifest,
	dist string,
	all *versions.Versions,
) {
	record := all.For(identifier)
	extraApps := record.Aliases()

	for _, entry := range apps {
		extraApps.Delete(entry.Alias)
		res := r.processEntry(ctx, identifier, entry, record, dist, all)
		report.add(res)
	}

	for _, alias := range sets.List(extraApps) {
		report.add(r.stopExtra(identifier, alias, dist))
	}
}

// processEntry isolates one manifest entry: any error or panic ends up in the
// returned result and never reaches sibling entries.
func (r *Reconciler) processEntry(
	ctx context.Context,
	identifier string,
	entry types.Entry,
	record *versions.Record,
	dist string,
	all *versions.Versions,
) (res Result) {
	logger := log.WithFields(log.Fields{"identifier": identifier, "alias": entry.Alias})
	res = Result{Identifier: identifier, Alias: entry.Alias, Version: entry.Version}

	defer func() {
		if p := recover(); p != nil {
			res.Outcome = OutcomeFailed
			res.Error = fmt.Errorf("panic: %v", p)
			logger.Warnf("Exception occurred: %v", res.Error)
		}
	}()

	outcome, err := r.checkAndUpgrade(ctx, logger, identifier, entry, record, dist, all)
	res.Outcome = outcome
	res.Error = err
	if err != nil {
		logger.Warnf("Exception occurred: %v", err)
	}
	return res
}

func (r *Reconciler) checkAndUpgrade(
	ctx context.Context,
	logger *log.Entry,
	identifier string,
	entry types.Entry,
	record *versions.Record,
	dist string,
	all *versions.Versions,
) (Outcome, error) {
	// paths in the entry are joined under dist before both install and start
	if err := entry.Validate(); err != nil {
		return OutcomeFailed, err
	}
	currentVersion := record.Get(entry.Alias)

	outcome := OutcomeCurrent
	var downloadErr error
	if ShouldUpgrade(currentVersion, entry.Version) || ConfIsBad(dist, entry, currentVersion) {
		err := r.Upgrader.Upgrade(ctx, identifier, entry, currentVersion, record, dist)
		switch {
		case errors.Is(err, types.ErrDownloadFailed):
			// nothing was touched, so the installed version can still be started
			outcome = OutcomeDownloadFailed
			downloadErr = err
		case err != nil:
			return OutcomeFailed, err
		default:
			outcome = OutcomeUpgraded
			if err := r.Store.SaveVersions(all); err != nil {
				logger.Warnf("Failed to persist installed versions: %v", err)
			}
		}
	} else {
		logger.Info("Already have the latest version")
	}

	// always start: this could be the first run, a fresh upgrade, or a
	// process that was killed behind our back
	if err := r.Supervisor.Start(dist, entry, record.Get(entry.Alias)); err != nil {
		return OutcomeFailed, joinErrors(downloadErr, fmt.Errorf("failed to start: %w", err))
	}
	return outcome, downloadErr
}

func (r *Reconciler) stopExtra(identifier, alias, dist string) Result {
	res := Result{Identifier: identifier, Alias: alias, Outcome: OutcomeStopped}
	if err := r.Supervisor.Stop(dist, alias); err != nil && !errdefs.IsNotFound(err) {
		log.WithFields(log.Fields{"identifier": identifier, "alias": alias}).Warnf("Failed to stop app: %v", err)
		res.Outcome = OutcomeStopFailed
		res.Error = err
	}
	return res
}

func joinErrors(first, second error) error {
	if first == nil {
		return second
	}
	return fmt.Errorf("%w; %w", first, second)
}
