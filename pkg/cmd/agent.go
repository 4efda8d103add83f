package cmd

import (
	"fmt"

	"github.com/hostsync/hostsync/pkg/archive"
	"github.com/hostsync/hostsync/pkg/config"
	"github.com/hostsync/hostsync/pkg/manifest"
	"github.com/hostsync/hostsync/pkg/reconcile"
	"github.com/hostsync/hostsync/pkg/release"
	"github.com/hostsync/hostsync/pkg/supervisor"
	"github.com/hostsync/hostsync/pkg/types"
	"github.com/hostsync/hostsync/pkg/upgrade"
	"github.com/hostsync/hostsync/pkg/versions"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

// loadOptions resolves flags, environment and the --config file.
func loadOptions(cmd *cobra.Command) (*types.Options, error) {
	configFile, _ := cmd.Flags().GetString("config")
	v, err := config.New(cmd.Flags(), configFile)
	if err != nil {
		return nil, err
	}
	return config.Load(v)
}

// newReconciler wires the production collaborators for opts.
func newReconciler(opts *types.Options) (*reconcile.Reconciler, error) {
	filter, err := manifest.NewFilter(opts.Platform)
	if err != nil {
		return nil, fmt.Errorf("invalid platform %q: %w", opts.Platform, err)
	}
	sup, err := supervisor.NewExec(opts.StopSignal, 0)
	if err != nil {
		return nil, err
	}

	source := manifest.WithRetry(manifest.NewHTTPSource(opts.ManifestURL, opts.HTTPTimeout), opts.FetchRetryMaxElapsed)
	engine := &upgrade.Engine{
		Supervisor: sup,
		Downloader: release.NewHTTPDownloader(opts.HTTPTimeout),
		Extractor:  archive.Default{},
		APIKey:     opts.APIKey,
		ClientID:   config.ClientIDFunc(opts),
	}

	log.Debugf("Reconciling identifiers %v under %s for platform %s", opts.Identifiers, opts.Dist, filter.Host())
	return &reconcile.Reconciler{
		Source:      source,
		Filter:      filter,
		Store:       versions.NewFileStore(opts.StateFile),
		Supervisor:  sup,
		Upgrader:    engine,
		AgentDist:   opts.Dist,
		Identifiers: opts.Identifiers,
	}, nil
}
