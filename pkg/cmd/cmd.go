package cmd

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"

	"golang.org/x/exp/slices"

	"github.com/hostsync/hostsync/pkg/config"
	"github.com/hostsync/hostsync/pkg/reconcile"
	"github.com/hostsync/hostsync/pkg/schedule"
	"github.com/hostsync/hostsync/pkg/versions"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

func NewCheckCmd() *cobra.Command {
	checkCmd := &cobra.Command{
		Use:     "check",
		Short:   "Run a single reconciliation cycle",
		Example: "  hostsync check --manifest-url https://foreman.example.com/api/manifest --identifiers 1,5 --api-key $KEY",
		RunE: func(cmd *cobra.Command, _ []string) error {
			opts, err := loadOptions(cmd)
			if err != nil {
				return err
			}
			r, err := newReconciler(opts)
			if err != nil {
				return err
			}

			ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			report := r.Check(ctx)
			logReport(report)
			if !report.Fetched {
				return fmt.Errorf("no changes applied: manifest or installed versions unavailable")
			}
			return report.Err()
		},
	}
	config.AddFlags(checkCmd.Flags())
	return checkCmd
}

func NewRunCmd() *cobra.Command {
	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Reconcile continuously on a fixed interval",
		Example: `  hostsync run --config /etc/hostsync.yaml
  HOSTSYNC_API_KEY=... hostsync run --manifest-url https://foreman.example.com/api/manifest --identifiers 1`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			opts, err := loadOptions(cmd)
			if err != nil {
				return err
			}
			r, err := newReconciler(opts)
			if err != nil {
				return err
			}

			ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			loop := schedule.New(opts.Interval, func(ctx context.Context) {
				logReport(r.Check(ctx))
			})
			loop.Jitter = 0.1
			loop.Run(ctx)
			log.Info("Shutting down")
			return nil
		},
	}
	config.AddFlags(runCmd.Flags())
	return runCmd
}

func NewVersionsCmd() *cobra.Command {
	versionsCmd := &cobra.Command{
		Use:   "versions",
		Short: "Print the recorded application versions",
		RunE: func(cmd *cobra.Command, _ []string) error {
			configFile, _ := cmd.Flags().GetString("config")
			v, err := config.New(cmd.Flags(), configFile)
			if err != nil {
				return err
			}
			recorded, err := versions.NewFileStore(config.StateFile(v)).GetVersions()
			if err != nil {
				return err
			}
			_, err = fmt.Fprint(cmd.OutOrStdout(), formatVersions(recorded))
			return err
		},
	}
	flags := versionsCmd.Flags()
	flags.String(config.KeyDist, config.DefaultDist, "Directory applications are installed under")
	flags.String(config.KeyStateFile, "", "File recording installed versions, defaults to <dist>/versions.yaml")
	return versionsCmd
}

func formatVersions(v *versions.Versions) string {
	var buf bytes.Buffer
	writer := tabwriter.NewWriter(&buf, 0, 0, 2, ' ', 0)
	fmt.Fprintln(writer, "IDENTIFIER\tALIAS\tVERSION")
	for _, id := range v.Identifiers() {
		record := v.For(id).Snapshot()
		for _, alias := range sortedKeys(record) {
			fmt.Fprintf(writer, "%s\t%s\t%s\n", id, alias, record[alias])
		}
	}
	writer.Flush()
	return buf.String()
}

func logReport(report *reconcile.Report) {
	if !report.Fetched {
		return
	}
	if summary := report.Summary(); summary != "" {
		log.Infof("\n\n--- Check Summary ---\n%s", summary)
	}
	if err := report.Err(); err != nil {
		log.Warnf("Check completed with errors: %v", err)
		return
	}
	log.Info("Check completed.")
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
