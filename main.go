package main

import (
	"os"

	"github.com/hostsync/hostsync/pkg/cmd"
	"github.com/hostsync/hostsync/pkg/utils"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

// Globals for logging flags and version reporting.
var (
	debug     bool
	logFormat string
	version   string
)

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "hostsync",
		Short: "hostsync",
		Long:  "hostsync: keeps the applications installed on a host in line with a remote manifest",
		PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
			return utils.ConfigureLogging(logFormat, debug)
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Usage()
		},
		SilenceUsage: true,
		Version:      version,
	}

	flags := rootCmd.PersistentFlags()
	flags.BoolVar(&debug, "debug", false, "enable debug level logging")
	flags.StringVar(&logFormat, "log-format", "text", "log format, one of: text, json")
	flags.String("config", "", "YAML config file, HOSTSYNC_* environment variables and flags override it")

	rootCmd.AddCommand(cmd.NewCheckCmd())
	rootCmd.AddCommand(cmd.NewRunCmd())
	rootCmd.AddCommand(cmd.NewVersionsCmd())
	return rootCmd
}

func main() {
	rootCmd := newRootCmd()
	if err := rootCmd.Execute(); err != nil {
		log.Errorf("Error: %v", err)
		os.Exit(1)
	}
}
