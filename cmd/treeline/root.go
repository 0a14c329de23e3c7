package main

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/treeline-dev/treeline/internal/config"
	"github.com/treeline-dev/treeline/internal/telemetry"
	"github.com/treeline-dev/treeline/internal/ui"
)

var (
	cfgFile string
	verbose bool
	output  string

	cfg *config.Config
	log = logrus.New()

	telemetryShutdown func(context.Context) error
)

var rootCmd = &cobra.Command{
	Use:   "treeline",
	Short: "Bulk hierarchical Jira issue creation with resumable retries",
	Long: `treeline creates batches of Jira issues from a records file, ordering
parent/child hierarchies so parents exist before their children, and
persists a run manifest so failed rows can be retried without
re-creating what already succeeded.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		var err error
		cfg, err = config.Load(cfgFile)
		if err != nil {
			return err
		}

		ui.SetColorMode(cfg.Color)
		if f := cmd.Flags().Lookup("color"); f != nil && f.Changed {
			ui.SetColorMode(f.Value.String())
		}

		log.SetLevel(logrus.WarnLevel)
		if verbose {
			log.SetLevel(logrus.DebugLevel)
		}

		telemetryShutdown, err = telemetry.Init(cmd.Context(), telemetry.Config{
			Enabled:      cfg.Telemetry.Enabled,
			OTLPEndpoint: cfg.Telemetry.OTLPEndpoint,
		})
		if err != nil {
			return fmt.Errorf("init telemetry: %w", err)
		}
		return nil
	},
	PersistentPostRunE: func(cmd *cobra.Command, _ []string) error {
		if telemetryShutdown != nil {
			return telemetryShutdown(cmd.Context())
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default ~/.config/treeline/config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose logging")
	rootCmd.PersistentFlags().StringVarP(&output, "output", "o", "text", "output format: text or json")
	rootCmd.PersistentFlags().String("color", "auto", "color output: auto, always, or never")
}
