package main

import (
	"github.com/spf13/cobra"

	"github.com/treeline-dev/treeline/internal/records"
)

var retryFile string

var retryCmd = &cobra.Command{
	Use:   "retry <run-id>",
	Short: "Retry the failed rows of a previous run",
	Long: `Retry re-submits only the rows a previous run's manifest records as
failed, resolving parent references through the keys created in earlier
attempts. Pass the same records file the original run used.

Manifests expire 24 hours after their last write; an expired run must be
re-submitted with 'treeline create'.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		recs, err := records.Load(retryFile)
		if err != nil {
			return err
		}
		e, err := buildEngine("")
		if err != nil {
			return err
		}
		summary, err := e.Retry(cmd.Context(), recs, args[0])
		if err != nil {
			return err
		}
		return printSummary(summary)
	},
}

func init() {
	retryCmd.Flags().StringVarP(&retryFile, "file", "f", "", "the original records file (required)")
	_ = retryCmd.MarkFlagRequired("file")
	rootCmd.AddCommand(retryCmd)
}
