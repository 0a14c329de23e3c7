package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/treeline-dev/treeline/internal/ui"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show the effective configuration",
	Run: func(_ *cobra.Command, _ []string) {
		fmt.Println(ui.Header("jira"))
		fmt.Printf("  url:       %s\n", orUnset(cfg.Jira.URL))
		fmt.Printf("  username:  %s\n", orUnset(cfg.Jira.Username))
		fmt.Printf("  api_token: %s\n", redact(cfg.Jira.APIToken))
		fmt.Printf("  project:   %s\n", orUnset(cfg.Jira.Project))

		fmt.Println(ui.Header("bulk"))
		fmt.Printf("  timeout:     %s\n", cfg.Bulk.Timeout)
		fmt.Printf("  concurrency: %d\n", cfg.Bulk.Concurrency)

		fmt.Println(ui.Header("store"))
		fmt.Printf("  backend: %s\n", cfg.Store.Backend)
		fmt.Printf("  path:    %s\n", cfg.Store.Path)
		if cfg.Store.Backend == "redis" {
			fmt.Printf("  redis:   %s (db %d)\n", cfg.Store.RedisAddr, cfg.Store.RedisDB)
		}
		fmt.Printf("  ttl:     %s\n", cfg.Store.TTL)

		fmt.Println(ui.Header("telemetry"))
		fmt.Printf("  enabled: %v\n", cfg.Telemetry.Enabled)
		if cfg.Telemetry.OTLPEndpoint != "" {
			fmt.Printf("  otlp:    %s\n", cfg.Telemetry.OTLPEndpoint)
		}
	},
}

func orUnset(s string) string {
	if s == "" {
		return ui.Muted("(unset)")
	}
	return s
}

func redact(s string) string {
	if s == "" {
		return ui.Muted("(unset)")
	}
	return "****"
}

func init() {
	rootCmd.AddCommand(configCmd)
}
