package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/treeline-dev/treeline/internal/ui"
)

const usageGuide = `# treeline

Bulk hierarchical Jira issue creation with resumable retries.

## Records files

A records file is a list of issues to create, in JSON, YAML, or TOML.
Each record maps human-level field names to values:

` + "```yaml" + `
- summary: Payments revamp
  uid: epic-1
  type: epic
- summary: Tokenize card storage
  type: story
  parent: epic-1
  labels: [payments, pci]
  due: next friday
- summary: Attach to an existing epic
  parent: PLAT-204
` + "```" + `

Fields: summary (required), description, type (bug/task/story/epic),
priority (highest..lowest or P0..P4), labels, assignee (account ID),
due/duedate, project. Anything else passes through as a raw Jira field,
custom fields included.

## Hierarchy

The uid field names a record within one submission so other records can
reference it in parent. treeline groups records into levels so every
parent is created before its children, then rewrites child references to
the real issue keys. uid never reaches Jira. A parent holding a real
issue key works alongside uid references.

## Retry

Every run persists a manifest (24h retention) recording per-row outcomes.

    treeline retry run-abc123 --file backlog.yaml

re-submits only the failed rows, reusing the keys created earlier for
parent resolution. Rows that already succeeded are never re-created.

## Configuration

~/.config/treeline/config.yaml or TREELINE_* environment variables:

` + "```yaml" + `
jira:
  url: https://company.atlassian.net
  username: bot@company.com
  api_token: <token>
  project: PLAT
store:
  backend: file   # or redis, sqlite
` + "```" + `
`

var docsCmd = &cobra.Command{
	Use:   "docs",
	Short: "Show the usage guide",
	Run: func(_ *cobra.Command, _ []string) {
		fmt.Print(ui.RenderMarkdown(usageGuide))
	},
}

func init() {
	rootCmd.AddCommand(docsCmd)
}
