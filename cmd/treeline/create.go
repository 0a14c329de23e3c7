package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/treeline-dev/treeline/internal/engine"
	"github.com/treeline-dev/treeline/internal/jira"
	"github.com/treeline-dev/treeline/internal/manifest"
	"github.com/treeline-dev/treeline/internal/records"
	"github.com/treeline-dev/treeline/internal/types"
	"github.com/treeline-dev/treeline/internal/ui"
)

var (
	createFile    string
	createProject string
	createYes     bool
	createDryRun  bool
)

var createCmd = &cobra.Command{
	Use:   "create",
	Short: "Create issues from a records file",
	Long: `Create issues in bulk from a JSON, YAML, or TOML records file.

Records may reference each other with a "uid" field and a "parent" field
holding another record's uid; treeline creates parents first and rewrites
child references to the real issue keys. The run's manifest ID is printed
on completion and can be passed to 'treeline retry'.

Examples:
  treeline create --file backlog.yaml
  treeline create --file epics.json --project PLAT --yes`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		recs, err := records.Load(createFile)
		if err != nil {
			return err
		}

		if createDryRun {
			return dryRun(cmd.Context(), recs)
		}

		if !createYes {
			ok, err := confirmCreate(len(recs))
			if err != nil {
				return err
			}
			if !ok {
				fmt.Println("Aborted.")
				return nil
			}
		}

		e, err := buildEngine(createProject)
		if err != nil {
			return err
		}
		summary, err := e.Run(cmd.Context(), recs)
		if err != nil {
			return err
		}
		return printSummary(summary)
	},
}

func init() {
	createCmd.Flags().StringVarP(&createFile, "file", "f", "", "records file (required)")
	createCmd.Flags().StringVarP(&createProject, "project", "p", "", "project key override")
	createCmd.Flags().BoolVarP(&createYes, "yes", "y", false, "skip the confirmation prompt")
	createCmd.Flags().BoolVar(&createDryRun, "dry-run", false, "validate and build payloads without creating anything")
	_ = createCmd.MarkFlagRequired("file")
	rootCmd.AddCommand(createCmd)
}

// confirmCreate asks before submitting. Non-interactive sessions (pipes, CI)
// proceed without a prompt; --yes covers scripting on a TTY.
func confirmCreate(n int) (bool, error) {
	if !term.IsTerminal(int(os.Stdin.Fd())) {
		return true, nil
	}
	var ok bool
	form := huh.NewForm(huh.NewGroup(
		huh.NewConfirm().
			Title(fmt.Sprintf("Create %d issues in %s?", n, projectLabel())).
			Value(&ok),
	))
	if err := form.Run(); err != nil {
		return false, err
	}
	return ok, nil
}

func projectLabel() string {
	if createProject != "" {
		return createProject
	}
	if cfg.Jira.Project != "" {
		return cfg.Jira.Project
	}
	return "Jira"
}

// dryRun validates every record locally and reports per-row outcomes
// without contacting Jira or writing a manifest.
func dryRun(ctx context.Context, recs []types.Record) error {
	project := cfg.Jira.Project
	if createProject != "" {
		project = createProject
	}
	builder := jira.NewPayloadBuilder(project)

	failed := 0
	for i, rec := range recs {
		stripped := rec.Clone()
		delete(stripped, types.FieldUID)
		if _, err := builder.Build(ctx, stripped); err != nil {
			failed++
			var verr *types.ValidationError
			if errors.As(err, &verr) {
				fmt.Printf("%s row %d: %v\n", ui.Fail(ui.IconFail), i, verr)
			} else {
				fmt.Printf("%s row %d: %v\n", ui.Fail(ui.IconFail), i, err)
			}
			continue
		}
		fmt.Printf("%s row %d: ok\n", ui.Pass(ui.IconPass), i)
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d rows failed validation", failed, len(recs))
	}
	fmt.Println(ui.Muted(fmt.Sprintf("%d rows valid; nothing created (dry run)", len(recs))))
	return nil
}

// printSummary renders a run summary as text or JSON per --output.
func printSummary(s *engine.Summary) error {
	if output == "json" {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(s)
	}

	fmt.Println(ui.Header(fmt.Sprintf("Run %s", s.Manifest.ID)))
	for _, r := range s.Results {
		if r.Success {
			fmt.Printf("  %s row %d: %s\n", ui.Pass(ui.IconPass), r.Index, r.Key)
		} else {
			fmt.Printf("  %s row %d: %v\n", ui.Fail(ui.IconFail), r.Index, r.Err)
		}
	}
	fmt.Printf("%d created, %d failed of %d total\n", s.Succeeded, s.Failed, s.Total)

	if s.Persistence == manifest.PutStatusSkipped {
		fmt.Println(ui.Muted("warning: manifest could not be stored; this run cannot be retried"))
	} else if s.Failed > 0 {
		fmt.Println(ui.Muted(fmt.Sprintf("retry failed rows with: treeline retry %s --file <records>", s.Manifest.ID)))
	}
	return nil
}
