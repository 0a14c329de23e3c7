package main

import (
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"

	"github.com/treeline-dev/treeline/internal/manifest"
	"github.com/treeline-dev/treeline/internal/ui"
)

var statusWatch bool

var statusCmd = &cobra.Command{
	Use:   "status <run-id>",
	Short: "Show the stored manifest for a run",
	Long: `Show the persisted state of a run: which rows succeeded with which
issue keys, which failed and why, and the uid mappings recorded so far.

With --watch (file backend only), re-prints whenever the manifest file
changes, e.g. while a retry runs in another terminal.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openStore()
		if err != nil {
			return err
		}

		if err := printManifest(cmd, store, args[0]); err != nil {
			return err
		}
		if !statusWatch {
			return nil
		}

		fs, ok := store.(*manifest.FileStore)
		if !ok {
			return fmt.Errorf("--watch requires the file store backend (configured: %s)", cfg.Store.Backend)
		}
		return watchManifest(cmd, store, fs.Path(args[0]), args[0])
	},
}

func init() {
	statusCmd.Flags().BoolVarP(&statusWatch, "watch", "w", false, "re-print on manifest changes (file backend)")
	rootCmd.AddCommand(statusCmd)
}

func printManifest(cmd *cobra.Command, store manifest.Store, id string) error {
	m, err := store.Get(cmd.Context(), id)
	if err != nil {
		return err
	}

	if output == "json" {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(m)
	}

	fmt.Println(ui.Header(fmt.Sprintf("Run %s (created %s)", m.ID, m.CreatedAt.Format("2006-01-02 15:04:05"))))
	for _, r := range m.Results() {
		if r.Success {
			fmt.Printf("  %s row %d: %s\n", ui.Pass(ui.IconPass), r.Index, r.Key)
		} else {
			fmt.Printf("  %s row %d: %v\n", ui.Fail(ui.IconFail), r.Index, r.Err)
		}
	}
	fmt.Printf("%d created, %d failed of %d total\n", len(m.Succeeded), len(m.Failed), m.Total)
	return nil
}

// watchManifest blocks re-printing the manifest on file changes until
// interrupted.
func watchManifest(cmd *cobra.Command, store manifest.Store, path, id string) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("start watcher: %w", err)
	}
	defer func() { _ = watcher.Close() }()

	// Watch the directory: the store writes via rename, which a watch on
	// the file itself would lose.
	if err := watcher.Add(filepath.Dir(path)); err != nil {
		return fmt.Errorf("watch %s: %w", filepath.Dir(path), err)
	}

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(stop)

	fmt.Println(ui.Muted("watching for changes (ctrl-c to stop)"))
	for {
		select {
		case ev := <-watcher.Events:
			if ev.Name != path {
				continue
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			fmt.Println()
			if err := printManifest(cmd, store, id); err != nil {
				fmt.Fprintf(os.Stderr, "reload: %v\n", err)
			}
		case err := <-watcher.Errors:
			return fmt.Errorf("watch: %w", err)
		case <-stop:
			return nil
		case <-cmd.Context().Done():
			return nil
		}
	}
}
