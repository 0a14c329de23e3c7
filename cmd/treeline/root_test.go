package main

import (
	"testing"

	"github.com/spf13/cobra"
)

func TestSubcommandsRegistered(t *testing.T) {
	want := map[string]bool{
		"create": false,
		"retry":  false,
		"status": false,
		"docs":   false,
		"config": false,
	}
	for _, cmd := range rootCmd.Commands() {
		if _, ok := want[cmd.Name()]; ok {
			want[cmd.Name()] = true
		}
	}
	for name, found := range want {
		if !found {
			t.Errorf("subcommand %q not registered", name)
		}
	}
}

func TestCreateFlags(t *testing.T) {
	for _, name := range []string{"file", "project", "yes", "dry-run"} {
		if createCmd.Flags().Lookup(name) == nil {
			t.Errorf("create missing --%s", name)
		}
	}
	// --file must be required: create without input is meaningless.
	f := createCmd.Flags().Lookup("file")
	if len(f.Annotations[cobra.BashCompOneRequiredFlag]) == 0 {
		t.Error("create --file not marked required")
	}
}

func TestRetryTakesRunID(t *testing.T) {
	if retryCmd.Args == nil {
		t.Fatal("retry has no positional arg validation")
	}
	if err := retryCmd.Args(retryCmd, []string{"run-abc"}); err != nil {
		t.Errorf("one run ID rejected: %v", err)
	}
	if err := retryCmd.Args(retryCmd, nil); err == nil {
		t.Error("retry accepted zero args")
	}
}
