// Command treeline bulk-creates hierarchies of Jira issues and retries
// failed subsets from a persisted run manifest.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
