// Package cmd implements CLI commands using the cobra framework. It is a
// thin demo harness over internal/runtime (spec.md §1: CLI/GUI/playground
// shells are explicitly out of the core's scope) — it runs the canned
// scenarios of spec.md §8 and does not parse graph description files.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "visionflow",
	Short: "visionflow — a dataflow pipeline compiler and runner for vision processing",
	Long: `visionflow compiles a declared component graph into an executable
plan and runs it on a concurrent worker pool, with broadcast fan-out and
aggregation-window semantics for resource-constrained robots.

This binary is a demo harness: it runs the canned scenarios of the core's
testable-properties scenario list against fixture components, not a
production pipeline runner wired to real cameras.`,
	Version: "0.1.0",
}

// Execute adds all child commands to the root command and sets flags
// appropriately. This is called by main.main(); it only needs to happen
// once to rootCmd.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.AddCommand(demoCmd)
}

// exitWithError prints an error message and exits with code 1.
func exitWithError(msg string, err error) {
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s: %v\n", msg, err)
	} else {
		fmt.Fprintf(os.Stderr, "Error: %s\n", msg)
	}
	os.Exit(1)
}
