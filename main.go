// Package main is the entry point for the visionflow demo binary.
package main

import (
	"fmt"
	"os"

	"firestige.xyz/visionflow/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
