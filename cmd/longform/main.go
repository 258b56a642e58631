package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var version = "dev"

func main() {
	root := &cobra.Command{
		Use:     "longform",
		Short:   "Longform is a generation orchestrator for long-form narration",
		Version: version,
	}

	root.AddCommand(
		newRunCmd(),
		newCacheCmd(),
		newStatsCmd(),
		newReportCmd(),
	)

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
