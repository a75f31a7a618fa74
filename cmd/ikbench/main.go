// Command ikbench builds IK rigs, solves them with the CPU solver or a compute backend, and
// reports convergence and the deviation between the two solvers.
package main

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	var verbose bool

	root := &cobra.Command{
		Use:          "ikbench",
		Short:        "Benchmark and cross-check FABRIK IK solvers",
		SilenceUsage: true,
	}
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "log solver internals at debug level")

	root.AddCommand(newSolveCommand(func() *slog.Logger {
		return newLogger(verbose)
	}))
	return root
}

// newLogger returns a text logger on stderr. Warnings are always shown.
func newLogger(verbose bool) *slog.Logger {
	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}
