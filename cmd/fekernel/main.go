package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/spf13/cobra"
)

var version = "0.1.0-dev"

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "fekernel",
		Short: "Finite element multiphysics assembly engine",
		Long: `fekernel builds a finite element problem from a YAML problem file,
resolves the couplings and material dependencies between its physics
objects and solves it with Newton's method.`,
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().Bool("json", false, "Output as JSON")
	rootCmd.PersistentFlags().String("log-level", "", "Log level (trace, debug, info, warn, error); overrides the problem file")

	rootCmd.AddCommand(
		newVersionCmd(),
		newRunCmd(),
		newCheckCmd(),
		newObjectsCmd(),
	)
	return rootCmd
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		stop()
		os.Exit(1)
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "fekernel version %s\n", version)
		},
	}
}
