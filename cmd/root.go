package cmd

import (
	"io"
	"os"

	"github.com/spf13/cobra"
)

func NewRootCommand(stdin io.Reader, stdout, stderr io.Writer) *cobra.Command {
	rc := &cobra.Command{
		Use:   "shopdemo",
		Short: "Storefront analytics ingestion and catalog services.",
		Long: `shopdemo runs the storefront back ends: the analytics ingestion service
(ClickHouse), the games and orders catalog services (PostgreSQL), and a
traffic simulator that drives the event collector against a running
ingestion service.

Configuration is read from the environment and an optional .env file.`,
		SilenceUsage: true,
	}

	rc.AddCommand(newServeCommand(stdin, stdout, stderr))
	rc.AddCommand(newSimulateCommand(stdin, stdout, stderr))

	rc.SetIn(stdin)
	rc.SetOut(stdout)
	rc.SetErr(stderr)
	return rc
}

// Execute runs the root command with the process's standard streams and
// exits non-zero on error.
func Execute() {
	if err := NewRootCommand(os.Stdin, os.Stdout, os.Stderr).Execute(); err != nil {
		os.Exit(1)
	}
}
