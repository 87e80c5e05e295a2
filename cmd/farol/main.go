// Package main provides the entry point for the farol CLI tool.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/rafaelsamenezes/farol/cmd/farol/commands"
	"github.com/rafaelsamenezes/farol/pkg/version"
)

func main() {
	opts := &commands.GlobalOptions{}

	rootCmd := &cobra.Command{
		Use:   "farol",
		Short: "Farol - goto-binary file inspector",
		Long: `Farol parses ESBMC goto-binary (GBF) files into irep trees backed by a
deduplicating string interner.

Commands:
  dump      Parse a GBF file and print its contents
  diff      Compare the string tables of two GBF files
  stats     String table statistics, optionally plotted
  test      Run the built-in self-test suite`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().BoolVarP(&opts.Quiet, "quiet", "q", false, "suppress output")
	rootCmd.PersistentFlags().StringVar(&opts.ConfigPath, "config", "", "config file (default: .farol.yaml in CWD or $HOME)")
	rootCmd.PersistentFlags().StringVar(&opts.MetricsAddr, "metrics-addr", "", "serve /metrics and health endpoints at this address")
	rootCmd.PersistentFlags().StringVar(&opts.OTLPEndpoint, "otlp-endpoint", "", "OTLP gRPC collector address for traces and metrics")

	rootCmd.AddCommand(commands.NewDumpCommand(opts))
	rootCmd.AddCommand(commands.NewDiffCommand(opts))
	rootCmd.AddCommand(commands.NewStatsCommand(opts))
	rootCmd.AddCommand(commands.NewSelfTestCommand())
	rootCmd.AddCommand(versionCmd())

	err := rootCmd.Execute()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(_ *cobra.Command, _ []string) {
			fmt.Fprintf(os.Stdout, "farol %s (commit: %s, built: %s)\n", version.Version, version.Commit, version.Date)
		},
	}
}
