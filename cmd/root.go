// Package cmd defines the CLI commands for the signalfold executable.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var cfgFile string

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "signalfold",
		Short: "Scans noisy public sources for corroborated organization signals",
		Long: `signalfold ingests noisy public signals about organizations - vendor
customer stories, press releases, job postings, tenders and conference
agendas - then folds them into a deduplicated inventory ranked by how
many independent kinds of evidence corroborate each organization.`,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file path")
	cmd.AddCommand(newScanCmd())

	return cmd
}

// Execute is the main entry point.
func Execute() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
