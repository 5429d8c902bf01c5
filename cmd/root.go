// Package cmd defines the CLI commands for the llmstxt executable.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var cfgFile string

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "llmstxt",
		Short: "Generates llms.txt documents for websites",
		Long: `llmstxt resolves a site's sitemap (or a supplied URL list), fetches and
analyzes every page, and produces an llms.txt document: a curated,
sectioned index of the site with per-page descriptions, suitable for
consumption by large language models.`,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file path")

	cmd.AddCommand(newGenerateCmd())
	cmd.AddCommand(newServeCmd())
	cmd.AddCommand(newCheckCmd())

	return cmd
}

// Execute is the main entry point.
func Execute() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
