package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sitedesc/llmstxt/internal/robots"
)

func newCheckCmd() *cobra.Command {
	var crawlers []string

	cmd := &cobra.Command{
		Use:   "check <url>",
		Short: "Checks robots.txt access for LLM crawlers",
		Long: `Fetches the target site's robots.txt and reports, per crawler
identity, whether the given URL may be accessed. A missing robots.txt
means all access is allowed.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := buildServices(cmd.Context(), cfgFile)
			if err != nil {
				return err
			}
			defer svc.Close()

			checker := svc.checker
			if len(crawlers) > 0 {
				checker = robots.NewChecker(crawlers, svc.cfg.Fetch.Timeout, svc.logger)
			}
			report, err := checker.Check(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			encoded, err := json.MarshalIndent(report, "", "  ")
			if err != nil {
				return fmt.Errorf("encode report: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(encoded))
			return nil
		},
	}

	cmd.Flags().StringSliceVar(&crawlers, "crawler", nil, "crawler identities to check (default: known LLM crawlers)")

	return cmd
}
