package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sitedesc/llmstxt/internal/pipeline"
	"github.com/sitedesc/llmstxt/internal/urllist"
)

func newGenerateCmd() *cobra.Command {
	var (
		sitemapURL string
		urlsFile   string
		outFile    string
	)

	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Generates an llms.txt document",
		Long: `Resolves the page set from a sitemap URL or a URL list file (plain
text or CSV), fetches and analyzes every page, and writes the rendered
llms.txt document to stdout or a file.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if sitemapURL == "" && urlsFile == "" {
				return fmt.Errorf("either --sitemap or --urls-file is required")
			}
			if sitemapURL != "" && urlsFile != "" {
				return fmt.Errorf("--sitemap and --urls-file are mutually exclusive")
			}

			svc, err := buildServices(cmd.Context(), cfgFile)
			if err != nil {
				return err
			}
			defer svc.Close()

			input := pipeline.Input{SitemapURL: sitemapURL}
			if urlsFile != "" {
				f, err := os.Open(urlsFile)
				if err != nil {
					return fmt.Errorf("open url list: %w", err)
				}
				urls, parseErr := urllist.Parse(f)
				if cerr := f.Close(); cerr != nil {
					svc.logger.Warn("close url list file failed", zap.Error(cerr))
				}
				if parseErr != nil {
					return parseErr
				}
				input.URLs = urls
			}

			out, err := svc.pipeline.Run(cmd.Context(), input)
			if err != nil {
				return err
			}

			if outFile == "" {
				fmt.Fprint(cmd.OutOrStdout(), out.Document)
				return nil
			}
			if err := os.WriteFile(outFile, []byte(out.Document), 0o600); err != nil {
				return fmt.Errorf("write output: %w", err)
			}
			svc.logger.Info("document written",
				zap.String("path", outFile),
				zap.String("run_id", out.RunID),
				zap.Int("pages", out.Summary.Resolved),
			)
			return nil
		},
	}

	cmd.Flags().StringVar(&sitemapURL, "sitemap", "", "sitemap or sitemap index URL")
	cmd.Flags().StringVar(&urlsFile, "urls-file", "", "path to a URL list (text or CSV)")
	cmd.Flags().StringVarP(&outFile, "out", "o", "", "output file (default stdout)")

	return cmd
}
