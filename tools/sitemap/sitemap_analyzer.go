// Command sitemap_analyzer resolves sitemaps and runs one-off link
// opportunity scans from the shell.
//
// Usage:
//
//	sitemap_analyzer resolve https://example.com/sitemap.xml
//	sitemap_analyzer scan --sitemap-url https://example.com/sitemap.xml \
//	    --target-url https://example.com/guide/ --keywords "running shoes,trail"
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/romangod6/linkscout/internal/crawler"
	"github.com/romangod6/linkscout/internal/models"
	"github.com/romangod6/linkscout/internal/report"
	"github.com/romangod6/linkscout/internal/scan"
	"github.com/romangod6/linkscout/internal/utils"
	"github.com/spf13/cobra"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "sitemap_analyzer",
		Short:         "Inspect sitemaps and find internal link opportunities",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().String("user-agent", crawler.DefaultUserAgent, "User-Agent header sent with every request")
	cmd.PersistentFlags().Duration("timeout", crawler.DefaultRequestTimeout, "Per-request timeout")
	cmd.PersistentFlags().Int("max-sitemaps", crawler.DefaultMaxSitemaps, "Maximum number of sitemap documents to fetch")
	cmd.PersistentFlags().BoolP("verbose", "v", false, "Log progress to stderr")

	cmd.AddCommand(newResolveCmd())
	cmd.AddCommand(newScanCmd())
	return cmd
}

func newResolveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "resolve <sitemap-url>",
		Short: "Print the page URLs listed by a sitemap or sitemap index",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !crawler.IsHTTPURL(args[0]) {
				return fmt.Errorf("sitemap URL must be an absolute http:// or https:// URL: %q", args[0])
			}
			maxPages, _ := cmd.Flags().GetInt("max-pages")

			opts := readGlobalFlags(cmd)
			logger := newCLILogger(cmd.ErrOrStderr(), opts.verbose)
			resolver := crawler.NewSitemapResolver(
				crawler.NewCollector(opts.crawlerConfig()),
				opts.limits(),
				logger.ForScan("resolve"),
			)

			urls, err := resolver.Resolve(cmd.Context(), args[0], maxPages)
			if err != nil {
				return err
			}
			for _, u := range urls {
				fmt.Fprintln(cmd.OutOrStdout(), u)
			}
			return nil
		},
	}
	cmd.Flags().Int("max-pages", scan.MaxMaxPages, "Stop after this many unique page URLs")
	return cmd
}

func newScanCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "scan",
		Short: "Find pages that mention a keyword but do not link to the target",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			flags := cmd.Flags()
			sitemapURL, _ := flags.GetString("sitemap-url")
			targetURL, _ := flags.GetString("target-url")
			keywords, _ := flags.GetStringSlice("keywords")
			maxPages, _ := flags.GetInt("max-pages")
			concurrency, _ := flags.GetInt("concurrency")
			sameHostOnly, _ := flags.GetBool("same-host-only")
			format, _ := flags.GetString("format")

			writer, err := report.NewWriter(format, cmd.OutOrStdout())
			if err != nil {
				return err
			}

			opts := readGlobalFlags(cmd)
			scanner := scan.NewScanner(crawler.NewCollector(opts.crawlerConfig()), scan.Config{
				Sitemap: opts.limits(),
				Logger:  newCLILogger(cmd.ErrOrStderr(), opts.verbose),
			})

			result, err := scanner.Scan(cmd.Context(), models.ScanRequest{
				SitemapURL:   sitemapURL,
				TargetURL:    targetURL,
				Keywords:     keywords,
				MaxPages:     maxPages,
				Concurrency:  concurrency,
				SameHostOnly: sameHostOnly,
			})
			if err != nil {
				return err
			}
			return writer.Write(result)
		},
	}

	cmd.Flags().String("sitemap-url", "", "Sitemap or sitemap index URL (required)")
	cmd.Flags().String("target-url", "", "Page you want links to (required)")
	cmd.Flags().StringSlice("keywords", nil, "Comma separated keywords (required)")
	cmd.Flags().Int("max-pages", scan.DefaultMaxPages, "Maximum number of sitemap URLs to consider (1-2000)")
	cmd.Flags().Int("concurrency", scan.DefaultConcurrency, "Pages fetched in parallel (1-30)")
	cmd.Flags().Bool("same-host-only", true, "Skip URLs whose host differs from the sitemap's")
	cmd.Flags().StringP("format", "f", report.FormatJSON, "Output format: json or markdown")
	_ = cmd.MarkFlagRequired("sitemap-url")
	_ = cmd.MarkFlagRequired("target-url")
	_ = cmd.MarkFlagRequired("keywords")
	return cmd
}

type globalFlags struct {
	userAgent   string
	timeout     time.Duration
	maxSitemaps int
	verbose     bool
}

func readGlobalFlags(cmd *cobra.Command) globalFlags {
	flags := cmd.Flags()
	var g globalFlags
	g.userAgent, _ = flags.GetString("user-agent")
	g.timeout, _ = flags.GetDuration("timeout")
	g.maxSitemaps, _ = flags.GetInt("max-sitemaps")
	g.verbose, _ = flags.GetBool("verbose")
	return g
}

func (g globalFlags) crawlerConfig() crawler.CrawlerConfig {
	return crawler.CrawlerConfig{
		UserAgent:      g.userAgent,
		RequestTimeout: g.timeout,
	}
}

func (g globalFlags) limits() crawler.SitemapLimits {
	return crawler.SitemapLimits{MaxSitemaps: g.maxSitemaps}
}

func newCLILogger(w io.Writer, verbose bool) *utils.Logger {
	level := "warn"
	if verbose {
		level = "debug"
	}
	logger, err := utils.NewLogger("", utils.LoggerOptions{Level: level, Format: "text", Output: w})
	if err != nil {
		return utils.NewDiscardLogger()
	}
	return logger
}
