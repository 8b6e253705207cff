package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/nao1215/spider/internal/config"
	"github.com/nao1215/spider/internal/crawler"
	"github.com/nao1215/spider/internal/database"
	"github.com/nao1215/spider/internal/httpclient"
	"github.com/nao1215/spider/internal/log"
	"github.com/nao1215/spider/internal/model"
	"github.com/nao1215/spider/internal/report"
)

// addCrawlFlags registers the crawl flags on cmd.
func addCrawlFlags(cmd *cobra.Command) {
	// Traversal flags
	cmd.Flags().BoolP("recursive", "r", false,
		"Follow links found on each page")
	cmd.Flags().IntP("level", "l", config.DefaultMaxDepth,
		"Maximum recursion depth (only used with -r)")
	cmd.Flags().StringP("path", "p", config.DefaultTargetDir,
		"Directory to save images into (created if missing)")
	cmd.Flags().String("origin", string(model.OriginScheme),
		`Which links to follow: "scheme" (same scheme) or "host" (same scheme and host)`)
	cmd.Flags().Int("max-pages", config.DefaultMaxPages,
		"Maximum number of pages to visit (0 = unlimited)")
	cmd.Flags().StringSlice("ignore", nil,
		"URL path patterns never to crawl (e.g. /logout*)")
	cmd.Flags().StringSlice("follow", nil,
		"Only crawl URL paths matching these patterns")

	// HTTP flags
	cmd.Flags().DurationP("timeout", "t", config.DefaultTimeout,
		"Timeout for each page fetch and image download")
	cmd.Flags().IntP("workers", "w", config.DefaultWorkers,
		"Concurrent image downloads per page")
	cmd.Flags().String("user-agent", config.DefaultUserAgent,
		"User-Agent header sent with every request")
	cmd.Flags().StringArrayP("header", "H", nil,
		`Request header for the seed's host as "Name: value" (repeatable)`)
	cmd.Flags().String("proxy", "",
		"SOCKS5 proxy address (host:port)")

	// Configuration file
	cmd.Flags().StringP("config", "c", "",
		"Configuration file path (default: .spider in current or home directory)")

	// Report and history flags
	cmd.Flags().String("report", "",
		"Print a report after the crawl: text, json or markdown")
	cmd.Flags().StringP("output", "o", "",
		"Write the report to a file instead of stdout (creates directories if needed)")
	cmd.Flags().Bool("record", false,
		"Save the run to the history database")
	cmd.Flags().String("db-dir", config.XDGDataDir(),
		"Directory of the history database")
	cmd.Flags().String("log-format", string(config.LogText),
		"Log record format on stderr: text or json")
}

// runCrawlCmd executes the crawl.
func runCrawlCmd(cmd *cobra.Command, args []string) error {
	cfg, err := buildConfig(cmd, args)
	if err != nil {
		return err
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}

	logger := newLogger(cmd.ErrOrStderr(), cfg)
	slog.SetDefault(logger)

	// Cancel the crawl on interrupt; the partial summary is still reported
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return runCrawl(ctx, cfg, cmd.OutOrStdout(), logger)
}

// newLogger creates the secure logger in the configured format.
func newLogger(w io.Writer, cfg *config.Config) *slog.Logger {
	if cfg.LogFormat == config.LogJSON {
		return log.NewSecureJSONLogger(w, cfg.Verbose)
	}
	return log.NewSecureLogger(w, cfg.Verbose)
}

// getVerboseFlag retrieves the verbose flag from the command or its parent.
func getVerboseFlag(cmd *cobra.Command) bool {
	verbose, err := cmd.Flags().GetBool("verbose")
	if err != nil {
		verbose, err = cmd.Root().PersistentFlags().GetBool("verbose")
		if err != nil {
			return false
		}
	}
	return verbose
}

// buildConfig creates a Config from defaults, the configuration file and
// command flags. Flags set on the command line win over the file.
func buildConfig(cmd *cobra.Command, args []string) (*config.Config, error) {
	cfg := config.NewConfig()
	if len(args) > 0 {
		cfg.Seed = args[0]
	}
	cfg.Verbose = getVerboseFlag(cmd)

	flags := cmd.Flags()

	var err error
	cfg.ConfigFilePath, err = flags.GetString("config")
	if err != nil {
		return nil, err
	}

	// If the user explicitly specified a config file path, error if not found.
	// If no path was specified, silently use an empty config.
	configPath := config.FindConfigFile(cfg.ConfigFilePath)
	switch {
	case configPath != "":
		cfg.SiteConfigs, err = config.LoadConfigFile(configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	case cfg.ConfigFilePath != "":
		return nil, fmt.Errorf("%w: %s", config.ErrConfigNotFound, cfg.ConfigFilePath)
	default:
		cfg.SiteConfigs = &config.File{
			Sites: make(map[string]config.SiteConfig),
		}
	}

	if host := config.SeedHost(cfg.Seed); host != "" {
		cfg.ApplySiteConfig(cfg.SiteConfigs.GetSiteConfig(host))
		cfg.ApplySiteHeaders(cfg.SiteConfigs, host)
	}

	if flags.Changed("recursive") {
		if cfg.Recursive, err = flags.GetBool("recursive"); err != nil {
			return nil, err
		}
	}
	if flags.Changed("level") {
		if cfg.MaxDepth, err = flags.GetInt("level"); err != nil {
			return nil, err
		}
	}
	if flags.Changed("path") {
		if cfg.TargetDir, err = flags.GetString("path"); err != nil {
			return nil, err
		}
	}
	if flags.Changed("origin") {
		origin, err := flags.GetString("origin")
		if err != nil {
			return nil, err
		}
		cfg.OriginPolicy = model.OriginPolicy(strings.ToLower(origin))
	}
	if flags.Changed("max-pages") {
		if cfg.MaxPages, err = flags.GetInt("max-pages"); err != nil {
			return nil, err
		}
	}
	if flags.Changed("ignore") {
		if cfg.IgnorePatterns, err = flags.GetStringSlice("ignore"); err != nil {
			return nil, err
		}
	}
	if flags.Changed("follow") {
		if cfg.FollowPatterns, err = flags.GetStringSlice("follow"); err != nil {
			return nil, err
		}
	}
	if flags.Changed("timeout") {
		if cfg.Timeout, err = flags.GetDuration("timeout"); err != nil {
			return nil, err
		}
	}
	if flags.Changed("workers") {
		if cfg.Workers, err = flags.GetInt("workers"); err != nil {
			return nil, err
		}
	}
	if flags.Changed("user-agent") {
		if cfg.UserAgent, err = flags.GetString("user-agent"); err != nil {
			return nil, err
		}
	}
	if flags.Changed("header") {
		headers, err := flags.GetStringArray("header")
		if err != nil {
			return nil, err
		}
		for _, h := range headers {
			name, value, err := parseHeader(h)
			if err != nil {
				return nil, err
			}
			cfg.AddSeedHeader(name, value)
		}
	}

	if cfg.ProxyAddress, err = flags.GetString("proxy"); err != nil {
		return nil, err
	}

	format, err := flags.GetString("report")
	if err != nil {
		return nil, err
	}
	cfg.ReportFormat = config.ReportFormat(strings.ToLower(format))

	if cfg.ReportFile, err = flags.GetString("output"); err != nil {
		return nil, err
	}
	// A report file without a format means the text report
	if cfg.ReportFile != "" && cfg.ReportFormat == config.ReportNone {
		cfg.ReportFormat = config.ReportText
	}

	logFormat, err := flags.GetString("log-format")
	if err != nil {
		return nil, err
	}
	cfg.LogFormat = config.LogFormat(strings.ToLower(logFormat))

	if cfg.Record, err = flags.GetBool("record"); err != nil {
		return nil, err
	}
	if cfg.DBDir, err = flags.GetString("db-dir"); err != nil {
		return nil, err
	}

	return cfg, nil
}

// parseHeader splits a "Name: value" header flag.
func parseHeader(h string) (string, string, error) {
	name, value, ok := strings.Cut(h, ":")
	name = strings.TrimSpace(name)
	if !ok || name == "" {
		return "", "", fmt.Errorf("invalid header %q: expected \"Name: value\"", h)
	}
	return name, strings.TrimSpace(value), nil
}

// newSpider wires the HTTP client, fetcher and downloader for cfg.
func newSpider(cfg *config.Config, out io.Writer, logger *slog.Logger) (*crawler.Spider, error) {
	client, err := httpclient.New(httpclient.Options{
		Timeout:      cfg.Timeout,
		ProxyAddress: cfg.ProxyAddress,
		UserAgent:    cfg.UserAgent,
		Headers:      cfg.Headers,
		SiteHeaders:  cfg.SiteHeaders,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create HTTP client: %w", err)
	}

	fetcher := crawler.NewHTTPFetcher(client, crawler.WithFetcherMaxBodySize(cfg.MaxBodySize))
	downloader := crawler.NewHTTPDownloader(client)

	return crawler.NewSpider(fetcher, downloader,
		crawler.WithTargetDir(cfg.TargetDir),
		crawler.WithRecursive(cfg.Recursive),
		crawler.WithMaxDepth(cfg.MaxDepth),
		crawler.WithOriginPolicy(cfg.OriginPolicy),
		crawler.WithWorkers(cfg.Workers),
		crawler.WithMaxPages(cfg.MaxPages),
		crawler.WithIgnorePatterns(cfg.IgnorePatterns),
		crawler.WithFollowPatterns(cfg.FollowPatterns),
		crawler.WithObserver(newConsoleObserver(out)),
		crawler.WithLogger(logger),
	), nil
}

// runCrawl performs the crawl described by cfg, printing progress to out.
// It returns the crawl error after the summary has been reported, so a
// seed failure still prints its total before the command fails.
func runCrawl(ctx context.Context, cfg *config.Config, out io.Writer, logger *slog.Logger) error {
	if err := os.MkdirAll(cfg.TargetDir, 0750); err != nil {
		return fmt.Errorf("failed to create target directory: %w", err)
	}

	spider, err := newSpider(cfg, out, logger)
	if err != nil {
		return err
	}

	logger.Info("starting crawl",
		"seed", cfg.Seed,
		"recursive", cfg.Recursive,
		"max_depth", cfg.MaxDepth,
		"target_dir", cfg.TargetDir,
		"origin", cfg.OriginPolicy,
	)

	summary, crawlErr := spider.Crawl(ctx, cfg.Seed)
	if summary == nil {
		return crawlErr
	}

	stats := spider.Stats()
	logger.Info("crawl finished",
		"urls_visited", stats.URLsVisited,
		"images_downloaded", stats.ImagesDownloaded,
		"duration", summary.Duration(),
	)

	if cfg.Record {
		if err := saveSummary(cfg.DBDir, summary, logger); err != nil {
			logger.Error("failed to record run", "error", err)
		}
	}

	if err := outputReport(cfg, summary, out); err != nil {
		logger.Error("report failed", "error", err)
	}

	if errors.Is(crawlErr, context.Canceled) {
		return errors.New("crawl interrupted")
	}
	return crawlErr
}

// saveSummary records the run in the history database.
// The crawl context may already be cancelled after an interrupt, so the
// write uses a fresh one.
func saveSummary(dbDir string, summary *model.Summary, logger *slog.Logger) error {
	db, err := database.Open(dbDir, database.DefaultOptions())
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	id, err := db.SaveSummary(context.Background(), summary)
	if err != nil {
		return err
	}
	summary.ID = id

	logger.Info("run recorded", "id", id, "db", db.Path())
	return nil
}

// outputReport writes the end-of-run report in the configured format.
func outputReport(cfg *config.Config, summary *model.Summary, stdout io.Writer) error {
	if cfg.ReportFormat == config.ReportNone {
		return nil
	}

	output := stdout
	if cfg.ReportFile != "" {
		// Create directories if they don't exist
		dir := filepath.Dir(cfg.ReportFile)
		if dir != "" && dir != "." {
			if err := os.MkdirAll(dir, 0750); err != nil {
				return fmt.Errorf("failed to create output directory: %w", err)
			}
		}

		f, err := os.OpenFile(cfg.ReportFile, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
		if err != nil {
			return fmt.Errorf("failed to create output file: %w", err)
		}
		defer f.Close()
		output = f
	}

	var writer report.Writer
	switch cfg.ReportFormat {
	case config.ReportJSON:
		writer = report.NewJSONWriter(output, report.WithPrettyPrint(), report.WithVersion(getVersion()))
	case config.ReportMarkdown:
		writer = report.NewMarkdownWriter(output)
	default:
		writer = report.NewSimpleWriter(output, report.WithVerbose(cfg.Verbose))
	}

	_, err := writer.Write(summary)
	return err
}
