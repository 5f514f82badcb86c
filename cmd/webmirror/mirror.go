package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/nao1215/webmirror/internal/config"
	"github.com/nao1215/webmirror/internal/database"
	"github.com/nao1215/webmirror/internal/fetcher"
	applog "github.com/nao1215/webmirror/internal/log"
	"github.com/nao1215/webmirror/internal/model"
	"github.com/nao1215/webmirror/internal/pipeline"
	"github.com/nao1215/webmirror/internal/ratelimit"
	"github.com/nao1215/webmirror/internal/report"
	"github.com/nao1215/webmirror/internal/transport"
)

// errMirrorFailed is returned when at least one page did not mirror.
var errMirrorFailed = errors.New("mirror failed")

// NewMirrorCmd creates the mirror command.
func NewMirrorCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "mirror [page-url...]",
		Short: "Mirror web pages for offline viewing",
		Long: `Mirror fetches each page, downloads the same-origin stylesheets, scripts
and images it references, and writes a rewritten index.html that loads
them from disk.

Files are laid out by category under <output-dir>/<host>/:
  css/      stylesheets
  js/       scripts
  images/   images
  other/    anything else

Examples:
  # Mirror a page into ~/Downloads/example.com
  webmirror mirror https://example.com/

  # Mirror into a specific directory with 4 download workers
  webmirror mirror -o ./mirrors -w 4 https://example.com/blog/post

  # Mirror several pages, two at a time
  webmirror mirror --batch 2 https://a.example/ https://b.example/

  # Render JavaScript-heavy pages in headless Chrome first
  webmirror mirror --render https://spa.example/

  # Mirror an onion service through an embedded Tor daemon
  webmirror mirror --tor http://exampleonion.onion/

  # Write a Markdown report
  webmirror mirror -m --output report.md https://example.com/

Environment variables (overridden by flags):
  WEBMIRROR_WORKERS, WEBMIRROR_TIMEOUT, WEBMIRROR_RATE_LIMIT,
  WEBMIRROR_RATE_BURST, WEBMIRROR_USER_AGENT, WEBMIRROR_OUTPUT_DIR,
  WEBMIRROR_PROXY`,
		Args: cobra.ArbitraryArgs,
		RunE: runMirrorCmd,
	}

	// Mirror behavior
	cmd.Flags().StringP("output-dir", "o", config.DefaultOutputDir(),
		"Directory under which mirror directories are created")
	cmd.Flags().IntP("workers", "w", config.DefaultWorkers,
		"Number of concurrent resource downloads per page")
	cmd.Flags().DurationP("timeout", "t", config.DefaultTimeout,
		"Timeout for each request")
	cmd.Flags().Float64("rate", config.DefaultRateLimit,
		"Maximum requests per second per host")
	cmd.Flags().Int("burst", config.DefaultRateBurst,
		"Rate limiter burst size")
	cmd.Flags().Int64("max-body-size", config.DefaultMaxBodySize,
		"Maximum bytes read from a single response")
	cmd.Flags().String("user-agent", config.DefaultUserAgent,
		"User-Agent header sent with every request")
	cmd.Flags().IntP("batch", "b", config.DefaultBatchSize,
		"Number of pages mirrored concurrently")

	// Configuration
	cmd.Flags().StringP("config", "c", "",
		"Configuration file path (default: .webmirror in current or home directory)")
	cmd.Flags().String("env-file", "",
		"dotenv file loaded before reading WEBMIRROR_* variables")

	// Transport
	cmd.Flags().String("proxy", "",
		"Proxy URL (socks5://, socks5h://, http:// or https://)")
	cmd.Flags().Bool("tor", false,
		"Route requests through an embedded Tor daemon")
	cmd.Flags().DurationP("tor-timeout", "T", config.DefaultTorStartupTimeout,
		"Timeout for embedded Tor startup")
	cmd.Flags().Bool("render", false,
		"Fetch the page through headless Chrome before extracting resources")
	cmd.Flags().Duration("render-wait", config.DefaultRenderWait,
		"Time to let a rendered page settle")

	// Extras
	cmd.Flags().Bool("audit-images", false,
		"Report identifying EXIF metadata found in downloaded images")
	cmd.Flags().Bool("no-history", false,
		"Do not record the run in the history database")
	cmd.Flags().String("db-dir", config.XDGDataDir(),
		"Directory of the history database")

	// Report
	cmd.Flags().BoolP("json", "j", false,
		"Output JSON report (mutually exclusive with --markdown)")
	cmd.Flags().BoolP("markdown", "m", false,
		"Output Markdown report (mutually exclusive with --json)")
	cmd.Flags().String("output", "",
		"Write report to specified file path (creates directories if needed)")

	return cmd
}

func runMirrorCmd(cmd *cobra.Command, args []string) error {
	cfg, err := buildConfig(cmd, args)
	if err != nil {
		return err
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}

	logger := applog.NewLogger(cmd.ErrOrStderr(), applog.Options{
		Verbose: cfg.Verbose,
		JSON:    cfg.LogJSON,
	})
	slog.SetDefault(logger)

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		select {
		case <-sigCh:
			logger.Info("received shutdown signal, cancelling...")
			cancel()
		case <-ctx.Done():
		}
	}()

	return runMirror(ctx, cfg, logger, cmd.OutOrStdout(), cmd.ErrOrStderr())
}

// getBoolFlag reads a flag from the command or the root's persistent flags.
func getBoolFlag(cmd *cobra.Command, name string) bool {
	v, err := cmd.Flags().GetBool(name)
	if err != nil {
		v, err = cmd.Root().PersistentFlags().GetBool(name)
		if err != nil {
			return false
		}
	}
	return v
}

// buildConfig creates a Config from defaults, the environment and cobra
// flags. A flag overrides the environment only when it was set explicitly.
func buildConfig(cmd *cobra.Command, args []string) (*config.Config, error) {
	cfg := config.NewConfig()
	flags := cmd.Flags()

	var err error
	cfg.EnvFile, err = flags.GetString("env-file")
	if err != nil {
		return nil, err
	}
	env, err := config.LoadEnv(cfg.EnvFile)
	if err != nil {
		return nil, err
	}
	cfg.ApplyEnv(env)

	if flags.Changed("output-dir") {
		if cfg.OutputDir, err = flags.GetString("output-dir"); err != nil {
			return nil, err
		}
	}
	if flags.Changed("workers") {
		if cfg.Workers, err = flags.GetInt("workers"); err != nil {
			return nil, err
		}
	}
	if flags.Changed("timeout") {
		if cfg.Timeout, err = flags.GetDuration("timeout"); err != nil {
			return nil, err
		}
	}
	if flags.Changed("rate") {
		if cfg.RateLimit, err = flags.GetFloat64("rate"); err != nil {
			return nil, err
		}
	}
	if flags.Changed("burst") {
		if cfg.RateBurst, err = flags.GetInt("burst"); err != nil {
			return nil, err
		}
	}
	if flags.Changed("user-agent") {
		if cfg.UserAgent, err = flags.GetString("user-agent"); err != nil {
			return nil, err
		}
	}
	if flags.Changed("proxy") {
		if cfg.ProxyURL, err = flags.GetString("proxy"); err != nil {
			return nil, err
		}
	}

	if cfg.MaxBodySize, err = flags.GetInt64("max-body-size"); err != nil {
		return nil, err
	}
	if cfg.BatchSize, err = flags.GetInt("batch"); err != nil {
		return nil, err
	}
	if cfg.UseTor, err = flags.GetBool("tor"); err != nil {
		return nil, err
	}
	if cfg.TorStartupTimeout, err = flags.GetDuration("tor-timeout"); err != nil {
		return nil, err
	}
	if cfg.Render, err = flags.GetBool("render"); err != nil {
		return nil, err
	}
	if cfg.RenderWait, err = flags.GetDuration("render-wait"); err != nil {
		return nil, err
	}
	if cfg.AuditImages, err = flags.GetBool("audit-images"); err != nil {
		return nil, err
	}
	noHistory, err := flags.GetBool("no-history")
	if err != nil {
		return nil, err
	}
	cfg.SaveToDB = !noHistory
	if cfg.DBDir, err = flags.GetString("db-dir"); err != nil {
		return nil, err
	}

	if cfg.JSONReport, err = flags.GetBool("json"); err != nil {
		return nil, err
	}
	if cfg.MarkdownReport, err = flags.GetBool("markdown"); err != nil {
		return nil, err
	}
	if cfg.ReportFile, err = flags.GetString("output"); err != nil {
		return nil, err
	}

	cfg.ConfigFilePath, err = flags.GetString("config")
	if err != nil {
		return nil, err
	}
	// An explicitly named configuration file must exist; otherwise a
	// missing file just means no per-site settings.
	explicitConfigPath := cfg.ConfigFilePath != ""
	configPath := config.FindConfigFile(cfg.ConfigFilePath)
	switch {
	case configPath != "":
		cfg.SiteConfigs, err = config.LoadConfigFile(configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	case explicitConfigPath:
		return nil, fmt.Errorf("%w: %s", config.ErrConfigNotFound, cfg.ConfigFilePath)
	}

	cfg.Verbose = getBoolFlag(cmd, "verbose")
	cfg.LogJSON = getBoolFlag(cmd, "log-json")
	cfg.Targets = args

	return cfg, nil
}

// runMirror mirrors every target and writes one report per page.
func runMirror(ctx context.Context, cfg *config.Config, logger *slog.Logger, stdout, stderr io.Writer) error {
	logger.Info("starting mirror",
		"targets", cfg.Targets,
		"outputDir", cfg.OutputDir,
		"workers", cfg.Workers,
		"batchSize", cfg.BatchSize,
		"saveToDB", cfg.SaveToDB,
	)

	var db *database.HistoryDB
	if cfg.SaveToDB {
		var err error
		db, err = database.Open(cfg.DBDir, database.DefaultOptions())
		if err != nil {
			return fmt.Errorf("failed to open history database: %w", err)
		}
		defer db.Close()
	}

	proxyURL := cfg.ProxyURL
	if cfg.UseTor {
		embeddedTor, err := startEmbeddedTor(ctx, cfg, logger, stderr)
		if err != nil {
			return err
		}
		defer func() {
			logger.Info("stopping embedded Tor daemon...")
			if err := embeddedTor.Stop(); err != nil {
				logger.Error("failed to stop embedded Tor", "error", err)
			}
		}()
		if proxyURL, err = embeddedTor.ProxyURL(); err != nil {
			return err
		}
	}

	var renderer fetcher.Renderer
	if cfg.Render {
		renderer = fetcher.NewChromeRenderer(
			fetcher.WithRenderUserAgent(cfg.UserAgent),
			fetcher.WithRenderWait(cfg.RenderWait),
			fetcher.WithRenderProxy(proxyURL),
		)
	}

	output, closeOutput, err := openReportOutput(cfg.ReportFile, stdout)
	if err != nil {
		return err
	}
	defer closeOutput()
	writer := newReportWriter(cfg.JSONReport, cfg.MarkdownReport, cfg.Verbose, output)

	limiters := ratelimit.NewRegistry(cfg.RateLimit, cfg.RateBurst)
	bp := pipeline.NewBatchProcessor(
		newPipelineFactory(cfg, proxyURL, renderer, limiters, logger),
		pipeline.WithConcurrency(cfg.BatchSize),
		pipeline.WithBatchLogger(logger),
	)

	startTime := time.Now()
	var (
		mu     sync.Mutex
		failed int
	)
	batchErr := bp.ProcessBatchWithCallback(ctx, cfg.Targets, func(mirrorReport *model.MirrorReport, index int) {
		mu.Lock()
		defer mu.Unlock()

		if len(cfg.Targets) > 1 {
			fmt.Fprintf(stderr, "[%d/%d] %s: %s\n", index+1, len(cfg.Targets), mirrorReport.URL, mirrorReport.State)
		}
		if mirrorReport.State != model.StateDone {
			failed++
		}

		if _, err := writer.Write(mirrorReport); err != nil {
			logger.Error("report failed", "url", mirrorReport.URL, "error", err)
		}
		saveRun(ctx, db, mirrorReport, logger)
	})

	logger.Info("mirror finished",
		"targets", len(cfg.Targets),
		"failed", failed,
		"elapsed", time.Since(startTime).Round(time.Millisecond),
	)

	if batchErr != nil {
		return batchErr
	}
	if failed > 0 {
		return fmt.Errorf("%w: %d of %d pages", errMirrorFailed, failed, len(cfg.Targets))
	}
	return nil
}

// newPipelineFactory returns a factory building one pipeline per page with
// the page's site settings, its own HTTP client and the shared per-host limiter.
func newPipelineFactory(
	cfg *config.Config,
	proxyURL string,
	renderer fetcher.Renderer,
	limiters *ratelimit.Registry,
	logger *slog.Logger,
) pipeline.Factory {
	return func(pageURL string) (*pipeline.Pipeline, error) {
		u, err := url.Parse(pageURL)
		if err != nil {
			return nil, fmt.Errorf("%w: %s", config.ErrInvalidURL, pageURL)
		}
		site := cfg.SiteConfigs.GetSiteConfig(u.Host)

		userAgent := cfg.UserAgent
		if site.UserAgent != "" {
			userAgent = site.UserAgent
		}

		client, err := transport.NewHTTPClient(
			transport.WithTimeout(cfg.Timeout),
			transport.WithUserAgent(userAgent),
			transport.WithCookie(site.Cookie),
			transport.WithHeaders(site.Headers),
			transport.WithProxy(proxyURL),
		)
		if err != nil {
			return nil, err
		}

		f := fetcher.New(client, limiters.ForHost(u.Host, site.RateLimit),
			fetcher.WithMaxBodySize(cfg.EffectiveMaxBodySize()),
			fetcher.WithLogger(logger),
		)

		configOpts := []pipeline.DefaultPipelineOption{
			pipeline.WithPipelineOutputDir(cfg.OutputDir),
			pipeline.WithPipelineTimeout(cfg.Timeout),
			pipeline.WithPipelineWorkers(cfg.Workers),
			pipeline.WithPipelineSites(cfg.SiteConfigs),
			pipeline.WithPipelineAuditImages(cfg.AuditImages),
			pipeline.WithPipelineStepLogger(logger),
		}
		if renderer != nil {
			configOpts = append(configOpts, pipeline.WithPipelineRenderer(renderer))
		}

		return pipeline.DefaultPipeline(f, []pipeline.Option{pipeline.WithLogger(logger)}, configOpts...), nil
	}
}

// openReportOutput returns the report destination: path when set, otherwise stdout.
func openReportOutput(path string, stdout io.Writer) (io.Writer, func(), error) {
	if path == "" {
		return stdout, func() {}, nil
	}

	dir := filepath.Dir(path)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0750); err != nil {
			return nil, nil, fmt.Errorf("failed to create output directory: %w", err)
		}
	}

	// Reports stay owner-readable only.
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create output file: %w", err)
	}
	return f, func() { _ = f.Close() }, nil
}

// newReportWriter selects the report format.
func newReportWriter(jsonReport, markdownReport, verbose bool, output io.Writer) report.Writer {
	switch {
	case jsonReport:
		return report.NewJSONWriter(output, report.WithPrettyPrint(), report.WithVersion(getVersion()))
	case markdownReport:
		return report.NewMarkdownWriter(output)
	default:
		return report.NewSimpleWriter(output, report.WithVerbose(verbose))
	}
}

// startEmbeddedTor starts an embedded Tor daemon using tornago.
func startEmbeddedTor(ctx context.Context, cfg *config.Config, logger *slog.Logger, stderr io.Writer) (*transport.EmbeddedTor, error) {
	fmt.Fprintln(stderr, "Starting embedded Tor daemon...")
	fmt.Fprintf(stderr, "This may take 1-3 minutes while Tor bootstraps and connects to the network.\n\n")

	embeddedTor := transport.NewEmbeddedTor(
		transport.WithStartupTimeout(cfg.TorStartupTimeout),
	)
	if err := embeddedTor.Start(ctx); err != nil {
		return nil, fmt.Errorf("failed to start embedded Tor: %w", err)
	}

	logger.Info("embedded Tor daemon started", "socksAddr", embeddedTor.SocksAddr())
	return embeddedTor, nil
}

// saveRun records the run in the history database. If db is nil, this is a no-op.
func saveRun(ctx context.Context, db *database.HistoryDB, mirrorReport *model.MirrorReport, logger *slog.Logger) {
	if db == nil {
		return
	}
	// The run is recorded even when ctx was cancelled mid-mirror.
	id, err := db.SaveRun(context.WithoutCancel(ctx), mirrorReport)
	if err != nil {
		logger.Error("failed to save run", "url", mirrorReport.URL, "error", err)
		return
	}
	logger.Info("run saved to history", "url", mirrorReport.URL, "id", id)
}
