package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/nao1215/deepcrawl/internal/batch"
	"github.com/nao1215/deepcrawl/internal/config"
	"github.com/nao1215/deepcrawl/internal/crawler"
	"github.com/nao1215/deepcrawl/internal/database"
	"github.com/nao1215/deepcrawl/internal/dispatcher"
	"github.com/nao1215/deepcrawl/internal/log"
	"github.com/nao1215/deepcrawl/internal/proxy"
	"github.com/nao1215/deepcrawl/internal/ratelimit"
	"github.com/nao1215/deepcrawl/internal/report"
	"github.com/nao1215/deepcrawl/internal/scorer"
	"github.com/nao1215/deepcrawl/internal/tor"
)

// NewCrawlCmd creates the crawl command.
func NewCrawlCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "crawl <url> [url...]",
		Short: "Crawl one or more websites",
		Long: `Crawl traverses each start URL with the selected strategy and prints a report.

Strategies:
  bfs         level by level, shallow pages first
  dfs         one branch at a time
  best-first  highest scored URL first (see the scoring section of the config)

All start URLs share one rate limiter, proxy pool and dispatcher. Finished
runs, including runs cut short by Ctrl-C, are saved and can be listed with
'deepcrawl history'.

Examples:
  # Crawl a site breadth-first, three links deep
  deepcrawl crawl https://example.com/

  # Prefer documentation pages
  deepcrawl crawl --strategy best-first --keywords docs,guide https://example.com/

  # Skip tracking links and pages more than three directories deep
  deepcrawl crawl --block-params utm_source,sessionid --max-segments 3 https://example.com/

  # Crawl several sites two at a time through rotating proxies
  deepcrawl crawl --batch 2 --proxy http://10.0.0.1:3128 --proxy http://10.0.0.2:3128 \
    https://a.example.com/ https://b.example.com/

  # Crawl through an embedded Tor daemon and write a Markdown report
  deepcrawl crawl --tor --markdown -o report.md http://example.onion/`,
		Args: cobra.ArbitraryArgs,
		RunE: runCrawlCmd,
	}

	crawl := config.DefaultCrawlSettings()
	limit := config.DefaultRateLimitSettings()
	proxies := config.DefaultProxySettings()
	disp := config.DefaultDispatcherSettings()

	// Traversal flags
	cmd.Flags().StringP("strategy", "s", crawl.Strategy, "Traversal strategy: bfs, dfs or best-first")
	cmd.Flags().IntP("depth", "d", crawl.MaxDepth, "Maximum link distance from the start URL")
	cmd.Flags().IntP("max-pages", "p", crawl.MaxPages, "Maximum number of pages per start URL")
	cmd.Flags().IntP("concurrency", "n", crawl.MaxConcurrent, "Maximum fetches in flight per start URL")
	cmd.Flags().Duration("delay", crawl.Delay, "Minimum gap between request starts of one run")
	cmd.Flags().DurationP("timeout", "t", crawl.Timeout, "Timeout for each request")
	cmd.Flags().String("user-agent", crawl.UserAgent, "User-Agent header")
	cmd.Flags().StringSlice("include", nil, "Only follow URLs matching these glob patterns")
	cmd.Flags().StringSlice("exclude", nil, "Never follow URLs matching these glob patterns")
	cmd.Flags().StringSlice("domains", nil, "Hosts to crawl, subdomains included (default: the start host)")
	cmd.Flags().StringSlice("block-domains", nil, "Hosts never to crawl, subdomains included")
	cmd.Flags().Int("min-segments", 0, "Minimum number of URL path segments")
	cmd.Flags().Int("max-segments", 0, "Maximum number of URL path segments (0: no limit)")
	cmd.Flags().StringSlice("allow-params", nil, "Only follow URLs whose query parameters are all in this list")
	cmd.Flags().StringSlice("block-params", nil, "Never follow URLs carrying these query parameters")
	cmd.Flags().Int("max-params", 0, "Maximum number of query parameters (0: no limit)")
	cmd.Flags().Bool("match-any", false, "Follow a URL that passes any one of the pattern, path and query rules")
	cmd.Flags().StringSlice("keywords", nil, "Keywords that raise best-first scores")

	// Rate limiting flags
	cmd.Flags().String("rate-policy", limit.Policy, "Rate limit policy: token_bucket, sliding_window or adaptive")
	cmd.Flags().Float64P("rate", "r", limit.RequestsPerSecond, "Requests per second across all runs")
	cmd.Flags().Int("burst", limit.Burst, "Token bucket capacity")

	// Proxy flags
	cmd.Flags().StringArray("proxy", nil, "Egress proxy URL, repeatable (http://[user:pass@]host:port or socks5://host:port)")
	cmd.Flags().String("rotation", proxies.Rotation, "Proxy rotation: round_robin, weighted or failover")
	cmd.Flags().Bool("tor", false, "Start an embedded Tor daemon and add it to the proxy pool")
	cmd.Flags().Duration("tor-timeout", config.DefaultTorStartupTimeout, "Timeout for embedded Tor startup")

	// Concurrency flags
	cmd.Flags().String("dispatcher", disp.Kind, "Dispatcher: semaphore or memory_adaptive")
	cmd.Flags().Int("initial-concurrency", disp.InitialConcurrent,
		"Starting bound of the memory_adaptive dispatcher (0: halfway between its min and max)")
	cmd.Flags().IntP("batch", "b", config.DefaultBatchSize, "Number of start URLs crawled concurrently")

	// Configuration file
	cmd.Flags().StringP("config", "c", "",
		"Configuration file path (default: .deepcrawl in current or home directory)")

	// Report and storage flags
	cmd.Flags().BoolP("json", "j", false, "Output JSON report (mutually exclusive with --markdown)")
	cmd.Flags().BoolP("markdown", "m", false, "Output Markdown report (mutually exclusive with --json)")
	cmd.Flags().StringP("output", "o", "", "Write report to the specified file (creates directories if needed)")
	cmd.Flags().Bool("no-save", false, "Do not store runs in the database")
	cmd.Flags().String("db-dir", config.XDGDataDir(), "Directory of the run database")

	return cmd
}

func runCrawlCmd(cmd *cobra.Command, args []string) error {
	cfg, err := buildConfig(cmd, args)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}

	logger := log.NewSecureLogger(os.Stderr, cfg.Verbose)
	slog.SetDefault(logger)

	parent := cmd.Context()
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	return runCrawl(ctx, cfg, logger, cmd.OutOrStdout(), cmd.ErrOrStderr())
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

// buildConfig layers defaults, the configuration file and the flags the
// user actually set.
func buildConfig(cmd *cobra.Command, args []string) (*config.Config, error) {
	cfg := config.NewConfig()
	flags := cmd.Flags()

	var err error
	cfg.ConfigFilePath, err = flags.GetString("config")
	if err != nil {
		return nil, err
	}

	configPath := config.FindConfigFile(cfg.ConfigFilePath)
	switch {
	case configPath != "":
		cf, err := config.LoadConfigFile(configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
		cfg.ApplyFile(cf)
	case cfg.ConfigFilePath != "":
		return nil, fmt.Errorf("%w: %s", config.ErrConfigNotFound, cfg.ConfigFilePath)
	}

	if err := applyFlags(cmd, cfg); err != nil {
		return nil, err
	}

	cfg.Verbose = getVerboseFlag(cmd)
	cfg.Targets = args
	return cfg, nil
}

// applyFlags copies changed flags into cfg. Unchanged flags keep the
// value from the configuration file.
func applyFlags(cmd *cobra.Command, cfg *config.Config) error {
	f := cmd.Flags()
	var err error

	set := func(name string, apply func() error) {
		if err == nil && f.Changed(name) {
			err = apply()
		}
	}

	set("strategy", func() (e error) { cfg.Crawl.Strategy, e = f.GetString("strategy"); return })
	set("depth", func() (e error) { cfg.Crawl.MaxDepth, e = f.GetInt("depth"); return })
	set("max-pages", func() (e error) { cfg.Crawl.MaxPages, e = f.GetInt("max-pages"); return })
	set("concurrency", func() (e error) { cfg.Crawl.MaxConcurrent, e = f.GetInt("concurrency"); return })
	set("delay", func() (e error) { cfg.Crawl.Delay, e = f.GetDuration("delay"); return })
	set("timeout", func() (e error) { cfg.Crawl.Timeout, e = f.GetDuration("timeout"); return })
	set("user-agent", func() (e error) { cfg.Crawl.UserAgent, e = f.GetString("user-agent"); return })
	set("include", func() (e error) { cfg.Crawl.IncludePatterns, e = f.GetStringSlice("include"); return })
	set("exclude", func() (e error) { cfg.Crawl.ExcludePatterns, e = f.GetStringSlice("exclude"); return })
	set("domains", func() (e error) { cfg.Crawl.AllowedDomains, e = f.GetStringSlice("domains"); return })
	set("block-domains", func() (e error) { cfg.Crawl.BlockedDomains, e = f.GetStringSlice("block-domains"); return })
	set("min-segments", func() (e error) { cfg.Crawl.PathSegments.Min, e = f.GetInt("min-segments"); return })
	set("max-segments", func() (e error) { cfg.Crawl.PathSegments.Max, e = f.GetInt("max-segments"); return })
	set("allow-params", func() (e error) { cfg.Crawl.Query.Allow, e = f.GetStringSlice("allow-params"); return })
	set("block-params", func() (e error) { cfg.Crawl.Query.Block, e = f.GetStringSlice("block-params"); return })
	set("max-params", func() (e error) { cfg.Crawl.Query.MaxParams, e = f.GetInt("max-params"); return })
	set("match-any", func() (e error) { cfg.Crawl.MatchAny, e = f.GetBool("match-any"); return })
	set("keywords", func() (e error) {
		cfg.Scoring.Keywords, e = f.GetStringSlice("keywords")
		if cfg.Scoring.Weights.Keyword == 0 {
			cfg.Scoring.Weights.Keyword = 1
		}
		return
	})

	set("rate-policy", func() (e error) { cfg.RateLimit.Policy, e = f.GetString("rate-policy"); return })
	set("rate", func() (e error) { cfg.RateLimit.RequestsPerSecond, e = f.GetFloat64("rate"); return })
	set("burst", func() (e error) { cfg.RateLimit.Burst, e = f.GetInt("burst"); return })

	set("proxy", func() error {
		urls, e := f.GetStringArray("proxy")
		cfg.Proxies.URLs = append(cfg.Proxies.URLs, urls...)
		return e
	})
	set("rotation", func() (e error) { cfg.Proxies.Rotation, e = f.GetString("rotation"); return })
	set("dispatcher", func() (e error) { cfg.Dispatcher.Kind, e = f.GetString("dispatcher"); return })
	set("initial-concurrency", func() (e error) {
		cfg.Dispatcher.InitialConcurrent, e = f.GetInt("initial-concurrency")
		return
	})

	if err != nil {
		return err
	}

	if cfg.UseTor, err = f.GetBool("tor"); err != nil {
		return err
	}
	if cfg.TorStartupTimeout, err = f.GetDuration("tor-timeout"); err != nil {
		return err
	}
	if cfg.BatchSize, err = f.GetInt("batch"); err != nil {
		return err
	}
	if cfg.JSONReport, err = f.GetBool("json"); err != nil {
		return err
	}
	if cfg.MarkdownReport, err = f.GetBool("markdown"); err != nil {
		return err
	}
	if cfg.ReportFile, err = f.GetString("output"); err != nil {
		return err
	}
	if cfg.DBDir, err = f.GetString("db-dir"); err != nil {
		return err
	}
	noSave, err := f.GetBool("no-save")
	if err != nil {
		return err
	}
	cfg.SaveToDB = !noSave
	return nil
}

// components holds the state shared by every crawl run of one command.
type components struct {
	limiter    ratelimit.Limiter
	proxies    *proxy.Manager
	dispatcher dispatcher.Dispatcher
	client     *http.Client
}

// newComponents builds the shared components and starts their background
// loops. They stop when ctx is done.
func newComponents(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*components, error) {
	limiter, err := ratelimit.New(cfg.LimiterConfig())
	if err != nil {
		return nil, fmt.Errorf("failed to create rate limiter: %w", err)
	}

	disp, err := dispatcher.New(cfg.DispatcherConfig(), dispatcher.WithLogger(logger))
	if err != nil {
		return nil, fmt.Errorf("failed to create dispatcher: %w", err)
	}
	if adaptive, ok := disp.(*dispatcher.MemoryAdaptive); ok {
		go adaptive.Monitor(ctx)
	}

	pool, err := cfg.ProxyPool()
	if err != nil {
		return nil, err
	}
	rotation, err := proxy.NewStrategy(proxy.StrategyName(cfg.Proxies.Rotation), cfg.Proxies.FailoverCooldown)
	if err != nil {
		return nil, err
	}
	manager, err := proxy.NewManager(pool,
		proxy.WithStrategy(rotation),
		proxy.WithMaxFailures(cfg.Proxies.MaxFailures),
		proxy.WithHealthCheckInterval(cfg.Proxies.HealthCheckInterval),
		proxy.WithRequestTimeout(cfg.Crawl.Timeout),
		proxy.WithProber(proxy.NewAutoProber(cfg.Proxies.ProbeURL, cfg.Crawl.Timeout)),
		proxy.WithLogger(logger),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create proxy manager: %w", err)
	}

	return &components{
		limiter:    limiter,
		proxies:    manager,
		dispatcher: disp,
		client:     &http.Client{Timeout: cfg.Crawl.Timeout},
	}, nil
}

// startHealthChecks runs the proxy health loop when there is a pool to check.
func (rt *components) startHealthChecks(ctx context.Context) {
	if rt.proxies.Len() > 0 {
		go rt.proxies.RunHealthChecks(ctx)
	}
}

// strategyFactory returns the per-URL strategy constructor. Site overrides
// and the best-first scorer are resolved per start URL.
func (rt *components) strategyFactory(cfg *config.Config, logger *slog.Logger) batch.StrategyFactory {
	return func(startURL string) (crawler.Strategy, error) {
		normalized, err := crawler.NormalizeURL(startURL)
		if err != nil {
			return nil, err
		}
		u, err := url.Parse(normalized)
		if err != nil {
			return nil, err
		}
		host := u.Hostname()

		fetcher := crawler.NewHTTPFetcher(
			crawler.WithHTTPClient(rt.client),
			crawler.WithClientProvider(rt.proxies),
			crawler.WithUserAgent(cfg.Crawl.UserAgent),
			crawler.WithMaxBodySize(cfg.Crawl.MaxBodySize),
			crawler.WithHeaders(cfg.Headers(host)),
		)

		opts := []crawler.Option{
			crawler.WithFetcher(fetcher),
			crawler.WithRateLimiter(rt.limiter),
			crawler.WithDispatcher(rt.dispatcher),
			crawler.WithTuning(cfg.Tuning()),
			crawler.WithLogger(logger.With("start_url", normalized)),
		}
		if rt.proxies.Len() > 0 {
			opts = append(opts, crawler.WithProxyRotator(rt.proxies))
		}

		name := crawler.StrategyName(cfg.Crawl.Strategy)
		if name == crawler.StrategyBestFirst {
			sc, err := buildScorer(cfg.Scoring, logger)
			if err != nil {
				return nil, err
			}
			opts = append(opts, crawler.WithScorer(sc))
		}

		return crawler.New(name, cfg.CrawlerConfig(host), opts...)
	}
}

// buildScorer combines the scorers with a positive weight. A new scorer is
// built for every run because link popularity accumulates per run.
func buildScorer(s config.ScoringSettings, logger *slog.Logger) (scorer.Scorer, error) {
	var entries []scorer.Weighted

	if s.Weights.Keyword > 0 {
		kw, err := scorer.NewKeywordScorer(s.Keywords...)
		if err != nil {
			return nil, fmt.Errorf("keyword scorer: %w", err)
		}
		entries = append(entries, scorer.Weighted{Scorer: kw, Weight: s.Weights.Keyword})
	}
	if s.Weights.PathDepth > 0 {
		entries = append(entries, scorer.Weighted{
			Scorer: scorer.NewPathDepthScorer(scorer.WithTargetDepth(s.TargetDepth)),
			Weight: s.Weights.PathDepth,
		})
	}
	if s.Weights.Authority > 0 {
		auth, err := scorer.NewDomainAuthorityScorer(s.Authority, nil)
		if err != nil {
			return nil, fmt.Errorf("authority scorer: %w", err)
		}
		entries = append(entries, scorer.Weighted{Scorer: auth, Weight: s.Weights.Authority})
	}
	if s.Weights.Freshness > 0 {
		entries = append(entries, scorer.Weighted{Scorer: scorer.NewFreshnessScorer(), Weight: s.Weights.Freshness})
	}
	if s.Weights.Popularity > 0 {
		entries = append(entries, scorer.Weighted{
			Scorer: scorer.NewLinkPopularityScorer(s.PopularitySaturation),
			Weight: s.Weights.Popularity,
		})
	}

	return scorer.NewCompositeScorer(entries, scorer.WithLogger(logger))
}

// runCrawl crawls every target and writes one report per run to stdout or
// the report file. Progress goes to stderr.
func runCrawl(ctx context.Context, cfg *config.Config, logger *slog.Logger, stdout, stderr io.Writer) error {
	logger.Info("starting crawl",
		"targets", cfg.Targets,
		"strategy", cfg.Crawl.Strategy,
		"batchSize", cfg.BatchSize,
		"saveToDB", cfg.SaveToDB,
	)

	var db *database.RunDB
	if cfg.SaveToDB {
		var err error
		db, err = database.Open(cfg.DBDir, database.DefaultOptions())
		if err != nil {
			return fmt.Errorf("failed to open database: %w", err)
		}
		defer db.Close()
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	rt, err := newComponents(runCtx, cfg, logger)
	if err != nil {
		return err
	}
	defer rt.proxies.Close()

	if cfg.UseTor {
		et, err := startEmbeddedTor(runCtx, cfg, rt.proxies, logger, stderr)
		if err != nil {
			return err
		}
		defer func() {
			if err := et.Stop(); err != nil {
				logger.Error("failed to stop embedded Tor", "error", err)
			}
		}()
	}
	rt.startHealthChecks(runCtx)

	out, closeOut, err := openReportOutput(cfg.ReportFile, stdout)
	if err != nil {
		return err
	}
	defer closeOut()
	writer := newReportWriter(cfg, out)

	runner := batch.NewRunner(rt.strategyFactory(cfg, logger),
		batch.WithConcurrency(cfg.BatchSize),
		batch.WithLogger(logger),
	)

	start := time.Now()
	total := len(cfg.Targets)
	var (
		mu     sync.Mutex
		failed int
	)
	batchErr := runner.RunWithCallback(ctx, cfg.Targets, func(o batch.Outcome, index int) {
		mu.Lock()
		defer mu.Unlock()

		if o.Run == nil {
			failed++
			fmt.Fprintf(stderr, "[%d/%d] %s: %v\n", index+1, total, o.StartURL, o.Err)
			return
		}

		if db != nil {
			// Interrupted runs are still stored.
			if _, err := db.SaveRun(context.WithoutCancel(ctx), o.Run); err != nil {
				logger.Error("failed to save run", "start_url", o.Run.StartURL, "error", err)
			}
		}

		fmt.Fprintf(stderr, "[%d/%d] %s: %d pages (%d failed) in %s, %s\n",
			index+1, total, o.Run.StartURL,
			len(o.Run.Results), o.Run.Stats.PagesFailed,
			o.Run.Duration().Round(time.Millisecond), o.Run.State)

		if _, err := writer.Write(o.Run); err != nil {
			logger.Error("report failed", "start_url", o.Run.StartURL, "error", err)
		}
	})

	fmt.Fprintf(stderr, "Crawl finished in %s\n", time.Since(start).Round(time.Millisecond))

	if batchErr != nil {
		return fmt.Errorf("crawl interrupted: %w", batchErr)
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d crawls failed", failed, total)
	}
	return nil
}

// openReportOutput returns the report destination: the report file when
// set, stdout otherwise.
func openReportOutput(path string, stdout io.Writer) (io.Writer, func(), error) {
	if path == "" {
		return stdout, func() {}, nil
	}

	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return nil, nil, fmt.Errorf("failed to create output directory: %w", err)
		}
	}

	// Reports may list authenticated URLs, so only the owner can read them.
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600) //nolint:gosec // User-provided report path is intentional
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create output file: %w", err)
	}
	return f, func() { _ = f.Close() }, nil //nolint:errcheck // Best effort close
}

// newReportWriter returns the writer selected by the report flags.
func newReportWriter(cfg *config.Config, out io.Writer) report.Writer {
	switch {
	case cfg.JSONReport:
		return report.NewVersionedJSONWriter(out, getVersion(), report.WithPrettyPrint())
	case cfg.MarkdownReport:
		return report.NewMarkdownWriter(out)
	default:
		return report.NewTextWriter(out, report.WithVerbose(cfg.Verbose))
	}
}

// startEmbeddedTor starts an embedded Tor daemon and adds its SOCKS port to
// the proxy pool.
func startEmbeddedTor(ctx context.Context, cfg *config.Config, pool *proxy.Manager, logger *slog.Logger, stderr io.Writer) (*tor.EmbeddedTor, error) {
	fmt.Fprintln(stderr, "Starting embedded Tor daemon...")
	fmt.Fprintf(stderr, "This may take 1-3 minutes while Tor bootstraps and connects to the network.\n\n")

	et := tor.NewEmbeddedTor(
		tor.WithStartupTimeout(cfg.TorStartupTimeout),
		tor.WithLogger(logger),
	)
	if err := et.Start(ctx); err != nil {
		return nil, fmt.Errorf("failed to start embedded Tor: %w", err)
	}

	pc, err := et.ProxyConfig()
	if err == nil {
		err = pool.Add(pc)
	}
	if err != nil {
		_ = et.Stop() //nolint:errcheck // Best effort cleanup
		return nil, fmt.Errorf("failed to use embedded Tor: %w", err)
	}

	logger.Info("embedded Tor daemon started",
		"socksAddr", et.SocksAddr(),
		"controlAddr", et.ControlAddr(),
	)
	fmt.Fprintf(stderr, "Embedded Tor SOCKS proxy: %s\n\n", et.SocksAddr())
	return et, nil
}
