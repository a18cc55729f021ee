package config

import (
	"fmt"
	"path/filepath"
	"slices"
	"time"

	"github.com/adrg/xdg"

	"github.com/nao1215/deepcrawl/internal/crawler"
	"github.com/nao1215/deepcrawl/internal/dispatcher"
	"github.com/nao1215/deepcrawl/internal/proxy"
	"github.com/nao1215/deepcrawl/internal/ratelimit"
)

const (
	// AppName is the application name used for XDG directory paths.
	AppName = "deepcrawl"

	// DefaultStrategy is the traversal strategy used when none is configured.
	DefaultStrategy = string(crawler.StrategyBFS)

	// DefaultTimeout bounds one HTTP request.
	DefaultTimeout = crawler.DefaultFetchTimeout

	// DefaultBatchSize is the number of start URLs crawled at the same time.
	DefaultBatchSize = 4

	// DefaultTorStartupTimeout is how long to wait for the embedded Tor
	// daemon to bootstrap.
	DefaultTorStartupTimeout = 3 * time.Minute

	// DefaultPopularitySaturation is the in-degree at which the link
	// popularity score reaches 1.
	DefaultPopularitySaturation = 10
)

// CrawlSettings bounds each crawl run.
type CrawlSettings struct {
	Strategy        string        `yaml:"strategy"`
	MaxDepth        int           `yaml:"max_depth"`
	MaxPages        int           `yaml:"max_pages"`
	MaxConcurrent   int           `yaml:"max_concurrent"`
	Delay           time.Duration `yaml:"delay"`
	Timeout         time.Duration `yaml:"timeout"`
	UserAgent       string        `yaml:"user_agent"`
	MaxBodySize     int64         `yaml:"max_body_size"`
	IncludePatterns []string      `yaml:"include_patterns,omitempty"`
	ExcludePatterns []string      `yaml:"exclude_patterns,omitempty"`
	AllowedDomains  []string      `yaml:"allowed_domains,omitempty"`
	BlockedDomains  []string      `yaml:"blocked_domains,omitempty"`
	PathSegments    SegmentRange  `yaml:"path_segments"`
	Query           QueryRules    `yaml:"query"`
	MatchAny        bool          `yaml:"match_any"`
	SkipAssets      bool          `yaml:"skip_assets"`
}

// SegmentRange bounds the path segment count of crawled URLs.
// A zero max means no upper bound.
type SegmentRange struct {
	Min int `yaml:"min"`
	Max int `yaml:"max"`
}

// QueryRules restricts the query parameters of crawled URLs.
type QueryRules struct {
	Allow     []string `yaml:"allow,omitempty"`
	Block     []string `yaml:"block,omitempty"`
	MaxParams int      `yaml:"max_params"`
}

func (q QueryRules) crawlerRules() crawler.QueryRules {
	return crawler.QueryRules{Allowed: q.Allow, Blocked: q.Block, MaxParams: q.MaxParams}
}

// RateLimitSettings selects the process-wide rate limiter.
type RateLimitSettings struct {
	Policy            string        `yaml:"policy"`
	RequestsPerSecond float64       `yaml:"requests_per_second"`
	Burst             int           `yaml:"burst"`
	Window            time.Duration `yaml:"window"`
}

// ProxySettings describes the egress proxy pool.
type ProxySettings struct {
	// URLs are "scheme://[user:pass@]host:port" proxy addresses.
	URLs                []string      `yaml:"urls,omitempty"`
	Rotation            string        `yaml:"rotation"`
	FailoverCooldown    time.Duration `yaml:"failover_cooldown"`
	MaxFailures         int           `yaml:"max_failures"`
	HealthCheckInterval time.Duration `yaml:"health_check_interval"`
	ProbeURL            string        `yaml:"probe_url,omitempty"`
}

// DispatcherSettings selects the process-wide dispatcher.
type DispatcherSettings struct {
	Kind            string        `yaml:"kind"`
	MaxConcurrent   int           `yaml:"max_concurrent"`
	MinConcurrent   int           `yaml:"min_concurrent"`

	// InitialConcurrent is where the adaptive bound starts. Zero starts
	// halfway between min_concurrent and max_concurrent.
	InitialConcurrent int `yaml:"initial_concurrent"`

	MemoryThreshold float64       `yaml:"memory_threshold"`
	CPUThreshold    float64       `yaml:"cpu_threshold"`
	MonitorInterval time.Duration `yaml:"monitor_interval"`
}

// ScoringWeights are the relative weights of the best-first scorers.
// A zero weight disables the scorer.
type ScoringWeights struct {
	Keyword    float64 `yaml:"keyword"`
	PathDepth  float64 `yaml:"path_depth"`
	Authority  float64 `yaml:"authority"`
	Freshness  float64 `yaml:"freshness"`
	Popularity float64 `yaml:"popularity"`
}

// ScoringSettings configures best-first scoring.
type ScoringSettings struct {
	Keywords             []string           `yaml:"keywords,omitempty"`
	Weights              ScoringWeights     `yaml:"weights"`
	TargetDepth          int                `yaml:"target_depth"`
	Authority            map[string]float64 `yaml:"authority,omitempty"`
	PopularitySaturation int                `yaml:"popularity_saturation"`

	ParentBoostThreshold float64 `yaml:"parent_boost_threshold"`
	ParentBoost          float64 `yaml:"parent_boost"`
	DiversityCategories  int     `yaml:"diversity_categories"`
	DiversityBoost       float64 `yaml:"diversity_boost"`
}

// Config holds all deepcrawl settings.
// It is populated from defaults, the configuration file and CLI flags, in
// that order, and passed down explicitly rather than kept in global state.
type Config struct {
	Crawl      CrawlSettings
	RateLimit  RateLimitSettings
	Proxies    ProxySettings
	Dispatcher DispatcherSettings
	Scoring    ScoringSettings

	// Targets are the start URLs.
	Targets []string

	// Verbose enables Debug logging.
	Verbose bool

	// BatchSize is the number of start URLs crawled concurrently.
	BatchSize int

	// ConfigFilePath is the explicit --config path, if any.
	ConfigFilePath string

	// SiteConfigs holds the loaded file, for per-site overrides.
	SiteConfigs *File

	// JSONReport and MarkdownReport select the report format. Text otherwise.
	JSONReport     bool
	MarkdownReport bool

	// ReportFile is the report destination. Stdout when empty.
	ReportFile string

	// UseTor starts an embedded Tor daemon and adds it to the proxy pool.
	UseTor            bool
	TorStartupTimeout time.Duration

	// DBDir is where the run database lives.
	DBDir string

	// SaveToDB stores finished runs in the database.
	SaveToDB bool
}

// NewConfig returns a Config populated with defaults.
func NewConfig() *Config {
	return &Config{
		Crawl:      DefaultCrawlSettings(),
		RateLimit:  DefaultRateLimitSettings(),
		Proxies:    DefaultProxySettings(),
		Dispatcher: DefaultDispatcherSettings(),
		Scoring:    DefaultScoringSettings(),

		BatchSize:         DefaultBatchSize,
		TorStartupTimeout: DefaultTorStartupTimeout,
		DBDir:             XDGDataDir(),
		SaveToDB:          true,
	}
}

// DefaultCrawlSettings returns the crawl defaults.
func DefaultCrawlSettings() CrawlSettings {
	c := crawler.DefaultConfig()
	return CrawlSettings{
		Strategy:      DefaultStrategy,
		MaxDepth:      c.MaxDepth,
		MaxPages:      c.MaxPages,
		MaxConcurrent: c.MaxConcurrent,
		Delay:         c.DelayBetweenRequests,
		Timeout:       DefaultTimeout,
		UserAgent:     crawler.DefaultUserAgent,
		MaxBodySize:   crawler.DefaultMaxBodySize,
		SkipAssets:    c.SkipAssets,
	}
}

// DefaultRateLimitSettings returns the rate limiter defaults.
func DefaultRateLimitSettings() RateLimitSettings {
	c := ratelimit.DefaultConfig()
	return RateLimitSettings{
		Policy:            string(c.Policy),
		RequestsPerSecond: c.RequestsPerSecond,
		Burst:             c.BurstSize,
		Window:            c.WindowSize,
	}
}

// DefaultProxySettings returns the proxy defaults: no proxies.
func DefaultProxySettings() ProxySettings {
	return ProxySettings{
		Rotation:            string(proxy.StrategyRoundRobin),
		FailoverCooldown:    proxy.DefaultFailoverCooldown,
		MaxFailures:         proxy.DefaultMaxFailures,
		HealthCheckInterval: proxy.DefaultHealthCheckInterval,
	}
}

// DefaultDispatcherSettings returns the dispatcher defaults.
func DefaultDispatcherSettings() DispatcherSettings {
	c := dispatcher.DefaultConfig()
	return DispatcherSettings{
		Kind:              string(c.Kind),
		MaxConcurrent:     c.MaxConcurrent,
		MinConcurrent:     c.MinConcurrent,
		InitialConcurrent: c.InitialConcurrent,
		MemoryThreshold:   c.MemoryThreshold,
		CPUThreshold:      c.CPUThreshold,
		MonitorInterval:   c.MonitorInterval,
	}
}

// DefaultScoringSettings returns the scoring defaults: path depth only.
func DefaultScoringSettings() ScoringSettings {
	t := crawler.DefaultTuning()
	return ScoringSettings{
		Weights:              ScoringWeights{PathDepth: 1},
		PopularitySaturation: DefaultPopularitySaturation,
		ParentBoostThreshold: t.ParentBoostThreshold,
		ParentBoost:          t.ParentBoost,
		DiversityCategories:  t.DiversityCategories,
		DiversityBoost:       t.DiversityBoost,
	}
}

// XDGDataDir returns the XDG data directory for deepcrawl.
// On Linux: ~/.local/share/deepcrawl
func XDGDataDir() string {
	return filepath.Join(xdg.DataHome, AppName)
}

// XDGConfigDir returns the XDG config directory for deepcrawl.
// On Linux: ~/.config/deepcrawl
func XDGConfigDir() string {
	return filepath.Join(xdg.ConfigHome, AppName)
}

// Validate checks the configuration and returns the first problem found.
// Component settings are validated once more by the constructors.
func (c *Config) Validate() error {
	if len(c.Targets) == 0 {
		return ErrNoTarget
	}
	if c.BatchSize <= 0 {
		return ErrInvalidBatchSize
	}
	if c.JSONReport && c.MarkdownReport {
		return ErrConflictingReportFormats
	}
	if c.Crawl.Timeout <= 0 {
		return ErrInvalidTimeout
	}
	if c.Crawl.Delay < 0 {
		return ErrInvalidCrawlDelay
	}
	if c.Crawl.MaxBodySize < 0 {
		return ErrInvalidMaxBodySize
	}
	if !slices.Contains(crawler.StrategyNames(), crawler.StrategyName(c.Crawl.Strategy)) {
		return fmt.Errorf("%w: %q", ErrUnknownStrategy, c.Crawl.Strategy)
	}
	if err := c.LimiterConfig().Validate(); err != nil {
		return err
	}
	if _, err := c.ProxyPool(); err != nil {
		return err
	}
	return nil
}

// CrawlerConfig returns the crawl bounds for a start URL on host, with the
// site overrides of the configuration file applied.
func (c *Config) CrawlerConfig(host string) crawler.Config {
	cfg := crawler.Config{
		MaxDepth:             c.Crawl.MaxDepth,
		MaxPages:             c.Crawl.MaxPages,
		MaxConcurrent:        c.Crawl.MaxConcurrent,
		DelayBetweenRequests: c.Crawl.Delay,
		IncludePatterns:      c.Crawl.IncludePatterns,
		ExcludePatterns:      c.Crawl.ExcludePatterns,
		AllowedDomains:       c.Crawl.AllowedDomains,
		BlockedDomains:       c.Crawl.BlockedDomains,
		PathSegments:         crawler.SegmentRange(c.Crawl.PathSegments),
		Query:                c.Crawl.Query.crawlerRules(),
		MatchAny:             c.Crawl.MatchAny,
		SkipAssets:           c.Crawl.SkipAssets,
	}
	if c.SiteConfigs == nil {
		return cfg
	}

	site := c.SiteConfigs.GetSiteConfig(host)
	if site.MaxDepth != nil {
		cfg.MaxDepth = *site.MaxDepth
	}
	if site.MaxPages != nil {
		cfg.MaxPages = *site.MaxPages
	}
	if len(site.IncludePatterns) > 0 {
		cfg.IncludePatterns = site.IncludePatterns
	}
	if len(site.ExcludePatterns) > 0 {
		cfg.ExcludePatterns = site.ExcludePatterns
	}
	return cfg
}

// Headers returns the extra request headers configured for host.
func (c *Config) Headers(host string) map[string]string {
	if c.SiteConfigs == nil {
		return nil
	}
	site := c.SiteConfigs.GetSiteConfig(host)
	headers := make(map[string]string, len(site.Headers)+1)
	for k, v := range site.Headers {
		headers[k] = v
	}
	if site.Cookie != "" {
		headers["Cookie"] = site.Cookie
	}
	if len(headers) == 0 {
		return nil
	}
	return headers
}

// Tuning returns the best-first boosts.
func (c *Config) Tuning() crawler.Tuning {
	return crawler.Tuning{
		ParentBoostThreshold: c.Scoring.ParentBoostThreshold,
		ParentBoost:          c.Scoring.ParentBoost,
		DiversityCategories:  c.Scoring.DiversityCategories,
		DiversityBoost:       c.Scoring.DiversityBoost,
	}
}

// LimiterConfig returns the rate limiter settings.
func (c *Config) LimiterConfig() ratelimit.Config {
	return ratelimit.Config{
		Policy:            ratelimit.Policy(c.RateLimit.Policy),
		RequestsPerSecond: c.RateLimit.RequestsPerSecond,
		BurstSize:         c.RateLimit.Burst,
		WindowSize:        c.RateLimit.Window,
	}
}

// DispatcherConfig returns the dispatcher settings.
func (c *Config) DispatcherConfig() dispatcher.Config {
	return dispatcher.Config{
		Kind:              dispatcher.Kind(c.Dispatcher.Kind),
		MaxConcurrent:     c.Dispatcher.MaxConcurrent,
		MinConcurrent:     c.Dispatcher.MinConcurrent,
		InitialConcurrent: c.Dispatcher.InitialConcurrent,
		MemoryThreshold:   c.Dispatcher.MemoryThreshold,
		CPUThreshold:      c.Dispatcher.CPUThreshold,
		MonitorInterval:   c.Dispatcher.MonitorInterval,
	}
}

// ProxyPool parses the configured proxy URLs.
func (c *Config) ProxyPool() ([]proxy.Config, error) {
	pool := make([]proxy.Config, 0, len(c.Proxies.URLs))
	for i, raw := range c.Proxies.URLs {
		p, err := proxy.ParseURL(raw)
		if err != nil {
			// Entries may carry passwords; report the position only.
			return nil, fmt.Errorf("%w: entry %d: %w", ErrInvalidProxy, i+1, err)
		}
		pool = append(pool, p)
	}
	return pool, nil
}
