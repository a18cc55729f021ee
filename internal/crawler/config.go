package crawler

import (
	"time"

	"github.com/nao1215/deepcrawl/internal/filter"
)

const (
	// DefaultMaxDepth is the default link distance from the start URL.
	DefaultMaxDepth = 3

	// DefaultMaxPages is the default page budget of one run.
	DefaultMaxPages = 100

	// DefaultMaxConcurrent is the default number of in-flight fetches per run.
	DefaultMaxConcurrent = 5

	// DefaultDelayBetweenRequests is the default gap between request starts.
	DefaultDelayBetweenRequests = 0
)

// Config bounds one crawl run. It is not modified by the crawler.
type Config struct {
	// MaxDepth is the maximum link distance from the start URL.
	// 0 crawls the start URL only.
	MaxDepth int

	// MaxPages is the maximum number of fetch attempts in one run.
	MaxPages int

	// MaxConcurrent is the maximum number of fetches in flight for one run.
	MaxConcurrent int

	// DelayBetweenRequests is the minimum gap between two request starts in
	// one run, applied in addition to any rate limiter.
	DelayBetweenRequests time.Duration

	// IncludePatterns and ExcludePatterns are glob patterns matched against
	// the full URL and its path.
	IncludePatterns []string
	ExcludePatterns []string

	// AllowedDomains restricts crawling to these hosts and their subdomains.
	// When empty, only the host of the start URL is crawled.
	AllowedDomains []string

	// BlockedDomains are never crawled, subdomains included.
	BlockedDomains []string

	// PathSegments bounds the number of path segments of crawled URLs.
	PathSegments SegmentRange

	// Query restricts the query parameters of crawled URLs.
	Query QueryRules

	// MatchAny accepts a link that passes any one of the pattern, path
	// segment and query rules instead of all of them. Domain and asset
	// rules always apply.
	MatchAny bool

	// SkipAssets rejects links to images, archives, stylesheets and other
	// non-document extensions.
	SkipAssets bool
}

// SegmentRange is an inclusive range of path segment counts. A zero Max
// means no upper bound. The zero value accepts every URL.
type SegmentRange struct {
	Min int
	Max int
}

func (r SegmentRange) isZero() bool {
	return r.Min == 0 && r.Max == 0
}

// QueryRules restricts query parameters. The zero value accepts every URL.
type QueryRules struct {
	// Allowed lists the only parameters a URL may carry. Empty allows all.
	Allowed []string

	// Blocked lists parameters a URL must not carry.
	Blocked []string

	// MaxParams caps the number of distinct parameters. 0 means no limit.
	MaxParams int
}

func (q QueryRules) isZero() bool {
	return len(q.Allowed) == 0 && len(q.Blocked) == 0 && q.MaxParams == 0
}

// DefaultConfig returns the default crawl bounds.
func DefaultConfig() Config {
	return Config{
		MaxDepth:             DefaultMaxDepth,
		MaxPages:             DefaultMaxPages,
		MaxConcurrent:        DefaultMaxConcurrent,
		DelayBetweenRequests: DefaultDelayBetweenRequests,
		SkipAssets:           true,
	}
}

// Validate checks the numeric bounds and compiles the patterns.
func (c Config) Validate() error {
	if c.MaxDepth < 0 {
		return ErrInvalidMaxDepth
	}
	if c.MaxPages <= 0 {
		return ErrInvalidMaxPages
	}
	if c.MaxConcurrent <= 0 {
		return ErrInvalidMaxConcurrent
	}
	if c.DelayBetweenRequests < 0 {
		return ErrInvalidDelay
	}
	_, err := c.filters()
	return err
}

// filters builds the configuration-derived filters.
func (c Config) filters() ([]filter.Filter, error) {
	depth, err := filter.NewDepthFilter(0, c.MaxDepth)
	if err != nil {
		return nil, err
	}
	filters := []filter.Filter{depth}

	if len(c.AllowedDomains) > 0 || len(c.BlockedDomains) > 0 {
		domains, err := filter.NewDomainFilter(c.AllowedDomains, c.BlockedDomains)
		if err != nil {
			return nil, err
		}
		filters = append(filters, domains)
	}

	if c.SkipAssets {
		filters = append(filters, filter.NewContentTypeFilter())
	}

	rules, err := c.urlRules()
	if err != nil {
		return nil, err
	}
	if c.MatchAny && len(rules) > 1 {
		return append(filters, filter.NewOrChain(rules...)), nil
	}
	return append(filters, rules...), nil
}

// urlRules builds the pattern, path segment and query filters that are set.
func (c Config) urlRules() ([]filter.Filter, error) {
	var rules []filter.Filter

	if len(c.IncludePatterns) > 0 || len(c.ExcludePatterns) > 0 {
		patterns, err := filter.NewURLPatternFilter(c.IncludePatterns, c.ExcludePatterns)
		if err != nil {
			return nil, err
		}
		rules = append(rules, patterns)
	}

	if !c.PathSegments.isZero() {
		maxSegments := c.PathSegments.Max
		if maxSegments == 0 {
			maxSegments = filter.Unbounded
		}
		segments, err := filter.NewPathDepthFilter(c.PathSegments.Min, maxSegments)
		if err != nil {
			return nil, err
		}
		rules = append(rules, segments)
	}

	if !c.Query.isZero() {
		query, err := filter.NewQueryParamFilter(c.Query.Allowed, c.Query.Blocked, c.Query.MaxParams)
		if err != nil {
			return nil, err
		}
		rules = append(rules, query)
	}
	return rules, nil
}
