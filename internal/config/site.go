package config

import "strings"

// SiteConfig holds overrides for one host.
type SiteConfig struct {
	// MaxDepth overrides crawl.max_depth when set. Zero limits the site
	// to its start URL.
	MaxDepth *int `yaml:"max_depth,omitempty"`

	// MaxPages overrides crawl.max_pages when set.
	MaxPages *int `yaml:"max_pages,omitempty"`

	// IncludePatterns and ExcludePatterns replace the crawl patterns when set.
	IncludePatterns []string `yaml:"include_patterns,omitempty"`
	ExcludePatterns []string `yaml:"exclude_patterns,omitempty"`

	// Headers are sent with every request to the site.
	Headers map[string]string `yaml:"headers,omitempty"`

	// Cookie is sent as the Cookie header. Format: "name=value; name2=value2".
	Cookie string `yaml:"cookie,omitempty"`
}

// File is the structure of the .deepcrawl configuration file.
type File struct {
	Crawl      CrawlSettings      `yaml:"crawl"`
	RateLimit  RateLimitSettings  `yaml:"rate_limit"`
	Proxies    ProxySettings      `yaml:"proxies"`
	Dispatcher DispatcherSettings `yaml:"dispatcher"`
	Scoring    ScoringSettings    `yaml:"scoring"`

	// Defaults applies to every site unless a site entry overrides it.
	Defaults SiteConfig `yaml:"defaults,omitempty"`

	// Sites maps host names to their overrides.
	Sites map[string]SiteConfig `yaml:"sites,omitempty"`
}

// NewFile returns a File whose sections hold the compiled defaults, so
// that keys missing from a YAML document keep their default values.
func NewFile() *File {
	c := NewConfig()
	return &File{
		Crawl:      c.Crawl,
		RateLimit:  c.RateLimit,
		Proxies:    c.Proxies,
		Dispatcher: c.Dispatcher,
		Scoring:    c.Scoring,
		Sites:      make(map[string]SiteConfig),
	}
}

// GetSiteConfig returns the overrides for host merged over Defaults.
// A host without its own entry inherits the entry of its closest parent
// domain, so "docs.example.com" falls back to "example.com".
func (cf *File) GetSiteConfig(host string) SiteConfig {
	result := cf.Defaults
	result.Headers = copyHeaders(cf.Defaults.Headers)

	site, ok := cf.lookup(strings.ToLower(host))
	if !ok {
		return result
	}

	if site.MaxDepth != nil {
		result.MaxDepth = site.MaxDepth
	}
	if site.MaxPages != nil {
		result.MaxPages = site.MaxPages
	}
	if len(site.IncludePatterns) > 0 {
		result.IncludePatterns = site.IncludePatterns
	}
	if len(site.ExcludePatterns) > 0 {
		result.ExcludePatterns = site.ExcludePatterns
	}
	if site.Cookie != "" {
		result.Cookie = site.Cookie
	}
	if len(site.Headers) > 0 {
		if result.Headers == nil {
			result.Headers = make(map[string]string, len(site.Headers))
		}
		for k, v := range site.Headers {
			result.Headers[k] = v
		}
	}
	return result
}

func (cf *File) lookup(host string) (SiteConfig, bool) {
	for h := host; h != ""; {
		if site, ok := cf.Sites[h]; ok {
			return site, true
		}
		i := strings.IndexByte(h, '.')
		if i < 0 {
			break
		}
		h = h[i+1:]
		if !strings.Contains(h, ".") {
			break
		}
	}
	return SiteConfig{}, false
}

func copyHeaders(src map[string]string) map[string]string {
	if src == nil {
		return nil
	}
	dst := make(map[string]string, len(src))
	for k, v := range src {
		dst[k] = v
	}
	return dst
}
