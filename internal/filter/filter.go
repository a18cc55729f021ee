package filter

import (
	"net/url"
	"strings"
)

// Context carries the traversal position of a discovered link.
type Context struct {
	// Depth is the depth the link would be crawled at.
	Depth int

	// ParentURL is the page the link was discovered on.
	ParentURL string
}

// Filter decides whether a discovered URL is worth crawling.
//
// Implementations must be pure: the same URL and Context always produce the
// same answer, and ShouldCrawl may be called from many goroutines at once
// without synchronization. A URL that cannot be parsed is rejected.
type Filter interface {
	// ShouldCrawl reports whether rawURL should be accepted into the frontier.
	ShouldCrawl(rawURL string, fctx Context) bool

	// Name identifies the filter in logs.
	Name() string
}

// Mode selects how a Chain combines its filters.
type Mode int

const (
	// ModeAnd accepts a URL only when every filter accepts it.
	// Evaluation stops at the first rejection.
	ModeAnd Mode = iota

	// ModeOr accepts a URL when at least one filter accepts it.
	// Evaluation stops at the first acceptance.
	ModeOr
)

// String returns the mode name.
func (m Mode) String() string {
	if m == ModeOr {
		return "or"
	}
	return "and"
}

// Chain combines filters with AND or OR semantics.
// A Chain is itself a Filter, so chains nest.
type Chain struct {
	filters []Filter
	mode    Mode
}

// NewChain creates an AND chain of the given filters. Nil filters are skipped.
func NewChain(filters ...Filter) *Chain {
	return newChain(ModeAnd, filters)
}

// NewOrChain creates an OR chain of the given filters. Nil filters are skipped.
func NewOrChain(filters ...Filter) *Chain {
	return newChain(ModeOr, filters)
}

func newChain(mode Mode, filters []Filter) *Chain {
	c := &Chain{mode: mode, filters: make([]Filter, 0, len(filters))}
	for _, f := range filters {
		if f != nil {
			c.filters = append(c.filters, f)
		}
	}
	return c
}

// ShouldCrawl evaluates the chain. An empty chain accepts everything.
func (c *Chain) ShouldCrawl(rawURL string, fctx Context) bool {
	if len(c.filters) == 0 {
		return true
	}

	if c.mode == ModeOr {
		for _, f := range c.filters {
			if f.ShouldCrawl(rawURL, fctx) {
				return true
			}
		}
		return false
	}

	for _, f := range c.filters {
		if !f.ShouldCrawl(rawURL, fctx) {
			return false
		}
	}
	return true
}

// Name returns "chain(and)" or "chain(or)".
func (c *Chain) Name() string {
	return "chain(" + c.mode.String() + ")"
}

// Len returns the number of filters in the chain.
func (c *Chain) Len() int {
	return len(c.filters)
}

// Rejecting returns the name of the first filter that rejects rawURL,
// or "" if the chain accepts it. It is meant for debug logging.
func (c *Chain) Rejecting(rawURL string, fctx Context) string {
	if c.ShouldCrawl(rawURL, fctx) {
		return ""
	}
	if c.mode == ModeOr {
		return c.Name()
	}
	for _, f := range c.filters {
		if !f.ShouldCrawl(rawURL, fctx) {
			if inner, ok := f.(*Chain); ok {
				if name := inner.Rejecting(rawURL, fctx); name != "" {
					return name
				}
			}
			return f.Name()
		}
	}
	return c.Name()
}

// parseHTTPURL parses rawURL and requires an http(s) scheme and a host.
func parseHTTPURL(rawURL string) (*url.URL, bool) {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return nil, false
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, false
	}
	if u.Host == "" {
		return nil, false
	}
	return u, true
}
