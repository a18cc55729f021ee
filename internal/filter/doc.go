// Package filter decides whether a discovered link is worth visiting.
//
// Each Filter is a pure predicate over a URL and its traversal Context
// (depth, parent URL). Filters hold only their construction-time
// configuration, so a single instance can be evaluated from many concurrent
// fetch-completion paths without locking, and calling ShouldCrawl twice with
// the same input always yields the same answer.
//
// # Filters
//
//   - URLPatternFilter: include/exclude globs ("*/blog/*", "/admin/*", "*.pdf")
//   - DomainFilter: allowed/blocked hosts, subdomains included
//   - ContentTypeFilter: extension block list (images, archives, assets)
//   - DepthFilter: traversal depth range
//   - PathDepthFilter: number of path segments
//   - QueryParamFilter: allowed/blocked query parameters and a count limit
//
// Filters combine with Chain in AND (short-circuit on first rejection) or OR
// mode. Malformed configuration is reported by the constructors; URLs that
// cannot be parsed are rejected at evaluation time.
//
// # Usage
//
//	patterns, err := filter.NewURLPatternFilter([]string{"*/docs/*"}, []string{"*/private/*"})
//	if err != nil {
//		return err
//	}
//	chain := filter.NewChain(patterns, filter.NewContentTypeFilter())
//	ok := chain.ShouldCrawl("https://example.com/docs/intro", filter.Context{Depth: 1})
package filter
