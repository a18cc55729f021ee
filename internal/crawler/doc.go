// Package crawler runs bounded deep crawls from a starting URL.
//
// # Strategies
//
// Three traversal strategies share one per-URL operation and differ only in
// how they order the frontier:
//
//   - BFS: level by level, each level fetched concurrently
//   - DFS: one branch at a time, with a capped stack and a path cycle guard
//   - BestFirst: a max-heap on scorer output, fetched in small batches
//
// For every URL the operation waits for the run's concurrency slot and
// request delay, then for the shared rate limiter, selects an egress proxy,
// fetches, and feeds the outcome back to the proxy rotator and the limiter.
// Only transport failures count against a proxy; an HTTP error status means
// the proxy itself worked.
//
// Links are normalized, checked against the run's visited set and filter
// chain, and marked visited when they enter the frontier, so no URL is
// fetched twice in one run. Without Config.AllowedDomains, a run stays on
// the host of its start URL.
//
// # Usage
//
//	bfs, err := crawler.NewBFS(crawler.DefaultConfig(),
//		crawler.WithRateLimiter(limiter),
//		crawler.WithProxyRotator(proxies),
//	)
//	if err != nil {
//		return err
//	}
//	run, err := bfs.Crawl(ctx, "https://example.com/")
//
// Cancelling ctx stops the run; Crawl then returns the partial run together
// with ctx.Err().
package crawler
