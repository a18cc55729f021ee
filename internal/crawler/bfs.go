package crawler

import (
	"context"

	"github.com/nao1215/deepcrawl/internal/model"
)

// BFS crawls level by level. Every page at depth d is fetched before any
// page at depth d+1, and the pages of one level are fetched concurrently.
type BFS struct {
	e *engine
}

// NewBFS creates a breadth-first strategy.
func NewBFS(cfg Config, opts ...Option) (*BFS, error) {
	e, err := newEngine(StrategyBFS, cfg, opts)
	if err != nil {
		return nil, err
	}
	return &BFS{e: e}, nil
}

// Name returns "bfs".
func (b *BFS) Name() StrategyName {
	return StrategyBFS
}

// Crawl runs a breadth-first traversal from startURL. The next level is
// truncated to the remaining page budget, in discovery order.
func (b *BFS) Crawl(ctx context.Context, startURL string) (*model.CrawlRun, error) {
	e := b.e
	r, first, err := e.start(startURL)
	if err != nil {
		return nil, err
	}

	level := []item{first}
	for len(level) > 0 && ctx.Err() == nil {
		r.trackFrontier(len(level))

		fetched := e.fetchAll(ctx, r, level)
		for _, res := range fetched {
			if res != nil {
				r.out.Results = append(r.out.Results, res)
			}
		}

		budget := e.remaining(r)
		next := make([]item, 0)
		for _, res := range fetched {
			if res == nil || !res.Success || res.Depth >= e.cfg.MaxDepth {
				continue
			}
			for _, link := range res.Links {
				if len(next) >= budget {
					break
				}
				if norm, ok := e.admit(ctx, r, link, res.URL, res.Depth+1); ok {
					next = append(next, item{url: norm, depth: res.Depth + 1, parent: res.URL})
				}
			}
		}
		level = next
	}

	return e.finish(ctx, r)
}
