package crawler

import (
	"context"
	"slices"

	"github.com/nao1215/deepcrawl/internal/model"
)

// DFS crawls depth-first, one page at a time. Children are pushed in
// reverse document order so the first link on a page is visited first.
//
// The stack is capped at twice the page budget; when it overflows the
// oldest entries are dropped. Besides the global visited set, a link that
// already appears on the path from the start URL is never followed.
type DFS struct {
	e *engine
}

// NewDFS creates a depth-first strategy.
func NewDFS(cfg Config, opts ...Option) (*DFS, error) {
	e, err := newEngine(StrategyDFS, cfg, opts)
	if err != nil {
		return nil, err
	}
	return &DFS{e: e}, nil
}

// Name returns "dfs".
func (d *DFS) Name() StrategyName {
	return StrategyDFS
}

type dfsEntry struct {
	item
	path []string
}

// Crawl runs a depth-first traversal from startURL.
func (d *DFS) Crawl(ctx context.Context, startURL string) (*model.CrawlRun, error) {
	e := d.e
	r, first, err := e.start(startURL)
	if err != nil {
		return nil, err
	}

	limit := 2 * e.cfg.MaxPages
	stack := []dfsEntry{{item: first, path: []string{first.url}}}

	for len(stack) > 0 && e.remaining(r) > 0 && ctx.Err() == nil {
		r.trackFrontier(len(stack))

		top := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		res := e.fetchAll(ctx, r, []item{top.item})[0]
		if res == nil {
			continue
		}
		r.out.Results = append(r.out.Results, res)

		if !res.Success || top.depth >= e.cfg.MaxDepth {
			continue
		}

		children := make([]dfsEntry, 0, len(res.Links))
		for _, link := range res.Links {
			norm, err := NormalizeURL(link)
			if err != nil || slices.Contains(top.path, norm) {
				continue
			}
			if accepted, ok := e.admit(ctx, r, norm, top.url, top.depth+1); ok {
				children = append(children, dfsEntry{
					item: item{url: accepted, depth: top.depth + 1, parent: top.url},
					path: append(slices.Clip(top.path), accepted),
				})
			}
		}
		for i := len(children) - 1; i >= 0; i-- {
			stack = append(stack, children[i])
		}
		if len(stack) > limit {
			e.logger.Debug("dfs stack trimmed", "dropped", len(stack)-limit)
			stack = slices.Delete(stack, 0, len(stack)-limit)
		}
	}

	return e.finish(ctx, r)
}
