// Package scorer assigns crawl priorities to discovered URLs.
//
// A Scorer maps a URL and its traversal Context to a value in [0, 1]; the
// Best-First strategy expands the highest value first. Built-in scorers:
//
//   - KeywordScorer: keyword relevance, whole-token matches weighted over substrings
//   - PathDepthScorer: shallow-preferred or target-depth-preferred, linear falloff
//   - DomainAuthorityScorer: exact host map, then regex patterns (.edu/.gov boosted)
//   - FreshnessScorer: date in path, boosted by recency relative to the current year
//   - LinkPopularityScorer: log-scaled in-degree observed so far in the crawl
//
// CompositeScorer combines them with normalized weights and substitutes
// Neutral for any component that fails, so one broken scorer never stalls
// the crawl.
//
//	kw, err := scorer.NewKeywordScorer("golang", "concurrency")
//	if err != nil {
//		return err
//	}
//	composite, err := scorer.NewCompositeScorer([]scorer.Weighted{
//		{Scorer: kw, Weight: 0.6},
//		{Scorer: scorer.NewPathDepthScorer(), Weight: 0.4},
//	})
package scorer
