package scorer

import (
	"math"
	"net/url"
	"strings"
)

// Neutral is the score used when nothing is known about a URL, and the
// substitute for a component scorer that fails inside a CompositeScorer.
const Neutral = 0.5

// Context carries the traversal position of the URL being scored.
type Context struct {
	// Depth is the depth the URL would be crawled at.
	Depth int

	// ParentURL is the page the URL was discovered on.
	ParentURL string
}

// Scorer maps a URL to a priority in [0, 1]. Higher is more urgent.
//
// Given the same URL, Context and internal state a Scorer must return the
// same value so that crawl ordering is reproducible.
type Scorer interface {
	// Score returns the priority of rawURL.
	Score(rawURL string, sctx Context) (float64, error)

	// Name identifies the scorer in logs and reports.
	Name() string
}

// Observer is implemented by scorers that learn from the link graph as it is
// discovered. The crawler calls Observe for every link found on a page,
// before filtering, so in-degree counts include links that are never crawled.
// A page linking to the same target more than once may call Observe for each
// occurrence; implementations count distinct referrers.
type Observer interface {
	Observe(target, referrer string)
}

// Clamp limits v to [0, 1]. NaN becomes Neutral.
func Clamp(v float64) float64 {
	switch {
	case math.IsNaN(v):
		return Neutral
	case v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}

func parseURL(rawURL string) (*url.URL, error) {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return nil, ErrInvalidURL
	}
	if u.Host == "" {
		return nil, ErrInvalidURL
	}
	return u, nil
}

func pathSegments(p string) []string {
	var segments []string
	for _, seg := range strings.Split(p, "/") {
		if seg != "" {
			segments = append(segments, seg)
		}
	}
	return segments
}
