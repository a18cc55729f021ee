package scorer

import (
	"math"
	"sync"
)

// DefaultPopularitySaturation is the in-degree at which a URL scores 1.0.
const DefaultPopularitySaturation = 100

// LinkPopularityScorer rates URLs by how many distinct pages have linked to
// them so far during the crawl. The score is log1p(inDegree)/log1p(saturation),
// capped at 1, so the first few referrers matter most.
//
// Counts are fed through Observe and are safe for concurrent use. Share one
// scorer per crawl run; counts are never reset.
type LinkPopularityScorer struct {
	mu         sync.Mutex
	referrers  map[string]map[string]struct{}
	saturation int
}

// NewLinkPopularityScorer creates a LinkPopularityScorer. A saturation below
// 1 selects DefaultPopularitySaturation.
func NewLinkPopularityScorer(saturation int) *LinkPopularityScorer {
	if saturation < 1 {
		saturation = DefaultPopularitySaturation
	}
	return &LinkPopularityScorer{
		referrers:  make(map[string]map[string]struct{}),
		saturation: saturation,
	}
}

// Observe records a link from referrer to target. Repeated links between the
// same two pages count once.
func (s *LinkPopularityScorer) Observe(target, referrer string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	refs, ok := s.referrers[target]
	if !ok {
		refs = make(map[string]struct{})
		s.referrers[target] = refs
	}
	refs[referrer] = struct{}{}
}

// InDegree returns the number of distinct pages observed linking to rawURL.
func (s *LinkPopularityScorer) InDegree(rawURL string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.referrers[rawURL])
}

// Score returns the log-scaled in-degree of rawURL.
func (s *LinkPopularityScorer) Score(rawURL string, _ Context) (float64, error) {
	count := s.InDegree(rawURL)
	return math.Min(1, math.Log1p(float64(count))/math.Log1p(float64(s.saturation))), nil
}

// Name returns "link_popularity".
func (s *LinkPopularityScorer) Name() string {
	return "link_popularity"
}
