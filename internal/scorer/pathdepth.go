package scorer

import "math"

// DefaultDepthFalloff is the score lost per path segment of distance from
// the preferred depth.
const DefaultDepthFalloff = 0.25

// PathDepthScorer prefers URLs whose path has a certain number of segments.
//
// With a target of 0 (the default) shallow URLs win: "/" scores 1.0 and
// every additional segment costs the falloff. With a positive target the
// score falls off linearly with the distance from that depth in both
// directions.
type PathDepthScorer struct {
	target  int
	falloff float64
}

// PathDepthOption configures a PathDepthScorer.
type PathDepthOption func(*PathDepthScorer)

// WithTargetDepth sets the preferred number of path segments.
func WithTargetDepth(depth int) PathDepthOption {
	return func(s *PathDepthScorer) {
		if depth >= 0 {
			s.target = depth
		}
	}
}

// WithDepthFalloff sets the score lost per segment of distance.
func WithDepthFalloff(falloff float64) PathDepthOption {
	return func(s *PathDepthScorer) {
		if falloff > 0 && !math.IsInf(falloff, 0) {
			s.falloff = falloff
		}
	}
}

// NewPathDepthScorer creates a PathDepthScorer.
func NewPathDepthScorer(opts ...PathDepthOption) *PathDepthScorer {
	s := &PathDepthScorer{falloff: DefaultDepthFalloff}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Score returns 1 - falloff*|segments - target|, floored at 0.
func (s *PathDepthScorer) Score(rawURL string, _ Context) (float64, error) {
	u, err := parseURL(rawURL)
	if err != nil {
		return 0, err
	}
	distance := math.Abs(float64(len(pathSegments(u.Path)) - s.target))
	return Clamp(1 - s.falloff*distance), nil
}

// Name returns "path_depth".
func (s *PathDepthScorer) Name() string {
	return "path_depth"
}
