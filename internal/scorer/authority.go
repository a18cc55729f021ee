package scorer

import (
	"fmt"
	"regexp"
	"strings"
)

// AuthorityPattern assigns Score to every host matching the regular
// expression Pattern.
type AuthorityPattern struct {
	Pattern string
	Score   float64
}

// DefaultAuthorityPatterns boosts educational and government hosts.
var DefaultAuthorityPatterns = []AuthorityPattern{
	{Pattern: `\.edu$`, Score: 0.9},
	{Pattern: `\.gov$`, Score: 0.9},
	{Pattern: `\.ac\.[a-z]{2}$`, Score: 0.85},
	{Pattern: `\.org$`, Score: 0.7},
}

type compiledPattern struct {
	re    *regexp.Regexp
	score float64
}

// DomainAuthorityScorer rates URLs by the reputation of their host.
//
// Lookup order: an exact entry for the host or any parent domain
// ("docs.python.org" falls back to "python.org"), then the first matching
// pattern, then the fallback score.
type DomainAuthorityScorer struct {
	exact    map[string]float64
	patterns []compiledPattern
	fallback float64
}

// NewDomainAuthorityScorer creates a DomainAuthorityScorer. A nil patterns
// slice selects DefaultAuthorityPatterns; pass an empty slice for none.
func NewDomainAuthorityScorer(exact map[string]float64, patterns []AuthorityPattern) (*DomainAuthorityScorer, error) {
	if patterns == nil {
		patterns = DefaultAuthorityPatterns
	}

	s := &DomainAuthorityScorer{
		exact:    make(map[string]float64, len(exact)),
		fallback: Neutral,
	}
	for domain, score := range exact {
		if score < 0 || score > 1 {
			return nil, fmt.Errorf("%w: %s=%v", ErrScoreOutOfRange, domain, score)
		}
		s.exact[strings.TrimPrefix(strings.ToLower(strings.TrimSpace(domain)), ".")] = score
	}
	for _, p := range patterns {
		if p.Score < 0 || p.Score > 1 {
			return nil, fmt.Errorf("%w: %s=%v", ErrScoreOutOfRange, p.Pattern, p.Score)
		}
		re, err := regexp.Compile(p.Pattern)
		if err != nil {
			return nil, fmt.Errorf("%w: %q: %v", ErrInvalidPattern, p.Pattern, err)
		}
		s.patterns = append(s.patterns, compiledPattern{re: re, score: p.Score})
	}
	return s, nil
}

// Score returns the authority of the host of rawURL.
func (s *DomainAuthorityScorer) Score(rawURL string, _ Context) (float64, error) {
	u, err := parseURL(rawURL)
	if err != nil {
		return 0, err
	}
	host := strings.ToLower(u.Hostname())

	for domain := host; domain != ""; {
		if score, ok := s.exact[domain]; ok {
			return score, nil
		}
		i := strings.IndexByte(domain, '.')
		if i < 0 {
			break
		}
		domain = domain[i+1:]
	}

	for _, p := range s.patterns {
		if p.re.MatchString(host) {
			return p.score, nil
		}
	}
	return s.fallback, nil
}

// Name returns "domain_authority".
func (s *DomainAuthorityScorer) Name() string {
	return "domain_authority"
}
