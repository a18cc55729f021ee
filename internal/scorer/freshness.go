package scorer

import (
	"regexp"
	"strconv"
	"time"
)

const (
	// freshWindowYears is how many years back the recency boost reaches.
	freshWindowYears = 5
	// freshDecayPerYear is the score lost per year of age inside the window.
	freshDecayPerYear = 0.1
	// staleScore is returned for dates older than the window.
	staleScore = 0.3
)

// yearPattern finds a plausible publication year delimited by path
// separators: "/2024/05/post", "/news/2023-11-02-title", "/archive_2019/".
var yearPattern = regexp.MustCompile(`(?:^|[/_.-])((?:19|20)\d{2})(?:[/_.-]|$)`)

// FreshnessScorer prefers URLs that carry a recent date in their path.
//
// URLs without a date, or with a year in the future, score Neutral. A date
// from the current year scores 1.0, each year of age costs 0.1 up to five
// years, and anything older scores 0.3.
type FreshnessScorer struct {
	now func() time.Time
}

// FreshnessOption configures a FreshnessScorer.
type FreshnessOption func(*FreshnessScorer)

// WithClock replaces time.Now, mainly for tests.
func WithClock(now func() time.Time) FreshnessOption {
	return func(s *FreshnessScorer) {
		if now != nil {
			s.now = now
		}
	}
}

// NewFreshnessScorer creates a FreshnessScorer.
func NewFreshnessScorer(opts ...FreshnessOption) *FreshnessScorer {
	s := &FreshnessScorer{now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Score returns the recency of the first year found in the path of rawURL.
func (s *FreshnessScorer) Score(rawURL string, _ Context) (float64, error) {
	u, err := parseURL(rawURL)
	if err != nil {
		return 0, err
	}

	m := yearPattern.FindStringSubmatch(u.Path)
	if m == nil {
		return Neutral, nil
	}
	year, err := strconv.Atoi(m[1])
	if err != nil {
		return Neutral, nil
	}

	age := s.now().Year() - year
	switch {
	case age < 0:
		return Neutral, nil
	case age <= freshWindowYears:
		return Clamp(1 - freshDecayPerYear*float64(age)), nil
	default:
		return staleScore, nil
	}
}

// Name returns "freshness".
func (s *FreshnessScorer) Name() string {
	return "freshness"
}
