package scorer

import (
	"strings"
	"unicode"

	"golang.org/x/text/cases"
)

const (
	// exactMatchScore is credited when a keyword equals a whole URL token.
	exactMatchScore = 1.0
	// partialMatchScore is credited when a keyword only appears inside a token.
	partialMatchScore = 0.5
)

// KeywordScorer rates URLs by how many configured keywords they mention.
//
// Each keyword contributes 1.0 when it equals a whole token of the path or
// query ("/guides/go-concurrency" has the tokens "guides", "go" and
// "concurrency"), 0.5 when it only appears as a substring of the host, path
// or query, and 0 otherwise. The score is the mean over all keywords.
// Matching is case-insensitive using Unicode case folding.
type KeywordScorer struct {
	keywords []string
}

// NewKeywordScorer creates a KeywordScorer. Blank keywords are ignored;
// ErrNoKeywords is returned when nothing remains.
func NewKeywordScorer(keywords ...string) (*KeywordScorer, error) {
	s := &KeywordScorer{}
	for _, kw := range keywords {
		kw = fold(strings.TrimSpace(kw))
		if kw != "" {
			s.keywords = append(s.keywords, kw)
		}
	}
	if len(s.keywords) == 0 {
		return nil, ErrNoKeywords
	}
	return s, nil
}

// Score returns the mean keyword match strength of rawURL.
func (s *KeywordScorer) Score(rawURL string, _ Context) (float64, error) {
	u, err := parseURL(rawURL)
	if err != nil {
		return 0, err
	}

	target := fold(u.Path + "?" + u.RawQuery)
	haystack := fold(u.Hostname()) + target

	tokens := make(map[string]struct{})
	for _, tok := range strings.FieldsFunc(target, isSeparator) {
		tokens[tok] = struct{}{}
	}

	total := 0.0
	for _, kw := range s.keywords {
		if _, ok := tokens[kw]; ok {
			total += exactMatchScore
			continue
		}
		if strings.Contains(haystack, kw) {
			total += partialMatchScore
		}
	}
	return total / float64(len(s.keywords)), nil
}

// Name returns "keyword".
func (s *KeywordScorer) Name() string {
	return "keyword"
}

// fold applies Unicode case folding. A Caser is stateful, so one is created
// per call rather than shared between goroutines.
func fold(s string) string {
	return cases.Fold().String(s)
}

func isSeparator(r rune) bool {
	return !unicode.IsLetter(r) && !unicode.IsDigit(r)
}
