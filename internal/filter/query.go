package filter

import "strings"

// QueryParamFilter restricts URLs by their query parameters.
//
// A URL is rejected when it carries any blocked parameter, when allowed
// parameters are configured and it carries a parameter outside that set, or
// when it carries more than maxParams distinct parameters (0 = no limit).
type QueryParamFilter struct {
	allowed   map[string]struct{}
	blocked   map[string]struct{}
	maxParams int
}

// NewQueryParamFilter creates a QueryParamFilter. Parameter names are
// compared case-insensitively.
func NewQueryParamFilter(allowed, blocked []string, maxParams int) (*QueryParamFilter, error) {
	if maxParams < 0 {
		return nil, ErrInvalidRange
	}
	return &QueryParamFilter{
		allowed:   toSet(allowed),
		blocked:   toSet(blocked),
		maxParams: maxParams,
	}, nil
}

// ShouldCrawl inspects the query string of rawURL.
func (f *QueryParamFilter) ShouldCrawl(rawURL string, _ Context) bool {
	u, ok := parseHTTPURL(rawURL)
	if !ok {
		return false
	}

	params := u.Query()
	if f.maxParams > 0 && len(params) > f.maxParams {
		return false
	}

	for name := range params {
		key := strings.ToLower(name)
		if _, blocked := f.blocked[key]; blocked {
			return false
		}
		if len(f.allowed) > 0 {
			if _, ok := f.allowed[key]; !ok {
				return false
			}
		}
	}
	return true
}

// Name returns "query_param".
func (f *QueryParamFilter) Name() string {
	return "query_param"
}

func toSet(values []string) map[string]struct{} {
	set := make(map[string]struct{}, len(values))
	for _, v := range values {
		v = strings.ToLower(strings.TrimSpace(v))
		if v != "" {
			set[v] = struct{}{}
		}
	}
	return set
}
