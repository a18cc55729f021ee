package filter

import (
	"fmt"
	"strings"
)

// DomainFilter restricts crawling by host name.
// A domain entry matches the domain itself and all of its subdomains.
// Blocked domains win over allowed ones.
type DomainFilter struct {
	allowed []string
	blocked []string
}

// NewDomainFilter creates a DomainFilter. An empty allowed list allows every
// host that is not blocked.
func NewDomainFilter(allowed, blocked []string) (*DomainFilter, error) {
	f := &DomainFilter{}

	for _, d := range allowed {
		norm, err := normalizeDomain(d)
		if err != nil {
			return nil, err
		}
		f.allowed = append(f.allowed, norm)
	}
	for _, d := range blocked {
		norm, err := normalizeDomain(d)
		if err != nil {
			return nil, err
		}
		f.blocked = append(f.blocked, norm)
	}

	return f, nil
}

// ShouldCrawl checks the URL host against the blocked and allowed lists.
func (f *DomainFilter) ShouldCrawl(rawURL string, _ Context) bool {
	u, ok := parseHTTPURL(rawURL)
	if !ok {
		return false
	}
	host := strings.ToLower(u.Hostname())

	for _, d := range f.blocked {
		if domainMatches(host, d) {
			return false
		}
	}

	if len(f.allowed) == 0 {
		return true
	}
	for _, d := range f.allowed {
		if domainMatches(host, d) {
			return true
		}
	}
	return false
}

// Name returns "domain".
func (f *DomainFilter) Name() string {
	return "domain"
}

func domainMatches(host, domain string) bool {
	return host == domain || strings.HasSuffix(host, "."+domain)
}

// normalizeDomain lowercases d and strips a scheme, port, path and leading dot.
func normalizeDomain(d string) (string, error) {
	norm := strings.ToLower(strings.TrimSpace(d))
	if i := strings.Index(norm, "://"); i >= 0 {
		norm = norm[i+3:]
	}
	if i := strings.IndexAny(norm, "/?#"); i >= 0 {
		norm = norm[:i]
	}
	if i := strings.LastIndex(norm, ":"); i >= 0 && !strings.Contains(norm, "]") {
		norm = norm[:i]
	}
	norm = strings.TrimPrefix(norm, ".")
	if norm == "" || strings.ContainsAny(norm, " *") {
		return "", fmt.Errorf("%w: %q", ErrInvalidDomain, d)
	}
	return norm, nil
}
