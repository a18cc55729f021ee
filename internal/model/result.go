package model

import (
	"time"
	"unicode/utf8"
)

// MaxContentSize bounds CrawlResult.Content so that a run holding many
// results keeps a predictable memory footprint.
const MaxContentSize = 256 * 1024 // 256KB

// CrawlResult is the record produced once per fetch attempt, successful or not.
// It is created by a crawl strategy and never modified afterwards.
type CrawlResult struct {
	// URL is the normalized URL that was fetched.
	URL string `json:"url"`

	// Success reports whether the fetch backend returned usable content.
	Success bool `json:"success"`

	// Depth is the link distance from the starting URL (0 = starting page).
	Depth int `json:"depth"`

	// ParentURL is the page on which URL was discovered.
	// Empty for the starting page.
	ParentURL string `json:"parent_url,omitempty"`

	// Title is the document title reported by the fetch backend.
	Title string `json:"title,omitempty"`

	// Content is the (possibly truncated) response body.
	Content string `json:"content,omitempty"`

	// Links are the outgoing links reported by the fetch backend, in document order.
	Links []string `json:"links,omitempty"`

	// StatusCode is the HTTP status code, or 0 when no response was received.
	StatusCode int `json:"status_code,omitempty"`

	// Error describes why the fetch failed. Empty on success.
	Error string `json:"error,omitempty"`

	// Score is the priority the URL was dequeued with.
	// Only best-first traversal assigns scores.
	Score float64 `json:"score,omitempty"`

	// Proxy is the egress proxy address the request went through, if any.
	Proxy string `json:"proxy,omitempty"`

	// CrawlTime is when the fetch started.
	CrawlTime time.Time `json:"crawl_time"`

	// Duration is how long the fetch took, including rate limiter waits.
	Duration time.Duration `json:"duration"`
}

// FetchResponse is what a fetch backend reports for a single URL.
// The scheduler never parses HTML itself; it only consumes Links.
type FetchResponse struct {
	Success    bool
	Content    string
	Title      string
	Links      []string
	StatusCode int
	Err        error
}

// TransportFailure reports whether the response failed before any HTTP
// status was received. Only these failures count against an egress proxy.
func (r FetchResponse) TransportFailure() bool {
	return !r.Success && r.StatusCode == 0
}

// TruncateContent shortens s to at most MaxContentSize bytes without
// splitting a UTF-8 sequence.
func TruncateContent(s string) string {
	if len(s) <= MaxContentSize {
		return s
	}
	n := MaxContentSize
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}
