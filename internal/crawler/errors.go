package crawler

import "errors"

var (
	// ErrInvalidMaxDepth is returned when max depth is negative.
	ErrInvalidMaxDepth = errors.New("max depth must be 0 or greater")

	// ErrInvalidMaxPages is returned when max pages is not positive.
	ErrInvalidMaxPages = errors.New("max pages must be greater than 0")

	// ErrInvalidMaxConcurrent is returned when max concurrent is not positive.
	ErrInvalidMaxConcurrent = errors.New("max concurrent must be greater than 0")

	// ErrInvalidDelay is returned when the delay between requests is negative.
	ErrInvalidDelay = errors.New("delay between requests must be 0 or greater")

	// ErrInvalidStartURL is returned when the starting URL is not an
	// absolute http or https URL.
	ErrInvalidStartURL = errors.New("start URL must be an absolute http or https URL")

	// ErrUnknownStrategy is returned for an unrecognized strategy name.
	ErrUnknownStrategy = errors.New("unknown crawl strategy")

	// ErrHTTPStatus is returned by HTTPFetcher for non-2xx responses.
	ErrHTTPStatus = errors.New("unexpected HTTP status")

	// ErrNoClientProvider is returned by HTTPFetcher when a proxy is
	// requested but no ClientProvider was configured.
	ErrNoClientProvider = errors.New("proxy requested but no client provider configured")
)
