package filter

import "errors"

// Construction errors. Filters validate their configuration up front and
// never fail at evaluation time.
var (
	// ErrInvalidPattern is returned for a glob that cannot be compiled.
	ErrInvalidPattern = errors.New("invalid URL pattern")

	// ErrInvalidRange is returned when a min/max range is inverted or negative.
	ErrInvalidRange = errors.New("invalid range: min must be non-negative and not exceed max")

	// ErrInvalidDomain is returned for an empty or malformed domain entry.
	ErrInvalidDomain = errors.New("invalid domain")
)
