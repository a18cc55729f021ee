package scorer

import "errors"

var (
	// ErrInvalidURL is returned when a URL cannot be parsed or has no host.
	ErrInvalidURL = errors.New("invalid URL")

	// ErrNoKeywords is returned when a keyword scorer is built without keywords.
	ErrNoKeywords = errors.New("at least one keyword is required")

	// ErrNoScorers is returned when a composite scorer has no components.
	ErrNoScorers = errors.New("at least one scorer is required")

	// ErrInvalidWeight is returned for negative, NaN or all-zero weights.
	ErrInvalidWeight = errors.New("invalid scorer weight")

	// ErrScoreOutOfRange is returned when a configured score is outside [0, 1].
	ErrScoreOutOfRange = errors.New("score must be between 0 and 1")

	// ErrInvalidPattern is returned when an authority pattern does not compile.
	ErrInvalidPattern = errors.New("invalid authority pattern")
)
