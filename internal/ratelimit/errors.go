package ratelimit

import "errors"

var (
	// ErrInvalidRate is returned when requests per second is not positive.
	ErrInvalidRate = errors.New("requests per second must be greater than 0")

	// ErrInvalidBurst is returned when the burst size is not positive.
	ErrInvalidBurst = errors.New("burst size must be greater than 0")

	// ErrInvalidWindow is returned when the sliding window is not positive.
	ErrInvalidWindow = errors.New("window size must be greater than 0")

	// ErrUnknownPolicy is returned for an unrecognized policy name.
	ErrUnknownPolicy = errors.New("unknown rate limit policy")

	// ErrExceedsCapacity is returned by WaitForTokens when more tokens are
	// requested than the limiter can ever hold at once.
	ErrExceedsCapacity = errors.New("requested tokens exceed limiter capacity")
)
