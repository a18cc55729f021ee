package dispatcher

import "errors"

var (
	// ErrInvalidConcurrency is returned when concurrency bounds are not
	// 1 <= min <= initial <= max.
	ErrInvalidConcurrency = errors.New("invalid concurrency bounds")

	// ErrInvalidThreshold is returned when a load threshold is outside (0, 100].
	ErrInvalidThreshold = errors.New("threshold must be between 0 and 100")

	// ErrUnknownKind is returned for an unrecognized dispatcher kind.
	ErrUnknownKind = errors.New("unknown dispatcher kind")

	// ErrTaskPanic wraps the value of a panicking task.
	ErrTaskPanic = errors.New("task panicked")
)
