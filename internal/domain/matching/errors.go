package matching

import "errors"

var (
	// ErrStrategyPanic wraps a panic recovered from a tier.
	ErrStrategyPanic = errors.New("strategy panicked")
	// ErrNilBook is returned when Match is called without a book.
	ErrNilBook = errors.New("nil source book")
)
