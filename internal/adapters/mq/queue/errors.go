package queue

import "errors"

// Sentinel errors returned by blocking enqueue.
var (
	ErrClosed = errors.New("queue closed")
)
