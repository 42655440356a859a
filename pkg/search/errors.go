package search

import "errors"

var (
	// ErrConfiguration covers every problem found before a worker starts.
	ErrConfiguration = errors.New("invalid search configuration")
	// ErrWorkerFault means a worker died; the whole run is aborted.
	ErrWorkerFault = errors.New("search worker failed")
	// ErrNotFound is the negative result of a bounded search.
	ErrNotFound = errors.New("no matching nonce in search space")
	// ErrCancelled is returned when the caller's context ends the run.
	ErrCancelled = errors.New("search cancelled")
	// ErrExhausted is returned by an Allocator with nothing left to hand out.
	ErrExhausted = errors.New("nonce space exhausted")
)

// NoMatch reports whether err is a clean run end without a result.
func NoMatch(err error) bool {
	return errors.Is(err, ErrNotFound) || errors.Is(err, ErrCancelled)
}
