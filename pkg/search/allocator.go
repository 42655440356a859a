package search

import (
	"context"
	"math"
	"sync/atomic"
)

// Allocator hands out disjoint blocks of nonces. Implementations must be
// safe for concurrent use and must never return the same nonce twice.
type Allocator interface {
	// Reserve claims up to n nonces and returns the block [first, first+count).
	// count is only smaller than n at the end of a bounded space. Once
	// nothing is left it returns ErrExhausted.
	Reserve(ctx context.Context, n uint64) (first, count uint64, err error)
}

// Finisher is implemented by allocators shared with other processes that
// need to learn about a win.
type Finisher interface {
	Finish(ctx context.Context, res *Result) error
}

// NonceAllocator is the in-process cursor over the nonce space.
type NonceAllocator struct {
	cursor atomic.Uint64
	limit  uint64
}

// NewNonceAllocator starts at start. limit is an exclusive upper bound;
// zero means the whole uint64 range.
func NewNonceAllocator(start, limit uint64) *NonceAllocator {
	if limit == 0 {
		limit = math.MaxUint64
	}
	a := &NonceAllocator{limit: limit}
	a.cursor.Store(start)
	return a
}

// Next returns one nonce. ok is false once the space is exhausted.
func (a *NonceAllocator) Next() (nonce uint64, ok bool) {
	first, count := a.reserve(1)
	return first, count == 1
}

func (a *NonceAllocator) Reserve(_ context.Context, n uint64) (uint64, uint64, error) {
	first, count := a.reserve(n)
	if count == 0 {
		return 0, 0, ErrExhausted
	}
	return first, count, nil
}

// reserve is a CAS loop rather than Add so the cursor never wraps and never
// moves past the limit.
func (a *NonceAllocator) reserve(n uint64) (uint64, uint64) {
	if n == 0 {
		n = 1
	}
	for {
		cur := a.cursor.Load()
		if cur >= a.limit {
			return 0, 0
		}
		count := min(n, a.limit-cur)
		if a.cursor.CompareAndSwap(cur, cur+count) {
			return cur, count
		}
	}
}

// Cursor is the next nonce that has not been handed out.
func (a *NonceAllocator) Cursor() uint64 { return a.cursor.Load() }
