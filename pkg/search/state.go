package search

import (
	"math"
	"sync/atomic"
	"time"

	"gitvanity/pkg/core"
	"gitvanity/pkg/types"
)

// Result is the winning candidate. Object holds the exact bytes that were
// hashed, header included.
type Result struct {
	Nonce  uint64
	Object []byte
	Digest types.Hash
	Worker int
}

// Body returns the object without its "commit <size>\x00" header.
func (r *Result) Body() ([]byte, error) {
	_, body, err := core.SplitObject(r.Object)
	return body, err
}

// State is shared by all workers of one run. The result pointer is the
// found flag: it goes from nil to a complete Result exactly once.
type State struct {
	result    atomic.Pointer[Result]
	hashes    atomic.Uint64
	lastNonce atomic.Uint64
	start     time.Time

	// marks[i] is a lower bound on the nonces worker i still has to check,
	// idle when it holds markIdle.
	marks []atomic.Uint64
}

const markIdle = math.MaxUint64

func NewState(start time.Time, workers int) *State {
	s := &State{start: start, marks: make([]atomic.Uint64, workers)}
	for i := range s.marks {
		s.marks[i].Store(markIdle)
	}
	return s
}

func (s *State) Found() bool { return s.result.Load() != nil }

// Publish records r if no result exists yet. Exactly one call per State
// returns true; every other caller must discard its result.
func (s *State) Publish(r *Result) bool {
	return s.result.CompareAndSwap(nil, r)
}

// Result returns the published result or nil.
func (s *State) Result() *Result { return s.result.Load() }

func (s *State) AddHashes(n uint64) { s.hashes.Add(n) }

func (s *State) Hashes() uint64 { return s.hashes.Load() }

// LastNonce is the most recent nonce any worker finished. Best effort.
func (s *State) LastNonce() uint64 { return s.lastNonce.Load() }

func (s *State) Elapsed(now time.Time) time.Duration { return now.Sub(s.start) }

func (s *State) mark(worker int, nonce uint64) { s.marks[worker].Store(nonce) }

func (s *State) unmark(worker int) { s.marks[worker].Store(markIdle) }

// watermark returns the smallest nonce that may still be unchecked. cursor
// must be read before the marks.
func (s *State) watermark(cursor uint64) uint64 {
	low := cursor
	for i := range s.marks {
		low = min(low, s.marks[i].Load())
	}
	return low
}

// Progress is a point-in-time view of a run.
type Progress struct {
	Hashes    uint64
	LastNonce uint64
	Elapsed   time.Duration
	// Rate is hashes per second over the last report interval.
	Rate float64
	// Next is the nonce a resumed run can safely start from. Valid only
	// when Resumable is set.
	Next      uint64
	Resumable bool
}
