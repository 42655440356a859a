// Package search runs the parallel nonce search: workers build candidate
// commits, hash them and race to publish the first match.
package search

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"runtime"
	"sync/atomic"
	"time"

	"gitvanity/pkg/core"
	"gitvanity/pkg/hashing"
	"gitvanity/pkg/types"

	"github.com/jonboulle/clockwork"
	"golang.org/x/sync/errgroup"
)

const (
	DefaultBatchSize      = 100
	DefaultReportInterval = 5 * time.Second
)

// Config describes one search run.
type Config struct {
	Template  *core.Template
	Algorithm hashing.Algorithm
	Target    hashing.Target

	// Workers defaults to runtime.NumCPU().
	Workers int
	// Start is the first nonce tried. Limit is an exclusive bound, zero
	// for an unbounded search. Both are ignored when Allocator is set.
	Start uint64
	Limit uint64
	// BatchSize is how many nonces a worker claims per trip to the
	// allocator.
	BatchSize uint64
	Allocator Allocator

	// ReportInterval defaults to 5s; negative disables reporting.
	ReportInterval time.Duration
	Out            io.Writer
	OnTick         func(Progress)
	Clock          clockwork.Clock
	Logger         *slog.Logger
}

// Coordinator owns the worker pool of a run.
type Coordinator struct {
	cfg     Config
	alloc   Allocator
	local   *NonceAllocator
	matcher hashing.Matcher
	state   atomic.Pointer[State]
}

// NewCoordinator validates cfg and fills in defaults. Every error wraps
// ErrConfiguration; nothing has been hashed when it returns.
func NewCoordinator(cfg Config) (*Coordinator, error) {
	if cfg.Template == nil {
		return nil, fmt.Errorf("%w: no commit template", ErrConfiguration)
	}
	if err := cfg.Target.Validate(cfg.Algorithm); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConfiguration, err)
	}
	if cfg.Workers < 0 {
		return nil, fmt.Errorf("%w: thread count must be positive, got %d", ErrConfiguration, cfg.Workers)
	}
	if cfg.Workers == 0 {
		cfg.Workers = runtime.NumCPU()
	}
	if cfg.Limit != 0 && cfg.Limit <= cfg.Start {
		return nil, fmt.Errorf("%w: limit %X is not above starting nonce %X", ErrConfiguration, cfg.Limit, cfg.Start)
	}
	if cfg.BatchSize == 0 {
		cfg.BatchSize = DefaultBatchSize
	}
	if cfg.ReportInterval == 0 {
		cfg.ReportInterval = DefaultReportInterval
	}
	if cfg.Out == nil {
		cfg.Out = io.Discard
	}
	if cfg.Clock == nil {
		cfg.Clock = clockwork.NewRealClock()
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	c := &Coordinator{cfg: cfg, alloc: cfg.Allocator, matcher: cfg.Target.Matcher()}
	if c.alloc == nil {
		c.local = NewNonceAllocator(cfg.Start, cfg.Limit)
		c.alloc = c.local
	}
	return c, nil
}

// Workers is the resolved worker count.
func (c *Coordinator) Workers() int { return c.cfg.Workers }

// Run searches until a match, exhaustion of a bounded space, cancellation
// of ctx or a worker failure. It returns only after every worker and the
// reporter have stopped.
func (c *Coordinator) Run(ctx context.Context) (*Result, error) {
	st := NewState(c.cfg.Clock.Now(), c.cfg.Workers)
	c.state.Store(st)

	log := c.cfg.Logger.With(slog.Int("workers", c.cfg.Workers), slog.String("target", c.cfg.Target.String()))
	log.Debug("search started", slog.Uint64("batch", c.cfg.BatchSize))

	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < c.cfg.Workers; i++ {
		id := i
		g.Go(func() error { return c.work(gctx, st, id) })
	}

	stop := make(chan struct{})
	reporterDone := make(chan struct{})
	if c.cfg.ReportInterval > 0 {
		r := &Reporter{
			Out:      c.cfg.Out,
			Clock:    c.cfg.Clock,
			Interval: c.cfg.ReportInterval,
			Progress: c.Progress,
			OnTick:   c.cfg.OnTick,
		}
		go func() {
			defer close(reporterDone)
			r.Run(stop)
		}()
	} else {
		close(reporterDone)
	}

	err := g.Wait()
	close(stop)
	<-reporterDone

	if err != nil {
		log.Error("search aborted", slog.Any("err", err))
		return nil, err
	}
	res := st.Result()
	if res == nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("%w: %w", ErrCancelled, context.Cause(ctx))
		}
		return nil, ErrNotFound
	}

	if f, ok := c.alloc.(Finisher); ok {
		if err := f.Finish(ctx, res); err != nil {
			log.Warn("failed to announce result to shared allocator", slog.Any("err", err))
		}
	}
	log.Debug("search finished", slog.Uint64("nonce", res.Nonce), slog.String("digest", res.Digest.String()))
	return res, nil
}

// Progress snapshots the current (or last) run.
func (c *Coordinator) Progress() Progress {
	st := c.state.Load()
	if st == nil {
		return Progress{}
	}
	p := Progress{
		Hashes:    st.Hashes(),
		LastNonce: st.LastNonce(),
		Elapsed:   st.Elapsed(c.cfg.Clock.Now()),
	}
	if c.local != nil {
		p.Next = st.watermark(c.local.Cursor())
		p.Resumable = true
	}
	return p
}

func (c *Coordinator) work(ctx context.Context, st *State, id int) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: worker %d: %v", ErrWorkerFault, id, r)
		}
	}()

	hasher := c.cfg.Algorithm.NewHasher()
	buf := make([]byte, 0, c.cfg.Template.MaxSize())

	for {
		if st.Found() || ctx.Err() != nil {
			return nil
		}

		if c.local != nil {
			// a lower bound until we know which block we got
			st.mark(id, c.local.Cursor())
		}
		first, count, err := c.alloc.Reserve(ctx, c.cfg.BatchSize)
		if err != nil {
			st.unmark(id)
			if errors.Is(err, ErrExhausted) || ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("worker %d: reserve nonces: %w", id, err)
		}
		st.mark(id, first)

		var done uint64
		for ; done < count; done++ {
			if st.Found() {
				break
			}
			nonce := first + done
			buf = c.cfg.Template.AppendObject(buf[:0], nonce)
			digest := hasher.Sum(buf)
			if !c.matcher.Match(digest) {
				continue
			}

			st.AddHashes(done + 1)
			st.lastNonce.Store(nonce)
			st.unmark(id)
			res := &Result{
				Nonce:  nonce,
				Object: bytes.Clone(buf),
				Digest: types.Hash(digest),
				Worker: id,
			}
			if st.Publish(res) {
				c.cfg.Logger.Debug("worker won", slog.Int("worker", id), slog.Uint64("nonce", nonce))
			}
			return nil
		}

		st.AddHashes(done)
		if done > 0 {
			st.lastNonce.Store(first + done - 1)
		}
		st.unmark(id)
	}
}
