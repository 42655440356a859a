package journal

import (
	"context"
	"log/slog"

	"gitvanity/pkg/hashing"
	"gitvanity/pkg/refs"
	"gitvanity/pkg/search"

	"github.com/jonboulle/clockwork"
)

// Recorder is a search.Writer that records a Receipt after Next has
// written the commit. A failed receipt is logged, never returned: the
// commit is already in place by then.
type Recorder struct {
	Next      search.Writer
	Journal   *Journal
	Base      refs.Head
	Algorithm hashing.Algorithm
	Target    hashing.Target
	Progress  func() search.Progress
	Clock     clockwork.Clock
	Logger    *slog.Logger
}

func (r *Recorder) WriteCommit(ctx context.Context, res *search.Result) error {
	if err := r.Next.WriteCommit(ctx, res); err != nil {
		return err
	}

	var prog search.Progress
	if r.Progress != nil {
		prog = r.Progress()
	}
	rec := Receipt{
		Old:       r.Base.ID,
		New:       res.Digest,
		Ref:       r.Base.Name.String(),
		Nonce:     res.Nonce,
		Algorithm: r.Algorithm.String(),
		Prefix:    r.Target.Prefix,
		Message:   r.Target.Message,
		Hashes:    prog.Hashes,
		Duration:  prog.Elapsed,
		CreatedAt: r.Clock.Now(),
	}
	if err := r.Journal.RecordReceipt(ctx, rec); err != nil && r.Logger != nil {
		r.Logger.Warn("failed to record receipt", slog.String("commit", res.Digest.String()), slog.Any("err", err))
	}
	return nil
}
