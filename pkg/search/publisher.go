package search

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/dustin/go-humanize"
)

// Writer stores an accepted result, normally as the new HEAD commit.
type Writer interface {
	WriteCommit(ctx context.Context, res *Result) error
}

// Publisher reports the outcome of a run and hands a win to Writer. A nil
// Writer means dry run.
type Publisher struct {
	Out    io.Writer
	Writer Writer
	Logger *slog.Logger
}

// Publish consumes the return values of Coordinator.Run. A clean run
// without a result is not an error; any other runErr is returned as is.
func (p *Publisher) Publish(ctx context.Context, res *Result, prog Progress, runErr error) error {
	if runErr != nil {
		if NoMatch(runErr) {
			fmt.Fprintln(p.Out, "No thread returned a result.")
			p.summary(prog)
			return nil
		}
		return runErr
	}
	if res == nil {
		fmt.Fprintln(p.Out, "No thread returned a result.")
		return nil
	}

	fmt.Fprintf(p.Out, "A thread found: %X\n", res.Nonce)
	fmt.Fprintf(p.Out, "Found commit %s\n", res.Digest)
	p.summary(prog)

	if p.Writer == nil {
		fmt.Fprintln(p.Out, "Dry run, repository left untouched.")
		return nil
	}
	if err := p.Writer.WriteCommit(ctx, res); err != nil {
		return fmt.Errorf("write commit %s: %w", res.Digest.Short(), err)
	}
	if p.Logger != nil {
		p.Logger.Info("commit written", slog.String("id", res.Digest.String()), slog.Uint64("nonce", res.Nonce))
	}
	return nil
}

func (p *Publisher) summary(prog Progress) {
	if prog.Hashes == 0 {
		return
	}
	fmt.Fprintf(p.Out, "Tried %s hashes in %s\n", humanize.Comma(int64(prog.Hashes)), prog.Elapsed.Round(time.Millisecond))
}
