package search

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/jonboulle/clockwork"
)

// Reporter prints the hash rate and most recent nonce on every tick.
type Reporter struct {
	Out      io.Writer
	Clock    clockwork.Clock
	Interval time.Duration
	Progress func() Progress
	// OnTick runs after the line is printed, with Rate filled in.
	OnTick func(Progress)
}

// Run blocks until stop is closed. A tick that arrives together with stop
// is dropped so nothing is printed after the run ended.
func (r *Reporter) Run(stop <-chan struct{}) {
	prevAt := r.Clock.Now()
	tk := r.Clock.NewTicker(r.Interval)
	defer tk.Stop()

	var prevHashes uint64
	for {
		select {
		case <-stop:
			return
		case now := <-tk.Chan():
			select {
			case <-stop:
				return
			default:
			}

			p := r.Progress()
			if dt := now.Sub(prevAt).Seconds(); dt > 0 {
				p.Rate = float64(p.Hashes-prevHashes) / dt
			}
			prevAt, prevHashes = now, p.Hashes

			fmt.Fprintf(r.Out, "Hashes per second: %s\tMost recent nonce: %X\n", FormatRate(p.Rate), p.LastNonce)
			if r.OnTick != nil {
				r.OnTick(p)
			}
		}
	}
}

// FormatRate abbreviates a per-second rate: 950, 50K, 1.2M.
func FormatRate(rate float64) string {
	if rate < 1000 {
		return fmt.Sprintf("%.0f", rate)
	}
	v, unit := humanize.ComputeSI(rate)
	return humanize.FtoaWithDigits(v, 1) + strings.ToUpper(unit)
}
