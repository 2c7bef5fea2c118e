// Package progress renders load progress for the CLI. It is purely
// observational: the hooks it hands to the loader never influence control
// flow or results, and the totals it displays are advisory estimates.
package progress

import (
	"fmt"
	"io"
	"log"
	"os"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
)

// Renderer writes progress for one or more sequential loads. On a terminal it
// rewrites a single status line; otherwise it falls back to occasional log
// lines so batch runs don't flood their output.
type Renderer struct {
	mu       sync.Mutex
	w        io.Writer
	tty      bool
	interval time.Duration
	last     time.Time
	start    time.Time
}

// New builds a Renderer writing to stderr.
func New() *Renderer {
	r := &Renderer{
		w:        os.Stderr,
		tty:      isTerminal(os.Stderr.Fd()),
		interval: 10 * time.Second,
		start:    time.Now(),
	}
	if r.tty {
		r.interval = 200 * time.Millisecond
	}
	return r
}

// Hook returns a loader progress callback. Updates are throttled to the
// renderer's interval; the advisory total may be zero, in which case only the
// processed count is shown.
func (r *Renderer) Hook() func(done, total int64, label string) {
	return func(done, total int64, label string) {
		r.mu.Lock()
		defer r.mu.Unlock()
		if time.Since(r.last) < r.interval {
			return
		}
		r.last = time.Now()
		r.render(done, total, label, false)
	}
}

// Done finalizes the status line for one load: on a terminal the in-place
// line is completed with a newline, otherwise a summary log line is emitted.
func (r *Renderer) Done(done, total int64, label string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.render(done, total, label, true)
}

func (r *Renderer) render(done, total int64, label string, final bool) {
	if !r.tty {
		log.Printf("progress: %s processed=%s total=%s elapsed=%s",
			label,
			humanize.Comma(done),
			humanize.Comma(total),
			time.Since(r.start).Truncate(time.Second),
		)
		return
	}

	if total > 0 {
		pct := float64(done) / float64(total) * 100
		fmt.Fprintf(r.w, "\r%s: %s / %s (%.1f%%)   ",
			label, humanize.Comma(done), humanize.Comma(total), pct)
	} else {
		fmt.Fprintf(r.w, "\r%s: %s   ", label, humanize.Comma(done))
	}
	if final {
		fmt.Fprintln(r.w)
	}
}
