package progress

import (
	"bytes"
	"strings"
	"testing"
	"time"
)

func newTestRenderer(buf *bytes.Buffer) *Renderer {
	return &Renderer{w: buf, tty: true, start: time.Now()}
}

func TestHookRendersCountsAndPercent(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	r := newTestRenderer(&buf)

	r.Hook()(1234, 10000, "users")

	out := buf.String()
	if !strings.Contains(out, "users: 1,234 / 10,000") {
		t.Fatalf("output = %q", out)
	}
	if !strings.Contains(out, "(12.3%)") {
		t.Fatalf("missing percent: %q", out)
	}
}

func TestHookWithoutTotal(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	r := newTestRenderer(&buf)

	r.Hook()(42, 0, "sites")

	out := buf.String()
	if !strings.Contains(out, "sites: 42") {
		t.Fatalf("output = %q", out)
	}
	if strings.Contains(out, "%") {
		t.Fatalf("unexpected percent with zero total: %q", out)
	}
}

func TestHookThrottles(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	r := newTestRenderer(&buf)
	r.interval = time.Hour

	hook := r.Hook()
	hook(1, 10, "posts")
	first := buf.Len()
	hook(2, 10, "posts")
	if buf.Len() != first {
		t.Fatal("second update within interval should be suppressed")
	}
}

func TestDoneTerminatesLine(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	r := newTestRenderer(&buf)

	r.Done(10, 10, "sites")
	if !strings.HasSuffix(buf.String(), "\n") {
		t.Fatalf("final render missing newline: %q", buf.String())
	}
}
