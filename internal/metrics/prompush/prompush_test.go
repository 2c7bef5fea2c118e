package prompush

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"sedump/internal/metrics"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

// readCounter reads the current value of a counter child for assertions.
func readCounter(t *testing.T, v *prometheus.CounterVec, labels ...string) float64 {
	t.Helper()

	m := &dto.Metric{}
	if err := v.WithLabelValues(labels...).Write(m); err != nil {
		t.Fatalf("Counter.Write: %v", err)
	}
	if m.GetCounter() == nil {
		t.Fatal("metric did not contain Counter value")
	}
	return m.GetCounter().GetValue()
}

func TestNewBackendValidation(t *testing.T) {
	t.Parallel()

	if _, err := NewBackend("job", ""); err == nil {
		t.Fatal("want error for empty gateway URL")
	}

	b, err := NewBackend("", "http://localhost:9091")
	if err != nil {
		t.Fatalf("NewBackend: %v", err)
	}
	if b.jobName != "sedump" {
		t.Fatalf("default job name = %q, want sedump", b.jobName)
	}
}

func TestBackendRouting(t *testing.T) {
	t.Parallel()

	b, err := NewBackend("job", "http://localhost:9091")
	if err != nil {
		t.Fatalf("NewBackend: %v", err)
	}

	b.IncCounter("dump_loads_total", 1, metrics.Labels{"table": "sites", "status": "success"})
	b.IncCounter("dump_rows_total", 7, metrics.Labels{"table": "sites", "kind": "inserted"})
	b.IncCounter("unknown_metric", 3, nil) // silently ignored
	b.ObserveDuration("dump_load_duration_seconds", 1.25, metrics.Labels{"table": "sites", "status": "success"})
	b.ObserveDuration("unknown_duration", 9, nil) // silently ignored

	if got := readCounter(t, b.loadCounter, "sites", "success"); got != 1 {
		t.Fatalf("load counter = %v, want 1", got)
	}
	if got := readCounter(t, b.rowCounter, "sites", "inserted"); got != 7 {
		t.Fatalf("row counter = %v, want 7", got)
	}
}

// TestFlushPushes verifies Flush performs an HTTP push of the registry.
func TestFlushPushes(t *testing.T) {
	t.Parallel()

	var gotPush bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPush = true
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	b, err := NewBackend("job", srv.URL)
	if err != nil {
		t.Fatalf("NewBackend: %v", err)
	}
	b.IncCounter("dump_loads_total", 1, metrics.Labels{"table": "sites", "status": "success"})

	if err := b.Flush(); err != nil {
		t.Fatalf("Flush: %v", err)
	}
	if !gotPush {
		t.Fatal("no push request received")
	}
}
