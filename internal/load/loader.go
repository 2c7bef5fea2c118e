// Package load implements the streaming dump loader: it drains one dump file
// into one destination table without materializing the file in memory.
//
// The data flow is a cooperative pull: the batch-insert step pulls rows from
// the parse step, which pulls tokens from the file. Peak memory is bounded by
// one in-flight batch regardless of file size.
//
// One call to Load runs inside exactly one store transaction and commits
// exactly once, at the end. There are no per-batch commits: a load either
// lands completely (minus filtered and duplicate-dropped rows) or not at all,
// up to the store's own transaction semantics on a fatal error.
package load

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"time"

	"sedump/internal/metrics"
	"sedump/internal/parser/dumpxml"
	"sedump/internal/schema"
	"sedump/internal/storage"
)

// DefaultBatchSize is the number of rows buffered between inserts when
// Options.BatchSize is unset.
const DefaultBatchSize = 1000

// Options tunes one Load call.
//
// The duplicate policy is not an option here: it belongs to the repository
// (storage.Config.ExistOK), whose engine decides whether constraint-rejected
// rows are dropped or surface as storage.ErrIntegrity. The loader only
// accounts for the outcome.
type Options struct {
	// BatchSize caps the rows buffered per insert. Defaults to
	// DefaultBatchSize.
	BatchSize int

	// Filter, when set, runs on every parsed row and may modify it or return
	// nil to drop the record entirely.
	Filter func(schema.Row) schema.Row

	// Progress, when set, receives (processed, advisoryTotal, label) per
	// record. Purely informational.
	Progress func(done, total int64, label string)

	// Label names the load in progress output; defaults to the table name.
	Label string
}

// Result is the accumulator for one Load call.
type Result struct {
	Read     int64 // records yielded by the source
	Inserted int64 // rows the store reports as inserted
	Skipped  int64 // rows dropped by the duplicate policy
	Filtered int64 // rows dropped by the caller's filter
}

// RowError carries the last successfully prepared row alongside a fatal store
// error, to aid debugging of which record triggered it.
type RowError struct {
	Table string
	Row   schema.Row
	Err   error
}

func (e *RowError) Error() string {
	return fmt.Sprintf("load %s: %v (last row: %v)", e.Table, e.Err, e.Row)
}

func (e *RowError) Unwrap() error { return e.Err }

// EnsureTable executes the descriptor's CREATE TABLE IF NOT EXISTS against
// the store. Idempotent; it fails only if the DDL is invalid or the store
// connection is unusable.
func EnsureTable(ctx context.Context, repo storage.Repository, t *schema.Table) error {
	ddl, err := t.CreateSQL()
	if err != nil {
		return err
	}
	if err := repo.Exec(ctx, ddl); err != nil {
		return fmt.Errorf("ensure table %s: %w", t.Name, err)
	}
	return nil
}

// Load streams the dump file at path into the table described by t.
//
// The source is consumed strictly forward, once, and released on every exit
// path. Fatal errors (parse failures, non-duplicate store errors, I/O errors)
// abort without committing; the advisory total from the pre-scan never
// affects correctness.
func Load(ctx context.Context, repo storage.Repository, t *schema.Table, path string, opts Options) (Result, error) {
	start := time.Now()
	res, err := run(ctx, repo, t, path, opts)

	metrics.RecordLoad(t.Name, err, time.Since(start))
	metrics.RecordRows(t.Name, "read", res.Read)
	metrics.RecordRows(t.Name, "inserted", res.Inserted)
	metrics.RecordRows(t.Name, "skipped", res.Skipped)
	metrics.RecordRows(t.Name, "filtered", res.Filtered)

	if err == nil {
		log.Printf("load %s: read=%d inserted=%d skipped=%d filtered=%d elapsed=%s",
			t.Name, res.Read, res.Inserted, res.Skipped, res.Filtered,
			time.Since(start).Truncate(time.Millisecond))
	}
	return res, err
}

func run(ctx context.Context, repo storage.Repository, t *schema.Table, path string, opts Options) (Result, error) {
	var res Result

	label := opts.Label
	if label == "" {
		label = t.Name
	}
	batchSize := opts.BatchSize
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}

	f, err := os.Open(path)
	if err != nil {
		return res, fmt.Errorf("load %s: %w", t.Name, err)
	}
	defer f.Close()

	// Advisory record count for progress display only. A failed pre-scan
	// costs nothing but the percentage readout.
	total, err := dumpxml.CountRecords(path)
	if err != nil {
		total = 0
	}

	sess, err := repo.Begin(ctx)
	if err != nil {
		return res, fmt.Errorf("load %s: %w", t.Name, err)
	}
	committed := false
	defer func() {
		if !committed {
			sess.Rollback()
		}
	}()

	var (
		rr    = dumpxml.NewRecordReader(bufio.NewReaderSize(f, 1<<20))
		batch = make([][]any, 0, batchSize)
		last  schema.Row
	)

	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		n, err := sess.InsertBatch(ctx, batch)
		res.Inserted += n
		if err != nil {
			if errors.Is(err, storage.ErrIntegrity) {
				return fmt.Errorf("load %s: %w", t.Name, err)
			}
			return &RowError{Table: t.Name, Row: last, Err: err}
		}
		res.Skipped += int64(len(batch)) - n
		batch = batch[:0]
		return nil
	}

	for {
		attrs, err := rr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return res, fmt.Errorf("load %s: %w", t.Name, err)
		}
		res.Read++

		row, err := t.ParseRow(attrs)
		if err != nil {
			return res, fmt.Errorf("load %s: %w", t.Name, err)
		}

		if opts.Filter != nil {
			if row = opts.Filter(row); row == nil {
				res.Filtered++
				continue
			}
		}

		last = row
		batch = append(batch, row)
		if len(batch) >= batchSize {
			if err := flush(); err != nil {
				return res, err
			}
		}

		if opts.Progress != nil {
			opts.Progress(res.Read, total, label)
		}
	}

	if err := flush(); err != nil {
		return res, err
	}
	if err := sess.Commit(ctx); err != nil {
		return res, fmt.Errorf("load %s: commit: %w", t.Name, err)
	}
	committed = true
	return res, nil
}
