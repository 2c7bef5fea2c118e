package load

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"sedump/internal/parser/dumpxml"
	"sedump/internal/schema"
	"sedump/internal/storage"
)

type fakeSession struct {
	// insertFn overrides the default insert-everything behavior.
	insertFn   func(rows [][]any) (int64, error)
	batches    [][][]any
	committed  int
	rolledBack int
}

func (s *fakeSession) InsertBatch(_ context.Context, rows [][]any) (int64, error) {
	cp := make([][]any, len(rows))
	copy(cp, rows)
	s.batches = append(s.batches, cp)
	if s.insertFn != nil {
		return s.insertFn(rows)
	}
	return int64(len(rows)), nil
}

func (s *fakeSession) Commit(context.Context) error { s.committed++; return nil }
func (s *fakeSession) Rollback()                    { s.rolledBack++ }

type fakeRepo struct {
	execs    []string
	execErr  error
	beginErr error
	sess     *fakeSession
}

func (r *fakeRepo) Exec(_ context.Context, sql string) error {
	r.execs = append(r.execs, sql)
	return r.execErr
}

func (r *fakeRepo) Begin(context.Context) (storage.Session, error) {
	if r.beginErr != nil {
		return nil, r.beginErr
	}
	return r.sess, nil
}

func (r *fakeRepo) Close() {}

func testTable() *schema.Table {
	return &schema.Table{
		Name: "things",
		Columns: []schema.Column{
			{Name: "id", Attr: "Id", Type: "INTEGER"},
			{Name: "site_id", Type: "INTEGER"},
			{Name: "label", Attr: "Label", Type: "TEXT"},
		},
		Constraints: []string{"PRIMARY KEY (id, site_id)"},
	}
}

// writeDump writes a well-formed dump file whose record lines are given
// verbatim (each a self-closing XML element).
func writeDump(t *testing.T, records ...string) string {
	t.Helper()
	var sb strings.Builder
	sb.WriteString("<?xml version=\"1.0\" encoding=\"utf-8\"?>\n<things>\n")
	for _, r := range records {
		sb.WriteString("  " + r + "\n")
	}
	sb.WriteString("</things>\n")

	path := filepath.Join(t.TempDir(), "Things.xml")
	if err := os.WriteFile(path, []byte(sb.String()), 0o644); err != nil {
		t.Fatalf("write dump: %v", err)
	}
	return path
}

func recordLines(n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = fmt.Sprintf(`<row Id="%d" Label="r%d" />`, i+1, i+1)
	}
	return out
}

func TestLoadBasic(t *testing.T) {
	t.Parallel()

	path := writeDump(t, recordLines(7)...)
	repo := &fakeRepo{sess: &fakeSession{}}

	res, err := Load(context.Background(), repo, testTable(), path, Options{BatchSize: 3})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if res.Read != 7 || res.Inserted != 7 || res.Skipped != 0 || res.Filtered != 0 {
		t.Fatalf("result = %+v", res)
	}
	if got := len(repo.sess.batches); got != 3 {
		t.Fatalf("batches = %d, want 3 (3+3+1)", got)
	}
	if repo.sess.committed != 1 {
		t.Fatalf("committed %d times, want exactly 1", repo.sess.committed)
	}
	if repo.sess.rolledBack != 0 {
		t.Fatalf("rolled back %d times, want 0", repo.sess.rolledBack)
	}

	// Rows arrive in descriptor order with coerced types.
	first := repo.sess.batches[0][0]
	if first[0] != int64(1) || first[1] != nil || first[2] != "r1" {
		t.Fatalf("first row = %v", first)
	}
}

func TestLoadFilterDropAll(t *testing.T) {
	t.Parallel()

	path := writeDump(t, recordLines(4)...)
	repo := &fakeRepo{sess: &fakeSession{}}

	res, err := Load(context.Background(), repo, testTable(), path, Options{
		Filter: func(schema.Row) schema.Row { return nil },
	})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if res.Inserted != 0 || res.Filtered != 4 {
		t.Fatalf("result = %+v", res)
	}
	// A fully filtered load still commits.
	if repo.sess.committed != 1 {
		t.Fatalf("committed %d times, want 1", repo.sess.committed)
	}
}

func TestLoadFilterStamps(t *testing.T) {
	t.Parallel()

	path := writeDump(t, recordLines(2)...)
	repo := &fakeRepo{sess: &fakeSession{}}
	tbl := testTable()
	siteCol := tbl.Col("site_id")

	_, err := Load(context.Background(), repo, tbl, path, Options{
		Filter: func(row schema.Row) schema.Row {
			row[siteCol] = int64(42)
			return row
		},
	})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	for _, row := range repo.sess.batches[0] {
		if row[siteCol] != int64(42) {
			t.Fatalf("row not stamped: %v", row)
		}
	}
}

// TestLoadBadInteger ensures a non-numeric integer attribute aborts the whole
// load with a *schema.ParseError and nothing is committed.
func TestLoadBadInteger(t *testing.T) {
	t.Parallel()

	path := writeDump(t,
		`<row Id="1" Label="ok" />`,
		`<row Id="oops" Label="bad" />`,
		`<row Id="3" Label="never reached" />`,
	)
	repo := &fakeRepo{sess: &fakeSession{}}

	_, err := Load(context.Background(), repo, testTable(), path, Options{})
	var pe *schema.ParseError
	if !errors.As(err, &pe) {
		t.Fatalf("err = %v, want *schema.ParseError", err)
	}
	if repo.sess.committed != 0 {
		t.Fatal("fatal parse error must not commit")
	}
	if repo.sess.rolledBack != 1 {
		t.Fatalf("rolled back %d times, want 1", repo.sess.rolledBack)
	}
}

func TestLoadMalformedRecord(t *testing.T) {
	t.Parallel()

	path := writeDump(t,
		`<row Id="1" />`,
		`<row Id=oops />`,
	)
	repo := &fakeRepo{sess: &fakeSession{}}

	_, err := Load(context.Background(), repo, testTable(), path, Options{})
	var pe *dumpxml.ParseError
	if !errors.As(err, &pe) {
		t.Fatalf("err = %v, want *dumpxml.ParseError", err)
	}
	if repo.sess.committed != 0 {
		t.Fatal("malformed record must not commit")
	}
}

// TestLoadDuplicateFatal covers the exist_ok=false policy: the integrity
// violation surfaces and aborts the load.
func TestLoadDuplicateFatal(t *testing.T) {
	t.Parallel()

	path := writeDump(t, recordLines(5)...)
	dup := storage.MarkIntegrity(errors.New("UNIQUE constraint failed"))
	repo := &fakeRepo{sess: &fakeSession{
		insertFn: func(rows [][]any) (int64, error) { return 2, dup },
	}}

	res, err := Load(context.Background(), repo, testTable(), path, Options{})
	if !errors.Is(err, storage.ErrIntegrity) {
		t.Fatalf("err = %v, want ErrIntegrity", err)
	}
	if repo.sess.committed != 0 {
		t.Fatal("integrity failure must not commit")
	}
	if res.Inserted != 2 {
		t.Fatalf("inserted = %d, want 2 (rows before the violation)", res.Inserted)
	}
}

// TestLoadDuplicateTolerated covers exist_ok=true: a repository opened with
// the tolerant policy drops duplicate rows itself, the load finishes, and the
// shrink is reported as Skipped. The policy lives entirely in the repository;
// Options carries no duplicate knob.
func TestLoadDuplicateTolerated(t *testing.T) {
	t.Parallel()

	path := writeDump(t, recordLines(5)...)
	// Simulate one duplicate dropped by the store's insert-or-ignore.
	repo := &fakeRepo{sess: &fakeSession{
		insertFn: func(rows [][]any) (int64, error) { return int64(len(rows)) - 1, nil },
	}}

	res, err := Load(context.Background(), repo, testTable(), path, Options{})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if res.Inserted != 4 || res.Skipped != 1 {
		t.Fatalf("result = %+v, want inserted=4 skipped=1", res)
	}
	if repo.sess.committed != 1 {
		t.Fatal("tolerated duplicates must still commit")
	}
}

// TestLoadFatalStoreError ensures non-integrity store failures carry the last
// prepared row for diagnosis.
func TestLoadFatalStoreError(t *testing.T) {
	t.Parallel()

	path := writeDump(t, recordLines(3)...)
	boom := errors.New("disk I/O error")
	repo := &fakeRepo{sess: &fakeSession{
		insertFn: func([][]any) (int64, error) { return 0, boom },
	}}

	_, err := Load(context.Background(), repo, testTable(), path, Options{})
	var re *RowError
	if !errors.As(err, &re) {
		t.Fatalf("err = %v, want *RowError", err)
	}
	if !errors.Is(err, boom) {
		t.Fatalf("underlying error lost: %v", err)
	}
	if re.Table != "things" || len(re.Row) != 3 || re.Row[0] != int64(3) {
		t.Fatalf("RowError context = %+v", re)
	}
	if repo.sess.committed != 0 {
		t.Fatal("fatal store error must not commit")
	}
}

func TestLoadProgress(t *testing.T) {
	t.Parallel()

	path := writeDump(t, recordLines(4)...)
	repo := &fakeRepo{sess: &fakeSession{}}

	var calls int64
	var lastDone, lastTotal int64
	var lastLabel string
	_, err := Load(context.Background(), repo, testTable(), path, Options{
		Label: "things pass 1",
		Progress: func(done, total int64, label string) {
			calls++
			if done < lastDone {
				t.Fatalf("progress went backwards: %d after %d", done, lastDone)
			}
			lastDone, lastTotal, lastLabel = done, total, label
		},
	})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if calls != 4 || lastDone != 4 {
		t.Fatalf("progress calls=%d lastDone=%d, want 4/4", calls, lastDone)
	}
	if lastTotal != 4 {
		t.Fatalf("advisory total = %d, want 4", lastTotal)
	}
	if lastLabel != "things pass 1" {
		t.Fatalf("label = %q", lastLabel)
	}
}

func TestLoadMissingFile(t *testing.T) {
	t.Parallel()

	repo := &fakeRepo{sess: &fakeSession{}}
	_, err := Load(context.Background(), repo, testTable(), filepath.Join(t.TempDir(), "nope.xml"), Options{})
	if err == nil {
		t.Fatal("want error for missing source file")
	}
	if len(repo.sess.batches) != 0 {
		t.Fatal("no inserts expected for missing source")
	}
}

func TestEnsureTable(t *testing.T) {
	t.Parallel()

	repo := &fakeRepo{sess: &fakeSession{}}
	tbl := testTable()
	if err := EnsureTable(context.Background(), repo, tbl); err != nil {
		t.Fatalf("EnsureTable: %v", err)
	}
	if len(repo.execs) != 1 || !strings.HasPrefix(repo.execs[0], "CREATE TABLE IF NOT EXISTS things") {
		t.Fatalf("execs = %v", repo.execs)
	}

	// Idempotent at this layer too: a second call issues the same statement.
	if err := EnsureTable(context.Background(), repo, tbl); err != nil {
		t.Fatalf("EnsureTable second call: %v", err)
	}
	if len(repo.execs) != 2 {
		t.Fatalf("execs = %v", repo.execs)
	}

	repo.execErr = errors.New("connection lost")
	if err := EnsureTable(context.Background(), repo, tbl); err == nil {
		t.Fatal("want error when store exec fails")
	}
}
