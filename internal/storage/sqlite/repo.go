// Package sqlite implements a SQLite-backed storage.Repository using
// database/sql and the modernc.org/sqlite driver. SQLite has no dedicated
// bulk-load API; batched INSERTs through one prepared statement inside the
// load transaction keep performance acceptable for dump-sized volumes.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"sedump/internal/storage"

	sqlite "modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// Config holds SQLite repository configuration derived from storage.Config.
type Config struct {
	// DSN is a SQLite connection string or file path, e.g.:
	//   "file:dump.db?_pragma=foreign_keys(1)"
	//   "dump.db"
	DSN string

	// Table is the destination table name.
	Table string

	// Columns is the ordered list of destination columns.
	Columns []string

	// ExistOK switches inserts to INSERT OR IGNORE, so constraint-rejected
	// rows are dropped by the engine instead of surfacing as errors.
	ExistOK bool
}

// Repository is a SQLite-backed implementation of storage.Repository.
type Repository struct {
	db  *sql.DB
	cfg Config
}

// NewRepository opens a SQLite connection using the provided DSN and returns
// a Repository plus a Close function for cleanup.
func NewRepository(ctx context.Context, cfg Config) (*Repository, func(), error) {
	if strings.TrimSpace(cfg.DSN) == "" {
		return nil, nil, fmt.Errorf("sqlite: DSN must not be empty")
	}
	if strings.TrimSpace(cfg.Table) == "" {
		return nil, nil, fmt.Errorf("sqlite: table must not be empty")
	}

	db, err := sql.Open("sqlite", cfg.DSN)
	if err != nil {
		return nil, nil, fmt.Errorf("sqlite: open: %w", err)
	}

	// The loader is single-writer by design; a single connection also keeps
	// in-memory databases coherent across Exec and Begin.
	db.SetMaxOpenConns(1)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, nil, fmt.Errorf("sqlite: ping: %w", err)
	}

	// Enforce the descriptors' FOREIGN KEY clauses; SQLite defaults them off.
	if _, err := db.ExecContext(ctx, "PRAGMA foreign_keys = ON;"); err != nil {
		db.Close()
		return nil, nil, fmt.Errorf("sqlite: enable foreign keys: %w", err)
	}

	closeFn := func() { db.Close() }
	return &Repository{db: db, cfg: cfg}, closeFn, nil
}

// Exec executes an arbitrary SQL statement (typically DDL) outside any load
// transaction.
func (r *Repository) Exec(ctx context.Context, stmt string) error {
	if strings.TrimSpace(stmt) == "" {
		return nil
	}
	if _, err := r.db.ExecContext(ctx, stmt); err != nil {
		return fmt.Errorf("sqlite: exec: %w", err)
	}
	return nil
}

// insertSQL builds the positional insert statement for the configured table:
//
//	INSERT [OR IGNORE] INTO table (c1, c2, ...) VALUES (?, ?, ...)
func (r *Repository) insertSQL() string {
	verb := "INSERT"
	if r.cfg.ExistOK {
		verb = "INSERT OR IGNORE"
	}
	placeholders := make([]string, len(r.cfg.Columns))
	for i := range placeholders {
		placeholders[i] = "?"
	}
	return fmt.Sprintf("%s INTO %s (%s) VALUES (%s)",
		verb,
		r.cfg.Table,
		strings.Join(r.cfg.Columns, ", "),
		strings.Join(placeholders, ", "),
	)
}

// Begin opens the load transaction and prepares the insert statement once for
// its whole lifetime. Foreign-key checks are deferred to commit: dump files
// contain forward references (a question precedes its accepted answer), so
// immediate checking would reject well-formed input. The pragma resets itself
// when the transaction ends.
func (r *Repository) Begin(ctx context.Context) (*Session, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("sqlite: begin tx: %w", err)
	}
	if _, err := tx.ExecContext(ctx, "PRAGMA defer_foreign_keys = ON;"); err != nil {
		_ = tx.Rollback()
		return nil, fmt.Errorf("sqlite: defer foreign keys: %w", err)
	}
	stmt, err := tx.PrepareContext(ctx, r.insertSQL())
	if err != nil {
		_ = tx.Rollback()
		return nil, fmt.Errorf("sqlite: prepare insert: %w", err)
	}
	return &Session{tx: tx, stmt: stmt, columns: len(r.cfg.Columns)}, nil
}

// Session is one load transaction against a SQLite database.
type Session struct {
	tx      *sql.Tx
	stmt    *sql.Stmt
	columns int
	done    bool
}

// InsertBatch executes the prepared insert for each row. With OR IGNORE the
// engine drops constraint-rejected rows and RowsAffected reports the shrink;
// without it the first violation is returned marked as ErrIntegrity.
func (s *Session) InsertBatch(ctx context.Context, rows [][]any) (int64, error) {
	var inserted int64
	for _, row := range rows {
		if len(row) != s.columns {
			return inserted, fmt.Errorf("sqlite: row length %d != column count %d", len(row), s.columns)
		}
		res, err := s.stmt.ExecContext(ctx, row...)
		if err != nil {
			if isConstraintErr(err) {
				return inserted, storage.MarkIntegrity(err)
			}
			return inserted, fmt.Errorf("sqlite: insert: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return inserted, fmt.Errorf("sqlite: rows affected: %w", err)
		}
		inserted += n
	}
	return inserted, nil
}

// Commit commits the load transaction.
func (s *Session) Commit(ctx context.Context) error {
	_ = ctx
	s.done = true
	_ = s.stmt.Close()
	if err := s.tx.Commit(); err != nil {
		return fmt.Errorf("sqlite: commit: %w", err)
	}
	return nil
}

// Rollback abandons the transaction; it is a no-op after Commit.
func (s *Session) Rollback() {
	if s.done {
		return
	}
	s.done = true
	_ = s.stmt.Close()
	_ = s.tx.Rollback()
}

// isConstraintErr reports whether err is a SQLite constraint rejection
// (primary result code SQLITE_CONSTRAINT, any extended code).
func isConstraintErr(err error) bool {
	var se *sqlite.Error
	if !errors.As(err, &se) {
		return false
	}
	return se.Code()&0xff == sqlite3.SQLITE_CONSTRAINT
}
