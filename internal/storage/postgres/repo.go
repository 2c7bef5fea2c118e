// Package postgres implements a Postgres-backed storage.Repository using pgx
// v5. Inserts run as pipelined batches inside the single load transaction;
// duplicate tolerance uses ON CONFLICT DO NOTHING plus a savepoint fallback
// that skips exactly the offending rows, so a bad batch never wedges the
// transaction or resubmits rows forever.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"sedump/internal/storage"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Config holds Postgres repository configuration.
type Config struct {
	DSN     string   // connection string for pgxpool
	Table   string   // target table name, optionally schema-qualified
	Columns []string // ordered columns for INSERT
	ExistOK bool     // duplicate policy, see storage.Config.ExistOK
}

// Repository is a Postgres-backed implementation of storage.Repository.
type Repository struct {
	pool *pgxpool.Pool
	cfg  Config
}

// NewRepository constructs a Repository and returns a Close function for
// cleanup.
func NewRepository(ctx context.Context, cfg Config) (*Repository, func(), error) {
	if strings.TrimSpace(cfg.Table) == "" {
		return nil, nil, fmt.Errorf("postgres: table must not be empty")
	}
	pool, err := pgxpool.New(ctx, cfg.DSN)
	if err != nil {
		return nil, nil, fmt.Errorf("postgres: pgxpool: %w", err)
	}
	closeFn := func() { pool.Close() }
	return &Repository{pool: pool, cfg: cfg}, closeFn, nil
}

// Exec executes an arbitrary SQL statement (typically DDL) outside any load
// transaction.
func (r *Repository) Exec(ctx context.Context, stmt string) error {
	if strings.TrimSpace(stmt) == "" {
		return nil
	}
	if _, err := r.pool.Exec(ctx, stmt); err != nil {
		return fmt.Errorf("postgres: exec: %w", err)
	}
	return nil
}

// insertSQL builds the positional insert statement:
//
//	INSERT INTO table (c1, c2, ...) VALUES ($1, $2, ...) [ON CONFLICT DO NOTHING]
func (r *Repository) insertSQL() string {
	placeholders := make([]string, len(r.cfg.Columns))
	for i := range placeholders {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
	}
	sql := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		pgFQN(r.cfg.Table),
		strings.Join(mapIdent(r.cfg.Columns), ", "),
		strings.Join(placeholders, ", "),
	)
	if r.cfg.ExistOK {
		sql += " ON CONFLICT DO NOTHING"
	}
	return sql
}

// Begin acquires a dedicated connection and opens the load transaction on it.
// Deferrable constraints (the descriptors declare their foreign keys
// DEFERRABLE) are pushed to commit time: dump files contain forward
// references, so immediate checking would reject well-formed input.
func (r *Repository) Begin(ctx context.Context) (*Session, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("postgres: acquire: %w", err)
	}
	tx, err := conn.Begin(ctx)
	if err != nil {
		conn.Release()
		return nil, fmt.Errorf("postgres: begin tx: %w", err)
	}
	if _, err := tx.Exec(ctx, "SET CONSTRAINTS ALL DEFERRED"); err != nil {
		_ = tx.Rollback(ctx)
		conn.Release()
		return nil, fmt.Errorf("postgres: defer constraints: %w", err)
	}
	return &Session{
		conn:      conn,
		tx:        tx,
		insertSQL: r.insertSQL(),
		columns:   len(r.cfg.Columns),
		existOK:   r.cfg.ExistOK,
	}, nil
}

// Session is one load transaction against a Postgres database.
type Session struct {
	conn      *pgxpool.Conn
	tx        pgx.Tx
	insertSQL string
	columns   int
	existOK   bool
	done      bool
}

// InsertBatch pipelines one INSERT per row via pgx's batch API, guarded by a
// savepoint. ON CONFLICT DO NOTHING absorbs uniqueness conflicts; an
// integrity error the clause cannot cover (e.g. a foreign-key violation)
// rolls the batch back to the savepoint and, when ExistOK is set, replays the
// rows one at a time under nested savepoints so only the offending rows are
// dropped.
func (s *Session) InsertBatch(ctx context.Context, rows [][]any) (int64, error) {
	if len(rows) == 0 {
		return 0, nil
	}
	for _, row := range rows {
		if len(row) != s.columns {
			return 0, fmt.Errorf("postgres: row length %d != column count %d", len(row), s.columns)
		}
	}

	if _, err := s.tx.Exec(ctx, "SAVEPOINT batch"); err != nil {
		return 0, fmt.Errorf("postgres: savepoint: %w", err)
	}

	n, err := s.sendBatch(ctx, rows)
	if err == nil {
		if _, err := s.tx.Exec(ctx, "RELEASE SAVEPOINT batch"); err != nil {
			return n, fmt.Errorf("postgres: release savepoint: %w", err)
		}
		return n, nil
	}

	if _, rbErr := s.tx.Exec(ctx, "ROLLBACK TO SAVEPOINT batch"); rbErr != nil {
		return 0, fmt.Errorf("postgres: rollback to savepoint: %w", rbErr)
	}
	if !isIntegrityErr(err) {
		return 0, fmt.Errorf("postgres: insert batch: %w", err)
	}
	if !s.existOK {
		return 0, storage.MarkIntegrity(err)
	}
	return s.insertRowwise(ctx, rows)
}

// sendBatch pipelines the whole batch and sums affected-row counts.
func (s *Session) sendBatch(ctx context.Context, rows [][]any) (int64, error) {
	b := &pgx.Batch{}
	for _, row := range rows {
		b.Queue(s.insertSQL, row...)
	}
	br := s.tx.SendBatch(ctx, b)

	var inserted int64
	for range rows {
		tag, err := br.Exec()
		if err != nil {
			_ = br.Close()
			return inserted, err
		}
		inserted += tag.RowsAffected()
	}
	if err := br.Close(); err != nil {
		return inserted, err
	}
	return inserted, nil
}

// insertRowwise replays rows individually, each under its own savepoint, and
// skips the ones the store rejects on integrity grounds. This guarantees
// forward progress: every row is submitted exactly once.
func (s *Session) insertRowwise(ctx context.Context, rows [][]any) (int64, error) {
	var inserted int64
	for _, row := range rows {
		if _, err := s.tx.Exec(ctx, "SAVEPOINT row"); err != nil {
			return inserted, fmt.Errorf("postgres: savepoint: %w", err)
		}
		tag, err := s.tx.Exec(ctx, s.insertSQL, row...)
		if err != nil {
			if _, rbErr := s.tx.Exec(ctx, "ROLLBACK TO SAVEPOINT row"); rbErr != nil {
				return inserted, fmt.Errorf("postgres: rollback to savepoint: %w", rbErr)
			}
			if isIntegrityErr(err) {
				continue // deliberate skip, not a data-quality signal
			}
			return inserted, fmt.Errorf("postgres: insert row: %w", err)
		}
		if _, err := s.tx.Exec(ctx, "RELEASE SAVEPOINT row"); err != nil {
			return inserted, fmt.Errorf("postgres: release savepoint: %w", err)
		}
		inserted += tag.RowsAffected()
	}
	return inserted, nil
}

// Commit commits the load transaction and releases the connection.
func (s *Session) Commit(ctx context.Context) error {
	if s.done {
		return fmt.Errorf("postgres: commit on finished session")
	}
	s.done = true
	err := s.tx.Commit(ctx)
	s.conn.Release()
	if err != nil {
		return fmt.Errorf("postgres: commit: %w", err)
	}
	return nil
}

// Rollback abandons the transaction; it is a no-op after Commit.
func (s *Session) Rollback() {
	if s.done {
		return
	}
	s.done = true
	_ = s.tx.Rollback(context.Background())
	s.conn.Release()
}

// isIntegrityErr reports whether err is a Postgres integrity-constraint
// violation (SQLSTATE class 23).
func isIntegrityErr(err error) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	return strings.HasPrefix(pgErr.Code, "23")
}

// pgIdent double-quotes a single identifier.
func pgIdent(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}

// pgFQN quotes a possibly schema-qualified name segment by segment.
func pgFQN(s string) string {
	parts := strings.Split(s, ".")
	for i := range parts {
		parts[i] = pgIdent(parts[i])
	}
	return strings.Join(parts, ".")
}

// mapIdent quotes every identifier in cols.
func mapIdent(cols []string) []string {
	out := make([]string, len(cols))
	for i, c := range cols {
		out[i] = pgIdent(c)
	}
	return out
}
