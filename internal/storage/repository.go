// Package storage contains the storage-agnostic contracts for the dump
// loader's destination store, plus the backend factory.
//
// Backends (sqlite, postgres) live in subpackages and register themselves at
// init time, so callers can open a Repository by kind without importing a
// concrete backend.
package storage

import (
	"context"
	"fmt"
	"sync"
)

// Config selects and configures a backend for one destination table.
type Config struct {
	// Kind selects the backend implementation, e.g. "sqlite" or "postgres".
	Kind string

	// DSN is the backend-specific connection string: a file path or URI for
	// sqlite, a pgx connection string for postgres.
	DSN string

	// Table is the destination table name.
	Table string

	// Columns is the ordered destination column list. Rows passed to
	// Session.InsertBatch must align positionally with it.
	Columns []string

	// ExistOK selects the duplicate policy: when true, rows rejected by a
	// uniqueness or integrity constraint are dropped silently (insert-or-
	// ignore); when false, the first integrity violation is returned as an
	// error satisfying errors.Is(err, ErrIntegrity).
	ExistOK bool
}

// Repository is an open connection to the destination store, scoped to one
// table per Config.
type Repository interface {
	// Exec runs a statement outside any load transaction; used for DDL.
	Exec(ctx context.Context, sql string) error

	// Begin opens the single transaction a load runs in. One load holds one
	// Session for its entire duration and commits exactly once at the end.
	Begin(ctx context.Context) (Session, error)

	// Close releases the underlying connection(s).
	Close()
}

// Session is one load's transaction.
type Session interface {
	// InsertBatch inserts rows (positionally aligned to Config.Columns) and
	// returns the number actually inserted, which is less than len(rows)
	// when the duplicate policy dropped some. A returned error aborts the
	// load; integrity violations satisfy errors.Is(err, ErrIntegrity).
	InsertBatch(ctx context.Context, rows [][]any) (int64, error)

	// Commit commits the transaction. The Session is unusable afterwards.
	Commit(ctx context.Context) error

	// Rollback abandons the transaction. Safe to call after Commit; the
	// usual pattern is `defer sess.Rollback()`.
	Rollback()
}

// Constructor builds a Repository for a Config.
type Constructor func(ctx context.Context, cfg Config) (Repository, error)

var (
	regMu    sync.RWMutex
	backends = map[string]Constructor{}
)

// Register registers (or replaces) a backend constructor for the given kind.
// It is typically called from backend packages' init() functions.
func Register(kind string, fn Constructor) {
	regMu.Lock()
	defer regMu.Unlock()
	backends[kind] = fn
}

// New opens a Repository for cfg.Kind using the registered constructor.
func New(ctx context.Context, cfg Config) (Repository, error) {
	regMu.RLock()
	fn, ok := backends[cfg.Kind]
	regMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("storage: no backend registered for kind %q", cfg.Kind)
	}
	return fn(ctx, cfg)
}

// Kinds returns the registered backend kinds, for CLI help and validation.
func Kinds() []string {
	regMu.RLock()
	defer regMu.RUnlock()
	out := make([]string, 0, len(backends))
	for k := range backends {
		out = append(out, k)
	}
	return out
}
