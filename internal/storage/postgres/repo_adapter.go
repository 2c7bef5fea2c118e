// This adapter wires the Postgres backend into the storage-agnostic factory
// by registering a constructor at init time, so callers can remain
// backend-agnostic and open repositories via storage.New.
package postgres

import (
	"context"

	"sedump/internal/storage"
)

// newRepository is a test hook that points to NewRepository by default.
var newRepository = NewRepository

// wrappedRepo adapts *postgres.Repository to the storage.Repository
// interface, adding Close and widening Begin's concrete return type.
type wrappedRepo struct {
	*Repository
	closeFn func()
}

func (w *wrappedRepo) Begin(ctx context.Context) (storage.Session, error) {
	return w.Repository.Begin(ctx)
}

func (w *wrappedRepo) Close() {
	if w.closeFn != nil {
		w.closeFn()
	}
}

var _ storage.Repository = (*wrappedRepo)(nil)

func init() {
	storage.Register("postgres", func(ctx context.Context, cfg storage.Config) (storage.Repository, error) {
		r, closeFn, err := newRepository(ctx, Config{
			DSN:     cfg.DSN,
			Table:   cfg.Table,
			Columns: cfg.Columns,
			ExistOK: cfg.ExistOK,
		})
		if err != nil {
			return nil, err
		}
		return &wrappedRepo{Repository: r, closeFn: closeFn}, nil
	})
}
