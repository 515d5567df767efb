package postgres

import (
	"context"
	"time"

	"serum-swap/internal/storage"
)

// ObserverProgressStore is a PostgreSQL implementation of storage.ObserverProgressStore.
// Uses a single row in observer_progress.
type ObserverProgressStore struct {
	pool *Pool
}

// NewObserverProgressStore creates a new PostgreSQL observer progress store.
func NewObserverProgressStore(pool *Pool) *ObserverProgressStore {
	return &ObserverProgressStore{pool: pool}
}

var _ storage.ObserverProgressStore = (*ObserverProgressStore)(nil)

// GetLastProcessed returns the last processed slot and signature.
func (s *ObserverProgressStore) GetLastProcessed(ctx context.Context) (_ *storage.ObserverProgress, err error) {
	defer func(start time.Time) { observe("get_observer_progress", start, err) }(time.Now())

	row := s.pool.QueryRow(ctx, `
		SELECT slot, signature
		FROM observer_progress
		LIMIT 1
	`)

	var progress storage.ObserverProgress
	err = row.Scan(&progress.Slot, &progress.Signature)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, err
	}

	return &progress, nil
}

// SetLastProcessed saves the last processed slot and signature.
// Uses upsert to handle initial insert and subsequent updates.
func (s *ObserverProgressStore) SetLastProcessed(ctx context.Context, progress *storage.ObserverProgress) (err error) {
	if progress == nil || progress.Signature == "" {
		return storage.ErrInvalidInput
	}
	defer func(start time.Time) { observe("set_observer_progress", start, err) }(time.Now())

	_, err = s.pool.Exec(ctx, `
		INSERT INTO observer_progress (id, slot, signature, updated_at)
		VALUES (1, $1, $2, NOW())
		ON CONFLICT (id) DO UPDATE
		SET slot = EXCLUDED.slot,
		    signature = EXCLUDED.signature,
		    updated_at = NOW()
	`, progress.Slot, progress.Signature)

	return err
}
