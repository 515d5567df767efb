package storage

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"serum-swap/internal/domain"
)

// SwapOutcomeRecord is a DidSwap event observed in a confirmed transaction.
// (TxSignature, EventIndex) is the natural key.
type SwapOutcomeRecord struct {
	ID           uuid.UUID      `json:"id"`
	TxSignature  string         `json:"tx_signature"`
	EventIndex   int            `json:"event_index"`
	Slot         int64          `json:"slot"`
	Timestamp    int64          `json:"timestamp"` // unix ms, block time
	Outcome      domain.DidSwap `json:"outcome"`
	RealizedRate string         `json:"realized_rate"` // decimal, native to per whole from token
}

// Key returns the composite natural key used by in-memory indexes.
func (r *SwapOutcomeRecord) Key() string {
	return fmt.Sprintf("%s|%d", r.TxSignature, r.EventIndex)
}

// SwapOutcomeStore provides access to swap_outcomes storage.
type SwapOutcomeStore interface {
	// Insert adds a new outcome. Returns ErrDuplicateKey if (tx_signature, event_index) exists.
	Insert(ctx context.Context, r *SwapOutcomeRecord) error

	// InsertBulk adds multiple outcomes atomically. Fails entire batch on any duplicate.
	InsertBulk(ctx context.Context, records []*SwapOutcomeRecord) error

	// GetBySignature retrieves all outcomes of a transaction, ordered by event_index ASC.
	GetBySignature(ctx context.Context, txSignature string) ([]*SwapOutcomeRecord, error)

	// GetByTimeRange retrieves outcomes within [start, end) (inclusive start, exclusive end).
	GetByTimeRange(ctx context.Context, start, end int64) ([]*SwapOutcomeRecord, error)

	// GetByPair retrieves outcomes for a (from_mint, to_mint) pair within [start, end).
	GetByPair(ctx context.Context, fromMint, toMint string, start, end int64) ([]*SwapOutcomeRecord, error)
}

// ObserverProgress represents the newest transaction the observer has fully processed.
type ObserverProgress struct {
	Slot      int64
	Signature string
}

// ObserverProgressStore provides persistence for the observer's backfill cursor.
// This enables resumption after restarts without re-reading the whole history.
type ObserverProgressStore interface {
	// GetLastProcessed returns the saved cursor.
	// Returns ErrNotFound if no progress has been saved yet.
	GetLastProcessed(ctx context.Context) (*ObserverProgress, error)

	// SetLastProcessed saves the cursor.
	SetLastProcessed(ctx context.Context, progress *ObserverProgress) error
}
