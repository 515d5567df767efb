package memory

import (
	"context"
	"sort"
	"sync"

	"serum-swap/internal/storage"
)

// SwapOutcomeStore is an in-memory implementation of storage.SwapOutcomeStore.
type SwapOutcomeStore struct {
	mu   sync.RWMutex
	data map[string]*storage.SwapOutcomeRecord // keyed by tx_signature|event_index
}

// NewSwapOutcomeStore creates a new in-memory swap outcome store.
func NewSwapOutcomeStore() *SwapOutcomeStore {
	return &SwapOutcomeStore{
		data: make(map[string]*storage.SwapOutcomeRecord),
	}
}

// Insert adds a new outcome. Returns ErrDuplicateKey if exists.
func (s *SwapOutcomeStore) Insert(_ context.Context, r *storage.SwapOutcomeRecord) error {
	if err := storage.ValidateRecord(r); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	key := r.Key()
	if _, exists := s.data[key]; exists {
		return storage.ErrDuplicateKey
	}

	copy := *r
	s.data[key] = &copy
	return nil
}

// InsertBulk adds multiple outcomes atomically. Fails entire batch on any duplicate.
func (s *SwapOutcomeStore) InsertBulk(_ context.Context, records []*storage.SwapOutcomeRecord) error {
	if len(records) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// First pass: check for duplicates (existing + intra-batch)
	batchKeys := make(map[string]struct{}, len(records))
	for _, r := range records {
		if err := storage.ValidateRecord(r); err != nil {
			return err
		}
		key := r.Key()
		if _, exists := s.data[key]; exists {
			return storage.ErrDuplicateKey
		}
		if _, exists := batchKeys[key]; exists {
			return storage.ErrDuplicateKey
		}
		batchKeys[key] = struct{}{}
	}

	for _, r := range records {
		copy := *r
		s.data[r.Key()] = &copy
	}

	return nil
}

// GetBySignature retrieves all outcomes of a transaction, ordered by event_index ASC.
func (s *SwapOutcomeStore) GetBySignature(_ context.Context, txSignature string) ([]*storage.SwapOutcomeRecord, error) {
	return s.filter(func(r *storage.SwapOutcomeRecord) bool {
		return r.TxSignature == txSignature
	}), nil
}

// GetByTimeRange retrieves outcomes within [start, end).
func (s *SwapOutcomeStore) GetByTimeRange(_ context.Context, start, end int64) ([]*storage.SwapOutcomeRecord, error) {
	return s.filter(func(r *storage.SwapOutcomeRecord) bool {
		return r.Timestamp >= start && r.Timestamp < end
	}), nil
}

// GetByPair retrieves outcomes for a (from_mint, to_mint) pair within [start, end).
func (s *SwapOutcomeStore) GetByPair(_ context.Context, fromMint, toMint string, start, end int64) ([]*storage.SwapOutcomeRecord, error) {
	return s.filter(func(r *storage.SwapOutcomeRecord) bool {
		return r.Outcome.FromMint.String() == fromMint &&
			r.Outcome.ToMint.String() == toMint &&
			r.Timestamp >= start && r.Timestamp < end
	}), nil
}

// Len returns the number of stored outcomes.
func (s *SwapOutcomeStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.data)
}

func (s *SwapOutcomeStore) filter(keep func(*storage.SwapOutcomeRecord) bool) []*storage.SwapOutcomeRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*storage.SwapOutcomeRecord
	for _, r := range s.data {
		if keep(r) {
			copy := *r
			result = append(result, &copy)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		if result[i].Timestamp != result[j].Timestamp {
			return result[i].Timestamp < result[j].Timestamp
		}
		if result[i].TxSignature != result[j].TxSignature {
			return result[i].TxSignature < result[j].TxSignature
		}
		return result[i].EventIndex < result[j].EventIndex
	})

	return result
}

var _ storage.SwapOutcomeStore = (*SwapOutcomeStore)(nil)
