package memory

import (
	"context"
	"sync"

	"serum-swap/internal/storage"
)

// ObserverProgressStore is an in-memory implementation of storage.ObserverProgressStore.
type ObserverProgressStore struct {
	mu       sync.RWMutex
	progress *storage.ObserverProgress
}

// NewObserverProgressStore creates a new in-memory observer progress store.
func NewObserverProgressStore() *ObserverProgressStore {
	return &ObserverProgressStore{}
}

// GetLastProcessed returns the last processed slot and signature.
func (s *ObserverProgressStore) GetLastProcessed(_ context.Context) (*storage.ObserverProgress, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.progress == nil {
		return nil, storage.ErrNotFound
	}

	copy := *s.progress
	return &copy, nil
}

// SetLastProcessed saves the last processed slot and signature.
func (s *ObserverProgressStore) SetLastProcessed(_ context.Context, progress *storage.ObserverProgress) error {
	if progress == nil || progress.Signature == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	copy := *progress
	s.progress = &copy
	return nil
}

var _ storage.ObserverProgressStore = (*ObserverProgressStore)(nil)
