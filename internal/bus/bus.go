// Package bus fans observed swap outcomes out to downstream consumers.
package bus

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"serum-swap/internal/storage"
)

// Publisher delivers outcome records to subscribers.
type Publisher interface {
	// Publish sends one record. Delivery failures are returned, never retried.
	Publish(ctx context.Context, record *storage.SwapOutcomeRecord) error

	// Close releases the underlying transport.
	Close() error
}

// Encode is the wire form shared by every transport.
func Encode(record *storage.SwapOutcomeRecord) ([]byte, error) {
	payload, err := json.Marshal(record)
	if err != nil {
		return nil, fmt.Errorf("bus: encode %s: %w", record.Key(), err)
	}
	return payload, nil
}

// Decode is the inverse of Encode.
func Decode(payload []byte) (*storage.SwapOutcomeRecord, error) {
	var record storage.SwapOutcomeRecord
	if err := json.Unmarshal(payload, &record); err != nil {
		return nil, fmt.Errorf("bus: decode: %w", err)
	}
	return &record, nil
}

// Nop discards everything.
type Nop struct{}

func (Nop) Publish(context.Context, *storage.SwapOutcomeRecord) error { return nil }
func (Nop) Close() error                                              { return nil }

// Memory keeps published payloads in order. Used by tests and the simulator.
type Memory struct {
	mu       sync.Mutex
	payloads [][]byte
	err      error
}

// NewMemory returns an empty Memory publisher.
func NewMemory() *Memory {
	return &Memory{}
}

// FailWith makes every later Publish return err; nil restores delivery.
func (m *Memory) FailWith(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

// Publish encodes and stores the record.
func (m *Memory) Publish(_ context.Context, record *storage.SwapOutcomeRecord) error {
	payload, err := Encode(record)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.payloads = append(m.payloads, payload)
	return nil
}

// Records decodes every payload published so far.
func (m *Memory) Records() ([]*storage.SwapOutcomeRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]*storage.SwapOutcomeRecord, 0, len(m.payloads))
	for _, p := range m.payloads {
		r, err := Decode(p)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, nil
}

// Close is a no-op.
func (m *Memory) Close() error { return nil }

var (
	_ Publisher = Nop{}
	_ Publisher = (*Memory)(nil)
)
