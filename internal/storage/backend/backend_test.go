package backend

import (
	"context"
	"io"
	"log"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"serum-swap/internal/config"
	"serum-swap/internal/storage/memory"
)

func TestOpen_Memory(t *testing.T) {
	stores, err := Open(context.Background(), config.StorageConfig{Backend: "MEMORY"}, log.New(io.Discard, "", 0))
	require.NoError(t, err)
	defer stores.Close()

	assert.Equal(t, config.BackendMemory, stores.Backend)
	assert.IsType(t, &memory.SwapOutcomeStore{}, stores.Outcomes)
	assert.IsType(t, &memory.ObserverProgressStore{}, stores.Progress)
}

func TestOpen_UnknownBackend(t *testing.T) {
	_, err := Open(context.Background(), config.StorageConfig{Backend: "sqlite"}, log.New(io.Discard, "", 0))
	assert.ErrorContains(t, err, `unknown storage backend "sqlite"`)
}

func TestStores_CloseRunsInReverse(t *testing.T) {
	var order []int
	s := &Stores{closers: []func(){
		func() { order = append(order, 1) },
		func() { order = append(order, 2) },
	}}
	s.Close()
	s.Close()
	assert.Equal(t, []int{2, 1}, order)
}
