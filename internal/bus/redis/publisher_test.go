package redis

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"serum-swap/internal/domain"
	"serum-swap/internal/solana"
	"serum-swap/internal/storage"
)

// setupRedis starts a Redis container and returns its address.
func setupRedis(t *testing.T) (string, func()) {
	t.Helper()

	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	ctx := context.Background()
	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "redis:7-alpine",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor: wait.ForLog("Ready to accept connections").
				WithStartupTimeout(60 * time.Second),
		},
		Started: true,
	})
	require.NoError(t, err)

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "6379")
	require.NoError(t, err)

	return fmt.Sprintf("%s:%s", host, port.Port()), func() {
		_ = container.Terminate(ctx)
	}
}

func testRecord(sig string, idx int) *storage.SwapOutcomeRecord {
	return &storage.SwapOutcomeRecord{
		ID:          uuid.New(),
		TxSignature: sig,
		EventIndex:  idx,
		Slot:        1,
		Timestamp:   1000,
		Outcome: domain.DidSwap{
			GivenAmount: 5,
			FromAmount:  5,
			ToAmount:    9,
			FromMint:    solana.Pubkey{1},
			ToMint:      solana.Pubkey{2},
			QuoteMint:   solana.Pubkey{2},
		},
		RealizedRate: "1.8",
	}
}

func TestNew_RequiresDestination(t *testing.T) {
	_, err := New(context.Background(), Config{Addr: "127.0.0.1:1"})
	assert.Error(t, err)
}

func TestPublisher_PubSubAndStream(t *testing.T) {
	addr, cleanup := setupRedis(t)
	defer cleanup()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	p, err := New(ctx, Config{Addr: addr, Channel: "swap:outcomes", Stream: "swap:outcomes:stream"})
	require.NoError(t, err)
	defer p.Close()

	sub, err := p.Subscribe(ctx)
	require.NoError(t, err)

	require.NoError(t, p.Publish(ctx, testRecord("sigA", 0)))
	require.NoError(t, p.Publish(ctx, testRecord("sigA", 1)))

	for i := 0; i < 2; i++ {
		select {
		case r := <-sub:
			assert.Equal(t, "sigA", r.TxSignature)
			assert.Equal(t, i, r.EventIndex)
		case <-ctx.Done():
			t.Fatal("timed out waiting for pub/sub message")
		}
	}

	msgs, err := p.StreamRead(ctx, "0", 10)
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, uint64(9), msgs[1].Record.Outcome.ToAmount)

	// Nothing after the last entry
	more, err := p.StreamRead(ctx, msgs[1].ID, 10)
	require.NoError(t, err)
	assert.Empty(t, more)
}
