package balance

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"serum-swap/internal/domain"
	"serum-swap/internal/solana"
	rpcstub "serum-swap/internal/solana/stub"
)

func TestTracker_MeasureViaRPC(t *testing.T) {
	client := rpcstub.NewRPCClient()
	from, to := solana.Pubkey{1}, solana.Pubkey{2}
	client.SetAccount(from, solana.TokenProgramID, solana.EncodeTokenAccount(&solana.TokenAccount{Mint: solana.Pubkey{5}, Amount: 700}))
	client.SetAccount(to, solana.TokenProgramID, solana.EncodeTokenAccount(&solana.TokenAccount{Amount: 30}))

	snap, err := NewTracker(NewRPCReader(client)).Measure(context.Background(), from, to)
	require.NoError(t, err)
	assert.Equal(t, Snapshot{From: 700, To: 30}, snap)

	again, err := NewTracker(NewRPCReader(client)).Measure(context.Background(), from, to)
	require.NoError(t, err)
	assert.Equal(t, snap, again)

	mint, err := NewTracker(NewRPCReader(client)).Mint(context.Background(), from)
	require.NoError(t, err)
	assert.Equal(t, solana.Pubkey{5}, mint)
}

func TestTracker_MeasureMissingAccount(t *testing.T) {
	client := rpcstub.NewRPCClient()
	_, err := NewTracker(NewRPCReader(client)).Measure(context.Background(), solana.Pubkey{1}, solana.Pubkey{2})
	assert.ErrorIs(t, err, solana.ErrAccountNotFound)
}

func TestDeltas(t *testing.T) {
	spent, received, err := Deltas(Snapshot{From: 1_000, To: 5}, Snapshot{From: 400, To: 95})
	require.NoError(t, err)
	assert.Equal(t, uint64(600), spent)
	assert.Equal(t, uint64(90), received)

	_, _, err = Deltas(Snapshot{From: 1, To: 5}, Snapshot{From: 2, To: 5})
	assert.ErrorIs(t, err, domain.ErrArithmetic)

	_, _, err = Deltas(Snapshot{From: 1, To: 5}, Snapshot{From: 1, To: 4})
	assert.ErrorIs(t, err, domain.ErrArithmetic)
}
