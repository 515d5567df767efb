package clickhouse_test

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"serum-swap/internal/domain"
	"serum-swap/internal/solana"
	"serum-swap/internal/storage"
	"serum-swap/internal/storage/clickhouse"
)

func testOutcome(sig string, idx int, ts int64) *storage.SwapOutcomeRecord {
	return &storage.SwapOutcomeRecord{
		ID:          uuid.New(),
		TxSignature: sig,
		EventIndex:  idx,
		Slot:        ts / 400,
		Timestamp:   ts,
		Outcome: domain.DidSwap{
			GivenAmount:     150,
			MinExchangeRate: domain.ExchangeRate{Rate: 1, FromDecimals: 1},
			FromAmount:      100,
			ToAmount:        20,
			FromMint:        solana.Pubkey{1},
			ToMint:          solana.Pubkey{2},
			QuoteMint:       solana.Pubkey{2},
			Authority:       solana.Pubkey{4},
		},
		RealizedRate: "2",
	}
}

func TestSwapOutcomeStore_InsertAndGet(t *testing.T) {
	conn, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := clickhouse.NewSwapOutcomeStore(conn)

	r := testOutcome("ChTx1", 0, 1000)
	require.NoError(t, store.Insert(ctx, r))

	got, err := store.GetBySignature(ctx, "ChTx1")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, r.ID, got[0].ID)
	assert.Equal(t, r.Outcome, got[0].Outcome)
	assert.Equal(t, r.RealizedRate, got[0].RealizedRate)

	assert.ErrorIs(t, store.Insert(ctx, testOutcome("ChTx1", 0, 1000)), storage.ErrDuplicateKey)
}

func TestSwapOutcomeStore_InsertBulk(t *testing.T) {
	conn, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := clickhouse.NewSwapOutcomeStore(conn)

	require.NoError(t, store.InsertBulk(ctx, []*storage.SwapOutcomeRecord{
		testOutcome("ChBulk1", 0, 1000),
		testOutcome("ChBulk2", 0, 2000),
	}))

	// Intra-batch duplicate
	err := store.InsertBulk(ctx, []*storage.SwapOutcomeRecord{
		testOutcome("ChBulk3", 0, 3000),
		testOutcome("ChBulk3", 0, 3000),
	})
	assert.ErrorIs(t, err, storage.ErrDuplicateKey)

	// Duplicate against stored rows
	err = store.InsertBulk(ctx, []*storage.SwapOutcomeRecord{
		testOutcome("ChBulk4", 0, 4000),
		testOutcome("ChBulk1", 0, 1000),
	})
	assert.ErrorIs(t, err, storage.ErrDuplicateKey)

	got, err := store.GetByTimeRange(ctx, 0, 10_000)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "ChBulk1", got[0].TxSignature)
	assert.Equal(t, "ChBulk2", got[1].TxSignature)

	pair, err := store.GetByPair(ctx, solana.Pubkey{1}.String(), solana.Pubkey{2}.String(), 1500, 10_000)
	require.NoError(t, err)
	require.Len(t, pair, 1)
	assert.Equal(t, "ChBulk2", pair[0].TxSignature)
}
