package venue

import (
	"context"
	"fmt"

	"serum-swap/internal/solana"
)

// RPCMarketLoader reads lot sizes from the market account via JSON-RPC.
type RPCMarketLoader struct {
	reader solana.AccountReader
}

// NewRPCMarketLoader creates a loader backed by reader.
func NewRPCMarketLoader(reader solana.AccountReader) *RPCMarketLoader {
	return &RPCMarketLoader{reader: reader}
}

// CoinLotSize implements MarketLoader.
func (l *RPCMarketLoader) CoinLotSize(ctx context.Context, market solana.Pubkey) (uint64, error) {
	state, err := solana.FetchMarketState(ctx, l.reader, market)
	if err != nil {
		return 0, fmt.Errorf("load market %s: %w", market, err)
	}
	return state.CoinLotSize, nil
}

var _ MarketLoader = (*RPCMarketLoader)(nil)
