package balance

import (
	"context"

	"serum-swap/internal/solana"
)

// RPCReader reads SPL token account balances through JSON-RPC.
type RPCReader struct {
	accounts solana.AccountReader
}

// NewRPCReader creates a reader backed by accounts.
func NewRPCReader(accounts solana.AccountReader) *RPCReader {
	return &RPCReader{accounts: accounts}
}

// ReadBalance implements TokenReader.
func (r *RPCReader) ReadBalance(ctx context.Context, wallet solana.Pubkey) (uint64, error) {
	acc, err := solana.FetchTokenAccount(ctx, r.accounts, wallet)
	if err != nil {
		return 0, err
	}
	return acc.Amount, nil
}

// ReadMint implements TokenReader.
func (r *RPCReader) ReadMint(ctx context.Context, wallet solana.Pubkey) (solana.Pubkey, error) {
	acc, err := solana.FetchTokenAccount(ctx, r.accounts, wallet)
	if err != nil {
		return solana.Pubkey{}, err
	}
	return acc.Mint, nil
}

var _ TokenReader = (*RPCReader)(nil)
