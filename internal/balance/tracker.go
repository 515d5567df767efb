// Package balance measures token wallet balances around venue operations.
package balance

import (
	"context"
	"fmt"

	"serum-swap/internal/domain"
	"serum-swap/internal/solana"
)

// TokenReader reads token wallets. Implementations must not cache.
type TokenReader interface {
	ReadBalance(ctx context.Context, wallet solana.Pubkey) (uint64, error)
	ReadMint(ctx context.Context, wallet solana.Pubkey) (solana.Pubkey, error)
}

// Tracker snapshots a pair of wallets.
type Tracker struct {
	reader TokenReader
}

// NewTracker creates a tracker over reader.
func NewTracker(reader TokenReader) *Tracker {
	return &Tracker{reader: reader}
}

// Mint returns the mint of wallet.
func (t *Tracker) Mint(ctx context.Context, wallet solana.Pubkey) (solana.Pubkey, error) {
	mint, err := t.reader.ReadMint(ctx, wallet)
	if err != nil {
		return solana.Pubkey{}, fmt.Errorf("read mint %s: %w", wallet, err)
	}
	return mint, nil
}

// Snapshot is the pair of balances at one instant.
type Snapshot struct {
	From uint64
	To   uint64
}

// Measure reads both wallets. Reads are side-effect free.
func (t *Tracker) Measure(ctx context.Context, from, to solana.Pubkey) (Snapshot, error) {
	fromAmount, err := t.reader.ReadBalance(ctx, from)
	if err != nil {
		return Snapshot{}, fmt.Errorf("read balance %s: %w", from, err)
	}
	toAmount, err := t.reader.ReadBalance(ctx, to)
	if err != nil {
		return Snapshot{}, fmt.Errorf("read balance %s: %w", to, err)
	}
	return Snapshot{From: fromAmount, To: toAmount}, nil
}

// Decrease returns before-after, trapping if the balance grew.
func Decrease(before, after uint64) (uint64, error) {
	if after > before {
		return 0, domain.Trap("balance decrease: %d - %d", before, after)
	}
	return before - after, nil
}

// Increase returns after-before, trapping if the balance shrank.
func Increase(before, after uint64) (uint64, error) {
	if before > after {
		return 0, domain.Trap("balance increase: %d - %d", after, before)
	}
	return after - before, nil
}

// Deltas returns the amount spent from the from wallet and received into
// the to wallet between two snapshots.
func Deltas(before, after Snapshot) (spent, received uint64, err error) {
	spent, err = Decrease(before.From, after.From)
	if err != nil {
		return 0, 0, err
	}
	received, err = Increase(before.To, after.To)
	if err != nil {
		return 0, 0, err
	}
	return spent, received, nil
}
