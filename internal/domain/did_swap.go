package domain

import (
	"math/big"

	"github.com/shopspring/decimal"

	"serum-swap/internal/solana"
)

// DidSwap is emitted for every swap that reaches risk checks, including
// swaps that are subsequently rejected.
//
// Amounts are native units. QuoteAmount and SpillAmount are zero for
// direct swaps; QuoteMint is the market's quote mint in both cases.
type DidSwap struct {
	GivenAmount     uint64        `json:"given_amount"`
	MinExchangeRate ExchangeRate  `json:"min_exchange_rate"`
	FromAmount      uint64        `json:"from_amount"`
	ToAmount        uint64        `json:"to_amount"`
	QuoteAmount     uint64        `json:"quote_amount"`
	SpillAmount     uint64        `json:"spill_amount"`
	FromMint        solana.Pubkey `json:"from_mint"`
	ToMint          solana.Pubkey `json:"to_mint"`
	QuoteMint       solana.Pubkey `json:"quote_mint"`
	Authority       solana.Pubkey `json:"authority"`
}

// Transitive reports whether the event describes a two-leg swap.
func (e DidSwap) Transitive() bool {
	return e.QuoteAmount != 0 || e.SpillAmount != 0
}

// AchievedRate is the native *to* amount received per whole *from* token,
// in the same units as MinExchangeRate.Rate. Spill is not credited.
func (e DidSwap) AchievedRate() decimal.Decimal {
	if e.FromAmount == 0 {
		return decimal.Zero
	}
	to := decimal.NewFromBigInt(new(big.Int).SetUint64(e.ToAmount), int32(e.MinExchangeRate.FromDecimals))
	from := decimal.NewFromBigInt(new(big.Int).SetUint64(e.FromAmount), 0)
	return to.DivRound(from, 6)
}

// SpillRatio is SpillAmount / QuoteAmount, zero for direct swaps.
func (e DidSwap) SpillRatio() decimal.Decimal {
	if e.QuoteAmount == 0 {
		return decimal.Zero
	}
	spill := decimal.NewFromBigInt(new(big.Int).SetUint64(e.SpillAmount), 0)
	quote := decimal.NewFromBigInt(new(big.Int).SetUint64(e.QuoteAmount), 0)
	return spill.DivRound(quote, 6)
}
