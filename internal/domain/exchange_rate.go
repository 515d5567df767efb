package domain

import (
	"fmt"
	"math/big"

	"github.com/shopspring/decimal"
)

// MaxBps is 100% in basis points.
const MaxBps = 10_000

// ExchangeRate is the caller's floor for a swap.
//
// Rate is the minimum number of native *to* units accepted per one whole
// *from* token, expressed with the *to* mint's decimals. FromDecimals and
// QuoteDecimals are trusted scaling exponents; they are not checked against
// mint metadata. QuoteDecimals is ignored (forced to zero) for direct swaps.
//
// Strict applies to transitive swaps only. When set, unspent quote currency
// from the second leg is not credited when evaluating the rate.
type ExchangeRate struct {
	Rate          uint64 `json:"rate" toml:"rate"`
	FromDecimals  uint8  `json:"from_decimals" toml:"from_decimals"`
	QuoteDecimals uint8  `json:"quote_decimals" toml:"quote_decimals"`
	Strict        bool   `json:"strict" toml:"strict"`
}

// Validate checks the rate > 0 invariant. Swaps do not call it; a zero rate
// simply accepts any non-empty fill.
func (r ExchangeRate) Validate() error {
	if r.Rate == 0 {
		return fmt.Errorf("%w: rate must be positive", ErrInvalidExchangeRate)
	}
	return nil
}

// RateFromPrice converts a UI price (whole *to* tokens per whole *from*
// token) into a Rate in native *to* units, lowered by slippageBps and
// truncated so rounding never tightens the floor.
func RateFromPrice(price decimal.Decimal, toDecimals uint8, slippageBps uint32) (uint64, error) {
	if !price.IsPositive() {
		return 0, fmt.Errorf("%w: price must be positive, got %s", ErrInvalidExchangeRate, price)
	}
	if slippageBps >= MaxBps {
		return 0, fmt.Errorf("%w: slippage %d bps must be below %d", ErrInvalidExchangeRate, slippageBps, MaxBps)
	}

	keep := decimal.NewFromInt(int64(MaxBps - slippageBps)).Div(decimal.NewFromInt(MaxBps))
	native := price.Shift(int32(toDecimals)).Mul(keep).Truncate(0)
	if !native.IsPositive() {
		return 0, fmt.Errorf("%w: price %s rounds to zero native units", ErrInvalidExchangeRate, price)
	}
	if native.BigInt().BitLen() > 64 {
		return 0, fmt.Errorf("%w: price %s overflows u64", ErrInvalidExchangeRate, price)
	}
	return native.BigInt().Uint64(), nil
}

// RealizedRate reports to/from in whole tokens, for display only.
func RealizedRate(fromAmount, toAmount uint64, fromDecimals, toDecimals uint8) decimal.Decimal {
	if fromAmount == 0 {
		return decimal.Zero
	}
	from := decimal.NewFromBigInt(new(big.Int).SetUint64(fromAmount), -int32(fromDecimals))
	to := decimal.NewFromBigInt(new(big.Int).SetUint64(toAmount), -int32(toDecimals))
	return to.DivRound(from, 18)
}
