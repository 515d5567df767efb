// Package risk decides whether a measured swap outcome satisfies the
// caller's minimum exchange rate.
package risk

import (
	"context"
	"fmt"
	"io"
	"log"

	"lukechampine.com/uint128"

	"serum-swap/internal/domain"
	"serum-swap/internal/event"
	"serum-swap/internal/observability"
)

// Decision labels recorded per evaluation.
const (
	DecisionAccepted         = "accepted"
	DecisionZeroSwap         = "zero_swap"
	DecisionSlippageExceeded = "slippage_exceeded"
	DecisionArithmetic       = "arithmetic_trap"
)

// Verifier evaluates swap outcomes. It holds no state between calls.
type Verifier struct {
	emitter event.Emitter
	logger  *log.Logger
}

// NewVerifier creates a verifier that emits every outcome to emitter
// before judging it.
func NewVerifier(emitter event.Emitter, logger *log.Logger) *Verifier {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	return &Verifier{emitter: emitter, logger: logger}
}

// Evaluation holds the two sides of the rate comparison, both scaled by
// 10^from_decimals * 10^quote_decimals.
type Evaluation struct {
	EffectiveToAmount uint128.Uint128
	MinExpectedAmount uint128.Uint128
	SpillSurplus      uint128.Uint128
}

// Accepted reports whether the effective amount meets the minimum.
func (e Evaluation) Accepted() bool {
	return e.EffectiveToAmount.Cmp(e.MinExpectedAmount) >= 0
}

// ApplyRiskChecks emits the outcome, then rejects it with ErrZeroSwap or
// ErrSlippageExceeded. Arithmetic traps surface as ErrArithmetic.
func (v *Verifier) ApplyRiskChecks(ctx context.Context, outcome domain.DidSwap) error {
	if err := v.emitter.Emit(ctx, outcome); err != nil {
		return fmt.Errorf("emit did swap: %w", err)
	}

	if outcome.ToAmount == 0 {
		observability.RecordRiskDecision(DecisionZeroSwap)
		return domain.ErrZeroSwap
	}

	eval, err := Evaluate(outcome)
	if err != nil {
		observability.RecordRiskDecision(DecisionArithmetic)
		return err
	}
	if !eval.Accepted() {
		v.logger.Printf("effective_to_amount, min_expected_amount: %s, %s",
			eval.EffectiveToAmount, eval.MinExpectedAmount)
		observability.RecordRiskDecision(DecisionSlippageExceeded)
		return domain.ErrSlippageExceeded
	}
	observability.RecordRiskDecision(DecisionAccepted)
	return nil
}

// Evaluate computes the comparison for outcome without emitting.
//
//	min_expected = from_amount * rate * 10^quote_decimals
//	surplus      = to_amount * spill * 10^from_decimals * 10^quote_decimals / (quote_amount - spill)
//	effective    = to_amount * 10^from_decimals * 10^quote_decimals + surplus
//
// The surplus is zero when spill is zero or the rate is strict.
func Evaluate(outcome domain.DidSwap) (Evaluation, error) {
	rate := outcome.MinExchangeRate

	fromScale, err := pow10(rate.FromDecimals)
	if err != nil {
		return Evaluation{}, err
	}
	quoteScale, err := pow10(rate.QuoteDecimals)
	if err != nil {
		return Evaluation{}, err
	}

	minExpected, err := checked("min expected amount", func() uint128.Uint128 {
		return uint128.From64(outcome.FromAmount).Mul64(rate.Rate).Mul(quoteScale)
	})
	if err != nil {
		return Evaluation{}, err
	}

	surplus := uint128.Zero
	if outcome.SpillAmount != 0 && !rate.Strict {
		surplus, err = checked("spill surplus", func() uint128.Uint128 {
			spent := uint128.From64(outcome.QuoteAmount).Sub64(outcome.SpillAmount)
			return uint128.From64(outcome.ToAmount).
				Mul64(outcome.SpillAmount).
				Mul(fromScale).
				Mul(quoteScale).
				Div(spent)
		})
		if err != nil {
			return Evaluation{}, err
		}
	}

	effective, err := checked("effective to amount", func() uint128.Uint128 {
		return uint128.From64(outcome.ToAmount).Mul(fromScale).Mul(quoteScale).Add(surplus)
	})
	if err != nil {
		return Evaluation{}, err
	}

	return Evaluation{
		EffectiveToAmount: effective,
		MinExpectedAmount: minExpected,
		SpillSurplus:      surplus,
	}, nil
}
