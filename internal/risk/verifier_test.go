package risk

import (
	"bytes"
	"context"
	"errors"
	"log"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"lukechampine.com/uint128"

	"serum-swap/internal/domain"
	"serum-swap/internal/event"
)

func direct(from, to, rate uint64) domain.DidSwap {
	return domain.DidSwap{
		GivenAmount:     from,
		FromAmount:      from,
		ToAmount:        to,
		MinExchangeRate: domain.ExchangeRate{Rate: rate, FromDecimals: 6},
	}
}

func transitive(from, to, quote, spill, rate uint64, strict bool) domain.DidSwap {
	return domain.DidSwap{
		GivenAmount:     from,
		FromAmount:      from,
		ToAmount:        to,
		QuoteAmount:     quote,
		SpillAmount:     spill,
		MinExchangeRate: domain.ExchangeRate{Rate: rate, FromDecimals: 1, Strict: strict},
	}
}

func TestApplyRiskChecks_DirectScenarios(t *testing.T) {
	tests := []struct {
		name    string
		outcome domain.DidSwap
		wantErr error
	}{
		{"accepted above floor", direct(1_000_000, 2_000_000, 1_900_000), nil},
		{"accepted at floor", direct(1_000_000, 1_900_000, 1_900_000), nil},
		{"slippage exceeded", direct(1_000_000, 1_800_000, 1_900_000), domain.ErrSlippageExceeded},
		{"zero swap", direct(1_000_000, 0, 1_900_000), domain.ErrZeroSwap},
		{"zero swap with zero rate", direct(1_000_000, 0, 0), domain.ErrZeroSwap},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := event.NewRecorder()
			err := NewVerifier(rec, nil).ApplyRiskChecks(context.Background(), tt.outcome)
			if tt.wantErr == nil {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, tt.wantErr)
			}
			assert.Equal(t, []domain.DidSwap{tt.outcome}, rec.Events(), "outcome is emitted before the decision")
		})
	}
}

func TestEvaluate_DirectScenarioValues(t *testing.T) {
	eval, err := Evaluate(direct(1_000_000, 2_000_000, 1_900_000))
	require.NoError(t, err)
	assert.Equal(t, "1900000000000", eval.MinExpectedAmount.String())
	assert.Equal(t, "2000000000000", eval.EffectiveToAmount.String())
	assert.True(t, eval.SpillSurplus.IsZero())
}

func TestEvaluate_TransitiveNoSpill(t *testing.T) {
	// leg 1 sold 100 A for 500 quote, leg 2 spent all of it on 50 B.
	for _, strict := range []bool{false, true} {
		eval, err := Evaluate(transitive(100, 50, 500, 0, 5, strict))
		require.NoError(t, err)
		assert.Equal(t, "500", eval.EffectiveToAmount.String())
		assert.Equal(t, "500", eval.MinExpectedAmount.String())
		assert.True(t, eval.Accepted())
	}
}

func TestEvaluate_TransitiveSpill(t *testing.T) {
	// leg 2 consumed 400 of 500 quote for 50 B: 12.5 B credited for the spill.
	loose, err := Evaluate(transitive(100, 50, 500, 100, 6, false))
	require.NoError(t, err)
	assert.Equal(t, "125", loose.SpillSurplus.String())
	assert.Equal(t, "625", loose.EffectiveToAmount.String())
	assert.True(t, loose.Accepted())

	strict, err := Evaluate(transitive(100, 50, 500, 100, 6, true))
	require.NoError(t, err)
	assert.True(t, strict.SpillSurplus.IsZero())
	assert.Equal(t, "500", strict.EffectiveToAmount.String())
	assert.False(t, strict.Accepted())

	err = NewVerifier(event.NewRecorder(), nil).ApplyRiskChecks(context.Background(), transitive(100, 50, 500, 100, 6, true))
	assert.ErrorIs(t, err, domain.ErrSlippageExceeded)
}

func TestEvaluate_StrictIgnoresSpill(t *testing.T) {
	for _, spill := range []uint64{0, 1, 50, 399} {
		withSpill, err := Evaluate(transitive(100, 50, 400, spill, 5, true))
		require.NoError(t, err)
		noSpill, err := Evaluate(transitive(100, 50, 400, 0, 5, true))
		require.NoError(t, err)
		assert.Equal(t, noSpill, withSpill)
	}
}

func TestEvaluate_ArithmeticTraps(t *testing.T) {
	tests := []struct {
		name    string
		outcome domain.DidSwap
	}{
		{"scale overflow", domain.DidSwap{FromAmount: 1, ToAmount: 1, MinExchangeRate: domain.ExchangeRate{Rate: 1, FromDecimals: 39}}},
		{"min expected overflow", domain.DidSwap{FromAmount: ^uint64(0), ToAmount: 1, MinExchangeRate: domain.ExchangeRate{Rate: ^uint64(0), QuoteDecimals: 2}}},
		{"spill equals quote", transitive(100, 50, 100, 100, 1, false)},
		{"spill exceeds quote", transitive(100, 50, 10, 100, 1, false)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Evaluate(tt.outcome)
			assert.ErrorIs(t, err, domain.ErrArithmetic)

			err = NewVerifier(event.NewRecorder(), nil).ApplyRiskChecks(context.Background(), tt.outcome)
			assert.ErrorIs(t, err, domain.ErrArithmetic)
		})
	}
}

func TestApplyRiskChecks_LogsOnSlippage(t *testing.T) {
	var buf bytes.Buffer
	v := NewVerifier(event.NewRecorder(), log.New(&buf, "", 0))
	err := v.ApplyRiskChecks(context.Background(), direct(1_000_000, 1_800_000, 1_900_000))
	require.ErrorIs(t, err, domain.ErrSlippageExceeded)
	assert.Contains(t, buf.String(), "effective_to_amount, min_expected_amount: 1800000000000, 1900000000000")
}

type failingEmitter struct{}

func (failingEmitter) Emit(context.Context, domain.DidSwap) error { return errors.New("log full") }

func TestApplyRiskChecks_EmitFailureAborts(t *testing.T) {
	err := NewVerifier(failingEmitter{}, nil).ApplyRiskChecks(context.Background(), direct(1, 1, 1))
	assert.Error(t, err)
}

func TestPow10(t *testing.T) {
	v, err := pow10(38)
	require.NoError(t, err)
	assert.Equal(t, "100000000000000000000000000000000000000", v.String())

	_, err = pow10(39)
	assert.ErrorIs(t, err, domain.ErrArithmetic)

	one, err := pow10(0)
	require.NoError(t, err)
	assert.Equal(t, uint128.From64(1), one)
}

func FuzzEvaluate_MonotonicInToAmount(f *testing.F) {
	f.Add(uint64(1_000_000), uint64(1_800_000), uint64(1), uint64(1_900_000), uint8(6), uint8(0), uint64(0), uint64(0), false)
	f.Add(uint64(100), uint64(50), uint64(7), uint64(6), uint8(1), uint8(0), uint64(500), uint64(100), false)
	f.Add(uint64(100), uint64(50), uint64(7), uint64(6), uint8(1), uint8(3), uint64(500), uint64(100), true)

	f.Fuzz(func(t *testing.T, from, to, bump, rate uint64, fromDec, quoteDec uint8, quote, spill uint64, strict bool) {
		fromDec %= 20
		quoteDec %= 20
		if spill > quote {
			spill, quote = quote, spill
		}
		if to+bump < to {
			t.Skip()
		}
		base := domain.DidSwap{
			FromAmount:      from,
			ToAmount:        to,
			QuoteAmount:     quote,
			SpillAmount:     spill,
			MinExchangeRate: domain.ExchangeRate{Rate: rate, FromDecimals: fromDec, QuoteDecimals: quoteDec, Strict: strict},
		}
		more := base
		more.ToAmount = to + bump

		lo, err := Evaluate(base)
		if err != nil {
			t.Skip()
		}
		hi, err := Evaluate(more)
		if err != nil {
			t.Skip()
		}
		if lo.Accepted() && !hi.Accepted() {
			t.Fatalf("accept flipped to reject: to %d -> %d", to, to+bump)
		}
	})
}
