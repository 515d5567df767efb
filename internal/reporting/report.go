package reporting

import (
	"time"

	"github.com/shopspring/decimal"
)

// Report summarizes observed swap outcomes over a time window.
type Report struct {
	GeneratedAt time.Time
	RangeStart  int64 // Unix ms, inclusive
	RangeEnd    int64 // Unix ms, exclusive

	Summary Summary

	// Sorted by from_mint, to_mint
	Pairs []PairRow
}

// Summary counts outcomes across all pairs.
type Summary struct {
	TotalSwaps      int
	DirectSwaps     int
	TransitiveSwaps int
	StrictSwaps     int
	Pairs           int
	FirstTimestamp  int64 // Unix ms, 0 when empty
	LastTimestamp   int64
}

// PairRow aggregates the outcomes of one (from_mint, to_mint) pair.
// Volumes are native units; rates are native to units per whole from token.
type PairRow struct {
	FromMint        string
	ToMint          string
	Swaps           int
	TransitiveSwaps int
	FromVolume      decimal.Decimal
	ToVolume        decimal.Decimal
	SpillVolume     decimal.Decimal
	MeanSpillRatio  decimal.Decimal // transitive swaps only
	RateMin         decimal.Decimal
	RateMedian      decimal.Decimal
	RateMax         decimal.Decimal
	MeanHeadroomBps decimal.Decimal // (achieved - floor) / floor, swaps with a positive floor only
}
