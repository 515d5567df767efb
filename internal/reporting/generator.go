package reporting

import (
	"context"
	"math/big"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"serum-swap/internal/observability"
	"serum-swap/internal/storage"
)

// Generator produces reports from stored outcomes.
type Generator struct {
	store storage.SwapOutcomeStore
	now   func() time.Time // Injectable clock for deterministic output
}

// NewGenerator creates a new report generator.
func NewGenerator(store storage.SwapOutcomeStore) *Generator {
	return &Generator{
		store: store,
		now:   func() time.Time { return time.Now().UTC() },
	}
}

// WithClock sets a custom clock function for deterministic output.
func (g *Generator) WithClock(now func() time.Time) *Generator {
	g.now = now
	return g
}

// Generate builds a report over outcomes with timestamps in [start, end).
func (g *Generator) Generate(ctx context.Context, start, end int64) (*Report, error) {
	records, err := g.store.GetByTimeRange(ctx, start, end)
	if err != nil {
		return nil, err
	}

	report := &Report{
		GeneratedAt: g.now(),
		RangeStart:  start,
		RangeEnd:    end,
		Summary:     summarize(records),
		Pairs:       pairRows(records),
	}
	report.Summary.Pairs = len(report.Pairs)

	observability.RecordReportGenerated()
	return report, nil
}

func summarize(records []*storage.SwapOutcomeRecord) Summary {
	var s Summary
	for _, r := range records {
		s.TotalSwaps++
		if r.Outcome.Transitive() {
			s.TransitiveSwaps++
		} else {
			s.DirectSwaps++
		}
		if r.Outcome.MinExchangeRate.Strict {
			s.StrictSwaps++
		}
		if s.FirstTimestamp == 0 || r.Timestamp < s.FirstTimestamp {
			s.FirstTimestamp = r.Timestamp
		}
		if r.Timestamp > s.LastTimestamp {
			s.LastTimestamp = r.Timestamp
		}
	}
	return s
}

type pairKey struct {
	from, to string
}

func pairRows(records []*storage.SwapOutcomeRecord) []PairRow {
	groups := make(map[pairKey][]*storage.SwapOutcomeRecord)
	for _, r := range records {
		k := pairKey{r.Outcome.FromMint.String(), r.Outcome.ToMint.String()}
		groups[k] = append(groups[k], r)
	}

	keys := make([]pairKey, 0, len(groups))
	for k := range groups {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].from != keys[j].from {
			return keys[i].from < keys[j].from
		}
		return keys[i].to < keys[j].to
	})

	rows := make([]PairRow, 0, len(keys))
	for _, k := range keys {
		rows = append(rows, pairRow(k, groups[k]))
	}
	return rows
}

func pairRow(k pairKey, records []*storage.SwapOutcomeRecord) PairRow {
	row := PairRow{
		FromMint:    k.from,
		ToMint:      k.to,
		Swaps:       len(records),
		FromVolume:  decimal.Zero,
		ToVolume:    decimal.Zero,
		SpillVolume: decimal.Zero,
	}

	rates := make([]decimal.Decimal, 0, len(records))
	spillSum := decimal.Zero
	headroomSum := decimal.Zero
	headroomCount := 0

	for _, r := range records {
		o := r.Outcome
		row.FromVolume = row.FromVolume.Add(native(o.FromAmount))
		row.ToVolume = row.ToVolume.Add(native(o.ToAmount))
		if o.Transitive() {
			row.TransitiveSwaps++
			row.SpillVolume = row.SpillVolume.Add(native(o.SpillAmount))
			spillSum = spillSum.Add(o.SpillRatio())
		}

		rate := realizedRate(r)
		rates = append(rates, rate)

		if o.MinExchangeRate.Rate > 0 {
			floor := native(o.MinExchangeRate.Rate)
			headroomSum = headroomSum.Add(rate.Sub(floor).Div(floor).Mul(decimal.NewFromInt(10_000)))
			headroomCount++
		}
	}

	if row.TransitiveSwaps > 0 {
		row.MeanSpillRatio = spillSum.DivRound(decimal.NewFromInt(int64(row.TransitiveSwaps)), 6)
	}
	if headroomCount > 0 {
		row.MeanHeadroomBps = headroomSum.DivRound(decimal.NewFromInt(int64(headroomCount)), 2)
	}
	row.RateMin, row.RateMedian, row.RateMax = minMedianMax(rates)
	return row
}

// realizedRate prefers the stored rate and recomputes it when the column
// is empty or unparsable.
func realizedRate(r *storage.SwapOutcomeRecord) decimal.Decimal {
	if r.RealizedRate != "" {
		if d, err := decimal.NewFromString(r.RealizedRate); err == nil {
			return d
		}
	}
	return r.Outcome.AchievedRate()
}

func minMedianMax(values []decimal.Decimal) (lo, median, hi decimal.Decimal) {
	if len(values) == 0 {
		return decimal.Zero, decimal.Zero, decimal.Zero
	}
	sorted := make([]decimal.Decimal, len(values))
	copy(sorted, values)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].LessThan(sorted[j]) })

	n := len(sorted)
	if n%2 == 1 {
		median = sorted[n/2]
	} else {
		median = sorted[n/2-1].Add(sorted[n/2]).Div(decimal.NewFromInt(2))
	}
	return sorted[0], median, sorted[n-1]
}

func native(v uint64) decimal.Decimal {
	return decimal.NewFromBigInt(new(big.Int).SetUint64(v), 0)
}
