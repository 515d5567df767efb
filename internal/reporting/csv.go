package reporting

import (
	"fmt"
	"strings"
)

// RenderCSV renders per-pair aggregates as CSV string.
func RenderCSV(rows []PairRow) string {
	var sb strings.Builder

	// Header
	sb.WriteString("from_mint,to_mint,swaps,transitive_swaps,from_volume,to_volume,spill_volume,")
	sb.WriteString("mean_spill_ratio,rate_min,rate_median,rate_max,mean_headroom_bps\n")

	// Rows
	for _, r := range rows {
		sb.WriteString(fmt.Sprintf("%s,%s,%d,%d,%s,%s,%s,%s,%s,%s,%s,%s\n",
			r.FromMint,
			r.ToMint,
			r.Swaps,
			r.TransitiveSwaps,
			r.FromVolume.String(),
			r.ToVolume.String(),
			r.SpillVolume.String(),
			r.MeanSpillRatio.StringFixed(6),
			r.RateMin.String(),
			r.RateMedian.String(),
			r.RateMax.String(),
			r.MeanHeadroomBps.StringFixed(2),
		))
	}

	return sb.String()
}
