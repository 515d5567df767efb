package reporting

import (
	"fmt"
	"strings"
	"time"
)

// RenderMarkdown renders report as Markdown string.
func RenderMarkdown(r *Report) string {
	var sb strings.Builder

	// Header
	sb.WriteString("# Swap Outcome Report\n\n")
	sb.WriteString(fmt.Sprintf("Generated: %s\n\n", r.GeneratedAt.Format(time.RFC3339)))
	sb.WriteString(fmt.Sprintf("Window (ms): [%d, %d)\n\n", r.RangeStart, r.RangeEnd))

	// Summary
	sb.WriteString("## Summary\n\n")
	sb.WriteString("| Metric | Value |\n")
	sb.WriteString("|--------|-------|\n")
	sb.WriteString(fmt.Sprintf("| Total Swaps | %d |\n", r.Summary.TotalSwaps))
	sb.WriteString(fmt.Sprintf("| Direct Swaps | %d |\n", r.Summary.DirectSwaps))
	sb.WriteString(fmt.Sprintf("| Transitive Swaps | %d |\n", r.Summary.TransitiveSwaps))
	sb.WriteString(fmt.Sprintf("| Strict Swaps | %d |\n", r.Summary.StrictSwaps))
	sb.WriteString(fmt.Sprintf("| Pairs | %d |\n", r.Summary.Pairs))
	sb.WriteString(fmt.Sprintf("| First Swap (ms) | %d |\n", r.Summary.FirstTimestamp))
	sb.WriteString(fmt.Sprintf("| Last Swap (ms) | %d |\n", r.Summary.LastTimestamp))
	sb.WriteString("\n")

	// Pairs
	sb.WriteString("## Pairs\n\n")
	if len(r.Pairs) > 0 {
		sb.WriteString("| From | To | Swaps | Transitive | From Volume | To Volume | Spill Volume | Mean Spill | Rate Min | Rate Median | Rate Max | Headroom (bps) |\n")
		sb.WriteString("|------|----|-------|------------|-------------|-----------|--------------|------------|----------|-------------|----------|----------------|\n")
		for _, p := range r.Pairs {
			sb.WriteString(fmt.Sprintf("| %s | %s | %d | %d | %s | %s | %s | %s | %s | %s | %s | %s |\n",
				p.FromMint, p.ToMint, p.Swaps, p.TransitiveSwaps,
				p.FromVolume, p.ToVolume, p.SpillVolume, p.MeanSpillRatio.StringFixed(4),
				p.RateMin, p.RateMedian, p.RateMax, p.MeanHeadroomBps.StringFixed(2)))
		}
	} else {
		sb.WriteString("No swaps observed in this window.\n")
	}
	sb.WriteString("\n")

	return sb.String()
}
