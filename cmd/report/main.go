// Command report writes a Markdown and CSV summary of stored swap outcomes.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"serum-swap/internal/config"
	"serum-swap/internal/reporting"
	"serum-swap/internal/storage/backend"
)

func main() {
	configPath := flag.String("config", os.Getenv("SWAP_CONFIG"), "Path to TOML config file")
	outputDir := flag.String("output-dir", "reports", "Output directory for generated files")
	fromTime := flag.String("from-time", "", "Window start (RFC3339), default 24h before --to-time")
	toTime := flag.String("to-time", "", "Window end (RFC3339), default now")
	flag.Parse()

	logger := log.New(os.Stderr, "[report] ", log.LstdFlags)

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Fatalf("Load config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		logger.Fatal(err)
	}

	start, end, err := parseWindow(*fromTime, *toTime, time.Now().UTC())
	if err != nil {
		logger.Fatal(err)
	}

	ctx := context.Background()
	stores, err := backend.Open(ctx, cfg.Storage, logger)
	if err != nil {
		logger.Fatal(err)
	}
	defer stores.Close()

	report, err := reporting.NewGenerator(stores.Outcomes).Generate(ctx, start.UnixMilli(), end.UnixMilli())
	if err != nil {
		logger.Fatalf("Generate report: %v", err)
	}

	if err := os.MkdirAll(*outputDir, 0o755); err != nil {
		logger.Fatalf("Create output dir: %v", err)
	}
	mdPath := filepath.Join(*outputDir, "SWAP_OUTCOMES.md")
	csvPath := filepath.Join(*outputDir, "SWAP_PAIRS.csv")
	if err := os.WriteFile(mdPath, []byte(reporting.RenderMarkdown(report)), 0o644); err != nil {
		logger.Fatalf("Write %s: %v", mdPath, err)
	}
	if err := os.WriteFile(csvPath, []byte(reporting.RenderCSV(report.Pairs)), 0o644); err != nil {
		logger.Fatalf("Write %s: %v", csvPath, err)
	}

	fmt.Printf("Report over %d swaps generated:\n", report.Summary.TotalSwaps)
	fmt.Printf("  - %s\n", mdPath)
	fmt.Printf("  - %s\n", csvPath)
}

// parseWindow resolves the [start, end) report window.
func parseWindow(from, to string, now time.Time) (time.Time, time.Time, error) {
	end := now
	if to != "" {
		t, err := time.Parse(time.RFC3339, to)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("invalid --to-time: %w", err)
		}
		end = t
	}
	start := end.Add(-24 * time.Hour)
	if from != "" {
		t, err := time.Parse(time.RFC3339, from)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("invalid --from-time: %w", err)
		}
		start = t
	}
	if !start.Before(end) {
		return time.Time{}, time.Time{}, fmt.Errorf("empty window: %s is not before %s", start.Format(time.RFC3339), end.Format(time.RFC3339))
	}
	return start, end, nil
}
