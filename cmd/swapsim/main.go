// Command swapsim runs a swap scenario against an in-memory order-book venue
// and prints the measured outcome and the authority's balances.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"

	"serum-swap/internal/config"
	"serum-swap/internal/swap"
)

func main() {
	scenarioPath := flag.String("scenario", os.Getenv("SWAP_SCENARIO"), "Path to scenario TOML file")
	verbose := flag.Bool("verbose", false, "Log every swap step")
	flag.Parse()

	logger := log.New(os.Stdout, "[swapsim] ", log.LstdFlags|log.Lshortfile)

	if *scenarioPath == "" {
		logger.Fatal("--scenario is required")
	}
	sc, err := config.LoadScenario(*scenarioPath)
	if err != nil {
		logger.Fatalf("Load scenario: %v", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	sim, err := newSimulation(ctx, sc, logger, *verbose)
	if err != nil {
		logger.Fatalf("Setup: %v", err)
	}
	res, err := sim.run(ctx)
	if err != nil {
		logger.Fatalf("Run: %v", err)
	}

	printResult(os.Stdout, sc, res)
	if res.Err != nil {
		os.Exit(2)
	}
}

func printResult(w io.Writer, sc *config.Scenario, res *Result) {
	name := sc.Name
	if name == "" {
		name = "(unnamed)"
	}
	fmt.Fprintf(w, "\nScenario: %s\n", name)
	fmt.Fprintf(w, "Result:   %s\n", swap.Result(res.Err))
	if res.Err != nil {
		fmt.Fprintf(w, "Error:    %v\n", res.Err)
	}
	fmt.Fprintf(w, "Fills:    %d\n\n", res.Fills)

	o := res.Outcome
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "given_amount\t%d\n", o.GivenAmount)
	fmt.Fprintf(tw, "from_amount\t%d\n", o.FromAmount)
	fmt.Fprintf(tw, "to_amount\t%d\n", o.ToAmount)
	fmt.Fprintf(tw, "quote_amount\t%d\n", o.QuoteAmount)
	fmt.Fprintf(tw, "spill_amount\t%d\n", o.SpillAmount)
	fmt.Fprintf(tw, "min_rate\t%d (from_decimals=%d quote_decimals=%d strict=%t)\n",
		o.MinExchangeRate.Rate, o.MinExchangeRate.FromDecimals, o.MinExchangeRate.QuoteDecimals, o.MinExchangeRate.Strict)
	fmt.Fprintf(tw, "achieved_rate\t%s\n", o.AchievedRate())
	tw.Flush()

	fmt.Fprintln(w)
	tw = tabwriter.NewWriter(w, 0, 0, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(tw, "mint\tbefore\tafter\t")
	for _, b := range res.Balances {
		fmt.Fprintf(tw, "%s\t%d\t%d\t\n", b.Mint, b.Before, b.After)
	}
	tw.Flush()
}
