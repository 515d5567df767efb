// Package swap converts one token into another through immediate-or-cancel
// orders on an order-book venue, measuring what was actually traded and
// gating the result on the caller's minimum exchange rate.
package swap

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"serum-swap/internal/balance"
	"serum-swap/internal/domain"
	"serum-swap/internal/event"
	"serum-swap/internal/observability"
	"serum-swap/internal/risk"
	"serum-swap/internal/solana"
	"serum-swap/internal/venue"
)

// Program executes swaps. It keeps no state between calls; atomicity of
// a failed call is provided by the host running it.
type Program struct {
	dex      venue.Dex
	markets  venue.MarketLoader
	tracker  *balance.Tracker
	verifier *risk.Verifier
	logger   *log.Logger
	verbose  bool
}

// Options for creating a Program.
type Options struct {
	Dex      venue.Dex
	Markets  venue.MarketLoader
	Balances balance.TokenReader
	Emitter  event.Emitter

	Logger  *log.Logger // defaults to the standard logger
	Verbose bool
}

// New creates a Program.
func New(opts Options) *Program {
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}
	return &Program{
		dex:      opts.Dex,
		markets:  opts.Markets,
		tracker:  balance.NewTracker(opts.Balances),
		verifier: risk.NewVerifier(opts.Emitter, logger),
		logger:   logger,
		verbose:  opts.Verbose,
	}
}

// SwapRequest is a direct swap on one BASE/QUOTE market.
type SwapRequest struct {
	Accounts        domain.SwapAccounts
	Side            domain.Side
	Amount          uint64
	MinExchangeRate domain.ExchangeRate
	// Referral receives the venue's referrer rebate when set.
	Referral *solana.Pubkey
	// FeeDiscount is passed to every order for the venue's fee tiers.
	FeeDiscount *solana.Pubkey
}

// SwapTransitiveRequest swaps the base of From for the base of To through
// their shared quote currency.
type SwapTransitiveRequest struct {
	Accounts        domain.SwapTransitiveAccounts
	Amount          uint64
	MinExchangeRate domain.ExchangeRate
	Referral        *solana.Pubkey
	FeeDiscount     *solana.Pubkey
}

// InitAccount creates the authority's open-orders account on a market.
func (p *Program) InitAccount(ctx context.Context, accounts domain.InitAccountAccounts) error {
	if err := p.dex.InitOpenOrders(ctx, accounts); err != nil {
		return fmt.Errorf("venue: init open orders %s: %w", accounts.OpenOrders, err)
	}
	p.log("initialized open orders %s on %s", accounts.OpenOrders, accounts.Market)
	return nil
}

// CloseAccount closes an open-orders account.
func (p *Program) CloseAccount(ctx context.Context, accounts domain.CloseAccountAccounts) error {
	if err := p.dex.CloseOpenOrders(ctx, accounts); err != nil {
		return fmt.Errorf("venue: close open orders %s: %w", accounts.OpenOrders, err)
	}
	p.log("closed open orders %s on %s", accounts.OpenOrders, accounts.Market)
	return nil
}

// Swap buys (Bid) or sells (Ask) the market's base currency for Amount of
// the spent currency. The returned outcome is populated whenever execution
// reached the risk checks, even if they rejected it.
func (p *Program) Swap(ctx context.Context, req SwapRequest) (domain.DidSwap, error) {
	start := time.Now()
	outcome, err := p.swap(ctx, req)
	observability.RecordSwap("direct", Result(err), time.Since(start).Seconds())
	return outcome, err
}

func (p *Program) swap(ctx context.Context, req SwapRequest) (domain.DidSwap, error) {
	acc := req.Accounts
	if err := acc.Validate(); err != nil {
		return domain.DidSwap{}, err
	}
	coinMint, pcMint, err := p.distinctMints(ctx, acc.Market.CoinWallet, acc.PcWallet)
	if err != nil {
		return domain.DidSwap{}, err
	}

	rate := req.MinExchangeRate
	rate.QuoteDecimals = 0

	from, to := acc.PcWallet, acc.Market.CoinWallet
	fromMint, toMint := pcMint, coinMint
	if req.Side == domain.Ask {
		from, to = to, from
		fromMint, toMint = toMint, fromMint
	}

	client := p.client(acc.Market, acc.Authority, acc.PcWallet, acc.DexProgram, acc.TokenProgram, acc.Rent, req.Referral, req.FeeDiscount)

	before, err := p.tracker.Measure(ctx, from, to)
	if err != nil {
		return domain.DidSwap{}, err
	}
	if req.Side == domain.Bid {
		err = client.Buy(ctx, req.Amount)
	} else {
		err = client.Sell(ctx, req.Amount)
	}
	if err != nil {
		return domain.DidSwap{}, err
	}
	if err := client.Settle(ctx); err != nil {
		return domain.DidSwap{}, err
	}
	after, err := p.tracker.Measure(ctx, from, to)
	if err != nil {
		return domain.DidSwap{}, err
	}
	fromAmount, toAmount, err := balance.Deltas(before, after)
	if err != nil {
		return domain.DidSwap{}, err
	}

	outcome := domain.DidSwap{
		GivenAmount:     req.Amount,
		MinExchangeRate: rate,
		FromAmount:      fromAmount,
		ToAmount:        toAmount,
		FromMint:        fromMint,
		ToMint:          toMint,
		QuoteMint:       pcMint,
		Authority:       acc.Authority,
	}
	p.log("%s on %s: spent %d, received %d", req.Side, acc.Market.Market, fromAmount, toAmount)

	if err := p.verifier.ApplyRiskChecks(ctx, outcome); err != nil {
		return outcome, err
	}
	return outcome, nil
}

// SwapTransitive sells Amount of the From market's base for quote, then
// spends exactly the quote received on the To market's base.
func (p *Program) SwapTransitive(ctx context.Context, req SwapTransitiveRequest) (domain.DidSwap, error) {
	start := time.Now()
	outcome, err := p.swapTransitive(ctx, req)
	observability.RecordSwap("transitive", Result(err), time.Since(start).Seconds())
	if err == nil {
		observability.RecordSpill(outcome.SpillAmount)
	}
	return outcome, err
}

func (p *Program) swapTransitive(ctx context.Context, req SwapTransitiveRequest) (domain.DidSwap, error) {
	acc := req.Accounts
	if err := acc.Validate(); err != nil {
		return domain.DidSwap{}, err
	}
	fromMint, toMint, err := p.distinctMints(ctx, acc.From.CoinWallet, acc.To.CoinWallet)
	if err != nil {
		return domain.DidSwap{}, err
	}
	quoteMint, err := p.tracker.Mint(ctx, acc.PcWallet)
	if err != nil {
		return domain.DidSwap{}, err
	}

	// Leg 1: from base -> quote.
	sellClient := p.client(acc.From, acc.Authority, acc.PcWallet, acc.DexProgram, acc.TokenProgram, acc.Rent, req.Referral, req.FeeDiscount)
	before, err := p.tracker.Measure(ctx, acc.From.CoinWallet, acc.PcWallet)
	if err != nil {
		return domain.DidSwap{}, err
	}
	if err := sellClient.Sell(ctx, req.Amount); err != nil {
		return domain.DidSwap{}, err
	}
	if err := sellClient.Settle(ctx); err != nil {
		return domain.DidSwap{}, err
	}
	after, err := p.tracker.Measure(ctx, acc.From.CoinWallet, acc.PcWallet)
	if err != nil {
		return domain.DidSwap{}, err
	}
	fromAmount, sellProceeds, err := balance.Deltas(before, after)
	if err != nil {
		return domain.DidSwap{}, err
	}
	p.log("leg 1 on %s: sold %d for %d quote", acc.From.Market, fromAmount, sellProceeds)

	// Leg 2: quote -> to base, budgeted by leg 1's measured proceeds.
	buyClient := p.client(acc.To, acc.Authority, acc.PcWallet, acc.DexProgram, acc.TokenProgram, acc.Rent, req.Referral, req.FeeDiscount)
	before, err = p.tracker.Measure(ctx, acc.PcWallet, acc.To.CoinWallet)
	if err != nil {
		return domain.DidSwap{}, err
	}
	if err := buyClient.Buy(ctx, sellProceeds); err != nil {
		return domain.DidSwap{}, err
	}
	if err := buyClient.Settle(ctx); err != nil {
		return domain.DidSwap{}, err
	}
	after, err = p.tracker.Measure(ctx, acc.PcWallet, acc.To.CoinWallet)
	if err != nil {
		return domain.DidSwap{}, err
	}
	buyProceeds, toAmount, err := balance.Deltas(before, after)
	if err != nil {
		return domain.DidSwap{}, err
	}
	if buyProceeds > sellProceeds {
		return domain.DidSwap{}, domain.Trap("spill: %d - %d", sellProceeds, buyProceeds)
	}
	spill := sellProceeds - buyProceeds
	p.log("leg 2 on %s: spent %d quote for %d, spill %d", acc.To.Market, buyProceeds, toAmount, spill)

	outcome := domain.DidSwap{
		GivenAmount:     req.Amount,
		MinExchangeRate: req.MinExchangeRate,
		FromAmount:      fromAmount,
		ToAmount:        toAmount,
		QuoteAmount:     sellProceeds,
		SpillAmount:     spill,
		FromMint:        fromMint,
		ToMint:          toMint,
		QuoteMint:       quoteMint,
		Authority:       acc.Authority,
	}
	if err := p.verifier.ApplyRiskChecks(ctx, outcome); err != nil {
		return outcome, err
	}
	return outcome, nil
}

// distinctMints reads the mints of two wallets and rejects equal ones.
func (p *Program) distinctMints(ctx context.Context, a, b solana.Pubkey) (solana.Pubkey, solana.Pubkey, error) {
	mintA, err := p.tracker.Mint(ctx, a)
	if err != nil {
		return solana.Pubkey{}, solana.Pubkey{}, err
	}
	mintB, err := p.tracker.Mint(ctx, b)
	if err != nil {
		return solana.Pubkey{}, solana.Pubkey{}, err
	}
	if mintA == mintB {
		return solana.Pubkey{}, solana.Pubkey{}, domain.ErrSwapTokensCannotMatch
	}
	return mintA, mintB, nil
}

func (p *Program) client(market domain.MarketAccounts, authority, pcWallet, dexProgram, tokenProgram, rent solana.Pubkey, referral, feeDiscount *solana.Pubkey) *venue.OrderbookClient {
	c := &venue.OrderbookClient{
		Dex:          p.dex,
		Markets:      p.markets,
		Market:       market,
		Authority:    authority,
		PcWallet:     pcWallet,
		DexProgram:   dexProgram,
		TokenProgram: tokenProgram,
		Rent:         rent,
		Referral:     referral,
		FeeDiscount:  feeDiscount,
	}
	if p.verbose {
		c.Logger = p.logger
	}
	return c
}

func (p *Program) log(format string, args ...interface{}) {
	if p.verbose {
		p.logger.Printf("[swap] "+format, args...)
	}
}

// Result labels err for metrics and reports.
func Result(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, domain.ErrSwapTokensCannotMatch):
		return "tokens_cannot_match"
	case errors.Is(err, domain.ErrZeroSwap):
		return "zero_swap"
	case errors.Is(err, domain.ErrSlippageExceeded):
		return "slippage_exceeded"
	case errors.Is(err, domain.ErrArithmetic):
		return "arithmetic_trap"
	case errors.Is(err, domain.ErrEmptyWallet):
		return "empty_wallet"
	default:
		return "error"
	}
}
