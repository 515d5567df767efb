package main

import (
	"context"
	"fmt"
	"log"

	"serum-swap/internal/config"
	"serum-swap/internal/domain"
	"serum-swap/internal/event"
	"serum-swap/internal/solana"
	"serum-swap/internal/swap"
	"serum-swap/internal/venue/stub"
)

// simulation is a scenario materialized on a stub venue.
type simulation struct {
	sc      *config.Scenario
	v       *stub.Venue
	prog    *swap.Program
	markets map[string]stub.MarketInfo
	// wallets of the swap authority in creation order
	own    []ownWallet
	logger *log.Logger
}

type ownWallet struct {
	Mint    string
	Address solana.Pubkey
}

// BalanceRow is one of the authority's wallets before and after the swap.
type BalanceRow struct {
	Mint   string
	Before uint64
	After  uint64
}

// Result is the outcome of a simulated swap.
type Result struct {
	Outcome  domain.DidSwap
	Err      error
	Fills    int
	Balances []BalanceRow
}

func mintKey(name string) solana.Pubkey { return stub.Key("mint:" + name) }

func walletKey(owner, mint string) solana.Pubkey {
	return stub.Key("wallet:" + owner + ":" + mint)
}

func openOrdersKey(owner, market string) solana.Pubkey {
	return stub.Key("open-orders:" + owner + ":" + market)
}

// newSimulation creates markets, funds wallets and seeds the books.
func newSimulation(ctx context.Context, sc *config.Scenario, logger *log.Logger, verbose bool) (*simulation, error) {
	v := stub.New()
	s := &simulation{
		sc:      sc,
		v:       v,
		markets: make(map[string]stub.MarketInfo),
		logger:  logger,
		prog: swap.New(swap.Options{
			Dex:      v,
			Markets:  v,
			Balances: v,
			Emitter:  event.NewLogEmitter(logger),
			Logger:   logger,
			Verbose:  verbose,
		}),
	}

	for _, m := range sc.Markets {
		info, err := v.CreateMarket(stub.MarketSpec{
			Address:          stub.Key("market:" + m.Name),
			CoinMint:         mintKey(m.CoinMint),
			PcMint:           mintKey(m.PcMint),
			CoinLotSize:      m.CoinLotSize,
			PcLotSize:        m.PcLotSize,
			TakerFeeBps:      m.TakerFeeBps,
			ReferralShareBps: m.ReferralShareBps,
		})
		if err != nil {
			return nil, fmt.Errorf("create market %s: %w", m.Name, err)
		}
		s.markets[m.Name] = info
	}

	for _, w := range sc.Wallets {
		addr := walletKey(w.Owner, w.Mint)
		if err := v.CreateTokenAccount(addr, stub.Key(w.Owner), mintKey(w.Mint), w.Amount); err != nil {
			return nil, fmt.Errorf("create wallet %s/%s: %w", w.Owner, w.Mint, err)
		}
		if w.Owner == sc.Authority {
			s.own = append(s.own, ownWallet{Mint: w.Mint, Address: addr})
		}
	}

	for _, m := range sc.Markets {
		if err := s.seed(ctx, m); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// wallet returns the owner's wallet for mint, creating an empty one when
// the scenario did not fund it.
func (s *simulation) wallet(owner, mint string) (solana.Pubkey, error) {
	addr := walletKey(owner, mint)
	if _, ok := s.v.TokenAccount(addr); ok {
		return addr, nil
	}
	if err := s.v.CreateTokenAccount(addr, stub.Key(owner), mintKey(mint), 0); err != nil {
		return solana.Pubkey{}, err
	}
	if owner == s.sc.Authority {
		s.own = append(s.own, ownWallet{Mint: mint, Address: addr})
	}
	return addr, nil
}

func (s *simulation) seed(ctx context.Context, m config.ScenarioMarket) error {
	info := s.markets[m.Name]
	place := func(side domain.Side, o config.ScenarioOrder) error {
		mint := m.PcMint
		if side == domain.Ask {
			mint = m.CoinMint
		}
		payer, err := s.wallet(o.Owner, mint)
		if err != nil {
			return err
		}
		err = s.v.PlaceMaker(ctx, stub.Maker{
			Market:     info,
			OpenOrders: openOrdersKey(o.Owner, m.Name),
			Owner:      stub.Key(o.Owner),
			Payer:      payer,
			Side:       side,
			Price:      o.Price,
			Lots:       o.Lots,
		})
		if err != nil {
			return fmt.Errorf("market %s: %s %d@%d by %s: %w", m.Name, side, o.Lots, o.Price, o.Owner, err)
		}
		return nil
	}

	for _, o := range m.Bids {
		if err := place(domain.Bid, o); err != nil {
			return err
		}
	}
	for _, o := range m.Asks {
		if err := place(domain.Ask, o); err != nil {
			return err
		}
	}
	return nil
}

// accounts opens the authority's open-orders account on market and builds
// its account set with the given payer.
func (s *simulation) accounts(ctx context.Context, market config.ScenarioMarket, payerMint string) (domain.MarketAccounts, error) {
	authority := stub.Key(s.sc.Authority)
	oo := openOrdersKey(s.sc.Authority, market.Name)
	if _, ok := s.v.OpenOrders(oo); !ok {
		err := s.prog.InitAccount(ctx, domain.InitAccountAccounts{
			OpenOrders: oo,
			Authority:  authority,
			Market:     s.markets[market.Name].Address,
			DexProgram: s.v.ProgramID,
		})
		if err != nil {
			return domain.MarketAccounts{}, err
		}
	}
	coin, err := s.wallet(s.sc.Authority, market.CoinMint)
	if err != nil {
		return domain.MarketAccounts{}, err
	}
	payer, err := s.wallet(s.sc.Authority, payerMint)
	if err != nil {
		return domain.MarketAccounts{}, err
	}
	return s.markets[market.Name].Accounts(oo, payer, coin), nil
}

func (s *simulation) referral(pcMint string) (*solana.Pubkey, error) {
	if s.sc.Swap.Referral == "" {
		return nil, nil
	}
	addr, err := s.wallet(s.sc.Swap.Referral, pcMint)
	if err != nil {
		return nil, err
	}
	return &addr, nil
}

// run executes the scenario's swap as one host transaction.
func (s *simulation) run(ctx context.Context) (*Result, error) {
	rate, err := s.sc.Swap.ExchangeRate()
	if err != nil {
		return nil, err
	}

	var exec func() (domain.DidSwap, error)
	if s.sc.Swap.Transitive() {
		exec, err = s.transitive(ctx, rate)
	} else {
		exec, err = s.direct(ctx, rate)
	}
	if err != nil {
		return nil, err
	}

	before := s.snapshot()
	fills := len(s.v.Fills())

	res := &Result{}
	res.Err = s.v.WithTransaction(func() error {
		var err error
		res.Outcome, err = exec()
		return err
	})

	after := s.snapshot()
	res.Fills = len(s.v.Fills()) - fills
	for i, w := range s.own {
		res.Balances = append(res.Balances, BalanceRow{Mint: w.Mint, Before: before[i], After: after[i]})
	}
	return res, nil
}

func (s *simulation) direct(ctx context.Context, rate domain.ExchangeRate) (func() (domain.DidSwap, error), error) {
	sw := s.sc.Swap
	m, _ := s.sc.Market(sw.Market)

	payerMint := m.PcMint
	if sw.Side == domain.Ask {
		payerMint = m.CoinMint
	}
	acc, err := s.accounts(ctx, *m, payerMint)
	if err != nil {
		return nil, err
	}
	pc, err := s.wallet(s.sc.Authority, m.PcMint)
	if err != nil {
		return nil, err
	}
	ref, err := s.referral(m.PcMint)
	if err != nil {
		return nil, err
	}

	req := swap.SwapRequest{
		Accounts: domain.SwapAccounts{
			Market:     acc,
			Authority:  stub.Key(s.sc.Authority),
			PcWallet:   pc,
			DexProgram: s.v.ProgramID,
		},
		Side:            sw.Side,
		Amount:          sw.Amount,
		MinExchangeRate: rate,
		Referral:        ref,
	}
	return func() (domain.DidSwap, error) { return s.prog.Swap(ctx, req) }, nil
}

func (s *simulation) transitive(ctx context.Context, rate domain.ExchangeRate) (func() (domain.DidSwap, error), error) {
	sw := s.sc.Swap
	from, _ := s.sc.Market(sw.FromMarket)
	to, _ := s.sc.Market(sw.ToMarket)
	if from.PcMint != to.PcMint {
		return nil, fmt.Errorf("markets %s and %s do not share a quote mint", from.Name, to.Name)
	}

	fromAcc, err := s.accounts(ctx, *from, from.CoinMint)
	if err != nil {
		return nil, err
	}
	toAcc, err := s.accounts(ctx, *to, to.PcMint)
	if err != nil {
		return nil, err
	}
	pc, err := s.wallet(s.sc.Authority, from.PcMint)
	if err != nil {
		return nil, err
	}
	ref, err := s.referral(from.PcMint)
	if err != nil {
		return nil, err
	}

	req := swap.SwapTransitiveRequest{
		Accounts: domain.SwapTransitiveAccounts{
			From:       fromAcc,
			To:         toAcc,
			Authority:  stub.Key(s.sc.Authority),
			PcWallet:   pc,
			DexProgram: s.v.ProgramID,
		},
		Amount:          sw.Amount,
		MinExchangeRate: rate,
		Referral:        ref,
	}
	return func() (domain.DidSwap, error) { return s.prog.SwapTransitive(ctx, req) }, nil
}

func (s *simulation) snapshot() []uint64 {
	out := make([]uint64, len(s.own))
	for i, w := range s.own {
		out[i] = s.v.Balance(w.Address)
	}
	return out
}
