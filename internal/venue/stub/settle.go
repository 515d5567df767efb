package stub

import (
	"context"
	"fmt"

	"serum-swap/internal/domain"
	"serum-swap/internal/solana"
	"serum-swap/internal/venue"
)

// SettleFunds implements venue.Dex.
func (v *Venue) SettleFunds(_ context.Context, s venue.Settle) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	if err := v.injected(OpSettle); err != nil {
		return err
	}
	return v.apply(func(st *state) error {
		return st.settle(s)
	})
}

func (st *state) settle(s venue.Settle) error {
	m, ok := st.markets[s.Market.Market]
	if !ok {
		return fmt.Errorf("%w: %s", ErrMarketNotFound, s.Market.Market)
	}
	oo, err := st.ownedOpenOrders(s.Market.OpenOrders, s.Authority, m.info.Address)
	if err != nil {
		return err
	}
	if err := st.checkMint(s.Market.CoinWallet, m.spec.CoinMint); err != nil {
		return err
	}
	if err := st.checkMint(s.PcWallet, m.spec.PcMint); err != nil {
		return err
	}

	if err := st.transfer(m.info.CoinVault, s.Market.CoinWallet, oo.CoinFree); err != nil {
		return err
	}
	if err := st.transfer(m.info.PcVault, s.PcWallet, oo.PcFree); err != nil {
		return err
	}
	oo.CoinFree, oo.PcFree = 0, 0

	if oo.ReferrerRebate == 0 {
		return nil
	}
	if s.Referral != nil {
		if err := st.checkMint(*s.Referral, m.spec.PcMint); err != nil {
			return fmt.Errorf("referral: %w", err)
		}
		if err := st.transfer(m.info.PcVault, *s.Referral, oo.ReferrerRebate); err != nil {
			return err
		}
	} else {
		var c calc
		m.fees = c.add(m.fees, oo.ReferrerRebate)
		if c.err != nil {
			return c.err
		}
	}
	oo.ReferrerRebate = 0
	return nil
}

func (st *state) checkMint(account, mint solana.Pubkey) error {
	acc, ok := st.tokens[account]
	if !ok {
		return fmt.Errorf("%w: %s", ErrAccountNotFound, account)
	}
	if acc.Mint != mint {
		return fmt.Errorf("%w: %s", ErrMintMismatch, account)
	}
	return nil
}

// InitOpenOrders implements venue.Dex.
func (v *Venue) InitOpenOrders(_ context.Context, a domain.InitAccountAccounts) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	if err := v.injected(OpInitOpenOrders); err != nil {
		return err
	}
	if _, ok := v.st.markets[a.Market]; !ok {
		return fmt.Errorf("%w: %s", ErrMarketNotFound, a.Market)
	}
	if _, ok := v.st.openOrders[a.OpenOrders]; ok {
		return fmt.Errorf("%w: %s", ErrOpenOrdersExists, a.OpenOrders)
	}
	v.st.openOrders[a.OpenOrders] = &OpenOrders{Owner: a.Authority, Market: a.Market}
	return nil
}

// CloseOpenOrders implements venue.Dex. The account must hold no funds and
// no resting orders.
func (v *Venue) CloseOpenOrders(_ context.Context, a domain.CloseAccountAccounts) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	if err := v.injected(OpCloseOpenOrders); err != nil {
		return err
	}
	m, ok := v.st.markets[a.Market]
	if !ok {
		return fmt.Errorf("%w: %s", ErrMarketNotFound, a.Market)
	}
	oo, err := v.st.ownedOpenOrders(a.OpenOrders, a.Authority, a.Market)
	if err != nil {
		return err
	}
	if !oo.Empty() || oo.ReferrerRebate != 0 || m.hasOrders(a.OpenOrders) {
		return fmt.Errorf("%w: %s", ErrOpenOrdersNotEmpty, a.OpenOrders)
	}
	delete(v.st.openOrders, a.OpenOrders)
	return nil
}

func (m *marketState) hasOrders(openOrders solana.Pubkey) bool {
	for _, o := range m.bids {
		if o.OpenOrders == openOrders {
			return true
		}
	}
	for _, o := range m.asks {
		if o.OpenOrders == openOrders {
			return true
		}
	}
	return false
}

// Maker describes a resting limit order used to seed a book.
type Maker struct {
	Market     MarketInfo
	OpenOrders solana.Pubkey
	Owner      solana.Pubkey
	Payer      solana.Pubkey
	Side       domain.Side
	Price      uint64
	Lots       uint64
}

// PlaceMaker posts a resting limit order funded from mk.Payer. The
// open-orders account is created on first use.
func (v *Venue) PlaceMaker(ctx context.Context, mk Maker) error {
	if _, ok := v.OpenOrders(mk.OpenOrders); !ok {
		err := v.InitOpenOrders(ctx, domain.InitAccountAccounts{
			OpenOrders: mk.OpenOrders,
			Authority:  mk.Owner,
			Market:     mk.Market.Address,
			DexProgram: v.ProgramID,
		})
		if err != nil {
			return err
		}
	}

	v.mu.Lock()
	m, ok := v.st.markets[mk.Market.Address]
	v.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrMarketNotFound, mk.Market.Address)
	}

	var c calc
	pc := c.mul(c.mul(mk.Lots, mk.Price), m.spec.PcLotSize)
	if c.err != nil {
		return c.err
	}
	return v.NewOrderV3(ctx, venue.NewOrder{
		Market:         mk.Market.Accounts(mk.OpenOrders, mk.Payer, mk.Payer),
		Authority:      mk.Owner,
		DexProgram:     v.ProgramID,
		Side:           mk.Side,
		LimitPrice:     mk.Price,
		MaxCoinQty:     mk.Lots,
		MaxNativePcQty: max(pc, 1),
		SelfTrade:      venue.AbortTransaction,
		OrderType:      venue.PostOnly,
		Limit:          venue.DefaultMatchLimit,
	})
}
