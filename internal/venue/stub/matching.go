package stub

import (
	"context"
	"fmt"
	"sort"

	"serum-swap/internal/domain"
	"serum-swap/internal/solana"
	"serum-swap/internal/venue"
)

const bpsDenominator = 10_000

// NewOrderV3 implements venue.Dex. The taker side walks the opposite book
// from the best price, touching at most order.Limit maker orders.
func (v *Venue) NewOrderV3(_ context.Context, order venue.NewOrder) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	if err := v.injected(OpNewOrder); err != nil {
		return err
	}
	return v.apply(func(st *state) error {
		return st.newOrder(order)
	})
}

func (st *state) newOrder(o venue.NewOrder) error {
	m, ok := st.markets[o.Market.Market]
	if !ok {
		return fmt.Errorf("%w: %s", ErrMarketNotFound, o.Market.Market)
	}
	taker, err := st.ownedOpenOrders(o.Market.OpenOrders, o.Authority, m.info.Address)
	if err != nil {
		return err
	}
	if o.LimitPrice == 0 || o.MaxCoinQty == 0 || o.MaxNativePcQty == 0 {
		return fmt.Errorf("%w: price and quantities must be non-zero", ErrInvalidOrder)
	}

	payer, ok := st.tokens[o.Market.OrderPayerTokenAccount]
	if !ok {
		return fmt.Errorf("%w: order payer %s", ErrAccountNotFound, o.Market.OrderPayerTokenAccount)
	}
	if payer.Owner != o.Authority {
		return fmt.Errorf("%w: order payer %s", ErrUnauthorized, o.Market.OrderPayerTokenAccount)
	}
	wantMint := m.spec.PcMint
	if o.Side == domain.Ask {
		wantMint = m.spec.CoinMint
	}
	if payer.Mint != wantMint {
		return fmt.Errorf("%w: order payer for %s", ErrMintMismatch, o.Side)
	}
	if o.FeeDiscount != nil {
		// Fee tiers are flat here; the account is only checked.
		fd, ok := st.tokens[*o.FeeDiscount]
		if !ok {
			return fmt.Errorf("%w: fee discount %s", ErrAccountNotFound, *o.FeeDiscount)
		}
		if fd.Owner != o.Authority {
			return fmt.Errorf("%w: fee discount %s", ErrUnauthorized, *o.FeeDiscount)
		}
	}
	if o.OrderType == venue.PostOnly && m.crosses(o.Side, o.LimitPrice) {
		return ErrPostOnlyWouldCross
	}

	if o.Side == domain.Ask {
		return st.takeAsk(m, taker, o)
	}
	return st.takeBid(m, taker, o)
}

func (st *state) ownedOpenOrders(key, authority, market solana.Pubkey) (*OpenOrders, error) {
	oo, ok := st.openOrders[key]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrOpenOrdersNotFound, key)
	}
	if oo.Owner != authority {
		return nil, fmt.Errorf("%w: open orders %s", ErrUnauthorized, key)
	}
	if oo.Market != market {
		return nil, fmt.Errorf("%w: open orders %s belongs to market %s", ErrInvalidOrder, key, oo.Market)
	}
	return oo, nil
}

// takeAsk sells up to MaxCoinQty lots into the bids.
func (st *state) takeAsk(m *marketState, taker *OpenOrders, o venue.NewOrder) error {
	var c calc
	coinLot, pcLot := m.spec.CoinLotSize, m.spec.PcLotSize

	deposit := c.mul(o.MaxCoinQty, coinLot)
	if c.err != nil {
		return c.err
	}
	if err := st.transfer(o.Market.OrderPayerTokenAccount, m.info.CoinVault, deposit); err != nil {
		return err
	}

	remaining := o.MaxCoinQty
	var cycles uint16
	for remaining > 0 && len(m.bids) > 0 && cycles < o.Limit {
		best := &m.bids[0]
		if best.Price < o.LimitPrice {
			break
		}
		cycles++
		q := min(remaining, best.Lots)
		maker := st.openOrders[best.OpenOrders]

		if best.OpenOrders == o.Market.OpenOrders {
			switch o.SelfTrade {
			case venue.DecrementTake:
			case venue.CancelProvide:
				q = best.Lots
			default:
				return ErrWouldSelfTrade
			}
			release := c.mul(c.mul(q, best.Price), pcLot)
			maker.PcLocked -= release
			maker.PcFree = c.add(maker.PcFree, release)
			best.Lots -= q
			if o.SelfTrade == venue.DecrementTake {
				remaining -= q
				taker.CoinFree = c.add(taker.CoinFree, c.mul(q, coinLot))
			}
		} else {
			quote := c.mul(c.mul(q, best.Price), pcLot)
			fee := c.mul(q, m.feePerLot(&c, best.Price))
			rebate := m.rebate(&c, fee)
			taker.PcFree = c.add(taker.PcFree, quote-fee)
			taker.ReferrerRebate = c.add(taker.ReferrerRebate, rebate)
			m.fees = c.add(m.fees, fee-rebate)
			maker.PcLocked -= quote
			maker.CoinFree = c.add(maker.CoinFree, c.mul(q, coinLot))
			best.Lots -= q
			remaining -= q
			st.fills = append(st.fills, Fill{
				Market: m.info.Address, Maker: best.OpenOrders, Taker: o.Market.OpenOrders,
				TakerSide: domain.Ask, Price: best.Price, Lots: q, Fee: fee,
			})
		}
		if c.err != nil {
			return c.err
		}
		if best.Lots == 0 {
			m.bids = m.bids[1:]
		}
	}

	if remaining == 0 {
		return nil
	}
	leftover := c.mul(remaining, coinLot)
	// An IOC remainder is retired even when the match limit stopped the
	// walk. The DEX would rest it; swap balance deltas are unchanged.
	if o.OrderType == venue.ImmediateOrCancel {
		taker.CoinFree = c.add(taker.CoinFree, leftover)
		return c.err
	}
	taker.CoinLocked = c.add(taker.CoinLocked, leftover)
	m.rest(domain.Ask, o.Market.OpenOrders, o.LimitPrice, remaining)
	return c.err
}

// takeBid buys from the asks spending at most MaxNativePcQty, fees included.
func (st *state) takeBid(m *marketState, taker *OpenOrders, o venue.NewOrder) error {
	var c calc
	coinLot, pcLot := m.spec.CoinLotSize, m.spec.PcLotSize

	if err := st.transfer(o.Market.OrderPayerTokenAccount, m.info.PcVault, o.MaxNativePcQty); err != nil {
		return err
	}

	budget := o.MaxNativePcQty
	remaining := o.MaxCoinQty
	var cycles uint16
	for remaining > 0 && len(m.asks) > 0 && cycles < o.Limit {
		best := &m.asks[0]
		if best.Price > o.LimitPrice {
			break
		}
		maker := st.openOrders[best.OpenOrders]

		if best.OpenOrders == o.Market.OpenOrders {
			cycles++
			q := min(remaining, best.Lots)
			switch o.SelfTrade {
			case venue.DecrementTake:
				remaining -= q
			case venue.CancelProvide:
				q = best.Lots
			default:
				return ErrWouldSelfTrade
			}
			release := c.mul(q, coinLot)
			maker.CoinLocked -= release
			maker.CoinFree = c.add(maker.CoinFree, release)
			best.Lots -= q
		} else {
			costPerLot := c.mul(best.Price, pcLot)
			feePerLot := m.feePerLot(&c, best.Price)
			perLot := c.add(costPerLot, feePerLot)
			if c.err != nil {
				return c.err
			}
			affordable := budget / perLot
			if affordable == 0 {
				break
			}
			cycles++
			q := min(remaining, best.Lots, affordable)
			cost := c.mul(q, costPerLot)
			fee := c.mul(q, feePerLot)
			rebate := m.rebate(&c, fee)
			budget -= cost + fee
			taker.CoinFree = c.add(taker.CoinFree, c.mul(q, coinLot))
			taker.ReferrerRebate = c.add(taker.ReferrerRebate, rebate)
			m.fees = c.add(m.fees, fee-rebate)
			maker.CoinLocked -= q * coinLot
			maker.PcFree = c.add(maker.PcFree, cost)
			best.Lots -= q
			remaining -= q
			st.fills = append(st.fills, Fill{
				Market: m.info.Address, Maker: best.OpenOrders, Taker: o.Market.OpenOrders,
				TakerSide: domain.Bid, Price: best.Price, Lots: q, Fee: fee,
			})
		}
		if c.err != nil {
			return c.err
		}
		if best.Lots == 0 {
			m.asks = m.asks[1:]
		}
	}

	// Same for an IOC bid: the unspent budget returns to free.
	if o.OrderType == venue.ImmediateOrCancel || remaining == 0 {
		taker.PcFree = c.add(taker.PcFree, budget)
		return c.err
	}
	lock := c.mul(c.mul(remaining, o.LimitPrice), pcLot)
	if c.err != nil {
		return c.err
	}
	if lock > budget {
		return fmt.Errorf("%w: resting bid needs %d, %d left", ErrInsufficientFunds, lock, budget)
	}
	taker.PcLocked = c.add(taker.PcLocked, lock)
	taker.PcFree = c.add(taker.PcFree, budget-lock)
	m.rest(domain.Bid, o.Market.OpenOrders, o.LimitPrice, remaining)
	return c.err
}

func (m *marketState) feePerLot(c *calc, price uint64) uint64 {
	return c.mul(c.mul(price, m.spec.PcLotSize), m.spec.TakerFeeBps) / bpsDenominator
}

func (m *marketState) rebate(c *calc, fee uint64) uint64 {
	return c.mul(fee, m.spec.ReferralShareBps) / bpsDenominator
}

func (m *marketState) crosses(side domain.Side, price uint64) bool {
	if side == domain.Bid {
		return len(m.asks) > 0 && m.asks[0].Price <= price
	}
	return len(m.bids) > 0 && m.bids[0].Price >= price
}

func (m *marketState) rest(side domain.Side, openOrders solana.Pubkey, price, lots uint64) {
	m.seq++
	o := restingOrder{OpenOrders: openOrders, Price: price, Lots: lots, Seq: m.seq}
	if side == domain.Bid {
		i := sort.Search(len(m.bids), func(i int) bool { return m.bids[i].Price < price })
		m.bids = append(m.bids, restingOrder{})
		copy(m.bids[i+1:], m.bids[i:])
		m.bids[i] = o
		return
	}
	i := sort.Search(len(m.asks), func(i int) bool { return m.asks[i].Price > price })
	m.asks = append(m.asks, restingOrder{})
	copy(m.asks[i+1:], m.asks[i:])
	m.asks[i] = o
}
