package stub

import (
	"fmt"
	"math/bits"

	"serum-swap/internal/solana"
)

// TokenAccount is an SPL token account held by the in-memory ledger.
type TokenAccount struct {
	Mint   solana.Pubkey
	Owner  solana.Pubkey
	Amount uint64
}

// OpenOrders is a user's per-market order account.
type OpenOrders struct {
	Owner          solana.Pubkey
	Market         solana.Pubkey
	CoinFree       uint64
	CoinLocked     uint64
	PcFree         uint64
	PcLocked       uint64
	ReferrerRebate uint64
}

// Empty reports whether the account holds no funds.
func (o OpenOrders) Empty() bool {
	return o.CoinFree == 0 && o.CoinLocked == 0 && o.PcFree == 0 && o.PcLocked == 0
}

type restingOrder struct {
	OpenOrders solana.Pubkey
	Price      uint64
	Lots       uint64
	Seq        uint64
}

type marketState struct {
	info MarketInfo
	spec MarketSpec
	bids []restingOrder // price descending, then seq
	asks []restingOrder // price ascending, then seq
	seq  uint64
	fees uint64
}

func (m *marketState) clone() *marketState {
	c := *m
	c.bids = append([]restingOrder(nil), m.bids...)
	c.asks = append([]restingOrder(nil), m.asks...)
	return &c
}

type state struct {
	tokens     map[solana.Pubkey]TokenAccount
	openOrders map[solana.Pubkey]*OpenOrders
	markets    map[solana.Pubkey]*marketState
	fills      []Fill
}

func newState() state {
	return state{
		tokens:     make(map[solana.Pubkey]TokenAccount),
		openOrders: make(map[solana.Pubkey]*OpenOrders),
		markets:    make(map[solana.Pubkey]*marketState),
	}
}

func (s state) clone() state {
	c := newState()
	for k, v := range s.tokens {
		c.tokens[k] = v
	}
	for k, v := range s.openOrders {
		oo := *v
		c.openOrders[k] = &oo
	}
	for k, v := range s.markets {
		c.markets[k] = v.clone()
	}
	c.fills = append([]Fill(nil), s.fills...)
	return c
}

func (s state) transfer(from, to solana.Pubkey, amount uint64) error {
	if amount == 0 {
		return nil
	}
	src, ok := s.tokens[from]
	if !ok {
		return fmt.Errorf("%w: %s", ErrAccountNotFound, from)
	}
	dst, ok := s.tokens[to]
	if !ok {
		return fmt.Errorf("%w: %s", ErrAccountNotFound, to)
	}
	if src.Mint != dst.Mint {
		return fmt.Errorf("%w: transfer %s -> %s", ErrMintMismatch, from, to)
	}
	if src.Amount < amount {
		return fmt.Errorf("%w: %s holds %d, need %d", ErrInsufficientFunds, from, src.Amount, amount)
	}
	if from == to {
		return nil
	}
	sum, err := add(dst.Amount, amount)
	if err != nil {
		return err
	}
	src.Amount -= amount
	s.tokens[from] = src
	dst.Amount = sum
	s.tokens[to] = dst
	return nil
}

// calc accumulates the first overflow across a sequence of operations.
type calc struct {
	err error
}

func (c *calc) mul(a, b uint64) uint64 {
	if c.err != nil {
		return 0
	}
	v, err := mul(a, b)
	c.err = err
	return v
}

func (c *calc) add(a, b uint64) uint64 {
	if c.err != nil {
		return 0
	}
	v, err := add(a, b)
	c.err = err
	return v
}

func mul(a, b uint64) (uint64, error) {
	hi, lo := bits.Mul64(a, b)
	if hi != 0 {
		return 0, fmt.Errorf("%w: %d * %d", ErrOverflow, a, b)
	}
	return lo, nil
}

func add(a, b uint64) (uint64, error) {
	sum, carry := bits.Add64(a, b, 0)
	if carry != 0 {
		return 0, fmt.Errorf("%w: %d + %d", ErrOverflow, a, b)
	}
	return sum, nil
}
