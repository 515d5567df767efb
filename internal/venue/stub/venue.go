// Package stub provides an in-memory order-book venue and token ledger.
//
// It implements venue.Dex, venue.MarketLoader and balance.TokenReader over
// the same state, and offers host-level transactions that roll back every
// change when the enclosed function fails.
package stub

import (
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"sync"

	"serum-swap/internal/domain"
	"serum-swap/internal/solana"
)

var (
	ErrAccountNotFound    = errors.New("token account not found")
	ErrAccountExists      = errors.New("token account already exists")
	ErrMarketNotFound     = errors.New("market not found")
	ErrMarketExists       = errors.New("market already exists")
	ErrOpenOrdersNotFound = errors.New("open orders not found")
	ErrOpenOrdersExists   = errors.New("open orders already initialized")
	ErrOpenOrdersNotEmpty = errors.New("open orders still holds funds or orders")
	ErrUnauthorized       = errors.New("authority does not own account")
	ErrInsufficientFunds  = errors.New("insufficient funds")
	ErrMintMismatch       = errors.New("token mint mismatch")
	ErrInvalidOrder       = errors.New("invalid order")
	ErrWouldSelfTrade     = errors.New("order would self trade")
	ErrPostOnlyWouldCross = errors.New("post-only order would cross")
	ErrOverflow           = errors.New("arithmetic overflow")
)

// Op names an injectable venue operation.
type Op string

const (
	OpNewOrder        Op = "new_order"
	OpSettle          Op = "settle"
	OpInitOpenOrders  Op = "init_open_orders"
	OpCloseOpenOrders Op = "close_open_orders"
)

// Key derives a deterministic address from a label.
func Key(label string) solana.Pubkey {
	return solana.Pubkey(sha256.Sum256([]byte("stub:" + label)))
}

// MarketSpec describes a market to create.
type MarketSpec struct {
	Address     solana.Pubkey
	CoinMint    solana.Pubkey
	PcMint      solana.Pubkey
	CoinLotSize uint64
	PcLotSize   uint64
	TakerFeeBps uint64
	// ReferralShareBps is the share of taker fees rebated to a referrer.
	ReferralShareBps uint64
}

// MarketInfo holds the accounts of a created market.
type MarketInfo struct {
	Address      solana.Pubkey
	CoinMint     solana.Pubkey
	PcMint       solana.Pubkey
	CoinVault    solana.Pubkey
	PcVault      solana.Pubkey
	VaultSigner  solana.Pubkey
	RequestQueue solana.Pubkey
	EventQueue   solana.Pubkey
	Bids         solana.Pubkey
	Asks         solana.Pubkey
}

// Accounts assembles the per-market account set for a user.
func (m MarketInfo) Accounts(openOrders, orderPayer, coinWallet solana.Pubkey) domain.MarketAccounts {
	return domain.MarketAccounts{
		Market:                 m.Address,
		OpenOrders:             openOrders,
		RequestQueue:           m.RequestQueue,
		EventQueue:             m.EventQueue,
		Bids:                   m.Bids,
		Asks:                   m.Asks,
		OrderPayerTokenAccount: orderPayer,
		CoinVault:              m.CoinVault,
		PcVault:                m.PcVault,
		VaultSigner:            m.VaultSigner,
		CoinWallet:             coinWallet,
	}
}

// Fill is one maker/taker match.
type Fill struct {
	Market    solana.Pubkey
	Maker     solana.Pubkey
	Taker     solana.Pubkey
	TakerSide domain.Side
	Price     uint64
	Lots      uint64
	Fee       uint64
}

// Venue is an in-memory matching engine and token ledger.
type Venue struct {
	ProgramID solana.Pubkey

	txMu     sync.Mutex
	mu       sync.Mutex
	st       state
	failures map[Op]error
}

// New creates an empty venue.
func New() *Venue {
	return &Venue{
		ProgramID: Key("dex"),
		st:        newState(),
		failures:  make(map[Op]error),
	}
}

// CreateMarket registers a market with empty books and fresh vaults.
func (v *Venue) CreateMarket(spec MarketSpec) (MarketInfo, error) {
	if spec.CoinLotSize == 0 || spec.PcLotSize == 0 {
		return MarketInfo{}, fmt.Errorf("%w: lot sizes must be positive", ErrInvalidOrder)
	}
	if spec.CoinMint == spec.PcMint {
		return MarketInfo{}, fmt.Errorf("%w: coin and pc mint are equal", ErrMintMismatch)
	}

	v.mu.Lock()
	defer v.mu.Unlock()

	if _, ok := v.st.markets[spec.Address]; ok {
		return MarketInfo{}, fmt.Errorf("%w: %s", ErrMarketExists, spec.Address)
	}

	signer, _, err := solana.FindProgramAddress([][]byte{spec.Address[:]}, v.ProgramID)
	if err != nil {
		return MarketInfo{}, fmt.Errorf("vault signer: %w", err)
	}
	label := spec.Address.String()
	info := MarketInfo{
		Address:      spec.Address,
		CoinMint:     spec.CoinMint,
		PcMint:       spec.PcMint,
		CoinVault:    Key(label + ":coin-vault"),
		PcVault:      Key(label + ":pc-vault"),
		VaultSigner:  signer,
		RequestQueue: Key(label + ":req-q"),
		EventQueue:   Key(label + ":event-q"),
		Bids:         Key(label + ":bids"),
		Asks:         Key(label + ":asks"),
	}
	v.st.tokens[info.CoinVault] = TokenAccount{Mint: spec.CoinMint, Owner: signer}
	v.st.tokens[info.PcVault] = TokenAccount{Mint: spec.PcMint, Owner: signer}
	v.st.markets[spec.Address] = &marketState{info: info, spec: spec}
	return info, nil
}

// CreateTokenAccount adds a funded token account to the ledger.
func (v *Venue) CreateTokenAccount(address, owner, mint solana.Pubkey, amount uint64) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	if _, ok := v.st.tokens[address]; ok {
		return fmt.Errorf("%w: %s", ErrAccountExists, address)
	}
	v.st.tokens[address] = TokenAccount{Mint: mint, Owner: owner, Amount: amount}
	return nil
}

// Balance returns the token amount of address, or zero if it does not exist.
func (v *Venue) Balance(address solana.Pubkey) uint64 {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.st.tokens[address].Amount
}

// TokenAccount returns a copy of the ledger entry for address.
func (v *Venue) TokenAccount(address solana.Pubkey) (TokenAccount, bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	acc, ok := v.st.tokens[address]
	return acc, ok
}

// ReadBalance implements balance.TokenReader.
func (v *Venue) ReadBalance(_ context.Context, wallet solana.Pubkey) (uint64, error) {
	acc, ok := v.TokenAccount(wallet)
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrAccountNotFound, wallet)
	}
	return acc.Amount, nil
}

// ReadMint implements balance.TokenReader.
func (v *Venue) ReadMint(_ context.Context, wallet solana.Pubkey) (solana.Pubkey, error) {
	acc, ok := v.TokenAccount(wallet)
	if !ok {
		return solana.Pubkey{}, fmt.Errorf("%w: %s", ErrAccountNotFound, wallet)
	}
	return acc.Mint, nil
}

// CoinLotSize implements venue.MarketLoader.
func (v *Venue) CoinLotSize(_ context.Context, market solana.Pubkey) (uint64, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	m, ok := v.st.markets[market]
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrMarketNotFound, market)
	}
	return m.spec.CoinLotSize, nil
}

// OpenOrders returns a copy of an open-orders account.
func (v *Venue) OpenOrders(address solana.Pubkey) (OpenOrders, bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	oo, ok := v.st.openOrders[address]
	if !ok {
		return OpenOrders{}, false
	}
	return *oo, true
}

// Fills returns every match recorded so far.
func (v *Venue) Fills() []Fill {
	v.mu.Lock()
	defer v.mu.Unlock()
	return append([]Fill(nil), v.st.fills...)
}

// Depth returns the resting lots on each side of a market.
func (v *Venue) Depth(market solana.Pubkey) (bidLots, askLots uint64) {
	v.mu.Lock()
	defer v.mu.Unlock()
	m, ok := v.st.markets[market]
	if !ok {
		return 0, 0
	}
	for _, o := range m.bids {
		bidLots += o.Lots
	}
	for _, o := range m.asks {
		askLots += o.Lots
	}
	return bidLots, askLots
}

// FeesAccrued returns the quote fees retained by a market.
func (v *Venue) FeesAccrued(market solana.Pubkey) uint64 {
	v.mu.Lock()
	defer v.mu.Unlock()
	if m, ok := v.st.markets[market]; ok {
		return m.fees
	}
	return 0
}

// FailNext makes the next call of op return err without side effects.
func (v *Venue) FailNext(op Op, err error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.failures[op] = err
}

func (v *Venue) injected(op Op) error {
	if err, ok := v.failures[op]; ok {
		delete(v.failures, op)
		return err
	}
	return nil
}

// WithTransaction runs fn as one host transaction: if fn returns an error
// every ledger, order-book and open-orders change made inside is discarded.
// Transactions are serialized.
func (v *Venue) WithTransaction(fn func() error) error {
	v.txMu.Lock()
	defer v.txMu.Unlock()

	v.mu.Lock()
	snap := v.st.clone()
	v.mu.Unlock()

	if err := fn(); err != nil {
		v.mu.Lock()
		v.st = snap
		v.mu.Unlock()
		return err
	}
	return nil
}

// apply runs mutate against a copy of the state and commits it only on
// success. Callers hold v.mu.
func (v *Venue) apply(mutate func(st *state) error) error {
	work := v.st.clone()
	if err := mutate(&work); err != nil {
		return err
	}
	v.st = work
	return nil
}
