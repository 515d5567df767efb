// Package venue submits orders to a central limit order book program and
// settles the resulting balances back to the user's wallets.
package venue

import (
	"context"

	"serum-swap/internal/domain"
	"serum-swap/internal/solana"
)

// SelfTradeBehavior selects what the book does when a taker would match
// against its own resting order.
type SelfTradeBehavior uint8

const (
	// DecrementTake reduces both orders by the overlapping size without a fill.
	DecrementTake SelfTradeBehavior = iota
	CancelProvide
	AbortTransaction
)

// OrderType of a new order.
type OrderType uint8

const (
	Limit OrderType = iota
	ImmediateOrCancel
	PostOnly
)

// Order submission defaults used by every swap leg.
const (
	DefaultMatchLimit    uint16 = 65535
	DefaultClientOrderID uint64 = 0
)

// NewOrder is the argument set of the venue's new-order instruction.
//
// Prices are quote lots per base lot. MaxCoinQty is in base lots;
// MaxNativePcQty is in native quote units and includes fees.
type NewOrder struct {
	Market         domain.MarketAccounts
	Authority      solana.Pubkey
	DexProgram     solana.Pubkey
	TokenProgram   solana.Pubkey
	Rent           solana.Pubkey
	Side           domain.Side
	LimitPrice     uint64
	MaxCoinQty     uint64
	MaxNativePcQty uint64
	SelfTrade      SelfTradeBehavior
	OrderType      OrderType
	ClientOrderID  uint64
	Limit          uint16
	// FeeDiscount is an optional SRM/MSRM account used for fee tiers.
	FeeDiscount *solana.Pubkey
}

// Settle moves an open-orders account's free balances to the user's
// wallets. A non-nil Referral receives the referrer rebate.
type Settle struct {
	Market       domain.MarketAccounts
	Authority    solana.Pubkey
	PcWallet     solana.Pubkey
	DexProgram   solana.Pubkey
	TokenProgram solana.Pubkey
	Referral     *solana.Pubkey
}

// Dex is the order-book program. Every call either applies fully or
// returns an error and changes nothing.
type Dex interface {
	NewOrderV3(ctx context.Context, order NewOrder) error
	SettleFunds(ctx context.Context, settle Settle) error
	InitOpenOrders(ctx context.Context, accounts domain.InitAccountAccounts) error
	CloseOpenOrders(ctx context.Context, accounts domain.CloseAccountAccounts) error
}

// MarketLoader reads static market parameters.
type MarketLoader interface {
	// CoinLotSize returns the market's base lot size in native units.
	CoinLotSize(ctx context.Context, market solana.Pubkey) (uint64, error)
}
