package venue

import (
	"context"
	"fmt"
	"io"
	"log"
	"math"

	"serum-swap/internal/domain"
	"serum-swap/internal/solana"
)

// OrderbookClient places swap orders on a single market on behalf of one
// authority and settles them.
type OrderbookClient struct {
	Dex          Dex
	Markets      MarketLoader
	Market       domain.MarketAccounts
	Authority    solana.Pubkey
	PcWallet     solana.Pubkey
	DexProgram   solana.Pubkey
	TokenProgram solana.Pubkey
	Rent         solana.Pubkey
	Referral     *solana.Pubkey
	// FeeDiscount is an optional SRM/MSRM account sent with each order.
	FeeDiscount *solana.Pubkey
	Logger      *log.Logger
}

// Sell executes an immediate ask of up to baseAmount native base units.
// Only whole base lots are offered; the remainder stays in the wallet.
func (c *OrderbookClient) Sell(ctx context.Context, baseAmount uint64) error {
	lots, err := c.coinLots(ctx, baseAmount)
	if err != nil {
		return err
	}
	if lots == 0 {
		c.logger().Printf("sell of %d is below one lot on %s, no order placed", baseAmount, c.Market.Market)
		return nil
	}
	return c.placeOrder(ctx, domain.Ask, 1, lots, math.MaxUint64)
}

// Buy executes an immediate bid spending up to quoteAmount native quote
// units, fees included.
func (c *OrderbookClient) Buy(ctx context.Context, quoteAmount uint64) error {
	if quoteAmount == 0 {
		c.logger().Printf("buy with no quote on %s, no order placed", c.Market.Market)
		return nil
	}
	return c.placeOrder(ctx, domain.Bid, math.MaxUint64, math.MaxUint64, quoteAmount)
}

// Settle releases free balances from the open-orders account to the
// coin and pc wallets.
func (c *OrderbookClient) Settle(ctx context.Context) error {
	err := c.Dex.SettleFunds(ctx, Settle{
		Market:       c.Market,
		Authority:    c.Authority,
		PcWallet:     c.PcWallet,
		DexProgram:   c.DexProgram,
		TokenProgram: c.TokenProgram,
		Referral:     c.Referral,
	})
	if err != nil {
		return fmt.Errorf("venue: settle %s: %w", c.Market.Market, err)
	}
	return nil
}

func (c *OrderbookClient) placeOrder(ctx context.Context, side domain.Side, limitPrice, maxCoinQty, maxNativePcQty uint64) error {
	err := c.Dex.NewOrderV3(ctx, NewOrder{
		Market:         c.Market,
		Authority:      c.Authority,
		DexProgram:     c.DexProgram,
		TokenProgram:   c.TokenProgram,
		Rent:           c.Rent,
		Side:           side,
		LimitPrice:     limitPrice,
		MaxCoinQty:     maxCoinQty,
		MaxNativePcQty: maxNativePcQty,
		SelfTrade:      DecrementTake,
		OrderType:      ImmediateOrCancel,
		ClientOrderID:  DefaultClientOrderID,
		Limit:          DefaultMatchLimit,
		FeeDiscount:    c.FeeDiscount,
	})
	if err != nil {
		return fmt.Errorf("venue: new order %s on %s: %w", side, c.Market.Market, err)
	}
	return nil
}

func (c *OrderbookClient) coinLots(ctx context.Context, amount uint64) (uint64, error) {
	lotSize, err := c.Markets.CoinLotSize(ctx, c.Market.Market)
	if err != nil {
		return 0, fmt.Errorf("venue: %w", err)
	}
	if lotSize == 0 {
		return 0, domain.Trap("coin lots: %d / 0", amount)
	}
	return amount / lotSize, nil
}

func (c *OrderbookClient) logger() *log.Logger {
	if c.Logger == nil {
		return log.New(io.Discard, "", 0)
	}
	return c.Logger
}
