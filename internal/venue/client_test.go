package venue_test

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"serum-swap/internal/domain"
	"serum-swap/internal/solana"
	rpcstub "serum-swap/internal/solana/stub"
	"serum-swap/internal/venue"
)

type recordingDex struct {
	orders  []venue.NewOrder
	settles []venue.Settle
	err     error
}

func (d *recordingDex) NewOrderV3(_ context.Context, o venue.NewOrder) error {
	d.orders = append(d.orders, o)
	return d.err
}

func (d *recordingDex) SettleFunds(_ context.Context, s venue.Settle) error {
	d.settles = append(d.settles, s)
	return d.err
}

func (d *recordingDex) InitOpenOrders(context.Context, domain.InitAccountAccounts) error {
	return d.err
}
func (d *recordingDex) CloseOpenOrders(context.Context, domain.CloseAccountAccounts) error {
	return d.err
}

type fixedLots uint64

func (f fixedLots) CoinLotSize(context.Context, solana.Pubkey) (uint64, error) {
	return uint64(f), nil
}

func newClient(dex venue.Dex, lot uint64) *venue.OrderbookClient {
	referral := solana.Pubkey{9}
	return &venue.OrderbookClient{
		Dex:       dex,
		Markets:   fixedLots(lot),
		Market:    domain.MarketAccounts{Market: solana.Pubkey{1}, CoinWallet: solana.Pubkey{2}},
		Authority: solana.Pubkey{3},
		PcWallet:  solana.Pubkey{4},
		Referral:  &referral,
	}
}

func TestOrderbookClient_Sell(t *testing.T) {
	dex := &recordingDex{}
	require.NoError(t, newClient(dex, 100).Sell(context.Background(), 1_050))

	require.Len(t, dex.orders, 1)
	o := dex.orders[0]
	assert.Equal(t, domain.Ask, o.Side)
	assert.Equal(t, uint64(1), o.LimitPrice)
	assert.Equal(t, uint64(10), o.MaxCoinQty)
	assert.Equal(t, uint64(math.MaxUint64), o.MaxNativePcQty)
	assert.Equal(t, venue.DecrementTake, o.SelfTrade)
	assert.Equal(t, venue.ImmediateOrCancel, o.OrderType)
	assert.Equal(t, uint64(0), o.ClientOrderID)
	assert.Equal(t, uint16(65535), o.Limit)
	assert.Nil(t, o.FeeDiscount)
}

func TestOrderbookClient_PassesFeeDiscount(t *testing.T) {
	dex := &recordingDex{}
	c := newClient(dex, 100)
	srm := solana.Pubkey{7}
	c.FeeDiscount = &srm

	ctx := context.Background()
	require.NoError(t, c.Sell(ctx, 500))
	require.NoError(t, c.Buy(ctx, 500))

	require.Len(t, dex.orders, 2)
	for _, o := range dex.orders {
		require.NotNil(t, o.FeeDiscount)
		assert.Equal(t, srm, *o.FeeDiscount)
	}
}

func TestOrderbookClient_SellBelowOneLot(t *testing.T) {
	dex := &recordingDex{}
	require.NoError(t, newClient(dex, 100).Sell(context.Background(), 99))
	assert.Empty(t, dex.orders)
}

func TestOrderbookClient_SellZeroLotSizeTraps(t *testing.T) {
	err := newClient(&recordingDex{}, 0).Sell(context.Background(), 10)
	assert.ErrorIs(t, err, domain.ErrArithmetic)
}

func TestOrderbookClient_Buy(t *testing.T) {
	dex := &recordingDex{}
	require.NoError(t, newClient(dex, 100).Buy(context.Background(), 5_000))

	require.Len(t, dex.orders, 1)
	o := dex.orders[0]
	assert.Equal(t, domain.Bid, o.Side)
	assert.Equal(t, uint64(math.MaxUint64), o.LimitPrice)
	assert.Equal(t, uint64(math.MaxUint64), o.MaxCoinQty)
	assert.Equal(t, uint64(5_000), o.MaxNativePcQty)
}

func TestOrderbookClient_SettlePassesReferral(t *testing.T) {
	dex := &recordingDex{}
	require.NoError(t, newClient(dex, 100).Settle(context.Background()))

	require.Len(t, dex.settles, 1)
	require.NotNil(t, dex.settles[0].Referral)
	assert.Equal(t, solana.Pubkey{9}, *dex.settles[0].Referral)
	assert.Equal(t, solana.Pubkey{4}, dex.settles[0].PcWallet)
}

func TestOrderbookClient_WrapsVenueErrors(t *testing.T) {
	boom := errors.New("rejected")
	err := newClient(&recordingDex{err: boom}, 100).Buy(context.Background(), 1)
	assert.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "venue: new order bid")
}

func TestRPCMarketLoader(t *testing.T) {
	client := rpcstub.NewRPCClient()
	market := solana.Pubkey{7}
	client.SetAccount(market, solana.Pubkey{}, solana.EncodeMarketState(&solana.MarketState{CoinLotSize: 1_000, PcLotSize: 10}))

	lot, err := venue.NewRPCMarketLoader(client).CoinLotSize(context.Background(), market)
	require.NoError(t, err)
	assert.Equal(t, uint64(1_000), lot)

	_, err = venue.NewRPCMarketLoader(client).CoinLotSize(context.Background(), solana.Pubkey{8})
	assert.ErrorIs(t, err, solana.ErrAccountNotFound)
}
