package domain

import (
	"fmt"

	"serum-swap/internal/solana"
)

// EmptyWallet is the associated token account of the default pubkey for
// the wrapped SOL mint. Clients pass it as a placeholder, so it is never a
// valid wallet.
var EmptyWallet = solana.MustParsePubkey("HJt8Tjdsc9ms9i4WCZEzhzr4oyf3ANcdzXrNdLPFqm3M")

// MarketAccounts are the per-market accounts used to place and settle
// orders, minus the accounts shared between markets.
type MarketAccounts struct {
	Market       solana.Pubkey
	OpenOrders   solana.Pubkey
	RequestQueue solana.Pubkey
	EventQueue   solana.Pubkey
	Bids         solana.Pubkey
	Asks         solana.Pubkey
	// OrderPayerTokenAccount funds the order: the base wallet for asks, the
	// quote wallet for bids.
	OrderPayerTokenAccount solana.Pubkey
	CoinVault              solana.Pubkey
	PcVault                solana.Pubkey
	VaultSigner            solana.Pubkey
	// CoinWallet is the user's wallet for the market's base currency.
	CoinWallet solana.Pubkey
}

// Validate rejects placeholder wallets.
func (m MarketAccounts) Validate() error {
	if m.CoinWallet == EmptyWallet {
		return fmt.Errorf("%w: coin wallet", ErrEmptyWallet)
	}
	if m.OrderPayerTokenAccount == EmptyWallet {
		return fmt.Errorf("%w: order payer", ErrEmptyWallet)
	}
	return nil
}

// SwapAccounts is the account set of a direct swap.
type SwapAccounts struct {
	Market    MarketAccounts
	Authority solana.Pubkey
	// PcWallet is the user's wallet for the market's quote currency.
	PcWallet     solana.Pubkey
	DexProgram   solana.Pubkey
	TokenProgram solana.Pubkey
	Rent         solana.Pubkey
}

// Validate rejects placeholder wallets.
func (a SwapAccounts) Validate() error {
	if a.PcWallet == EmptyWallet {
		return fmt.Errorf("%w: pc wallet", ErrEmptyWallet)
	}
	return a.Market.Validate()
}

// SwapTransitiveAccounts is the account set of a swap across two markets
// sharing a quote currency.
type SwapTransitiveAccounts struct {
	From         MarketAccounts
	To           MarketAccounts
	Authority    solana.Pubkey
	PcWallet     solana.Pubkey
	DexProgram   solana.Pubkey
	TokenProgram solana.Pubkey
	Rent         solana.Pubkey
}

// Validate rejects placeholder wallets.
func (a SwapTransitiveAccounts) Validate() error {
	if a.PcWallet == EmptyWallet {
		return fmt.Errorf("%w: pc wallet", ErrEmptyWallet)
	}
	if err := a.From.Validate(); err != nil {
		return fmt.Errorf("from market: %w", err)
	}
	if err := a.To.Validate(); err != nil {
		return fmt.Errorf("to market: %w", err)
	}
	return nil
}

// InitAccountAccounts creates an open-orders account on a market.
type InitAccountAccounts struct {
	OpenOrders solana.Pubkey
	Authority  solana.Pubkey
	Market     solana.Pubkey
	DexProgram solana.Pubkey
	Rent       solana.Pubkey
}

// CloseAccountAccounts closes an open-orders account and sends its rent to
// Destination.
type CloseAccountAccounts struct {
	OpenOrders  solana.Pubkey
	Authority   solana.Pubkey
	Destination solana.Pubkey
	Market      solana.Pubkey
	DexProgram  solana.Pubkey
}
