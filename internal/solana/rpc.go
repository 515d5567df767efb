package solana

import (
	"context"
	"errors"
	"fmt"
)

// ErrAccountNotFound is returned when an account has no data on chain.
var ErrAccountNotFound = errors.New("account not found")

// AccountReader reads raw account state.
type AccountReader interface {
	// GetAccountInfo retrieves account info by public key. Returns nil if the
	// account does not exist.
	GetAccountInfo(ctx context.Context, pubkey string) (*AccountInfo, error)
}

// RPCClient defines the Solana RPC HTTP surface used by this module.
type RPCClient interface {
	AccountReader

	// GetTransaction retrieves a transaction by signature.
	GetTransaction(ctx context.Context, signature string) (*Transaction, error)

	// GetSignaturesForAddress retrieves signatures for an address with pagination.
	GetSignaturesForAddress(ctx context.Context, address string, opts *SignaturesOpts) ([]SignatureInfo, error)

	// GetBlockTime retrieves the estimated production time of a block.
	GetBlockTime(ctx context.Context, slot int64) (*int64, error)
}

// Transaction represents a Solana transaction.
type Transaction struct {
	Slot      int64
	Signature string
	BlockTime int64 // Unix timestamp (seconds)
	Meta      *TransactionMeta
	Message   *TransactionMessage
}

// TransactionMeta contains transaction metadata.
type TransactionMeta struct {
	Err         interface{}
	LogMessages []string
}

// TransactionMessage contains parsed transaction message.
type TransactionMessage struct {
	AccountKeys []string
}

// SignatureInfo from getSignaturesForAddress.
type SignatureInfo struct {
	Signature string
	Slot      int64
	BlockTime *int64
	Err       interface{}
}

// SignaturesOpts defines optional pagination parameters for getSignaturesForAddress.
type SignaturesOpts struct {
	Before string // Start searching backwards from this signature
	Until  string // Search until this signature
	Limit  int    // Maximum number of signatures to return
}

func fetchAccountData(ctx context.Context, r AccountReader, key Pubkey) ([]byte, error) {
	info, err := r.GetAccountInfo(ctx, key.String())
	if err != nil {
		return nil, fmt.Errorf("get account %s: %w", key, err)
	}
	if info == nil || info.Data == "" {
		return nil, fmt.Errorf("%w: %s", ErrAccountNotFound, key)
	}
	return info.DataBytes()
}

// FetchTokenAccount reads and decodes an SPL token account.
func FetchTokenAccount(ctx context.Context, r AccountReader, key Pubkey) (*TokenAccount, error) {
	data, err := fetchAccountData(ctx, r, key)
	if err != nil {
		return nil, err
	}
	return DecodeTokenAccount(data)
}

// FetchMarketState reads and decodes a DEX market account.
func FetchMarketState(ctx context.Context, r AccountReader, market Pubkey) (*MarketState, error) {
	data, err := fetchAccountData(ctx, r, market)
	if err != nil {
		return nil, err
	}
	return DecodeMarketState(data)
}
