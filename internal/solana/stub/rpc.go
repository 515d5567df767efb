package stub

import (
	"context"
	"encoding/base64"
	"errors"
	"sync"

	"serum-swap/internal/solana"
)

// ErrNotFound is returned when a transaction is not found.
var ErrNotFound = errors.New("not found")

// RPCClient implements solana.RPCClient for testing.
type RPCClient struct {
	mu           sync.RWMutex
	Transactions map[string]*solana.Transaction
	Signatures   map[string][]solana.SignatureInfo
	Accounts     map[string]*solana.AccountInfo
	BlockTimes   map[int64]int64
}

var _ solana.RPCClient = (*RPCClient)(nil)

// NewRPCClient creates a new stub RPC client.
func NewRPCClient() *RPCClient {
	return &RPCClient{
		Transactions: make(map[string]*solana.Transaction),
		Signatures:   make(map[string][]solana.SignatureInfo),
		Accounts:     make(map[string]*solana.AccountInfo),
		BlockTimes:   make(map[int64]int64),
	}
}

// GetTransaction returns a stored transaction or ErrNotFound.
func (c *RPCClient) GetTransaction(_ context.Context, signature string) (*solana.Transaction, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	tx, ok := c.Transactions[signature]
	if !ok {
		return nil, ErrNotFound
	}
	return tx, nil
}

// GetSignaturesForAddress pages stored signatures (newest first) honouring
// Before and Limit.
func (c *RPCClient) GetSignaturesForAddress(_ context.Context, address string, opts *solana.SignaturesOpts) ([]solana.SignatureInfo, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	sigs := c.Signatures[address]
	if opts == nil {
		return sigs, nil
	}
	if opts.Before != "" {
		for i, s := range sigs {
			if s.Signature == opts.Before {
				sigs = sigs[i+1:]
				break
			}
		}
	}
	if opts.Until != "" {
		for i, s := range sigs {
			if s.Signature == opts.Until {
				sigs = sigs[:i]
				break
			}
		}
	}
	if opts.Limit > 0 && opts.Limit < len(sigs) {
		sigs = sigs[:opts.Limit]
	}
	return sigs, nil
}

// GetAccountInfo returns a stored account or nil.
func (c *RPCClient) GetAccountInfo(_ context.Context, pubkey string) (*solana.AccountInfo, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.Accounts[pubkey], nil
}

// GetBlockTime returns a stored block time or nil.
func (c *RPCClient) GetBlockTime(_ context.Context, slot int64) (*int64, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	bt, ok := c.BlockTimes[slot]
	if !ok {
		return nil, nil
	}
	return &bt, nil
}

// AddTransaction stores tx and prepends its signature for each account key,
// mirroring the newest-first order of the real endpoint.
func (c *RPCClient) AddTransaction(tx *solana.Transaction) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Transactions[tx.Signature] = tx
	if tx.Message == nil {
		return
	}
	bt := tx.BlockTime
	info := solana.SignatureInfo{Signature: tx.Signature, Slot: tx.Slot, BlockTime: &bt}
	if tx.Meta != nil {
		info.Err = tx.Meta.Err
	}
	for _, key := range tx.Message.AccountKeys {
		c.Signatures[key] = append([]solana.SignatureInfo{info}, c.Signatures[key]...)
	}
}

// SetAccount stores raw account data under key.
func (c *RPCClient) SetAccount(key solana.Pubkey, owner solana.Pubkey, data []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Accounts[key.String()] = &solana.AccountInfo{
		Owner: owner.String(),
		Data:  base64.StdEncoding.EncodeToString(data),
	}
}
