package solana

import (
	"bytes"
	"encoding/binary"
	"fmt"
)

// SPL token account layout: mint(32) | owner(32) | amount(8) | ...
const (
	TokenAccountSize      = 165
	tokenAccountMinSize   = 72
	tokenAccountAmountOff = 64
)

// TokenAccount is the subset of an SPL token account this module reads.
type TokenAccount struct {
	Mint   Pubkey
	Owner  Pubkey
	Amount uint64
}

// DecodeTokenAccount parses raw SPL token account data.
func DecodeTokenAccount(data []byte) (*TokenAccount, error) {
	if len(data) < tokenAccountMinSize {
		return nil, fmt.Errorf("token account data too short: %d", len(data))
	}
	acc := &TokenAccount{
		Amount: binary.LittleEndian.Uint64(data[tokenAccountAmountOff : tokenAccountAmountOff+8]),
	}
	copy(acc.Mint[:], data[0:32])
	copy(acc.Owner[:], data[32:64])
	return acc, nil
}

// EncodeTokenAccount writes the fields in SPL layout, zero filling the rest.
func EncodeTokenAccount(acc *TokenAccount) []byte {
	data := make([]byte, TokenAccountSize)
	copy(data[0:32], acc.Mint[:])
	copy(data[32:64], acc.Owner[:])
	binary.LittleEndian.PutUint64(data[tokenAccountAmountOff:], acc.Amount)
	return data
}

// Serum DEX market account framing.
var (
	marketHead    = []byte("serum")
	marketPadding = []byte("padding")
)

// MarketStateSize is the framed length of a v2 market account.
const MarketStateSize = 388

// MarketState is the decoded Serum DEX market account.
//
// Layout after the 5 byte head (all little endian):
//
//	account_flags u64 | own_address [32] | vault_signer_nonce u64 |
//	coin_mint [32] | pc_mint [32] | coin_vault [32] |
//	coin_deposits_total u64 | coin_fees_accrued u64 | pc_vault [32] |
//	pc_deposits_total u64 | pc_fees_accrued u64 | pc_dust_threshold u64 |
//	req_q [32] | event_q [32] | bids [32] | asks [32] |
//	coin_lot_size u64 | pc_lot_size u64 | fee_rate_bps u64 |
//	referrer_rebates_accrued u64
type MarketState struct {
	AccountFlags     uint64
	OwnAddress       Pubkey
	VaultSignerNonce uint64
	CoinMint         Pubkey
	PcMint           Pubkey
	CoinVault        Pubkey
	CoinDeposits     uint64
	CoinFeesAccrued  uint64
	PcVault          Pubkey
	PcDeposits       uint64
	PcFeesAccrued    uint64
	PcDustThreshold  uint64
	RequestQueue     Pubkey
	EventQueue       Pubkey
	Bids             Pubkey
	Asks             Pubkey
	CoinLotSize      uint64
	PcLotSize        uint64
	FeeRateBps       uint64
	ReferrerRebates  uint64
}

type layoutReader struct {
	buf []byte
	off int
}

func (r *layoutReader) u64() uint64 {
	v := binary.LittleEndian.Uint64(r.buf[r.off : r.off+8])
	r.off += 8
	return v
}

func (r *layoutReader) key() Pubkey {
	var p Pubkey
	copy(p[:], r.buf[r.off:r.off+PubkeyLength])
	r.off += PubkeyLength
	return p
}

// DecodeMarketState parses a framed market account.
func DecodeMarketState(data []byte) (*MarketState, error) {
	if len(data) < MarketStateSize {
		return nil, fmt.Errorf("market data too short: %d", len(data))
	}
	if !bytes.Equal(data[:len(marketHead)], marketHead) {
		return nil, fmt.Errorf("market data: missing %q head", marketHead)
	}
	tail := data[MarketStateSize-len(marketPadding) : MarketStateSize]
	if !bytes.Equal(tail, marketPadding) {
		return nil, fmt.Errorf("market data: missing %q tail", marketPadding)
	}

	r := &layoutReader{buf: data, off: len(marketHead)}
	m := &MarketState{}
	m.AccountFlags = r.u64()
	m.OwnAddress = r.key()
	m.VaultSignerNonce = r.u64()
	m.CoinMint = r.key()
	m.PcMint = r.key()
	m.CoinVault = r.key()
	m.CoinDeposits = r.u64()
	m.CoinFeesAccrued = r.u64()
	m.PcVault = r.key()
	m.PcDeposits = r.u64()
	m.PcFeesAccrued = r.u64()
	m.PcDustThreshold = r.u64()
	m.RequestQueue = r.key()
	m.EventQueue = r.key()
	m.Bids = r.key()
	m.Asks = r.key()
	m.CoinLotSize = r.u64()
	m.PcLotSize = r.u64()
	m.FeeRateBps = r.u64()
	m.ReferrerRebates = r.u64()
	return m, nil
}

// EncodeMarketState is the inverse of DecodeMarketState.
func EncodeMarketState(m *MarketState) []byte {
	data := make([]byte, 0, MarketStateSize)
	data = append(data, marketHead...)
	u64 := func(v uint64) { data = binary.LittleEndian.AppendUint64(data, v) }
	key := func(p Pubkey) { data = append(data, p[:]...) }

	u64(m.AccountFlags)
	key(m.OwnAddress)
	u64(m.VaultSignerNonce)
	key(m.CoinMint)
	key(m.PcMint)
	key(m.CoinVault)
	u64(m.CoinDeposits)
	u64(m.CoinFeesAccrued)
	key(m.PcVault)
	u64(m.PcDeposits)
	u64(m.PcFeesAccrued)
	u64(m.PcDustThreshold)
	key(m.RequestQueue)
	key(m.EventQueue)
	key(m.Bids)
	key(m.Asks)
	u64(m.CoinLotSize)
	u64(m.PcLotSize)
	u64(m.FeeRateBps)
	u64(m.ReferrerRebates)
	data = append(data, marketPadding...)
	return data
}
