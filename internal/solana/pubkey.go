package solana

import (
	"crypto/sha256"
	"errors"
	"fmt"

	"filippo.io/edwards25519"
	"github.com/mr-tron/base58"
)

// PubkeyLength is the size of an ed25519 public key / account address.
const PubkeyLength = 32

// MaxSeeds and MaxSeedLength bound program address derivation inputs.
const (
	MaxSeeds      = 16
	MaxSeedLength = 32
)

const pdaMarker = "ProgramDerivedAddress"

// Well-known program ids.
var (
	TokenProgramID           = MustParsePubkey("TokenkegQfeZyiNwAJbNbGKPFXCWuBvf9Ss623VQ5DA")
	AssociatedTokenProgramID = MustParsePubkey("ATokenGPvbdGVxr1b2hvZbsiqW5xWH25efTNsLJA8knL")
	SysvarRentID             = MustParsePubkey("SysvarRent111111111111111111111111111111111")
)

// ErrNoViableBump is returned when every bump seed yields an on-curve point.
var ErrNoViableBump = errors.New("unable to find a viable program address bump seed")

// Pubkey is a Solana account address.
type Pubkey [PubkeyLength]byte

// ParsePubkey decodes a base58 address.
func ParsePubkey(s string) (Pubkey, error) {
	var p Pubkey
	raw, err := base58.Decode(s)
	if err != nil {
		return p, fmt.Errorf("decode pubkey %q: %w", s, err)
	}
	if len(raw) != PubkeyLength {
		return p, fmt.Errorf("decode pubkey %q: invalid length %d", s, len(raw))
	}
	copy(p[:], raw)
	return p, nil
}

// MustParsePubkey is ParsePubkey for package-level constants.
func MustParsePubkey(s string) Pubkey {
	p, err := ParsePubkey(s)
	if err != nil {
		panic(err)
	}
	return p
}

// PubkeyFromBytes copies a 32-byte slice into a Pubkey.
func PubkeyFromBytes(b []byte) (Pubkey, error) {
	var p Pubkey
	if len(b) != PubkeyLength {
		return p, fmt.Errorf("pubkey: invalid length %d", len(b))
	}
	copy(p[:], b)
	return p, nil
}

func (p Pubkey) String() string {
	return base58.Encode(p[:])
}

// IsZero reports whether p is the default (all-zero) address.
func (p Pubkey) IsZero() bool {
	return p == Pubkey{}
}

// MarshalText implements encoding.TextMarshaler so keys render as base58 in
// JSON and TOML.
func (p Pubkey) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (p *Pubkey) UnmarshalText(text []byte) error {
	parsed, err := ParsePubkey(string(text))
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}

// IsOnCurve reports whether b is a valid compressed ed25519 point.
// Program derived addresses must be off the curve.
func IsOnCurve(b []byte) bool {
	if len(b) != PubkeyLength {
		return false
	}
	_, err := new(edwards25519.Point).SetBytes(b)
	return err == nil
}

// CreateProgramAddress hashes seeds with the program id and rejects results
// that land on the ed25519 curve.
func CreateProgramAddress(seeds [][]byte, programID Pubkey) (Pubkey, error) {
	if len(seeds) > MaxSeeds {
		return Pubkey{}, fmt.Errorf("too many seeds: %d", len(seeds))
	}

	h := sha256.New()
	for _, seed := range seeds {
		if len(seed) > MaxSeedLength {
			return Pubkey{}, fmt.Errorf("seed too long: %d", len(seed))
		}
		h.Write(seed)
	}
	h.Write(programID[:])
	h.Write([]byte(pdaMarker))

	var out Pubkey
	copy(out[:], h.Sum(nil))
	if IsOnCurve(out[:]) {
		return Pubkey{}, errors.New("invalid seeds: address on curve")
	}
	return out, nil
}

// FindProgramAddress searches bump seeds from 255 downward for the first
// off-curve address.
func FindProgramAddress(seeds [][]byte, programID Pubkey) (Pubkey, uint8, error) {
	withBump := make([][]byte, len(seeds)+1)
	copy(withBump, seeds)

	for bump := 255; bump > 0; bump-- {
		withBump[len(seeds)] = []byte{byte(bump)}
		addr, err := CreateProgramAddress(withBump, programID)
		if err == nil {
			return addr, uint8(bump), nil
		}
	}
	return Pubkey{}, 0, ErrNoViableBump
}

// AssociatedTokenAddress derives the canonical token account of wallet for mint.
func AssociatedTokenAddress(wallet, mint Pubkey) (Pubkey, error) {
	addr, _, err := FindProgramAddress(
		[][]byte{wallet[:], TokenProgramID[:], mint[:]},
		AssociatedTokenProgramID,
	)
	return addr, err
}
