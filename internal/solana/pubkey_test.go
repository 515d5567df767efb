package solana

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParsePubkey(t *testing.T) {
	p, err := ParsePubkey("So11111111111111111111111111111111111111112")
	require.NoError(t, err)
	assert.Equal(t, "So11111111111111111111111111111111111111112", p.String())
	assert.False(t, p.IsZero())

	_, err = ParsePubkey("not-base58-0OIl")
	assert.Error(t, err)

	_, err = ParsePubkey("abc")
	assert.Error(t, err, "short keys must be rejected")
}

func TestPubkey_ZeroIsSystemProgram(t *testing.T) {
	var zero Pubkey
	assert.True(t, zero.IsZero())
	assert.Equal(t, "11111111111111111111111111111111", zero.String())
}

func TestPubkey_JSON(t *testing.T) {
	type wrapper struct {
		Key Pubkey `json:"key"`
	}
	in := wrapper{Key: TokenProgramID}

	raw, err := json.Marshal(in)
	require.NoError(t, err)
	assert.JSONEq(t, `{"key":"TokenkegQfeZyiNwAJbNbGKPFXCWuBvf9Ss623VQ5DA"}`, string(raw))

	var out wrapper
	require.NoError(t, json.Unmarshal(raw, &out))
	assert.Equal(t, in, out)
}

func TestFindProgramAddress_OffCurve(t *testing.T) {
	program := MustParsePubkey("9xQeWvG816bUx9EPjHmaT23yvVM2ZWbrrpZb9PusVFin")
	market := Pubkey{42}

	addr, bump, err := FindProgramAddress([][]byte{market[:]}, program)
	require.NoError(t, err)
	assert.False(t, IsOnCurve(addr[:]))
	assert.NotZero(t, bump)

	again, err := CreateProgramAddress([][]byte{market[:], {bump}}, program)
	require.NoError(t, err)
	assert.Equal(t, addr, again)
}

func TestAssociatedTokenAddress_Deterministic(t *testing.T) {
	wallet := Pubkey{1}
	mint := MustParsePubkey("EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v")

	a, err := AssociatedTokenAddress(wallet, mint)
	require.NoError(t, err)
	b, err := AssociatedTokenAddress(wallet, mint)
	require.NoError(t, err)
	assert.Equal(t, a, b)

	other, err := AssociatedTokenAddress(Pubkey{2}, mint)
	require.NoError(t, err)
	assert.NotEqual(t, a, other)
}

func TestCreateProgramAddress_SeedLimits(t *testing.T) {
	_, err := CreateProgramAddress([][]byte{make([]byte, MaxSeedLength+1)}, Pubkey{})
	assert.Error(t, err)

	_, err = CreateProgramAddress(make([][]byte, MaxSeeds+1), Pubkey{})
	assert.Error(t, err)
}
