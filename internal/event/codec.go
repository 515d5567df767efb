// Package event encodes DidSwap events as program log lines and decodes
// them back for off-chain consumers.
package event

import (
	"crypto/sha256"
	"encoding/base64"
	"encoding/binary"
	"errors"
	"fmt"
	"strings"

	"serum-swap/internal/domain"
	"serum-swap/internal/solana"
)

// ProgramDataPrefix starts every log line that carries an event payload.
const ProgramDataPrefix = "Program data: "

// EncodedSize is the byte length of an encoded DidSwap, discriminator included.
const EncodedSize = 8 + 8 + (8 + 1 + 1 + 1) + 4*8 + 4*solana.PubkeyLength

var (
	ErrUnknownDiscriminator = errors.New("unknown event discriminator")
	ErrMalformedEvent       = errors.New("malformed event")
)

// DidSwapDiscriminator is the first 8 bytes of sha256("event:DidSwap").
var DidSwapDiscriminator = discriminator("DidSwap")

func discriminator(name string) [8]byte {
	sum := sha256.Sum256([]byte("event:" + name))
	var d [8]byte
	copy(d[:], sum[:8])
	return d
}

// Encode serializes e: discriminator, then fields in declaration order,
// integers little-endian, bool as one byte.
func Encode(e domain.DidSwap) []byte {
	buf := make([]byte, 0, EncodedSize)
	buf = append(buf, DidSwapDiscriminator[:]...)
	buf = binary.LittleEndian.AppendUint64(buf, e.GivenAmount)
	buf = binary.LittleEndian.AppendUint64(buf, e.MinExchangeRate.Rate)
	buf = append(buf, e.MinExchangeRate.FromDecimals, e.MinExchangeRate.QuoteDecimals, boolByte(e.MinExchangeRate.Strict))
	buf = binary.LittleEndian.AppendUint64(buf, e.FromAmount)
	buf = binary.LittleEndian.AppendUint64(buf, e.ToAmount)
	buf = binary.LittleEndian.AppendUint64(buf, e.QuoteAmount)
	buf = binary.LittleEndian.AppendUint64(buf, e.SpillAmount)
	buf = append(buf, e.FromMint[:]...)
	buf = append(buf, e.ToMint[:]...)
	buf = append(buf, e.QuoteMint[:]...)
	buf = append(buf, e.Authority[:]...)
	return buf
}

func boolByte(b bool) byte {
	if b {
		return 1
	}
	return 0
}

// Decode parses an encoded DidSwap. Trailing bytes are rejected.
func Decode(data []byte) (domain.DidSwap, error) {
	var e domain.DidSwap
	if len(data) < 8 {
		return e, fmt.Errorf("%w: %d bytes", ErrMalformedEvent, len(data))
	}
	if [8]byte(data[:8]) != DidSwapDiscriminator {
		return e, ErrUnknownDiscriminator
	}
	if len(data) != EncodedSize {
		return e, fmt.Errorf("%w: want %d bytes, got %d", ErrMalformedEvent, EncodedSize, len(data))
	}

	r := reader{buf: data, off: 8}
	e.GivenAmount = r.u64()
	e.MinExchangeRate.Rate = r.u64()
	e.MinExchangeRate.FromDecimals = r.u8()
	e.MinExchangeRate.QuoteDecimals = r.u8()
	switch strict := r.u8(); strict {
	case 0, 1:
		e.MinExchangeRate.Strict = strict == 1
	default:
		return domain.DidSwap{}, fmt.Errorf("%w: strict flag %d", ErrMalformedEvent, strict)
	}
	e.FromAmount = r.u64()
	e.ToAmount = r.u64()
	e.QuoteAmount = r.u64()
	e.SpillAmount = r.u64()
	e.FromMint = r.key()
	e.ToMint = r.key()
	e.QuoteMint = r.key()
	e.Authority = r.key()
	return e, nil
}

type reader struct {
	buf []byte
	off int
}

func (r *reader) u8() uint8 {
	v := r.buf[r.off]
	r.off++
	return v
}

func (r *reader) u64() uint64 {
	v := binary.LittleEndian.Uint64(r.buf[r.off:])
	r.off += 8
	return v
}

func (r *reader) key() solana.Pubkey {
	var k solana.Pubkey
	copy(k[:], r.buf[r.off:r.off+solana.PubkeyLength])
	r.off += solana.PubkeyLength
	return k
}

// LogLine renders e as a program log line.
func LogLine(e domain.DidSwap) string {
	return ProgramDataPrefix + base64.StdEncoding.EncodeToString(Encode(e))
}

// ParseLogs extracts every DidSwap from a transaction's log messages in
// order. Lines without the program data prefix or carrying a different
// event are skipped.
func ParseLogs(logs []string) ([]domain.DidSwap, error) {
	var events []domain.DidSwap
	for i, line := range logs {
		payload, ok := strings.CutPrefix(line, ProgramDataPrefix)
		if !ok {
			continue
		}
		data, err := base64.StdEncoding.DecodeString(strings.TrimSpace(payload))
		if err != nil {
			return events, fmt.Errorf("log %d: %w: %v", i, ErrMalformedEvent, err)
		}
		e, err := Decode(data)
		if errors.Is(err, ErrUnknownDiscriminator) {
			continue
		}
		if err != nil {
			return events, fmt.Errorf("log %d: %w", i, err)
		}
		events = append(events, e)
	}
	return events, nil
}
