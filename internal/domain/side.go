package domain

import (
	"fmt"
	"strings"
)

// Side is the direction of a direct swap on a BASE/QUOTE market.
//
// Bid spends the quote currency to buy base; Ask sells base for quote.
type Side uint8

const (
	Bid Side = iota
	Ask
)

func (s Side) String() string {
	switch s {
	case Bid:
		return "bid"
	case Ask:
		return "ask"
	default:
		return fmt.Sprintf("side(%d)", uint8(s))
	}
}

// MarshalText implements encoding.TextMarshaler.
func (s Side) MarshalText() ([]byte, error) {
	if s != Bid && s != Ask {
		return nil, fmt.Errorf("invalid side %d", uint8(s))
	}
	return []byte(s.String()), nil
}

// UnmarshalText accepts "bid"/"buy" and "ask"/"sell".
func (s *Side) UnmarshalText(text []byte) error {
	switch strings.ToLower(strings.TrimSpace(string(text))) {
	case "bid", "buy":
		*s = Bid
	case "ask", "sell":
		*s = Ask
	default:
		return fmt.Errorf("invalid side %q", string(text))
	}
	return nil
}
