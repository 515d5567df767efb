package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/shopspring/decimal"

	"serum-swap/internal/domain"
)

// Scenario describes a self-contained swap simulation: markets with
// resting books, funded wallets and one swap request. Accounts are named by
// labels; the simulator derives addresses from them.
type Scenario struct {
	Name      string           `toml:"name"`
	Authority string           `toml:"authority"`
	Markets   []ScenarioMarket `toml:"markets"`
	Wallets   []ScenarioWallet `toml:"wallets"`
	Swap      ScenarioSwap     `toml:"swap"`
}

// ScenarioMarket is one order book. Prices are quote lots per base lot.
type ScenarioMarket struct {
	Name             string          `toml:"name"`
	CoinMint         string          `toml:"coin_mint"`
	PcMint           string          `toml:"pc_mint"`
	CoinLotSize      uint64          `toml:"coin_lot_size"`
	PcLotSize        uint64          `toml:"pc_lot_size"`
	TakerFeeBps      uint64          `toml:"taker_fee_bps"`
	ReferralShareBps uint64          `toml:"referral_share_bps"`
	Bids             []ScenarioOrder `toml:"bids"`
	Asks             []ScenarioOrder `toml:"asks"`
}

// ScenarioOrder is a resting maker order.
type ScenarioOrder struct {
	Owner string `toml:"owner"`
	Price uint64 `toml:"price"`
	Lots  uint64 `toml:"lots"`
}

// ScenarioWallet is a funded token account owned by Owner.
type ScenarioWallet struct {
	Owner  string `toml:"owner"`
	Mint   string `toml:"mint"`
	Amount uint64 `toml:"amount"`
}

// ScenarioSwap is the request under test. Set Market and Side for a direct
// swap, or FromMarket and ToMarket for a transitive one.
//
// The minimum rate comes either from MinRate or from Price (whole to per
// whole from) discounted by SlippageBps.
type ScenarioSwap struct {
	Market     string      `toml:"market"`
	Side       domain.Side `toml:"side"`
	FromMarket string      `toml:"from_market"`
	ToMarket   string      `toml:"to_market"`
	Amount     uint64      `toml:"amount"`
	Referral   string      `toml:"referral"`

	MinRate *domain.ExchangeRate `toml:"min_rate"`

	Price         string `toml:"price"`
	ToDecimals    uint8  `toml:"to_decimals"`
	SlippageBps   uint32 `toml:"slippage_bps"`
	FromDecimals  uint8  `toml:"from_decimals"`
	QuoteDecimals uint8  `toml:"quote_decimals"`
	Strict        bool   `toml:"strict"`
}

// Transitive reports whether the request spans two markets.
func (s ScenarioSwap) Transitive() bool {
	return s.FromMarket != ""
}

// ExchangeRate resolves the minimum rate.
func (s ScenarioSwap) ExchangeRate() (domain.ExchangeRate, error) {
	if s.MinRate != nil {
		return *s.MinRate, nil
	}
	price, err := decimal.NewFromString(s.Price)
	if err != nil {
		return domain.ExchangeRate{}, fmt.Errorf("swap: price %q: %w", s.Price, err)
	}
	rate, err := domain.RateFromPrice(price, s.ToDecimals, s.SlippageBps)
	if err != nil {
		return domain.ExchangeRate{}, fmt.Errorf("swap: %w", err)
	}
	return domain.ExchangeRate{
		Rate:          rate,
		FromDecimals:  s.FromDecimals,
		QuoteDecimals: s.QuoteDecimals,
		Strict:        s.Strict,
	}, nil
}

// LoadScenario decodes and validates a scenario file.
func LoadScenario(path string) (*Scenario, error) {
	var sc Scenario
	md, err := toml.DecodeFile(path, &sc)
	if err != nil {
		return nil, err
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return nil, fmt.Errorf("scenario: unknown keys %v", undecoded)
	}
	if err := sc.Validate(); err != nil {
		return nil, err
	}
	return &sc, nil
}

// Market returns the market named name.
func (sc *Scenario) Market(name string) (*ScenarioMarket, bool) {
	for i := range sc.Markets {
		if sc.Markets[i].Name == name {
			return &sc.Markets[i], true
		}
	}
	return nil, false
}

// Validate checks references and required fields.
func (sc *Scenario) Validate() error {
	var errs []string

	if sc.Authority == "" {
		errs = append(errs, "authority must be set")
	}
	seen := make(map[string]bool)
	for _, m := range sc.Markets {
		if m.Name == "" || seen[m.Name] {
			errs = append(errs, fmt.Sprintf("market name %q is empty or duplicated", m.Name))
		}
		seen[m.Name] = true
		if m.CoinMint == "" || m.PcMint == "" || m.CoinMint == m.PcMint {
			errs = append(errs, fmt.Sprintf("market %s: coin_mint and pc_mint must be set and differ", m.Name))
		}
		if m.CoinLotSize == 0 || m.PcLotSize == 0 {
			errs = append(errs, fmt.Sprintf("market %s: lot sizes must be positive", m.Name))
		}
	}

	s := sc.Swap
	if s.Transitive() {
		if s.Market != "" {
			errs = append(errs, "swap: set either market or from_market/to_market")
		}
		for _, name := range []string{s.FromMarket, s.ToMarket} {
			if !seen[name] {
				errs = append(errs, fmt.Sprintf("swap: unknown market %q", name))
			}
		}
	} else if !seen[s.Market] {
		errs = append(errs, fmt.Sprintf("swap: unknown market %q", s.Market))
	}
	if s.MinRate == nil && s.Price == "" {
		errs = append(errs, "swap: min_rate or price is required")
	}
	if s.MinRate != nil && s.Price != "" {
		errs = append(errs, "swap: min_rate and price are mutually exclusive")
	}

	if len(errs) > 0 {
		return errors.New("scenario validation failed:\n  - " + strings.Join(errs, "\n  - "))
	}
	return nil
}
