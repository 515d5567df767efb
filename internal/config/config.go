// Package config loads service configuration and simulator scenarios.
package config

import (
	"fmt"
	"strings"
	"time"

	"serum-swap/internal/solana"
)

// Config is the root configuration for the observer and report tools.
type Config struct {
	RPC      RPCConfig      `toml:"rpc"`
	Program  ProgramConfig  `toml:"program"`
	Storage  StorageConfig  `toml:"storage"`
	Redis    RedisConfig    `toml:"redis"`
	Metrics  MetricsConfig  `toml:"metrics"`
	Observer ObserverConfig `toml:"observer"`
}

// RPCConfig holds Solana endpoint parameters.
type RPCConfig struct {
	HTTPEndpoint string   `toml:"http_endpoint"`
	WSEndpoint   string   `toml:"ws_endpoint"`
	Timeout      duration `toml:"timeout"`
	MaxRetries   int      `toml:"max_retries"`
	Commitment   string   `toml:"commitment"`
}

// ProgramConfig names the on-chain programs.
type ProgramConfig struct {
	SwapProgramID string `toml:"swap_program_id"`
	DexProgramID  string `toml:"dex_program_id"`
}

// StorageConfig selects and configures the outcome store.
type StorageConfig struct {
	Backend       string `toml:"backend"` // memory, postgres, clickhouse
	PostgresDSN   string `toml:"postgres_dsn"`
	ClickhouseDSN string `toml:"clickhouse_dsn"`
	RunMigrations bool   `toml:"run_migrations"`
}

// RedisConfig holds bus connection parameters. Publishing is disabled when
// Addr is empty.
type RedisConfig struct {
	Addr       string `toml:"addr"`
	Password   string `toml:"password"`
	DB         int    `toml:"db"`
	PoolSize   int    `toml:"pool_size"`
	MaxRetries int    `toml:"max_retries"`
	TLSEnabled bool   `toml:"tls_enabled"`
	Channel    string `toml:"channel"`
	Stream     string `toml:"stream"`
}

// MetricsConfig configures the Prometheus endpoint.
type MetricsConfig struct {
	Addr string `toml:"addr"` // empty disables the HTTP server
}

// ObserverConfig tunes the indexer.
type ObserverConfig struct {
	BackfillOnStart bool     `toml:"backfill_on_start"`
	BackfillLimit   int      `toml:"backfill_limit"` // 0 = back to the saved cursor
	PageSize        int      `toml:"page_size"`
	RetryDelay      duration `toml:"retry_delay"`
	Verbose         bool     `toml:"verbose"`
}

// duration is a wrapper around time.Duration that supports TOML string decoding.
type duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler so BurntSushi/toml can
// parse duration strings like "5m" or "30s".
func (d *duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

// MarshalText implements encoding.TextMarshaler for round-trip encoding.
func (d duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Storage backends.
const (
	BackendMemory     = "memory"
	BackendPostgres   = "postgres"
	BackendClickhouse = "clickhouse"
)

// Defaults returns a Config that runs against a local validator with
// in-memory storage.
func Defaults() Config {
	return Config{
		RPC: RPCConfig{
			HTTPEndpoint: "http://127.0.0.1:8899",
			WSEndpoint:   "ws://127.0.0.1:8900",
			Timeout:      duration{30 * time.Second},
			MaxRetries:   3,
			Commitment:   "confirmed",
		},
		Program: ProgramConfig{
			SwapProgramID: "5paKUq27CMiotwgCh6a4GTDi4NXtGxRo3oZVyr4QXNjM",
			DexProgramID:  "9xQeWvG816bUx9EPjHmaT23yvVM2ZWbrrpZb9PusVFin",
		},
		Storage: StorageConfig{
			Backend: BackendMemory,
		},
		Redis: RedisConfig{
			PoolSize:   10,
			MaxRetries: 3,
			Channel:    "serum-swap:outcomes",
			Stream:     "serum-swap:outcomes:stream",
		},
		Metrics: MetricsConfig{
			Addr: ":9090",
		},
		Observer: ObserverConfig{
			BackfillOnStart: true,
			PageSize:        1000,
			RetryDelay:      duration{500 * time.Millisecond},
		},
	}
}

// SwapProgram parses the swap program id.
func (c *Config) SwapProgram() (solana.Pubkey, error) {
	return solana.ParsePubkey(c.Program.SwapProgramID)
}

// Validate checks the configuration for errors and returns all of them.
func (c *Config) Validate() error {
	var errs []string

	if c.RPC.HTTPEndpoint == "" {
		errs = append(errs, "rpc: http_endpoint must not be empty")
	}
	if c.RPC.Timeout.Duration <= 0 {
		errs = append(errs, "rpc: timeout must be positive")
	}
	if c.RPC.MaxRetries < 0 {
		errs = append(errs, "rpc: max_retries must not be negative")
	}

	if _, err := c.SwapProgram(); err != nil {
		errs = append(errs, fmt.Sprintf("program: swap_program_id: %v", err))
	}
	if c.Program.DexProgramID != "" {
		if _, err := solana.ParsePubkey(c.Program.DexProgramID); err != nil {
			errs = append(errs, fmt.Sprintf("program: dex_program_id: %v", err))
		}
	}

	switch strings.ToLower(c.Storage.Backend) {
	case BackendMemory:
	case BackendPostgres:
		if c.Storage.PostgresDSN == "" {
			errs = append(errs, "storage: postgres_dsn is required for the postgres backend")
		}
	case BackendClickhouse:
		if c.Storage.ClickhouseDSN == "" {
			errs = append(errs, "storage: clickhouse_dsn is required for the clickhouse backend")
		}
	default:
		errs = append(errs, fmt.Sprintf("storage: unknown backend %q (valid: memory, postgres, clickhouse)", c.Storage.Backend))
	}

	if c.Redis.Addr != "" && c.Redis.Channel == "" && c.Redis.Stream == "" {
		errs = append(errs, "redis: channel or stream must be set when addr is set")
	}

	if c.Observer.BackfillLimit < 0 {
		errs = append(errs, "observer: backfill_limit must not be negative")
	}
	if c.Observer.PageSize <= 0 || c.Observer.PageSize > 1000 {
		errs = append(errs, "observer: page_size must be in [1, 1000]")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
