package config

import (
	"os"
	"strconv"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Load merges the TOML file at path (if non-empty) over Defaults and applies
// SWAP_* environment overrides. The result has NOT been validated.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if path != "" {
		if _, err := toml.DecodeFile(path, &cfg); err != nil {
			return nil, err
		}
	}

	// Load .env file if present (silently ignore if missing).
	_ = godotenv.Load()

	applyEnvOverrides(&cfg)

	return &cfg, nil
}

// applyEnvOverrides overwrites fields whose SWAP_* variable is set, so
// secrets and endpoints can be injected at deploy time.
func applyEnvOverrides(cfg *Config) {
	// RPC
	setStr(&cfg.RPC.HTTPEndpoint, "SWAP_RPC_HTTP_ENDPOINT")
	setStr(&cfg.RPC.WSEndpoint, "SWAP_RPC_WS_ENDPOINT")
	setDuration(&cfg.RPC.Timeout, "SWAP_RPC_TIMEOUT")
	setInt(&cfg.RPC.MaxRetries, "SWAP_RPC_MAX_RETRIES")
	setStr(&cfg.RPC.Commitment, "SWAP_RPC_COMMITMENT")

	// Program
	setStr(&cfg.Program.SwapProgramID, "SWAP_PROGRAM_ID")
	setStr(&cfg.Program.DexProgramID, "SWAP_DEX_PROGRAM_ID")

	// Storage
	setStr(&cfg.Storage.Backend, "SWAP_STORAGE_BACKEND")
	setStr(&cfg.Storage.PostgresDSN, "SWAP_POSTGRES_DSN")
	setStr(&cfg.Storage.ClickhouseDSN, "SWAP_CLICKHOUSE_DSN")
	setBool(&cfg.Storage.RunMigrations, "SWAP_STORAGE_RUN_MIGRATIONS")

	// Redis
	setStr(&cfg.Redis.Addr, "SWAP_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "SWAP_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "SWAP_REDIS_DB")
	setInt(&cfg.Redis.PoolSize, "SWAP_REDIS_POOL_SIZE")
	setBool(&cfg.Redis.TLSEnabled, "SWAP_REDIS_TLS_ENABLED")
	setStr(&cfg.Redis.Channel, "SWAP_REDIS_CHANNEL")
	setStr(&cfg.Redis.Stream, "SWAP_REDIS_STREAM")

	// Metrics
	setStr(&cfg.Metrics.Addr, "SWAP_METRICS_ADDR")

	// Observer
	setBool(&cfg.Observer.BackfillOnStart, "SWAP_OBSERVER_BACKFILL_ON_START")
	setInt(&cfg.Observer.BackfillLimit, "SWAP_OBSERVER_BACKFILL_LIMIT")
	setInt(&cfg.Observer.PageSize, "SWAP_OBSERVER_PAGE_SIZE")
	setBool(&cfg.Observer.Verbose, "SWAP_OBSERVER_VERBOSE")
}

// Typed env-var helpers. Each only mutates the target when the variable is
// present, non-empty and parses.

func setStr(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setDuration(dst *duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			dst.Duration = d
		}
	}
}
