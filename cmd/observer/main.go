// Command observer indexes DidSwap events emitted by the swap program into
// the configured store and publishes them to Redis.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"serum-swap/internal/bus"
	busredis "serum-swap/internal/bus/redis"
	"serum-swap/internal/config"
	"serum-swap/internal/observability"
	"serum-swap/internal/observer"
	"serum-swap/internal/solana"
	"serum-swap/internal/storage/backend"
)

func main() {
	configPath := flag.String("config", os.Getenv("SWAP_CONFIG"), "Path to TOML config file")
	backfillOnly := flag.Bool("backfill-only", false, "Run the backfill and exit")
	useMemory := flag.Bool("use-memory", false, "Use in-memory storage regardless of config")
	flag.Parse()

	logger := log.New(os.Stdout, "[observer] ", log.LstdFlags|log.Lshortfile)

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Fatalf("Load config: %v", err)
	}
	if *useMemory {
		cfg.Storage.Backend = config.BackendMemory
	}
	if err := cfg.Validate(); err != nil {
		logger.Fatal(err)
	}

	// Start metrics server if enabled
	if cfg.Metrics.Addr != "" {
		go func() {
			mux := http.NewServeMux()
			mux.Handle("/metrics", observability.Handler())
			mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusOK)
				w.Write([]byte("ok"))
			})
			logger.Printf("Starting metrics server on %s", cfg.Metrics.Addr)
			if err := http.ListenAndServe(cfg.Metrics.Addr, mux); err != nil && err != http.ErrServerClosed {
				logger.Printf("Metrics server error: %v", err)
			}
		}()
	}

	ctx, cancel := context.WithCancel(context.Background())

	// Handle shutdown signals with graceful timeout
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	done := make(chan error, 1)

	go func() {
		sig := <-sigCh
		logger.Printf("Received signal %v, initiating graceful shutdown...", sig)
		cancel()

		select {
		case sig := <-sigCh:
			logger.Printf("Received second signal %v, forcing immediate shutdown", sig)
			os.Exit(1)
		case <-time.After(30 * time.Second):
			logger.Println("Graceful shutdown timed out after 30s, forcing exit")
			os.Exit(1)
		case <-done:
		}
	}()

	err = run(ctx, logger, cfg, *backfillOnly)

	done <- err
	cancel()

	if err != nil && !errors.Is(err, context.Canceled) {
		logger.Fatalf("Error: %v", err)
	}
	logger.Println("Shutdown complete")
}

func run(ctx context.Context, logger *log.Logger, cfg *config.Config, backfillOnly bool) error {
	program, err := cfg.SwapProgram()
	if err != nil {
		return err
	}

	stores, err := backend.Open(ctx, cfg.Storage, logger)
	if err != nil {
		return err
	}
	defer stores.Close()

	var publisher bus.Publisher = bus.Nop{}
	if cfg.Redis.Addr != "" {
		p, err := busredis.New(ctx, busredis.Config{
			Addr:       cfg.Redis.Addr,
			Password:   cfg.Redis.Password,
			DB:         cfg.Redis.DB,
			PoolSize:   cfg.Redis.PoolSize,
			MaxRetries: cfg.Redis.MaxRetries,
			TLSEnabled: cfg.Redis.TLSEnabled,
			Channel:    cfg.Redis.Channel,
			Stream:     cfg.Redis.Stream,
		})
		if err != nil {
			return fmt.Errorf("connect to redis: %w", err)
		}
		defer p.Close()
		publisher = p
		logger.Printf("Publishing outcomes to redis %s", cfg.Redis.Addr)
	}

	rpc := solana.NewHTTPClient(cfg.RPC.HTTPEndpoint,
		solana.WithTimeout(cfg.RPC.Timeout.Duration),
		solana.WithMaxRetries(cfg.RPC.MaxRetries),
		solana.WithCommitment(cfg.RPC.Commitment),
	)

	opts := observer.Options{
		RPC:        rpc,
		Program:    program,
		Store:      stores.Outcomes,
		Progress:   stores.Progress,
		Publisher:  publisher,
		PageSize:   cfg.Observer.PageSize,
		Commitment: cfg.RPC.Commitment,
		Logger:     logger,
		Verbose:    cfg.Observer.Verbose,
		RetryDelay: cfg.Observer.RetryDelay.Duration,
	}

	if cfg.Observer.BackfillOnStart || backfillOnly {
		res, err := observer.New(opts).Backfill(ctx, cfg.Observer.BackfillLimit)
		if err != nil {
			return fmt.Errorf("backfill: %w", err)
		}
		logger.Printf("Backfill done in %s: %d transactions, %d stored, %d duplicates, %d failed, %d errors, cursor %s",
			res.Duration, res.Transactions, res.Stored, res.Duplicates, res.Failed, res.Errors, res.Cursor)
	}
	if backfillOnly {
		return nil
	}

	wsCfg := solana.DefaultWSConfig()
	wsCfg.Logger = logger
	ws, err := solana.NewWSClient(ctx, cfg.RPC.WSEndpoint, &wsCfg)
	if err != nil {
		return fmt.Errorf("create websocket client: %w", err)
	}
	defer ws.Close()

	opts.WS = ws
	logger.Printf("Watching program %s", program)
	return observer.New(opts).Run(ctx)
}
