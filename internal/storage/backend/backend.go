// Package backend opens the configured outcome store.
package backend

import (
	"context"
	"fmt"
	"log"
	"strings"

	"serum-swap/internal/config"
	"serum-swap/internal/storage"
	chstore "serum-swap/internal/storage/clickhouse"
	"serum-swap/internal/storage/memory"
	"serum-swap/internal/storage/migrations"
	pgstore "serum-swap/internal/storage/postgres"
)

// Stores bundles the stores of one backend.
type Stores struct {
	Backend  string
	Outcomes storage.SwapOutcomeStore
	// Progress is in-memory for the clickhouse backend, which has no
	// mutable cursor table.
	Progress storage.ObserverProgressStore

	closers []func()
}

// Close releases backend connections.
func (s *Stores) Close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		s.closers[i]()
	}
	s.closers = nil
}

// Open connects to cfg.Backend, applying migrations first when
// cfg.RunMigrations is set.
func Open(ctx context.Context, cfg config.StorageConfig, logger *log.Logger) (*Stores, error) {
	backend := strings.ToLower(cfg.Backend)
	switch backend {
	case config.BackendMemory:
		logger.Println("Using in-memory storage")
		return &Stores{
			Backend:  backend,
			Outcomes: memory.NewSwapOutcomeStore(),
			Progress: memory.NewObserverProgressStore(),
		}, nil

	case config.BackendPostgres:
		pool, err := pgstore.NewPool(ctx, cfg.PostgresDSN)
		if err != nil {
			return nil, fmt.Errorf("connect to postgres: %w", err)
		}
		if cfg.RunMigrations {
			applied, err := migrations.RunPostgresMigrations(ctx, pool)
			if err != nil {
				pool.Close()
				return nil, fmt.Errorf("postgres migrations: %w", err)
			}
			logMigrations(logger, "postgres", applied)
		}
		return &Stores{
			Backend:  backend,
			Outcomes: pgstore.NewSwapOutcomeStore(pool),
			Progress: pgstore.NewObserverProgressStore(pool),
			closers:  []func(){pool.Close},
		}, nil

	case config.BackendClickhouse:
		var (
			conn *chstore.Conn
			err  error
		)
		if cfg.RunMigrations {
			var applied []migrations.Migration
			conn, applied, err = migrations.RunClickhouseMigrations(ctx, cfg.ClickhouseDSN)
			if err == nil {
				logMigrations(logger, "clickhouse", applied)
			}
		} else {
			conn, err = chstore.NewConn(ctx, cfg.ClickhouseDSN)
		}
		if err != nil {
			return nil, fmt.Errorf("connect to clickhouse: %w", err)
		}
		logger.Println("Clickhouse backend keeps the backfill cursor in memory")
		return &Stores{
			Backend:  backend,
			Outcomes: chstore.NewSwapOutcomeStore(conn),
			Progress: memory.NewObserverProgressStore(),
			closers:  []func(){func() { _ = conn.Close() }},
		}, nil

	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Backend)
	}
}

func logMigrations(logger *log.Logger, backend string, applied []migrations.Migration) {
	if len(applied) == 0 {
		logger.Printf("%s schema is up to date", backend)
		return
	}
	for _, m := range applied {
		logger.Printf("Applied %s migration %03d_%s", backend, m.Version, m.Name)
	}
}
