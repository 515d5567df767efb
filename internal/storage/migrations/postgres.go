package migrations

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"serum-swap/internal/storage/postgres"
)

const pgVersionTable = `CREATE TABLE IF NOT EXISTS schema_migrations (
	version    INTEGER PRIMARY KEY,
	name       TEXT NOT NULL,
	applied_at TIMESTAMPTZ NOT NULL DEFAULT now()
)`

// RunPostgresMigrations applies every embedded postgres migration not yet
// recorded in schema_migrations. Each migration and its bookkeeping row
// commit in one transaction. Returns the migrations applied by this call.
func RunPostgresMigrations(ctx context.Context, pool *postgres.Pool) ([]Migration, error) {
	all, err := Load(DialectPostgres)
	if err != nil {
		return nil, err
	}

	if _, err := pool.Exec(ctx, pgVersionTable); err != nil {
		return nil, fmt.Errorf("create schema_migrations: %w", err)
	}

	applied, err := pgApplied(ctx, pool)
	if err != nil {
		return nil, err
	}

	var done []Migration
	for _, m := range pending(all, applied) {
		if err := pgApply(ctx, pool, m); err != nil {
			return done, err
		}
		done = append(done, m)
	}
	return done, nil
}

func pgApplied(ctx context.Context, pool *postgres.Pool) (map[int]bool, error) {
	rows, err := pool.Query(ctx, `SELECT version FROM schema_migrations`)
	if err != nil {
		return nil, fmt.Errorf("query schema_migrations: %w", err)
	}
	versions, err := pgx.CollectRows(rows, pgx.RowTo[int32])
	if err != nil {
		return nil, fmt.Errorf("scan schema_migrations: %w", err)
	}

	applied := make(map[int]bool, len(versions))
	for _, v := range versions {
		applied[int(v)] = true
	}
	return applied, nil
}

func pgApply(ctx context.Context, pool *postgres.Pool, m Migration) error {
	tx, err := pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin migration %03d: %w", m.Version, err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, m.SQL); err != nil {
		return fmt.Errorf("apply migration %03d_%s: %w", m.Version, m.Name, err)
	}
	if _, err := tx.Exec(ctx,
		`INSERT INTO schema_migrations (version, name) VALUES ($1, $2)`,
		m.Version, m.Name,
	); err != nil {
		return fmt.Errorf("record migration %03d: %w", m.Version, err)
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit migration %03d: %w", m.Version, err)
	}
	return nil
}
