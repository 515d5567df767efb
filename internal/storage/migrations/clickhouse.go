package migrations

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	chstore "serum-swap/internal/storage/clickhouse"
)

const chVersionTable = `CREATE TABLE IF NOT EXISTS schema_migrations (
	version    UInt32,
	name       String,
	applied_at DateTime64(3, 'UTC') DEFAULT now64(3)
) ENGINE = ReplacingMergeTree()
ORDER BY version`

var errSemicolonInString = errors.New("semicolon inside string literal")

// RunClickhouseMigrations creates the DSN's database when missing, applies
// pending embedded clickhouse migrations and returns a connection to that
// database. ClickHouse has no DDL transactions: a migration that fails part
// way is retried from its first statement, so statements use IF NOT EXISTS.
func RunClickhouseMigrations(ctx context.Context, dsn string) (*chstore.Conn, []Migration, error) {
	all, err := Load(DialectClickhouse)
	if err != nil {
		return nil, nil, err
	}
	for _, m := range all {
		if err := validateNoSemicolonInStrings(m.SQL); err != nil {
			return nil, nil, fmt.Errorf("migration %03d_%s: %w", m.Version, m.Name, err)
		}
	}

	dbName, err := databaseFromDSN(dsn)
	if err != nil {
		return nil, nil, err
	}
	if err := ensureDatabase(ctx, dsn, dbName); err != nil {
		return nil, nil, err
	}

	conn, err := chstore.NewConnWithDatabase(ctx, dsn, dbName)
	if err != nil {
		return nil, nil, fmt.Errorf("connect clickhouse db: %w", err)
	}

	done, err := chMigrate(ctx, conn, all)
	if err != nil {
		conn.Close()
		return nil, nil, err
	}
	return conn, done, nil
}

func ensureDatabase(ctx context.Context, dsn, dbName string) error {
	admin, err := chstore.NewConnWithDatabase(ctx, dsn, "")
	if err != nil {
		return fmt.Errorf("connect clickhouse admin: %w", err)
	}
	defer admin.Close()

	if err := admin.Exec(ctx, "CREATE DATABASE IF NOT EXISTS "+quoteIdent(dbName)); err != nil {
		return fmt.Errorf("create database %s: %w", dbName, err)
	}
	return nil
}

func chMigrate(ctx context.Context, conn *chstore.Conn, all []Migration) ([]Migration, error) {
	if err := conn.Exec(ctx, chVersionTable); err != nil {
		return nil, fmt.Errorf("create schema_migrations: %w", err)
	}

	rows, err := conn.Query(ctx, `SELECT version FROM schema_migrations FINAL`)
	if err != nil {
		return nil, fmt.Errorf("query schema_migrations: %w", err)
	}
	applied := make(map[int]bool)
	for rows.Next() {
		var v uint32
		if err := rows.Scan(&v); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan schema_migrations: %w", err)
		}
		applied[int(v)] = true
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate schema_migrations: %w", err)
	}

	var done []Migration
	for _, m := range pending(all, applied) {
		// The native protocol rejects multi-statement Exec.
		for _, stmt := range splitStatements(m.SQL) {
			if err := conn.Exec(ctx, stmt); err != nil {
				return done, fmt.Errorf("apply migration %03d_%s: %w", m.Version, m.Name, err)
			}
		}
		if err := conn.Exec(ctx,
			`INSERT INTO schema_migrations (version, name) VALUES (?, ?)`,
			uint32(m.Version), m.Name,
		); err != nil {
			return done, fmt.Errorf("record migration %03d: %w", m.Version, err)
		}
		done = append(done, m)
	}
	return done, nil
}

// splitStatements drops "--" comment lines and splits on semicolons.
// Callers check validateNoSemicolonInStrings first.
func splitStatements(input string) []string {
	var kept []string
	for _, line := range strings.Split(input, "\n") {
		if strings.HasPrefix(strings.TrimSpace(line), "--") {
			continue
		}
		kept = append(kept, line)
	}

	var stmts []string
	for _, part := range strings.Split(strings.Join(kept, "\n"), ";") {
		if stmt := strings.TrimSpace(part); stmt != "" {
			stmts = append(stmts, stmt)
		}
	}
	return stmts
}

// validateNoSemicolonInStrings rejects SQL the splitter would cut inside a
// quoted literal. A doubled quote inside a literal is an escaped quote.
func validateNoSemicolonInStrings(sql string) error {
	quoted := false
	for i := 0; i < len(sql); i++ {
		switch sql[i] {
		case '\'':
			if quoted && i+1 < len(sql) && sql[i+1] == '\'' {
				i++
				continue
			}
			quoted = !quoted
		case ';':
			if quoted {
				return fmt.Errorf("%w at offset %d", errSemicolonInString, i)
			}
		}
	}
	return nil
}

func databaseFromDSN(dsn string) (string, error) {
	u, err := url.Parse(dsn)
	if err != nil {
		return "", fmt.Errorf("parse clickhouse dsn: %w", err)
	}
	db := strings.Trim(u.Path, "/")
	if db == "" {
		return "", errors.New("clickhouse dsn missing database")
	}
	return db, nil
}

func quoteIdent(name string) string {
	return "`" + strings.ReplaceAll(name, "`", "\\`") + "`"
}
