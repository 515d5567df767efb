// Package migrations applies the embedded, versioned storage schema.
//
// Files are named NNN_description.sql under one directory per dialect.
// Each backend records applied versions in a schema_migrations table so a
// file runs at most once per database.
package migrations

import (
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strconv"
	"strings"
)

//go:embed postgres/*.sql clickhouse/*.sql
var files embed.FS

// Dialect directories inside the embedded tree.
const (
	DialectPostgres   = "postgres"
	DialectClickhouse = "clickhouse"
)

// ErrBadMigrationName is returned for files that do not follow NNN_name.sql.
var ErrBadMigrationName = errors.New("bad migration file name")

// Migration is one versioned schema file.
type Migration struct {
	Version int
	Name    string
	SQL     string
}

// Load returns the embedded migrations for dialect ordered by version.
func Load(dialect string) ([]Migration, error) {
	return loadFS(files, dialect)
}

func loadFS(fsys fs.FS, dir string) ([]Migration, error) {
	entries, err := fs.ReadDir(fsys, dir)
	if err != nil {
		return nil, fmt.Errorf("read %s migrations: %w", dir, err)
	}

	seen := make(map[int]string)
	var out []Migration
	for _, entry := range entries {
		if entry.IsDir() || path.Ext(entry.Name()) != ".sql" {
			continue
		}
		version, name, err := parseName(entry.Name())
		if err != nil {
			return nil, err
		}
		if prev, ok := seen[version]; ok {
			return nil, fmt.Errorf("%s: version %d already used by %s", entry.Name(), version, prev)
		}
		seen[version] = entry.Name()

		data, err := fs.ReadFile(fsys, path.Join(dir, entry.Name()))
		if err != nil {
			return nil, fmt.Errorf("read migration %s: %w", entry.Name(), err)
		}
		if strings.TrimSpace(string(data)) == "" {
			continue
		}
		out = append(out, Migration{Version: version, Name: name, SQL: string(data)})
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Version < out[j].Version })
	return out, nil
}

// parseName splits "001_swap_outcomes.sql" into (1, "swap_outcomes").
func parseName(file string) (int, string, error) {
	base := strings.TrimSuffix(file, ".sql")
	prefix, name, ok := strings.Cut(base, "_")
	if !ok || prefix == "" || name == "" {
		return 0, "", fmt.Errorf("%w: %s", ErrBadMigrationName, file)
	}
	version, err := strconv.Atoi(prefix)
	if err != nil || version <= 0 {
		return 0, "", fmt.Errorf("%w: %s", ErrBadMigrationName, file)
	}
	return version, name, nil
}

// pending filters out versions already recorded as applied.
func pending(all []Migration, applied map[int]bool) []Migration {
	var out []Migration
	for _, m := range all {
		if !applied[m.Version] {
			out = append(out, m)
		}
	}
	return out
}
