package pg

import (
	"context"
	"embed"
	"fmt"
	"io/fs"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
)

// Formato de archivo: {version}_{name}_up.sql (ej: 0001_init_up.sql).
// Los *_down.sql quedan para rollback manual y se ignoran acá.
var migrationFilePattern = regexp.MustCompile(`^(\d+)_(.+)_up\.sql$`)

type migration struct {
	Version int
	Name    string
	SQL     string
}

// Migrate aplica las migraciones pendientes del FS embebido. Retorna las
// versiones aplicadas en esta corrida.
func (s *Store) Migrate(ctx context.Context, migrationsFS embed.FS) ([]int, error) {
	const createTable = `
		CREATE TABLE IF NOT EXISTS _migrations (
			version INT PRIMARY KEY,
			name VARCHAR(255) NOT NULL,
			applied_at TIMESTAMPTZ DEFAULT NOW()
		)`
	if _, err := s.pool.Exec(ctx, createTable); err != nil {
		return nil, fmt.Errorf("creating migrations table: %w", err)
	}

	applied := make(map[int]bool)
	rows, err := s.pool.Query(ctx, `SELECT version FROM _migrations`)
	if err != nil {
		return nil, fmt.Errorf("reading applied migrations: %w", err)
	}
	for rows.Next() {
		var v int
		if err := rows.Scan(&v); err != nil {
			rows.Close()
			return nil, err
		}
		applied[v] = true
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	migrations, err := parseMigrations(migrationsFS)
	if err != nil {
		return nil, err
	}

	var ran []int
	for _, mig := range migrations {
		if applied[mig.Version] {
			continue
		}
		if _, err := s.pool.Exec(ctx, mig.SQL); err != nil {
			return ran, fmt.Errorf("applying migration %d_%s: %w", mig.Version, mig.Name, err)
		}
		if _, err := s.pool.Exec(ctx,
			`INSERT INTO _migrations (version, name) VALUES ($1, $2)`,
			mig.Version, mig.Name); err != nil {
			return ran, fmt.Errorf("recording migration %d: %w", mig.Version, err)
		}
		ran = append(ran, mig.Version)
	}
	return ran, nil
}

func parseMigrations(migrationsFS embed.FS) ([]migration, error) {
	var out []migration
	err := fs.WalkDir(migrationsFS, ".", func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}
		matches := migrationFilePattern.FindStringSubmatch(filepath.Base(path))
		if matches == nil {
			return nil
		}
		version, _ := strconv.Atoi(matches[1])
		content, err := migrationsFS.ReadFile(path)
		if err != nil {
			return fmt.Errorf("reading %s: %w", path, err)
		}
		out = append(out, migration{Version: version, Name: matches[2], SQL: string(content)})
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Version < out[j].Version })
	return out, nil
}
