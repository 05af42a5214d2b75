// Package pg implementa los repositorios de dominio sobre PostgreSQL (pgxpool).
package pg

import (
	"context"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

type Store struct{ pool *pgxpool.Pool }

// Options ajusta el pool. Cero = defaults conservadores.
type Options struct {
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

func New(ctx context.Context, dsn string, opts Options) (*Store, error) {
	pcfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, err
	}
	if opts.MaxOpenConns > 0 {
		pcfg.MaxConns = int32(opts.MaxOpenConns)
	}
	// Mapear MaxIdleConns → MinConns (pgxpool)
	if opts.MaxIdleConns > 0 {
		pcfg.MinConns = int32(opts.MaxIdleConns)
	}
	if opts.ConnMaxLifetime > 0 {
		pcfg.MaxConnLifetime = opts.ConnMaxLifetime
		pcfg.MaxConnIdleTime = opts.ConnMaxLifetime
	}
	if pcfg.MaxConns == 0 {
		pcfg.MaxConns = 8
	}

	pool, err := pgxpool.NewWithConfig(ctx, pcfg)
	if err != nil {
		return nil, err
	}
	return &Store{pool: pool}, nil
}

// Pool expone el pool interno (migraciones/metrics).
func (s *Store) Pool() *pgxpool.Pool {
	if s == nil {
		return nil
	}
	return s.pool
}

func (s *Store) Ping(ctx context.Context) error { return s.pool.Ping(ctx) }

// Close cierra el pool subyacente (idempotente).
func (s *Store) Close() {
	if s != nil && s.pool != nil {
		s.pool.Close()
	}
}

// isUniqueViolation detecta violaciones de constraint unique sin atarse al
// tipo concreto del driver.
func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(strings.ToLower(err.Error()), "unique")
}
