package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"
	"github.com/wolfeidau/orgledger/internal/store"
)

// Compile-time interface checks
var (
	_ store.OrganizationStore = (*Ledger)(nil)
	_ store.WalletStore       = (*Ledger)(nil)
	_ store.PoolStore         = (*Ledger)(nil)
	_ store.PayrollStore      = (*Ledger)(nil)
)

// Ledger implements all four store interfaces over a shared PostgreSQL
// connection pool. Each semantic operation runs as a single statement or a
// single transaction, so the all-or-nothing contract holds even when a
// transition touches several tables.
type Ledger struct {
	pool *pgxpool.Pool
}

// NewLedger creates a PostgreSQL-backed ledger. It establishes a connection
// pool, pings the database, and optionally runs migrations.
func NewLedger(ctx context.Context, cfg *Config) (*Ledger, error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	pool, err := newPool(ctx, cfg)
	if err != nil {
		return nil, err
	}

	log.Info().
		Str("database", pool.Config().ConnConfig.Database).
		Str("host", pool.Config().ConnConfig.Host).
		Int32("max_conns", cfg.MaxConns).
		Msg("Connected to PostgreSQL")

	if cfg.AutoMigrate {
		if err := runMigrations(ctx, pool); err != nil {
			pool.Close()
			return nil, fmt.Errorf("failed to run migrations: %w", err)
		}
		log.Info().Msg("Database migrations completed")
	}

	return &Ledger{pool: pool}, nil
}

// Close releases the connection pool.
func (l *Ledger) Close() {
	l.pool.Close()
}
