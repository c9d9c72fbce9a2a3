package db

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

func Connect(dsn string) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse dsn: %w", err)
	}

	cfg.MaxConns = 20
	cfg.MinConns = 2
	cfg.MaxConnIdleTime = 30 * time.Second
	cfg.MaxConnLifetime = 5 * time.Minute

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	p, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	if err := p.Ping(ctx); err != nil {
		p.Close()
		return nil, fmt.Errorf("ping: %w", err)
	}

	return p, nil
}

const schema = `
CREATE TABLE IF NOT EXISTS trades (
	id              UUID PRIMARY KEY,
	side            TEXT NOT NULL CHECK (side IN ('buy', 'sell')),
	asset           TEXT NOT NULL,
	base_amount_wei NUMERIC(78,0) NOT NULL CHECK (base_amount_wei > 0),
	base_amount_eth DOUBLE PRECISION NOT NULL,
	price           DOUBLE PRECISION,
	pnl_fraction    DOUBLE PRECISION,
	wallet          TEXT NOT NULL DEFAULT '',
	simulated       BOOLEAN NOT NULL DEFAULT TRUE,
	tx_hash         TEXT,
	reason          TEXT NOT NULL DEFAULT '',
	timestamp       TIMESTAMPTZ NOT NULL,
	created_at      TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_trades_timestamp ON trades (timestamp DESC);
CREATE INDEX IF NOT EXISTS idx_trades_asset ON trades (asset);

CREATE TABLE IF NOT EXISTS stats (
	id                       BOOLEAN PRIMARY KEY DEFAULT TRUE CHECK (id),
	trade_volume_eth         DOUBLE PRECISION NOT NULL DEFAULT 0,
	realized_profit_eth      DOUBLE PRECISION NOT NULL DEFAULT 0,
	realized_profit_fraction DOUBLE PRECISION NOT NULL DEFAULT 0,
	open_positions           INTEGER NOT NULL DEFAULT 0,
	last_updated             TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

INSERT INTO stats (id) VALUES (TRUE) ON CONFLICT DO NOTHING;
`

// Migrate creates the trade ledger and the stats singleton row if missing.
// Safe to run on every startup.
func Migrate(p *pgxpool.Pool) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if _, err := p.Exec(ctx, schema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	fmt.Println("[DB] Schema verified (trades, stats)")
	return nil
}

func TestConnection(p *pgxpool.Pool) error {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	var now time.Time
	err := p.QueryRow(ctx, "SELECT NOW()").Scan(&now)
	if err != nil {
		return fmt.Errorf("test query: %w", err)
	}
	fmt.Printf("[DB] Connection successful at %s\n", now.Format(time.RFC3339))
	return nil
}
