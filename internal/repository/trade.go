package repository

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sablebot/sable-backend/internal/models"
	"github.com/sablebot/sable-backend/internal/position"
)

const tradeColumns = `id, side, asset, base_amount_wei::text, base_amount_eth,
	price, pnl_fraction, wallet, simulated, tx_hash, reason, timestamp, created_at`

type TradeRepo struct {
	pool *pgxpool.Pool
}

func NewTradeRepo(pool *pgxpool.Pool) *TradeRepo {
	return &TradeRepo{pool: pool}
}

// Record appends a trade to the ledger and bumps the running stats row in
// the same transaction: a reader that observes the trade always observes
// the updated stats. Errors are propagated; nothing is retried here.
func (r *TradeRepo) Record(ctx context.Context, t *models.TradeRecord) (*models.TradeRecord, error) {
	if t.BaseAmountWei == nil || t.BaseAmountWei.Sign() <= 0 {
		return nil, fmt.Errorf("trade base amount must be positive")
	}
	if t.Side != models.SideBuy && t.Side != models.SideSell {
		return nil, fmt.Errorf("invalid trade side %q", t.Side)
	}

	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	ts := t.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}

	pnlETH := 0.0
	if t.PnlFraction != nil {
		pnlETH = t.BaseAmountETH * *t.PnlFraction
	}
	openDelta := 1
	if t.Side == models.SideSell {
		openDelta = -1
	}

	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	row := tx.QueryRow(ctx,
		`INSERT INTO trades
		 (id, side, asset, base_amount_wei, base_amount_eth, price,
		  pnl_fraction, wallet, simulated, tx_hash, reason, timestamp)
		 VALUES ($1,$2,$3,$4::numeric,$5,$6,$7,$8,$9,$10,$11,$12)
		 RETURNING `+tradeColumns,
		t.ID, t.Side, t.Asset, t.BaseAmountWei.String(), t.BaseAmountETH,
		t.Price, t.PnlFraction, t.Wallet, t.Simulated, t.TxHash, t.Reason, ts,
	)
	recorded, err := scanTrade(row)
	if err != nil {
		return nil, fmt.Errorf("insert trade: %w", err)
	}

	_, err = tx.Exec(ctx,
		`UPDATE stats SET
			trade_volume_eth = trade_volume_eth + $1,
			realized_profit_eth = realized_profit_eth + $2,
			realized_profit_fraction = CASE
				WHEN trade_volume_eth + $1 > 0
				THEN (realized_profit_eth + $2) / (trade_volume_eth + $1)
				ELSE 0 END,
			open_positions = open_positions + $3,
			last_updated = NOW()
		 WHERE id`,
		t.BaseAmountETH, pnlETH, openDelta,
	)
	if err != nil {
		return nil, fmt.Errorf("update stats: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return recorded, nil
}

// List returns the most recent trades, newest first.
func (r *TradeRepo) List(ctx context.Context, limit int) ([]models.TradeRecord, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+tradeColumns+` FROM trades ORDER BY timestamp DESC LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectTrades(rows)
}

// ListAll returns the full ledger, oldest first. Feed for position
// aggregation; fine at the ledger sizes this system targets.
func (r *TradeRepo) ListAll(ctx context.Context) ([]models.TradeRecord, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+tradeColumns+` FROM trades ORDER BY timestamp ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectTrades(rows)
}

// Positions recomputes the per-asset projection from the full ledger.
func (r *TradeRepo) Positions(ctx context.Context) ([]position.Position, error) {
	trades, err := r.ListAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("load ledger: %w", err)
	}
	return position.Compute(trades), nil
}

func (r *TradeRepo) Count(ctx context.Context) (int64, error) {
	var n int64
	err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM trades`).Scan(&n)
	return n, err
}

// --- scan helpers ---

type scannable interface {
	Scan(dest ...any) error
}

func scanTrade(row scannable) (*models.TradeRecord, error) {
	var t models.TradeRecord
	var wei string
	err := row.Scan(
		&t.ID, &t.Side, &t.Asset, &wei, &t.BaseAmountETH,
		&t.Price, &t.PnlFraction, &t.Wallet, &t.Simulated, &t.TxHash,
		&t.Reason, &t.Timestamp, &t.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	amount, ok := new(big.Int).SetString(wei, 10)
	if !ok {
		return nil, fmt.Errorf("malformed base_amount_wei %q", wei)
	}
	t.BaseAmountWei = amount
	return &t, nil
}

func collectTrades(rows pgx.Rows) ([]models.TradeRecord, error) {
	var out []models.TradeRecord
	for rows.Next() {
		t, err := scanTrade(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *t)
	}
	return out, rows.Err()
}
