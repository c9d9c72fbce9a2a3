package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sablebot/sable-backend/internal/models"
)

type StatsRepo struct {
	pool *pgxpool.Pool
}

func NewStatsRepo(pool *pgxpool.Pool) *StatsRepo {
	return &StatsRepo{pool: pool}
}

// Get returns the running-totals singleton. The row is seeded at migration
// time, so a missing row means the schema was never applied.
func (r *StatsRepo) Get(ctx context.Context) (*models.Stats, error) {
	var s models.Stats
	err := r.pool.QueryRow(ctx,
		`SELECT trade_volume_eth, realized_profit_eth, realized_profit_fraction,
		        open_positions, last_updated
		 FROM stats WHERE id`,
	).Scan(&s.TradeVolumeETH, &s.RealizedProfitETH, &s.RealizedProfitFraction,
		&s.OpenPositions, &s.LastUpdated)
	if err != nil {
		return nil, fmt.Errorf("load stats: %w", err)
	}
	return &s, nil
}
