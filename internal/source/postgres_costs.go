package source

import (
	"context"
	"fmt"

	"github.com/cheongimun/kpi-dashboard/internal/kpi"
	"github.com/jackc/pgx/v5/pgxpool"
)

// CostStore reads ad spend and AI inference cost from PostgreSQL.
// Callers treat any failure here as degradable: reports fall back to
// configured default costs instead of failing.
type CostStore struct {
	pool *pgxpool.Pool
}

// NewCostStore constructs an adapter over the given pool.
func NewCostStore(pool *pgxpool.Pool) *CostStore {
	return &CostStore{pool: pool}
}

// AdSpend returns the ad spend sum per period.
func (c *CostStore) AdSpend(ctx context.Context, w kpi.Window) (map[kpi.PeriodKey]float64, error) {
	return c.sumByPeriod(ctx, w, "adset_performance", "performance_date", "spend")
}

// AICost returns the AI inference cost sum per period.
func (c *CostStore) AICost(ctx context.Context, w kpi.Window) (map[kpi.PeriodKey]float64, error) {
	return c.sumByPeriod(ctx, w, "api_costs", "created_at", "cost_krw")
}

func (c *CostStore) sumByPeriod(ctx context.Context, w kpi.Window, table, dateCol, valueCol string) (map[kpi.PeriodKey]float64, error) {
	start, end := w.ISORange()

	if w.Mode == kpi.ModeRange {
		query := fmt.Sprintf(`
			SELECT COALESCE(SUM(%s), 0)::float8
			FROM %s
			WHERE %s::date BETWEEN $1::date AND $2::date`,
			valueCol, table, dateCol,
		)
		var sum float64
		if err := c.pool.QueryRow(ctx, query, start, end).Scan(&sum); err != nil {
			return nil, fmt.Errorf("%s sum query: %w", table, err)
		}
		return map[kpi.PeriodKey]float64{w.Periods[0].Key: sum}, nil
	}

	query := fmt.Sprintf(`
		SELECT to_char(date_trunc('month', %s), 'YYYY-MM') AS month,
		       COALESCE(SUM(%s), 0)::float8 AS total
		FROM %s
		WHERE %s::date BETWEEN $1::date AND $2::date
		GROUP BY 1
		ORDER BY 1`,
		dateCol, valueCol, table, dateCol,
	)
	rows, err := c.pool.Query(ctx, query, start, end)
	if err != nil {
		return nil, fmt.Errorf("%s sum query: %w", table, err)
	}
	defer rows.Close()

	out := make(map[kpi.PeriodKey]float64)
	for rows.Next() {
		var month string
		var total float64
		if err := rows.Scan(&month, &total); err != nil {
			return nil, fmt.Errorf("%s sum scan: %w", table, err)
		}
		out[kpi.PeriodKey(month)] = total
	}
	return out, rows.Err()
}
