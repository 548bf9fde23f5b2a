package source

import (
	"context"
	"fmt"

	"github.com/cheongimun/kpi-dashboard/internal/kpi"
	"github.com/jackc/pgx/v5/pgxpool"
)

// CommerceStore reads settled orders from PostgreSQL. Only orders
// with payment_status = 'PAID' count toward revenue and paying users.
// Read-only; no retries.
type CommerceStore struct {
	pool *pgxpool.Pool
}

// NewCommerceStore constructs an adapter over the given pool.
func NewCommerceStore(pool *pgxpool.Pool) *CommerceStore {
	return &CommerceStore{pool: pool}
}

// PaidOrders returns, per period, the settled revenue sum and the
// count of distinct paying customers.
func (c *CommerceStore) PaidOrders(ctx context.Context, w kpi.Window) (map[kpi.PeriodKey]kpi.OrderAggregate, error) {
	start, end := w.ISORange()

	if w.Mode == kpi.ModeRange {
		const query = `
			SELECT COALESCE(SUM(total_amount), 0)::float8 AS revenue,
			       COUNT(DISTINCT customer_phone) AS paying_users
			FROM orders
			WHERE payment_status = 'PAID'
			  AND created_at::date BETWEEN $1::date AND $2::date`

		var agg kpi.OrderAggregate
		if err := c.pool.QueryRow(ctx, query, start, end).Scan(&agg.Revenue, &agg.PayingUsers); err != nil {
			return nil, fmt.Errorf("paid orders query: %w", err)
		}
		return map[kpi.PeriodKey]kpi.OrderAggregate{w.Periods[0].Key: agg}, nil
	}

	const query = `
		SELECT to_char(date_trunc('month', created_at), 'YYYY-MM') AS month,
		       COALESCE(SUM(total_amount), 0)::float8 AS revenue,
		       COUNT(DISTINCT customer_phone) AS paying_users
		FROM orders
		WHERE payment_status = 'PAID'
		  AND created_at::date BETWEEN $1::date AND $2::date
		GROUP BY 1
		ORDER BY 1`

	rows, err := c.pool.Query(ctx, query, start, end)
	if err != nil {
		return nil, fmt.Errorf("paid orders query: %w", err)
	}
	defer rows.Close()

	out := make(map[kpi.PeriodKey]kpi.OrderAggregate)
	for rows.Next() {
		var month string
		var agg kpi.OrderAggregate
		if err := rows.Scan(&month, &agg.Revenue, &agg.PayingUsers); err != nil {
			return nil, fmt.Errorf("paid orders scan: %w", err)
		}
		out[kpi.PeriodKey(month)] = agg
	}
	return out, rows.Err()
}

// RepurchaseRate returns the percentage of paying customers in the
// window with more than one settled order, rounded to 2dp.
func (c *CommerceStore) RepurchaseRate(ctx context.Context, w kpi.Window) (float64, error) {
	start, end := w.ISORange()

	const query = `
		SELECT COALESCE(ROUND(
		         COUNT(*) FILTER (WHERE order_count > 1)::numeric
		         / NULLIF(COUNT(*), 0) * 100, 2), 0)::float8
		FROM (
			SELECT customer_phone, COUNT(*) AS order_count
			FROM orders
			WHERE payment_status = 'PAID'
			  AND created_at::date BETWEEN $1::date AND $2::date
			GROUP BY customer_phone
		) buyer_orders`

	var rate float64
	if err := c.pool.QueryRow(ctx, query, start, end).Scan(&rate); err != nil {
		return 0, fmt.Errorf("repurchase rate query: %w", err)
	}
	return rate, nil
}
