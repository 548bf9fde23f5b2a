package source

import (
	"context"
	"fmt"

	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
	"github.com/cheongimun/kpi-dashboard/internal/kpi"
)

// monthExpr turns the compact YYYYMMDD event_date column into the
// YYYY-MM month key the engine joins on.
const monthExpr = "concat(substring(event_date, 1, 4), '-', substring(event_date, 5, 2))"

// EventWarehouse reads GA4-export-style event data from ClickHouse.
// The events table stores event_date as a compact YYYYMMDD string and
// is partitioned on it, so every predicate uses the compact encoding.
// Read-only; no retries.
type EventWarehouse struct {
	conn  driver.Conn
	table string
}

// NewEventWarehouse constructs an adapter over the given connection.
func NewEventWarehouse(conn driver.Conn, table string) *EventWarehouse {
	return &EventWarehouse{conn: conn, table: table}
}

// ActiveUsers returns the distinct active-user count per period.
func (e *EventWarehouse) ActiveUsers(ctx context.Context, w kpi.Window) (map[kpi.PeriodKey]int64, error) {
	start, end := w.CompactRange()

	if w.Mode == kpi.ModeRange {
		query := fmt.Sprintf(
			"SELECT uniqExact(user_pseudo_id) FROM %s WHERE event_date BETWEEN ? AND ?",
			e.table,
		)
		var mau uint64
		if err := e.conn.QueryRow(ctx, query, start, end).Scan(&mau); err != nil {
			return nil, fmt.Errorf("active users query: %w", err)
		}
		return map[kpi.PeriodKey]int64{w.Periods[0].Key: int64(mau)}, nil
	}

	query := fmt.Sprintf(`
		SELECT %s AS month, uniqExact(user_pseudo_id) AS mau
		FROM %s
		WHERE event_date BETWEEN ? AND ?
		GROUP BY month
		ORDER BY month`,
		monthExpr, e.table,
	)
	rows, err := e.conn.Query(ctx, query, start, end)
	if err != nil {
		return nil, fmt.Errorf("active users query: %w", err)
	}
	defer rows.Close()

	out := make(map[kpi.PeriodKey]int64)
	for rows.Next() {
		var month string
		var mau uint64
		if err := rows.Scan(&month, &mau); err != nil {
			return nil, fmt.Errorf("active users scan: %w", err)
		}
		out[kpi.PeriodKey(month)] = int64(mau)
	}
	return out, rows.Err()
}

// AvgDailyActive returns, per period, the average of the per-day
// distinct-user counts. The two-level aggregation is deliberate: a
// period-level distinct count would miss churn within the period.
func (e *EventWarehouse) AvgDailyActive(ctx context.Context, w kpi.Window) (map[kpi.PeriodKey]int64, error) {
	start, end := w.CompactRange()

	daily := fmt.Sprintf(`
		SELECT event_date, uniqExact(user_pseudo_id) AS dau
		FROM %s
		WHERE event_date BETWEEN ? AND ?
		GROUP BY event_date`,
		e.table,
	)

	if w.Mode == kpi.ModeRange {
		query := fmt.Sprintf("SELECT toInt64(round(avg(dau))) FROM (%s)", daily)
		var avg int64
		if err := e.conn.QueryRow(ctx, query, start, end).Scan(&avg); err != nil {
			return nil, fmt.Errorf("avg daily active query: %w", err)
		}
		return map[kpi.PeriodKey]int64{w.Periods[0].Key: avg}, nil
	}

	query := fmt.Sprintf(`
		SELECT %s AS month, toInt64(round(avg(dau))) AS avg_dau
		FROM (%s)
		GROUP BY month
		ORDER BY month`,
		monthExpr, daily,
	)
	rows, err := e.conn.Query(ctx, query, start, end)
	if err != nil {
		return nil, fmt.Errorf("avg daily active query: %w", err)
	}
	defer rows.Close()

	out := make(map[kpi.PeriodKey]int64)
	for rows.Next() {
		var month string
		var avg int64
		if err := rows.Scan(&month, &avg); err != nil {
			return nil, fmt.Errorf("avg daily active scan: %w", err)
		}
		out[kpi.PeriodKey(month)] = avg
	}
	return out, rows.Err()
}

// D1Retention returns the percentage of users first seen in the
// window who were active again the next day, rounded to 2dp.
func (e *EventWarehouse) D1Retention(ctx context.Context, w kpi.Window) (float64, error) {
	start, end := w.CompactRange()

	query := fmt.Sprintf(`
		SELECT if(count() = 0, 0, round(countIf(has(days, first_day + 1)) / count() * 100, 2))
		FROM (
			SELECT user_pseudo_id,
			       groupUniqArray(toDate(parseDateTimeBestEffort(event_date))) AS days,
			       min(toDate(parseDateTimeBestEffort(event_date))) AS first_day
			FROM %s
			WHERE event_date BETWEEN ? AND ?
			GROUP BY user_pseudo_id
		)`,
		e.table,
	)
	var d1 float64
	if err := e.conn.QueryRow(ctx, query, start, end).Scan(&d1); err != nil {
		return 0, fmt.Errorf("d1 retention query: %w", err)
	}
	return d1, nil
}
