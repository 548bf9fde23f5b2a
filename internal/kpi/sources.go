package kpi

import "context"

// OrderAggregate is the commerce source's per-period result: settled
// revenue and the count of distinct paying customers.
type OrderAggregate struct {
	Revenue     float64
	PayingUsers int64
}

// EventAnalytics reads the event warehouse. ActiveUsers counts
// distinct users per period; AvgDailyActive averages the per-day
// distinct counts within each period (a period-level distinct count
// would undercount churn within the period). D1Retention is the share
// of new users in the window seen again the following day.
type EventAnalytics interface {
	ActiveUsers(ctx context.Context, w Window) (map[PeriodKey]int64, error)
	AvgDailyActive(ctx context.Context, w Window) (map[PeriodKey]int64, error)
	D1Retention(ctx context.Context, w Window) (float64, error)
}

// Commerce reads the order database, restricted to paid orders.
type Commerce interface {
	PaidOrders(ctx context.Context, w Window) (map[PeriodKey]OrderAggregate, error)
	RepurchaseRate(ctx context.Context, w Window) (float64, error)
}

// Costs reads ad spend and AI inference cost. Unlike the other two
// sources its failure is non-fatal; callers degrade to configured
// defaults.
type Costs interface {
	AdSpend(ctx context.Context, w Window) (map[PeriodKey]float64, error)
	AICost(ctx context.Context, w Window) (map[PeriodKey]float64, error)
}
