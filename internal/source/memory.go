package source

import (
	"context"

	"github.com/cheongimun/kpi-dashboard/internal/kpi"
)

// In-memory sources backed by fixed result sets. Used in tests and
// when exercising the service without live backends.

// MemoryEvents is an in-memory EventAnalytics implementation.
type MemoryEvents struct {
	ActiveUsersByPeriod    map[kpi.PeriodKey]int64
	AvgDailyActiveByPeriod map[kpi.PeriodKey]int64
	D1                     float64
	Err                    error
}

func (m *MemoryEvents) ActiveUsers(_ context.Context, _ kpi.Window) (map[kpi.PeriodKey]int64, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	return m.ActiveUsersByPeriod, nil
}

func (m *MemoryEvents) AvgDailyActive(_ context.Context, _ kpi.Window) (map[kpi.PeriodKey]int64, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	return m.AvgDailyActiveByPeriod, nil
}

func (m *MemoryEvents) D1Retention(_ context.Context, _ kpi.Window) (float64, error) {
	if m.Err != nil {
		return 0, m.Err
	}
	return m.D1, nil
}

// MemoryCommerce is an in-memory Commerce implementation.
type MemoryCommerce struct {
	Orders     map[kpi.PeriodKey]kpi.OrderAggregate
	Repurchase float64
	Err        error
}

func (m *MemoryCommerce) PaidOrders(_ context.Context, _ kpi.Window) (map[kpi.PeriodKey]kpi.OrderAggregate, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	return m.Orders, nil
}

func (m *MemoryCommerce) RepurchaseRate(_ context.Context, _ kpi.Window) (float64, error) {
	if m.Err != nil {
		return 0, m.Err
	}
	return m.Repurchase, nil
}

// MemoryCosts is an in-memory Costs implementation.
type MemoryCosts struct {
	Spend map[kpi.PeriodKey]float64
	AI    map[kpi.PeriodKey]float64
	Err   error
}

func (m *MemoryCosts) AdSpend(_ context.Context, _ kpi.Window) (map[kpi.PeriodKey]float64, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	return m.Spend, nil
}

func (m *MemoryCosts) AICost(_ context.Context, _ kpi.Window) (map[kpi.PeriodKey]float64, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	return m.AI, nil
}
