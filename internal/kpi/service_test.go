package kpi

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/cheongimun/kpi-dashboard/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// Local fakes; the service only sees the source interfaces.

type fakeEvents struct {
	active map[PeriodKey]int64
	avgDau map[PeriodKey]int64
	d1     float64
	err    error
}

func (f *fakeEvents) ActiveUsers(context.Context, Window) (map[PeriodKey]int64, error) {
	return f.active, f.err
}

func (f *fakeEvents) AvgDailyActive(context.Context, Window) (map[PeriodKey]int64, error) {
	return f.avgDau, f.err
}

func (f *fakeEvents) D1Retention(context.Context, Window) (float64, error) {
	return f.d1, f.err
}

type fakeCommerce struct {
	orders     map[PeriodKey]OrderAggregate
	repurchase float64
	err        error
}

func (f *fakeCommerce) PaidOrders(context.Context, Window) (map[PeriodKey]OrderAggregate, error) {
	return f.orders, f.err
}

func (f *fakeCommerce) RepurchaseRate(context.Context, Window) (float64, error) {
	return f.repurchase, f.err
}

type fakeCosts struct {
	spend map[PeriodKey]float64
	ai    map[PeriodKey]float64
	err   error
}

func (f *fakeCosts) AdSpend(context.Context, Window) (map[PeriodKey]float64, error) {
	return f.spend, f.err
}

func (f *fakeCosts) AICost(context.Context, Window) (map[PeriodKey]float64, error) {
	return f.ai, f.err
}

var testNow = time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)

func testReportConfig() config.ReportConfig {
	return config.ReportConfig{
		DefaultMonths: 6,
		MaxMonths:     12,
		QueryTimeout:  5 * time.Second,
		CacheTTL:      time.Minute,
	}
}

func newTestService(events EventAnalytics, commerce Commerce, costs Costs, cfg config.ReportConfig) *Service {
	s := NewService(events, commerce, costs, cfg, zap.NewNop(), nil)
	s.now = func() time.Time { return testNow }
	return s
}

func TestService_Snapshot(t *testing.T) {
	key := Trailing30Days(testNow).Periods[0].Key

	events := &fakeEvents{
		active: map[PeriodKey]int64{key: 66093},
		avgDau: map[PeriodKey]int64{key: 2273},
		d1:     4.8,
	}
	commerce := &fakeCommerce{
		orders:     map[PeriodKey]OrderAggregate{key: {Revenue: 86631200, PayingUsers: 2488}},
		repurchase: 3.2,
	}
	costs := &fakeCosts{
		spend: map[PeriodKey]float64{key: 52006664},
		ai:    map[PeriodKey]float64{key: 21754819},
	}

	report, err := newTestService(events, commerce, costs, testReportConfig()).Snapshot(context.Background())
	require.NoError(t, err)

	assert.Equal(t, int64(66093), report.Data.MAU)
	assert.Equal(t, float64(34820), report.Data.ARPPU)
	assert.Equal(t, 3.76, report.Data.ConversionRate)
	assert.Equal(t, float64(20903), report.Data.CAC)
	assert.Equal(t, 4.8, report.Data.D1Retention)
	assert.Equal(t, 3.2, report.Data.RepurchaseRate)
	assert.Equal(t, testNow, report.GeneratedAt)
	assert.False(t, report.Degraded)
}

func TestService_Snapshot_EventSourceFailureIsFatal(t *testing.T) {
	events := &fakeEvents{err: errors.New("deadline exceeded")}
	commerce := &fakeCommerce{}
	costs := &fakeCosts{}

	_, err := newTestService(events, commerce, costs, testReportConfig()).Snapshot(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrSourceUnavailable)
}

func TestService_History_CommerceFailureIsFatal(t *testing.T) {
	events := &fakeEvents{}
	commerce := &fakeCommerce{err: errors.New("connection refused")}
	costs := &fakeCosts{}

	_, err := newTestService(events, commerce, costs, testReportConfig()).History(context.Background(), 3)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrSourceUnavailable)

	var srcErr *SourceUnavailableError
	require.ErrorAs(t, err, &srcErr)
	assert.Equal(t, "commerce", srcErr.Source)
}

func TestService_History_CostFailureDegrades(t *testing.T) {
	w := TrailingMonths(testNow, 2)
	k0, k1 := w.Periods[0].Key, w.Periods[1].Key

	events := &fakeEvents{
		active: map[PeriodKey]int64{k0: 100, k1: 200},
		avgDau: map[PeriodKey]int64{k0: 10, k1: 20},
	}
	commerce := &fakeCommerce{
		orders: map[PeriodKey]OrderAggregate{k0: {Revenue: 5000, PayingUsers: 5}},
	}
	costs := &fakeCosts{err: errors.New("connect timeout")}

	report, err := newTestService(events, commerce, costs, testReportConfig()).History(context.Background(), 2)
	require.NoError(t, err)

	assert.True(t, report.Degraded)
	require.Len(t, report.Periods, 2)
	for _, pm := range report.Periods {
		assert.Equal(t, float64(0), pm.AdSpend)
		assert.Equal(t, float64(0), pm.AICost)
		assert.Equal(t, float64(0), pm.CAC)
		assert.Equal(t, float64(85), pm.GrossMargin)
	}
	// The required sources still populate the report.
	assert.Equal(t, int64(100), report.Periods[0].MAU)
}

func TestService_History_CostFailureUsesConfiguredDefaults(t *testing.T) {
	cfg := testReportConfig()
	cfg.DefaultAdSpend = 1000
	cfg.DefaultAICost = 250

	events := &fakeEvents{}
	commerce := &fakeCommerce{}
	costs := &fakeCosts{err: errors.New("down")}

	report, err := newTestService(events, commerce, costs, cfg).History(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, report.Periods, 1)
	assert.True(t, report.Degraded)
	assert.Equal(t, float64(1000), report.Periods[0].AdSpend)
	assert.Equal(t, float64(250), report.Periods[0].AICost)
}

func TestService_Snapshot_CostFailureDegrades(t *testing.T) {
	key := Trailing30Days(testNow).Periods[0].Key

	events := &fakeEvents{active: map[PeriodKey]int64{key: 50}}
	commerce := &fakeCommerce{orders: map[PeriodKey]OrderAggregate{key: {Revenue: 1000, PayingUsers: 2}}}
	costs := &fakeCosts{err: errors.New("down")}

	report, err := newTestService(events, commerce, costs, testReportConfig()).Snapshot(context.Background())
	require.NoError(t, err)
	assert.True(t, report.Degraded)
	assert.Equal(t, float64(0), report.Data.AdSpend)
	assert.Equal(t, float64(0), report.Data.AICost)
	assert.Equal(t, float64(500), report.Data.ARPPU)
	assert.Equal(t, float64(85), report.Data.GrossMargin)
}

func TestService_History_MonthClamping(t *testing.T) {
	events := &fakeEvents{}
	commerce := &fakeCommerce{}
	costs := &fakeCosts{}
	svc := newTestService(events, commerce, costs, testReportConfig())

	tests := []struct {
		months int
		want   int
	}{
		{months: 20, want: 12},
		{months: 0, want: 6},
		{months: -1, want: 6},
		{months: 3, want: 3},
	}

	for _, tc := range tests {
		report, err := svc.History(context.Background(), tc.months)
		require.NoError(t, err)
		assert.Len(t, report.Periods, tc.want, "months=%d", tc.months)
	}
}
