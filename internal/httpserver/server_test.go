package httpserver

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/cheongimun/kpi-dashboard/internal/config"
	"github.com/cheongimun/kpi-dashboard/internal/kpi"
	"github.com/cheongimun/kpi-dashboard/internal/source"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func testConfig() *config.Config {
	return &config.Config{
		Report: config.ReportConfig{
			DefaultMonths: 6,
			MaxMonths:     12,
			QueryTimeout:  5 * time.Second,
			CacheTTL:      time.Minute,
		},
	}
}

func testDeps(events kpi.EventAnalytics, commerce kpi.Commerce, costs kpi.Costs) *Dependencies {
	return &Dependencies{
		Config:   testConfig(),
		Logger:   zap.NewNop(),
		Events:   events,
		Commerce: commerce,
		Costs:    costs,
	}
}

func seededSources() (*source.MemoryEvents, *source.MemoryCommerce, *source.MemoryCosts) {
	// Key the fixtures by every period the current windows can
	// produce so the tests hold regardless of today's date.
	active := make(map[kpi.PeriodKey]int64)
	avgDau := make(map[kpi.PeriodKey]int64)
	orders := make(map[kpi.PeriodKey]kpi.OrderAggregate)
	spend := make(map[kpi.PeriodKey]float64)
	ai := make(map[kpi.PeriodKey]float64)

	now := time.Now()
	periods := append(
		kpi.TrailingMonths(now, kpi.MaxTrailingMonths).Periods,
		kpi.Trailing30Days(now).Periods...,
	)
	for _, p := range periods {
		active[p.Key] = 1000
		avgDau[p.Key] = 100
		orders[p.Key] = kpi.OrderAggregate{Revenue: 100000, PayingUsers: 50}
		spend[p.Key] = 25000
		ai[p.Key] = 10000
	}

	return &source.MemoryEvents{ActiveUsersByPeriod: active, AvgDailyActiveByPeriod: avgDau, D1: 4.8},
		&source.MemoryCommerce{Orders: orders, Repurchase: 3.2},
		&source.MemoryCosts{Spend: spend, AI: ai}
}

func TestHandleKPI(t *testing.T) {
	events, commerce, costs := seededSources()
	srv := NewServer(testDeps(events, commerce, costs))

	req := httptest.NewRequest(http.MethodGet, "/kpi", nil)
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var resp snapshotResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.Success)
	assert.Equal(t, int64(1000), resp.Data.MAU)
	assert.Equal(t, float64(2000), resp.Data.ARPPU)
	assert.Equal(t, float64(500), resp.Data.CAC)
	assert.Equal(t, float64(90), resp.Data.GrossMargin)
	assert.Equal(t, 4.8, resp.Data.D1Retention)
	assert.Equal(t, resp.Data.Revenue*12, resp.Data.ARR)
	assert.False(t, resp.Degraded)
	assert.False(t, resp.UpdatedAt.IsZero())
}

func TestHandleKPI_MethodNotAllowed(t *testing.T) {
	events, commerce, costs := seededSources()
	srv := NewServer(testDeps(events, commerce, costs))

	req := httptest.NewRequest(http.MethodPost, "/kpi", nil)
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestHandleKPI_SourceUnavailable(t *testing.T) {
	_, commerce, costs := seededSources()
	events := &source.MemoryEvents{Err: errors.New("deadline exceeded")}
	srv := NewServer(testDeps(events, commerce, costs))

	req := httptest.NewRequest(http.MethodGet, "/kpi", nil)
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	require.Equal(t, http.StatusServiceUnavailable, rec.Code)

	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, false, resp["success"])
	assert.NotEmpty(t, resp["error"])
	// A failed report never carries partial data.
	assert.NotContains(t, resp, "data")
}

func TestHandleKPIHistory(t *testing.T) {
	events, commerce, costs := seededSources()
	srv := NewServer(testDeps(events, commerce, costs))

	req := httptest.NewRequest(http.MethodGet, "/kpi-history?months=3", nil)
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var resp historyResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.Success)
	assert.Equal(t, 3, resp.Count)
	require.Len(t, resp.Data, 3)

	assert.Nil(t, resp.Data[0].DeltaMetrics)
	require.NotNil(t, resp.Data[1].DeltaMetrics)
	assert.Equal(t, float64(0), resp.Data[1].MAUChange)
}

func TestHandleKPIHistory_MonthsClampedAndDefaulted(t *testing.T) {
	events, commerce, costs := seededSources()
	srv := NewServer(testDeps(events, commerce, costs))

	tests := []struct {
		query string
		want  int
	}{
		{query: "months=20", want: 12},
		{query: "months=abc", want: 6},
		{query: "", want: 6},
		{query: "months=1", want: 1},
	}

	for _, tc := range tests {
		req := httptest.NewRequest(http.MethodGet, "/kpi-history?"+tc.query, nil)
		rec := httptest.NewRecorder()
		srv.ServeHTTP(rec, req)

		require.Equal(t, http.StatusOK, rec.Code, tc.query)
		var resp historyResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, tc.want, resp.Count, tc.query)
	}
}

func TestHandleKPIHistory_CostFailureDegrades(t *testing.T) {
	events, commerce, _ := seededSources()
	costs := &source.MemoryCosts{Err: errors.New("connect timeout")}
	srv := NewServer(testDeps(events, commerce, costs))

	req := httptest.NewRequest(http.MethodGet, "/kpi-history?months=2", nil)
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var resp historyResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.Success)
	assert.True(t, resp.Degraded)
	for _, pm := range resp.Data {
		assert.Equal(t, float64(0), pm.AdSpend)
	}
}

func TestHandleHealth(t *testing.T) {
	events, commerce, costs := seededSources()
	srv := NewServer(testDeps(events, commerce, costs))

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var resp map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "ok", resp["status"])
}
