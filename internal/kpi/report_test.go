package kpi

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAssembleReport(t *testing.T) {
	now := time.Date(2026, 8, 30, 10, 0, 0, 0, time.UTC)
	w := TrailingMonths(now, 2)
	periods := Aggregate(w, AggregateInput{
		ActiveUsers: map[PeriodKey]int64{w.Periods[0].Key: 10, w.Periods[1].Key: 20},
	})

	r := AssembleReport(w, periods, false, now)
	assert.Equal(t, "2026-07-01", r.WindowStart)
	assert.Equal(t, "2026-08-30", r.WindowEnd)
	assert.Equal(t, now, r.GeneratedAt)
	assert.False(t, r.Degraded)
	assert.Len(t, r.Periods, 2)
}

// Assembling from identical inputs twice must yield identical data,
// timestamps aside.
func TestAssembleReport_Deterministic(t *testing.T) {
	w := TrailingMonths(time.Date(2026, 8, 30, 0, 0, 0, 0, time.UTC), 3)
	in := AggregateInput{
		ActiveUsers:    map[PeriodKey]int64{w.Periods[0].Key: 500, w.Periods[2].Key: 700},
		AvgDailyActive: map[PeriodKey]int64{w.Periods[1].Key: 40},
		Orders:         map[PeriodKey]OrderAggregate{w.Periods[1].Key: {Revenue: 9000, PayingUsers: 9}},
		AdSpend:        map[PeriodKey]float64{w.Periods[2].Key: 1200},
	}

	t1 := time.Date(2026, 8, 30, 1, 0, 0, 0, time.UTC)
	t2 := time.Date(2026, 8, 30, 2, 0, 0, 0, time.UTC)
	r1 := AssembleReport(w, Aggregate(w, in), false, t1)
	r2 := AssembleReport(w, Aggregate(w, in), false, t2)

	assert.Equal(t, r1.Periods, r2.Periods)
	assert.Equal(t, r1.WindowStart, r2.WindowStart)
	assert.Equal(t, r1.WindowEnd, r2.WindowEnd)
}

func TestAssembleSnapshot(t *testing.T) {
	now := time.Date(2026, 8, 30, 0, 0, 0, 0, time.UTC)
	w := Trailing30Days(now)
	raw := RawPeriodMetrics{
		ActiveUsers:    66093,
		AvgDailyActive: 2273,
		PaidRevenue:    86631200,
		PayingUsers:    2488,
		AdSpend:        52006664,
		AICost:         21754819,
	}

	r := AssembleSnapshot(w, raw, 4.2, 3.1, false, now)

	assert.Equal(t, int64(66093), r.Data.MAU)
	assert.Equal(t, float64(34820), r.Data.ARPPU)
	assert.Equal(t, raw.PaidRevenue*12, r.Data.ARR)
	assert.Equal(t, 4.2, r.Data.D1Retention)
	assert.Equal(t, 3.1, r.Data.RepurchaseRate)
	assert.Equal(t, "2026-07-31", r.Data.DataStart)
	assert.Equal(t, "2026-08-30", r.Data.DataEnd)
	assert.False(t, r.Degraded)
}

// Delta fields are flattened into the period object and absent on the
// first period, mirroring the dashboard's wire format.
func TestPeriodMetricsJSON(t *testing.T) {
	w := TrailingMonths(time.Date(2026, 8, 30, 0, 0, 0, 0, time.UTC), 2)
	out := Aggregate(w, AggregateInput{
		ActiveUsers: map[PeriodKey]int64{w.Periods[0].Key: 100, w.Periods[1].Key: 150},
	})

	b, err := json.Marshal(out)
	require.NoError(t, err)

	var decoded []map[string]interface{}
	require.NoError(t, json.Unmarshal(b, &decoded))
	require.Len(t, decoded, 2)

	_, hasDelta := decoded[0]["mauChange"]
	assert.False(t, hasDelta)
	assert.Equal(t, float64(50), decoded[1]["mauChange"])
	assert.Equal(t, "2026-07", decoded[0]["month"])
	assert.Equal(t, float64(85), decoded[0]["grossMargin"])
}
