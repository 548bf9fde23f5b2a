package kpi

import "time"

// AssembleReport shapes a derived metric sequence into the final
// history report. Pure transformation: deterministic given identical
// inputs except for the generation timestamp.
func AssembleReport(w Window, periods []PeriodMetrics, degraded bool, now time.Time) Report {
	start, end := w.ISORange()
	return Report{
		Periods:     periods,
		GeneratedAt: now,
		WindowStart: start,
		WindowEnd:   end,
		Degraded:    degraded,
	}
}

// AssembleSnapshot shapes one period's raw metrics into the snapshot
// report, attaching the measured retention and repurchase rates and
// the annualized revenue run rate.
func AssembleSnapshot(w Window, raw RawPeriodMetrics, d1Retention, repurchaseRate float64, degraded bool, now time.Time) SnapshotReport {
	start, end := w.ISORange()
	return SnapshotReport{
		Data: Snapshot{
			MAU:            raw.ActiveUsers,
			Revenue:        raw.PaidRevenue,
			PayingUsers:    raw.PayingUsers,
			Derived:        Derive(raw),
			D1Retention:    d1Retention,
			RepurchaseRate: repurchaseRate,
			ARR:            raw.PaidRevenue * 12,
			AdSpend:        raw.AdSpend,
			AICost:         raw.AICost,
			DataStart:      start,
			DataEnd:        end,
		},
		GeneratedAt: now,
		Degraded:    degraded,
	}
}
