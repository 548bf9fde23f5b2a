package kpi

import "math"

// assumedGrossMarginPct is the business default applied when revenue
// or AI cost data is absent for a period. It is not a zero-guard
// fallback: with no cost rows the margin is assumed, not unknown.
const assumedGrossMarginPct = 85

// Fixed placeholders for history periods. Per-month retention and
// repurchase are not measured yet; the snapshot computes both from
// real data, the history keeps these until per-month queries land.
const (
	historyD1Retention    = 4.5
	historyRepurchaseRate = 3.0
)

// Derive computes the unit-economics ratios for one period. Every
// ratio is computed only when its denominator is strictly positive and
// is zero otherwise, except GrossMargin which falls back to the
// assumed margin.
func Derive(raw RawPeriodMetrics) Derived {
	d := Derived{GrossMargin: assumedGrossMarginPct}

	if raw.PayingUsers > 0 {
		d.ARPPU = roundHalfUp(raw.PaidRevenue / float64(raw.PayingUsers))
	}
	if raw.ActiveUsers > 0 {
		d.ConversionRate = round2(float64(raw.PayingUsers) / float64(raw.ActiveUsers) * 100)
		d.Stickiness = round2(float64(raw.AvgDailyActive) / float64(raw.ActiveUsers) * 100)
	}
	if raw.PayingUsers > 0 && raw.AdSpend > 0 {
		d.CAC = roundHalfUp(raw.AdSpend / float64(raw.PayingUsers))
	}
	if d.CAC > 0 {
		d.LTVCAC = round2(d.ARPPU / d.CAC)
	}
	if raw.AdSpend > 0 {
		d.ROAS = round2(raw.PaidRevenue / raw.AdSpend)
	}
	if raw.PaidRevenue > 0 && raw.AICost > 0 {
		d.GrossMargin = round1((1 - raw.AICost/raw.PaidRevenue) * 100)
	}
	return d
}

// AggregateInput carries the independent per-source result sets, each
// keyed by PeriodKey. Merge order does not matter; a key missing from
// any map contributes zero to that period.
type AggregateInput struct {
	ActiveUsers    map[PeriodKey]int64
	AvgDailyActive map[PeriodKey]int64
	Orders         map[PeriodKey]OrderAggregate
	AdSpend        map[PeriodKey]float64
	AICost         map[PeriodKey]float64
}

// Aggregate merges the source result sets onto the window's periods
// and derives the full metric sequence, oldest first. Periods after
// the first carry month-over-month deltas against their immediate
// predecessor.
func Aggregate(w Window, in AggregateInput) []PeriodMetrics {
	out := make([]PeriodMetrics, 0, len(w.Periods))
	for i, p := range w.Periods {
		raw := mergePeriod(p.Key, in)
		pm := PeriodMetrics{
			Month:          string(p.Key),
			MonthLabel:     p.Label,
			MAU:            raw.ActiveUsers,
			Revenue:        raw.PaidRevenue,
			PayingUsers:    raw.PayingUsers,
			Derived:        Derive(raw),
			D1Retention:    historyD1Retention,
			RepurchaseRate: historyRepurchaseRate,
			AdSpend:        raw.AdSpend,
			AICost:         raw.AICost,
		}
		if i > 0 {
			pm.DeltaMetrics = deltas(out[i-1], pm)
		}
		out = append(out, pm)
	}
	return out
}

func mergePeriod(key PeriodKey, in AggregateInput) RawPeriodMetrics {
	order := in.Orders[key]
	return RawPeriodMetrics{
		ActiveUsers:    in.ActiveUsers[key],
		AvgDailyActive: in.AvgDailyActive[key],
		PaidRevenue:    order.Revenue,
		PayingUsers:    order.PayingUsers,
		AdSpend:        in.AdSpend[key],
		AICost:         in.AICost[key],
	}
}

func deltas(prev, curr PeriodMetrics) *DeltaMetrics {
	return &DeltaMetrics{
		MAUChange:        pctChange(float64(curr.MAU), float64(prev.MAU)),
		RevenueChange:    pctChange(curr.Revenue, prev.Revenue),
		ARPPUChange:      pctChange(curr.ARPPU, prev.ARPPU),
		CACChange:        pctChange(curr.CAC, prev.CAC),
		LTVCACChange:     pctChange(curr.LTVCAC, prev.LTVCAC),
		ConversionChange: pctChange(curr.ConversionRate, prev.ConversionRate),
	}
}

// pctChange returns the percentage change to 1dp, or 0 when the
// previous value is not positive (undefined growth is no growth).
func pctChange(curr, prev float64) float64 {
	if prev <= 0 {
		return 0
	}
	return round1((curr - prev) / prev * 100)
}

// roundHalfUp rounds half values toward +Inf: a delta of exactly -1.25
// rounds to -1.2, not -1.3. Existing reports were produced with these
// semantics, so math.Round would shift half-value negative deltas.
func roundHalfUp(v float64) float64 { return math.Floor(v + 0.5) }

func round1(v float64) float64 { return roundHalfUp(v*10) / 10 }
func round2(v float64) float64 { return roundHalfUp(v*100) / 100 }
