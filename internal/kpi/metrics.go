package kpi

import "time"

// RawPeriodMetrics holds the merged per-period counts pulled from the
// source adapters before derivation. A source missing a period leaves
// that field at zero; absence of data is not an error.
type RawPeriodMetrics struct {
	ActiveUsers    int64
	AvgDailyActive int64
	PaidRevenue    float64
	PayingUsers    int64
	AdSpend        float64
	AICost         float64
}

// Derived holds the unit-economics ratios computed from one period's
// raw metrics.
type Derived struct {
	ARPPU          float64 `json:"arppu"`
	ConversionRate float64 `json:"conversionRate"`
	CAC            float64 `json:"cac"`
	LTVCAC         float64 `json:"ltvCac"`
	ROAS           float64 `json:"roas"`
	GrossMargin    float64 `json:"grossMargin"`
	Stickiness     float64 `json:"stickiness"`
}

// DeltaMetrics holds month-over-month percentage changes relative to
// the immediately preceding period. A zero previous value yields a
// zero change rather than an infinite growth rate.
type DeltaMetrics struct {
	MAUChange        float64 `json:"mauChange"`
	RevenueChange    float64 `json:"revenueChange"`
	ARPPUChange      float64 `json:"arppuChange"`
	CACChange        float64 `json:"cacChange"`
	LTVCACChange     float64 `json:"ltvCacChange"`
	ConversionChange float64 `json:"conversionChange"`
}

// PeriodMetrics is the full per-period record in a history report.
// DeltaMetrics is nil for the first period of a sequence.
type PeriodMetrics struct {
	Month       string  `json:"month"`
	MonthLabel  string  `json:"monthLabel"`
	MAU         int64   `json:"mau"`
	Revenue     float64 `json:"revenue"`
	PayingUsers int64   `json:"payingUsers"`
	Derived
	D1Retention    float64 `json:"d1Retention"`
	RepurchaseRate float64 `json:"repurchaseRate"`
	AdSpend        float64 `json:"adSpend"`
	AICost         float64 `json:"aiCost"`
	*DeltaMetrics
}

// Snapshot is the single-period view over the trailing 30 days,
// extended with annualized revenue and the measured retention and
// repurchase rates.
type Snapshot struct {
	MAU         int64   `json:"mau"`
	Revenue     float64 `json:"revenue"`
	PayingUsers int64   `json:"payingUsers"`
	Derived
	D1Retention    float64 `json:"d1Retention"`
	RepurchaseRate float64 `json:"repurchaseRate"`
	ARR            float64 `json:"arr"`
	AdSpend        float64 `json:"adSpend"`
	AICost         float64 `json:"aiCost"`
	DataStart      string  `json:"dataStart"`
	DataEnd        string  `json:"dataEnd"`
}

// Report is an assembled multi-period history. Immutable once built;
// regenerated in full on every request. Degraded is true when the
// cost source was unavailable and configured defaults were applied.
type Report struct {
	Periods     []PeriodMetrics `json:"periods"`
	GeneratedAt time.Time       `json:"generatedAt"`
	WindowStart string          `json:"windowStart"`
	WindowEnd   string          `json:"windowEnd"`
	Degraded    bool            `json:"degraded"`
}

// SnapshotReport is an assembled single-period report.
type SnapshotReport struct {
	Data        Snapshot  `json:"data"`
	GeneratedAt time.Time `json:"generatedAt"`
	Degraded    bool      `json:"degraded"`
}
