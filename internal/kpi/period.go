package kpi

import (
	"fmt"
	"time"
)

// PeriodKey identifies one aggregation bucket. Month buckets use the
// "YYYY-MM" form; an explicit date-range bucket uses "start..end" with
// dashed ISO dates. It is the join key across all source result sets.
type PeriodKey string

// Period is one aggregation bucket with its bounds in both encodings
// the source adapters require: compact "YYYYMMDD" for the event
// warehouse's partition predicate and dashed "YYYY-MM-DD" for the
// commerce and cost queries. Both always denote the same days.
type Period struct {
	Key   PeriodKey
	Label string // display form, e.g. "2026.08"
	Start time.Time
	End   time.Time
}

const (
	compactDate = "20060102"
	isoDate     = "2006-01-02"
	monthKey    = "2006-01"
	monthLabel  = "2006.01"
)

// CompactRange returns the period bounds as compact YYYYMMDD strings.
func (p Period) CompactRange() (start, end string) {
	return p.Start.Format(compactDate), p.End.Format(compactDate)
}

// ISORange returns the period bounds as dashed YYYY-MM-DD strings.
func (p Period) ISORange() (start, end string) {
	return p.Start.Format(isoDate), p.End.Format(isoDate)
}

// WindowMode selects how a window is bucketed.
type WindowMode int

const (
	// ModeRange is a single explicit date-range bucket.
	ModeRange WindowMode = iota
	// ModeMonthly buckets the window into calendar months.
	ModeMonthly
)

// Window is the Period Aligner output: the ordered (chronological)
// set of buckets a report is computed over.
type Window struct {
	Mode    WindowMode
	Periods []Period
}

// Start returns the first day covered by the window.
func (w Window) Start() time.Time {
	return w.Periods[0].Start
}

// End returns the last day covered by the window.
func (w Window) End() time.Time {
	return w.Periods[len(w.Periods)-1].End
}

// CompactRange returns the whole-window bounds as YYYYMMDD strings.
func (w Window) CompactRange() (start, end string) {
	return w.Start().Format(compactDate), w.End().Format(compactDate)
}

// ISORange returns the whole-window bounds as YYYY-MM-DD strings.
func (w Window) ISORange() (start, end string) {
	return w.Start().Format(isoDate), w.End().Format(isoDate)
}

// Month-count bounds for TrailingMonths. A non-positive count falls
// back to the default rather than being rejected; anything above the
// cap is clamped to keep warehouse scans bounded.
const (
	DefaultTrailingMonths = 6
	MaxTrailingMonths     = 12
)

// ClampMonths normalizes a requested month count: non-positive counts
// become DefaultTrailingMonths, counts above MaxTrailingMonths are
// capped.
func ClampMonths(n int) int {
	if n <= 0 {
		return DefaultTrailingMonths
	}
	if n > MaxTrailingMonths {
		return MaxTrailingMonths
	}
	return n
}

// Trailing30Days builds a single-bucket window covering the 30 days
// up to now.
func Trailing30Days(now time.Time) Window {
	end := dateOf(now)
	start := end.AddDate(0, 0, -30)
	p := Period{
		Key:   PeriodKey(fmt.Sprintf("%s..%s", start.Format(isoDate), end.Format(isoDate))),
		Start: start,
		End:   end,
	}
	return Window{Mode: ModeRange, Periods: []Period{p}}
}

// TrailingMonths builds a window of n calendar-month buckets ending at
// the current (partial) month, oldest first. n is clamped via
// ClampMonths. The final bucket ends today; earlier buckets end on
// their last calendar day.
func TrailingMonths(now time.Time, n int) Window {
	n = ClampMonths(n)

	today := dateOf(now)
	// Anchor on the first of the month so AddDate cannot skid across
	// month boundaries on short months.
	firstOfCurrent := time.Date(today.Year(), today.Month(), 1, 0, 0, 0, 0, time.UTC)

	periods := make([]Period, 0, n)
	for i := 0; i < n; i++ {
		first := firstOfCurrent.AddDate(0, -(n - 1 - i), 0)
		last := first.AddDate(0, 1, -1)
		if last.After(today) {
			last = today
		}
		periods = append(periods, Period{
			Key:   PeriodKey(first.Format(monthKey)),
			Label: first.Format(monthLabel),
			Start: first,
			End:   last,
		})
	}
	return Window{Mode: ModeMonthly, Periods: periods}
}

func dateOf(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
