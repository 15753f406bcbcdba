package domain

import (
	"fmt"
	"time"
)

// Frequency is the aggregation granularity of a period summary.
type Frequency string

const (
	Weekly  Frequency = "weekly"  // Monday-anchored weeks
	Monthly Frequency = "monthly" // calendar months
)

// ParseFrequency validates a frequency string from config or a stored file.
func ParseFrequency(s string) (Frequency, error) {
	switch Frequency(s) {
	case Weekly:
		return Weekly, nil
	case Monthly:
		return Monthly, nil
	default:
		return "", fmt.Errorf("invalid frequency %q (want weekly or monthly)", s)
	}
}

// LabelColumn is the period column name used in per-state summary files.
func (f Frequency) LabelColumn() string {
	if f == Monthly {
		return "month_start"
	}
	return "week_start"
}

// PeriodStart anchors a date to the start of its period on the calendar:
// the preceding (or same) Monday for weekly, the first of the month for
// monthly. Anchoring never depends on which dates have data.
func PeriodStart(t time.Time, freq Frequency) time.Time {
	t = t.UTC()
	day := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	if freq == Monthly {
		return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
	}
	// Monday = 0 offset.
	back := (int(day.Weekday()) + 6) % 7
	return day.AddDate(0, 0, -back)
}

// PeriodSummary is one aggregated period for one station. Variables without
// any contributing daily record are absent from Values.
type PeriodSummary struct {
	PeriodStart time.Time
	Values      map[string]float64
}

// Value returns the aggregated value for a variable and whether it is present.
func (p PeriodSummary) Value(variable string) (float64, bool) {
	v, ok := p.Values[variable]
	return v, ok
}
