package domain

import (
	"sort"
	"time"
)

// Aggregate rolls daily records up to period summaries for the requested
// variables. Sum-type variables use the period sum, the rest the period
// mean. Output rows are sorted by period start; a (period, variable) cell
// with no contributing records is left missing rather than zeroed.
func Aggregate(records []DailyRecord, variables []string, freq Frequency) []PeriodSummary {
	wanted := make(map[string]bool, len(variables))
	for _, v := range variables {
		wanted[v] = true
	}

	type cell struct {
		sum   float64
		count int
	}
	periods := make(map[time.Time]map[string]*cell)

	for _, r := range records {
		if !wanted[r.Datatype] {
			continue
		}
		start := PeriodStart(r.Date, freq)
		byVar := periods[start]
		if byVar == nil {
			byVar = make(map[string]*cell)
			periods[start] = byVar
		}
		c := byVar[r.Datatype]
		if c == nil {
			c = &cell{}
			byVar[r.Datatype] = c
		}
		c.sum += r.Value
		c.count++
	}

	if len(periods) == 0 {
		return nil
	}

	starts := make([]time.Time, 0, len(periods))
	for start := range periods {
		starts = append(starts, start)
	}
	sort.Slice(starts, func(i, j int) bool { return starts[i].Before(starts[j]) })

	out := make([]PeriodSummary, 0, len(starts))
	for _, start := range starts {
		values := make(map[string]float64)
		for name, c := range periods[start] {
			if SumsOverPeriod(name) {
				values[name] = c.sum
			} else {
				values[name] = c.sum / float64(c.count)
			}
		}
		out = append(out, PeriodSummary{PeriodStart: start, Values: values})
	}
	return out
}
