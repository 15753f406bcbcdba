package domain

import "time"

// DailyRecord is one (station, date, datatype) observation.
// Immutable; gaps in the upstream data are absent records, never zeros.
type DailyRecord struct {
	StationID string
	Date      time.Time
	Datatype  string
	Value     float64
}

// DefaultVariables is the working set of GHCND datatype codes.
var DefaultVariables = []string{"AWND", "PRCP", "SNOW", "SNWD", "TAVG", "TMAX", "TMIN"}

// sumVariables are accumulated by summation over a period; everything else
// is a rate or level and uses the period mean.
var sumVariables = map[string]bool{
	"PRCP": true,
	"SNOW": true,
	"SNWD": true,
}

// SumsOverPeriod reports whether a datatype aggregates by summation.
func SumsOverPeriod(datatype string) bool {
	return sumVariables[datatype]
}
