package domain

import (
	"strings"
	"time"
)

// priorityPrefix marks WBAN-network stations (mostly ASOS airport sites),
// which tend to have the longest and most complete records.
const priorityPrefix = "GHCND:USW"

// Station is one GHCND station as reported by the CDO stations endpoint.
// Immutable once fetched.
type Station struct {
	ID           string
	Name         string
	Latitude     float64
	Longitude    float64
	Elevation    float64
	MinDate      time.Time // start of the period of record
	MaxDate      time.Time // end of the period of record
	DataCoverage float64   // fraction of the period of record with data, 0.0-1.0
}

// Priority reports whether the station belongs to the priority (USW) network.
func (s Station) Priority() bool {
	return strings.HasPrefix(s.ID, priorityPrefix)
}

// SpanDays returns the length of the period of record in days, or -1 when
// either end of the record is unknown.
func (s Station) SpanDays() int {
	if s.MinDate.IsZero() || s.MaxDate.IsZero() || s.MaxDate.Before(s.MinDate) {
		return -1
	}
	return int(s.MaxDate.Sub(s.MinDate).Hours() / 24)
}
