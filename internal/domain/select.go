package domain

import (
	"errors"
	"sort"
)

// ErrNoStations is returned when a selection is attempted over an empty
// candidate set. Callers treat it as "skip this state", not a run failure.
var ErrNoStations = errors.New("no candidate stations")

// DefaultCoverageTolerance absorbs float rounding in upstream coverage
// fractions: 0.9999995 and 1.0 land in the same tie class.
const DefaultCoverageTolerance = 1e-6

// SelectOptions tunes representative-station selection.
type SelectOptions struct {
	// PreferPriority restricts the candidate set to priority-network (USW)
	// stations when at least one is present.
	PreferPriority bool

	// CoverageTolerance widens coverage equality comparisons.
	// Zero means DefaultCoverageTolerance.
	CoverageTolerance float64
}

// SelectRepresentative picks exactly one station to stand in for a state.
//
// Preference order: coverage ≈ 1.0, else maximum coverage; ties break by
// priority network (when requested), longest period of record, earliest
// record start, then station id. The order is total, so the result is
// deterministic for a given input set.
func SelectRepresentative(stations []Station, opts SelectOptions) (Station, error) {
	if len(stations) == 0 {
		return Station{}, ErrNoStations
	}

	tol := opts.CoverageTolerance
	if tol <= 0 {
		tol = DefaultCoverageTolerance
	}

	cand := stations
	if opts.PreferPriority {
		if pri := filterStations(cand, Station.Priority); len(pri) > 0 {
			cand = pri
		}
	}

	pool := filterStations(cand, func(s Station) bool { return s.DataCoverage >= 1.0-tol })
	if len(pool) == 0 {
		maxCov := cand[0].DataCoverage
		for _, s := range cand[1:] {
			if s.DataCoverage > maxCov {
				maxCov = s.DataCoverage
			}
		}
		pool = filterStations(cand, func(s Station) bool { return s.DataCoverage >= maxCov-tol })
	}

	best := make([]Station, len(pool))
	copy(best, pool)
	sort.Slice(best, func(i, j int) bool {
		return lessRepresentative(best[i], best[j], opts.PreferPriority)
	})
	return best[0], nil
}

// lessRepresentative orders a before b when a is the better representative.
func lessRepresentative(a, b Station, preferPriority bool) bool {
	if preferPriority && a.Priority() != b.Priority() {
		return a.Priority()
	}
	if a.SpanDays() != b.SpanDays() {
		return a.SpanDays() > b.SpanDays()
	}
	if !a.MinDate.Equal(b.MinDate) {
		return a.MinDate.Before(b.MinDate)
	}
	return a.ID < b.ID
}

func filterStations(stations []Station, keep func(Station) bool) []Station {
	var out []Station
	for _, s := range stations {
		if keep(s) {
			out = append(out, s)
		}
	}
	return out
}
