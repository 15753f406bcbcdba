// Package pipeline orchestrates the per-state flow: list stations, pick the
// representative, fetch its daily records year by year, aggregate, and
// persist. States are independent units of work; one state's failure is
// recorded and skipped, never fatal to the run, except for credential
// failures against the upstream API.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/AkkshayaRajesh/ghcnd-pipeline/internal/domain"
	"github.com/AkkshayaRajesh/ghcnd-pipeline/internal/observability"
	"github.com/AkkshayaRajesh/ghcnd-pipeline/internal/store"
	"golang.org/x/sync/errgroup"
)

// ErrNoDailyData marks a state whose selected station had no observations in
// the requested window. A skip condition, not a failure.
var ErrNoDailyData = errors.New("no daily data for selected station")

// StationLister provides the station catalog for one state.
type StationLister interface {
	Stations(ctx context.Context, fips string, datatypes []string) ([]domain.Station, error)
}

// DailyReader provides daily observations for one station and date range.
type DailyReader interface {
	DailyData(ctx context.Context, stationID string, start, end time.Time, datatypes []string) ([]domain.DailyRecord, error)
}

// Options tunes a fetch run.
type Options struct {
	Variables         []string
	Frequency         domain.Frequency
	PreferPriority    bool
	CoverageTolerance float64
	StartYear         int
	EndYear           int
	Resume            bool // reuse existing per-station-year parts
	SaveRaw           bool // persist fetched parts for future resumes
}

// Pipeline runs the catalog-select-fetch-aggregate cycle per state.
type Pipeline struct {
	stations StationLister
	daily    DailyReader
	store    *store.Store
	opts     Options
	logger   *slog.Logger
	metrics  *observability.Metrics

	ready     atomic.Bool
	total     atomic.Int64
	completed atomic.Int64
	skipped   atomic.Int64
	running   atomic.Bool
}

// New creates a Pipeline with the given stages and observability.
func New(stations StationLister, daily DailyReader, st *store.Store, opts Options, logger *slog.Logger, metrics *observability.Metrics) *Pipeline {
	return &Pipeline{
		stations: stations,
		daily:    daily,
		store:    st,
		opts:     opts,
		logger:   logger,
		metrics:  metrics,
	}
}

// CheckReadiness returns nil once at least one state has completed.
func (p *Pipeline) CheckReadiness(_ context.Context) error {
	if !p.ready.Load() {
		return errors.New("no state has completed yet")
	}
	return nil
}

// Progress is a point-in-time snapshot of a run, served by the status server.
type Progress struct {
	Total     int  `json:"total"`
	Completed int  `json:"completed"`
	Skipped   int  `json:"skipped"`
	Running   bool `json:"running"`
}

// Progress reports how far the current run has gotten.
func (p *Pipeline) Progress() Progress {
	return Progress{
		Total:     int(p.total.Load()),
		Completed: int(p.completed.Load()),
		Skipped:   int(p.skipped.Load()),
		Running:   p.running.Load(),
	}
}

// SkippedState records one state left out of the run and why.
type SkippedState struct {
	FIPS   string
	Reason string
}

// Report summarizes a whole run.
type Report struct {
	Completed []string
	Skipped   []SkippedState
}

// RunAll processes the given states, at most concurrency at a time. The
// returned error is non-nil only for run-fatal conditions (invalid API
// credentials); everything else is a per-state skip in the report.
func (p *Pipeline) RunAll(ctx context.Context, states []string, concurrency int) (*Report, error) {
	if concurrency < 1 {
		concurrency = 1
	}
	p.total.Store(int64(len(states)))
	p.running.Store(true)
	p.metrics.PipelineRunning.Set(1)
	defer func() {
		p.running.Store(false)
		p.metrics.PipelineRunning.Set(0)
	}()

	if err := p.store.WriteVariables(p.opts.Variables); err != nil {
		return nil, err
	}

	var mu sync.Mutex
	report := &Report{}
	record := func(fips string, err error) error {
		mu.Lock()
		defer mu.Unlock()

		switch {
		case err == nil:
			report.Completed = append(report.Completed, fips)
			p.completed.Add(1)
			p.metrics.StatesCompleted.Inc()
			p.ready.Store(true)
		case isFatal(err):
			// Credential failures poison every remaining state; stop the run.
			return fmt.Errorf("FIPS:%s: %w", fips, err)
		default:
			report.Skipped = append(report.Skipped, SkippedState{FIPS: fips, Reason: err.Error()})
			p.skipped.Add(1)
			p.metrics.StatesSkipped.Inc()
			if isDataAbsence(err) {
				p.logger.Info("state skipped", "fips", fips, "reason", err.Error())
			} else {
				p.logger.Warn("state skipped", "fips", fips, "reason", err.Error())
			}
		}
		return nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)
	for _, fips := range states {
		fips := fips
		g.Go(func() error {
			if gctx.Err() != nil {
				return record(fips, fmt.Errorf("run cancelled: %w", gctx.Err()))
			}
			return record(fips, p.RunState(gctx, fips))
		})
	}
	err := g.Wait()

	sort.Strings(report.Completed)
	sort.Slice(report.Skipped, func(i, j int) bool { return report.Skipped[i].FIPS < report.Skipped[j].FIPS })
	return report, err
}

// RunState processes one state end to end.
func (p *Pipeline) RunState(ctx context.Context, fips string) error {
	start := time.Now()
	logger := p.logger.With("fips", fips)
	logger.Info("listing stations", "variables", p.opts.Variables)

	stations, err := p.stations.Stations(ctx, fips, p.opts.Variables)
	if err != nil {
		return fmt.Errorf("station catalog: %w", err)
	}
	if len(stations) == 0 {
		return domain.ErrNoStations
	}
	if err := p.store.WriteStations(fips, stations); err != nil {
		return err
	}
	logger.Info("station catalog saved", "stations", len(stations))

	selected, err := domain.SelectRepresentative(stations, domain.SelectOptions{
		PreferPriority:    p.opts.PreferPriority,
		CoverageTolerance: p.opts.CoverageTolerance,
	})
	if err != nil {
		return err
	}
	if err := p.store.WriteSelected(fips, selected); err != nil {
		return err
	}
	logger.Info("representative station selected",
		"station", selected.ID,
		"name", selected.Name,
		"coverage", selected.DataCoverage,
		"span_days", selected.SpanDays(),
	)

	daily, err := p.fetchDaily(ctx, fips, selected, logger)
	if err != nil {
		return err
	}
	if len(daily) == 0 {
		return ErrNoDailyData
	}

	summaries := domain.Aggregate(daily, p.opts.Variables, p.opts.Frequency)
	if len(summaries) == 0 {
		return ErrNoDailyData
	}
	if err := p.store.WriteSummary(fips, p.opts.Frequency, p.opts.Variables, summaries); err != nil {
		return err
	}

	p.metrics.StateDuration.Observe(time.Since(start).Seconds())
	logger.Info("state complete",
		"periods", len(summaries),
		"daily_records", len(daily),
		"frequency", p.opts.Frequency,
	)
	return nil
}

// fetchDaily walks the station's period of record one year at a time,
// reusing on-disk parts where possible. A failed year is logged and skipped;
// fatal credential errors abort immediately.
func (p *Pipeline) fetchDaily(ctx context.Context, fips string, station domain.Station, logger *slog.Logger) ([]domain.DailyRecord, error) {
	var daily []domain.DailyRecord
	for _, yr := range yearSlices(station.MinDate, station.MaxDate, p.opts.StartYear, p.opts.EndYear) {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		records, err := p.stationYear(ctx, fips, station.ID, yr, logger)
		if err != nil {
			if isFatal(err) || ctx.Err() != nil {
				return nil, err
			}
			logger.Warn("station-year fetch failed, continuing", "year", yr.year, "error", err)
			continue
		}
		daily = append(daily, records...)
	}
	return daily, nil
}

func (p *Pipeline) stationYear(ctx context.Context, fips, stationID string, yr yearRange, logger *slog.Logger) ([]domain.DailyRecord, error) {
	if p.opts.Resume && p.store.HasPart(fips, stationID, yr.year) {
		records, err := p.store.ReadPart(fips, stationID, yr.year)
		if err == nil {
			logger.Debug("reusing cached part", "year", yr.year, "records", len(records))
			return records, nil
		}
		logger.Warn("unreadable part, refetching", "year", yr.year, "error", err)
	}

	records, err := p.daily.DailyData(ctx, stationID, yr.start, yr.end, p.opts.Variables)
	if err != nil {
		return nil, err
	}
	if p.opts.SaveRaw {
		if err := p.store.WritePart(fips, stationID, yr.year, records); err != nil {
			return nil, err
		}
	}
	return records, nil
}

// yearRange is one calendar-year slice of a fetch window.
type yearRange struct {
	year       int
	start, end time.Time
}

// yearSlices intersects a station's period of record with the configured
// year window and splits the result by calendar year.
func yearSlices(minDate, maxDate time.Time, startYear, endYear int) []yearRange {
	if minDate.IsZero() || maxDate.IsZero() || minDate.After(maxDate) {
		return nil
	}
	lo := time.Date(startYear, time.January, 1, 0, 0, 0, 0, time.UTC)
	hi := time.Date(endYear, time.December, 31, 0, 0, 0, 0, time.UTC)
	start := minDate.UTC()
	if start.Before(lo) {
		start = lo
	}
	end := maxDate.UTC()
	if end.After(hi) {
		end = hi
	}
	if start.After(end) {
		return nil
	}

	var out []yearRange
	for y := start.Year(); y <= end.Year(); y++ {
		ys := time.Date(y, time.January, 1, 0, 0, 0, 0, time.UTC)
		ye := time.Date(y, time.December, 31, 0, 0, 0, 0, time.UTC)
		if ys.Before(start) {
			ys = start
		}
		if ye.After(end) {
			ye = end
		}
		out = append(out, yearRange{year: y, start: ys, end: ye})
	}
	return out
}

// isFatal reports whether an upstream error poisons the whole run.
// The noaa client marks credential failures this way.
func isFatal(err error) bool {
	var f interface{ Fatal() bool }
	return errors.As(err, &f) && f.Fatal()
}

func isDataAbsence(err error) bool {
	return errors.Is(err, domain.ErrNoStations) || errors.Is(err, ErrNoDailyData)
}
