package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AkkshayaRajesh/ghcnd-pipeline/internal/domain"
	"github.com/AkkshayaRajesh/ghcnd-pipeline/internal/observability"
	"github.com/AkkshayaRajesh/ghcnd-pipeline/internal/store"
)

type fakeAPI struct {
	mu         sync.Mutex
	stations   map[string][]domain.Station
	records    map[string][]domain.DailyRecord // keyed by stationID
	stationErr map[string]error
	dailyErr   map[string]error
	dailyCalls int
}

func (f *fakeAPI) Stations(_ context.Context, fips string, _ []string) ([]domain.Station, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.stationErr[fips]; err != nil {
		return nil, err
	}
	return f.stations[fips], nil
}

func (f *fakeAPI) DailyData(_ context.Context, stationID string, start, end time.Time, _ []string) ([]domain.DailyRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.dailyCalls++
	if err := f.dailyErr[stationID]; err != nil {
		return nil, err
	}
	var out []domain.DailyRecord
	for _, r := range f.records[stationID] {
		if !r.Date.Before(start) && !r.Date.After(end) {
			out = append(out, r)
		}
	}
	return out, nil
}

func (f *fakeAPI) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.dailyCalls
}

type fatalErr struct{}

func (fatalErr) Error() string { return "invalid token" }
func (fatalErr) Fatal() bool   { return true }

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func testStation(id string) domain.Station {
	return domain.Station{
		ID:           id,
		Name:         "TEST STATION",
		MinDate:      day(2023, 1, 1),
		MaxDate:      day(2024, 12, 31),
		DataCoverage: 1,
	}
}

func testOptions() Options {
	return Options{
		Variables:         []string{"PRCP", "TMAX"},
		Frequency:         domain.Monthly,
		PreferPriority:    true,
		CoverageTolerance: domain.DefaultCoverageTolerance,
		StartYear:         2023,
		EndYear:           2024,
		Resume:            true,
		SaveRaw:           true,
	}
}

func newTestPipeline(t *testing.T, api *fakeAPI, opts Options) (*Pipeline, *store.Store) {
	t.Helper()
	st, err := store.New(t.TempDir())
	require.NoError(t, err)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return New(api, api, st, opts, logger, observability.NewMetricsForTesting()), st
}

func TestRunState_WritesAllArtifacts(t *testing.T) {
	api := &fakeAPI{
		stations: map[string][]domain.Station{
			"17": {testStation("GHCND:USW00000001")},
		},
		records: map[string][]domain.DailyRecord{
			"GHCND:USW00000001": {
				{StationID: "GHCND:USW00000001", Date: day(2024, 1, 1), Datatype: "PRCP", Value: 0.5},
				{StationID: "GHCND:USW00000001", Date: day(2024, 1, 2), Datatype: "PRCP", Value: 0.25},
				{StationID: "GHCND:USW00000001", Date: day(2024, 1, 1), Datatype: "TMAX", Value: 40},
			},
		},
	}
	p, st := newTestPipeline(t, api, testOptions())

	require.NoError(t, p.RunState(context.Background(), "17"))

	table, err := st.ReadSummary("17")
	require.NoError(t, err)
	require.Len(t, table.Rows, 1)
	assert.Equal(t, day(2024, 1, 1), table.Rows[0].PeriodStart)
	assert.Equal(t, "0.75", table.Rows[0].Cells["PRCP"])
	assert.Equal(t, "40", table.Rows[0].Cells["TMAX"])

	// Raw parts exist for both years in the window.
	assert.True(t, st.HasPart("17", "GHCND:USW00000001", 2023))
	assert.True(t, st.HasPart("17", "GHCND:USW00000001", 2024))
}

func TestRunState_NoStations(t *testing.T) {
	api := &fakeAPI{stations: map[string][]domain.Station{}}
	p, _ := newTestPipeline(t, api, testOptions())

	err := p.RunState(context.Background(), "02")
	require.ErrorIs(t, err, domain.ErrNoStations)
}

func TestRunState_NoDailyData(t *testing.T) {
	api := &fakeAPI{
		stations: map[string][]domain.Station{
			"17": {testStation("GHCND:USW00000001")},
		},
	}
	p, _ := newTestPipeline(t, api, testOptions())

	err := p.RunState(context.Background(), "17")
	require.ErrorIs(t, err, ErrNoDailyData)
}

func TestRunState_ResumeSkipsFetchedYears(t *testing.T) {
	api := &fakeAPI{
		stations: map[string][]domain.Station{
			"17": {testStation("GHCND:USW00000001")},
		},
		records: map[string][]domain.DailyRecord{
			"GHCND:USW00000001": {
				{StationID: "GHCND:USW00000001", Date: day(2024, 3, 5), Datatype: "PRCP", Value: 1},
			},
		},
	}
	p, _ := newTestPipeline(t, api, testOptions())

	require.NoError(t, p.RunState(context.Background(), "17"))
	first := api.calls()
	assert.Equal(t, 2, first, "one fetch per year in the window")

	require.NoError(t, p.RunState(context.Background(), "17"))
	assert.Equal(t, first, api.calls(), "resume reuses every cached part")
}

func TestRunState_UnreadablePartRefetched(t *testing.T) {
	api := &fakeAPI{
		stations: map[string][]domain.Station{
			"17": {testStation("GHCND:USW00000001")},
		},
		records: map[string][]domain.DailyRecord{
			"GHCND:USW00000001": {
				{StationID: "GHCND:USW00000001", Date: day(2024, 3, 5), Datatype: "PRCP", Value: 1},
			},
		},
	}
	p, st := newTestPipeline(t, api, testOptions())
	require.NoError(t, p.RunState(context.Background(), "17"))

	require.NoError(t, os.WriteFile(st.PartPath("17", "GHCND:USW00000001", 2024), []byte("garbage\n"), 0o644))
	before := api.calls()

	require.NoError(t, p.RunState(context.Background(), "17"))
	assert.Equal(t, before+1, api.calls(), "only the corrupted year is refetched")
}

func TestRunState_IdempotentSummary(t *testing.T) {
	api := &fakeAPI{
		stations: map[string][]domain.Station{
			"17": {testStation("GHCND:USW00000001")},
		},
		records: map[string][]domain.DailyRecord{
			"GHCND:USW00000001": {
				{StationID: "GHCND:USW00000001", Date: day(2024, 3, 5), Datatype: "PRCP", Value: 1},
				{StationID: "GHCND:USW00000001", Date: day(2024, 3, 6), Datatype: "TMAX", Value: 50},
			},
		},
	}
	p, st := newTestPipeline(t, api, testOptions())

	require.NoError(t, p.RunState(context.Background(), "17"))
	first, err := os.ReadFile(st.SummaryPath("17", domain.Monthly))
	require.NoError(t, err)

	require.NoError(t, p.RunState(context.Background(), "17"))
	second, err := os.ReadFile(st.SummaryPath("17", domain.Monthly))
	require.NoError(t, err)
	assert.Equal(t, string(first), string(second))
}

func TestRunAll_SkipsAndCompletes(t *testing.T) {
	api := &fakeAPI{
		stations: map[string][]domain.Station{
			"17": {testStation("GHCND:USW00000001")},
			"56": nil, // no stations
		},
		stationErr: map[string]error{
			"02": errors.New("giving up after 3 attempts"),
		},
		records: map[string][]domain.DailyRecord{
			"GHCND:USW00000001": {
				{StationID: "GHCND:USW00000001", Date: day(2024, 3, 5), Datatype: "PRCP", Value: 1},
			},
		},
	}
	p, _ := newTestPipeline(t, api, testOptions())

	report, err := p.RunAll(context.Background(), []string{"17", "56", "02"}, 2)
	require.NoError(t, err)
	assert.Equal(t, []string{"17"}, report.Completed)
	require.Len(t, report.Skipped, 2)
	assert.Equal(t, "02", report.Skipped[0].FIPS)
	assert.Equal(t, "56", report.Skipped[1].FIPS)

	progress := p.Progress()
	assert.Equal(t, 3, progress.Total)
	assert.Equal(t, 1, progress.Completed)
	assert.Equal(t, 2, progress.Skipped)
	assert.False(t, progress.Running)
}

func TestRunAll_FatalErrorStopsRun(t *testing.T) {
	api := &fakeAPI{
		stationErr: map[string]error{
			"17": fmt.Errorf("station catalog: %w", fatalErr{}),
		},
	}
	p, _ := newTestPipeline(t, api, testOptions())

	_, err := p.RunAll(context.Background(), []string{"17"}, 1)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "FIPS:17")
	assert.Contains(t, err.Error(), "invalid token")
}

func TestCheckReadiness(t *testing.T) {
	api := &fakeAPI{
		stations: map[string][]domain.Station{
			"17": {testStation("GHCND:USW00000001")},
		},
		records: map[string][]domain.DailyRecord{
			"GHCND:USW00000001": {
				{StationID: "GHCND:USW00000001", Date: day(2024, 3, 5), Datatype: "PRCP", Value: 1},
			},
		},
	}
	p, _ := newTestPipeline(t, api, testOptions())

	require.Error(t, p.CheckReadiness(context.Background()))

	_, err := p.RunAll(context.Background(), []string{"17"}, 1)
	require.NoError(t, err)
	assert.NoError(t, p.CheckReadiness(context.Background()))
}

func TestYearSlices(t *testing.T) {
	tests := []struct {
		name             string
		minDate, maxDate time.Time
		startYear        int
		endYear          int
		wantYears        []int
		wantFirstStart   time.Time
		wantLastEnd      time.Time
	}{
		{
			name:    "record clipped to window",
			minDate: day(1958, 11, 1), maxDate: day(2025, 6, 30),
			startYear: 2023, endYear: 2024,
			wantYears:      []int{2023, 2024},
			wantFirstStart: day(2023, 1, 1),
			wantLastEnd:    day(2024, 12, 31),
		},
		{
			name:    "window clipped to record",
			minDate: day(2023, 6, 15), maxDate: day(2024, 2, 10),
			startYear: 2002, endYear: 2025,
			wantYears:      []int{2023, 2024},
			wantFirstStart: day(2023, 6, 15),
			wantLastEnd:    day(2024, 2, 10),
		},
		{
			name:    "no overlap",
			minDate: day(1990, 1, 1), maxDate: day(1995, 12, 31),
			startYear: 2002, endYear: 2025,
			wantYears: nil,
		},
		{
			name:      "zero dates",
			startYear: 2002, endYear: 2025,
			wantYears: nil,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := yearSlices(tt.minDate, tt.maxDate, tt.startYear, tt.endYear)
			years := make([]int, 0, len(got))
			for _, yr := range got {
				years = append(years, yr.year)
			}
			if tt.wantYears == nil {
				assert.Empty(t, got)
				return
			}
			assert.Equal(t, tt.wantYears, years)
			assert.Equal(t, tt.wantFirstStart, got[0].start)
			assert.Equal(t, tt.wantLastEnd, got[len(got)-1].end)
		})
	}
}
