package store

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AkkshayaRajesh/ghcnd-pipeline/internal/domain"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(t.TempDir())
	require.NoError(t, err)
	return s
}

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestNew_EmptyRoot(t *testing.T) {
	_, err := New("")
	require.Error(t, err)
}

func TestStateDir_Layout(t *testing.T) {
	s := newTestStore(t)
	dir, err := s.StateDir("17")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(s.Root(), "FIPS_17"), dir)

	info, err := os.Stat(filepath.Join(dir, "parts"))
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}

func TestWriteVariables(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.WriteVariables([]string{"PRCP", "TMAX"}))

	data, err := os.ReadFile(filepath.Join(s.Root(), "variables_selected.json"))
	require.NoError(t, err)
	assert.JSONEq(t, `{"vars":["PRCP","TMAX"]}`, string(data))
}

func TestPartRoundTrip(t *testing.T) {
	s := newTestStore(t)
	records := []domain.DailyRecord{
		{StationID: "GHCND:USW00000001", Date: day(2024, 1, 1), Datatype: "PRCP", Value: 0.25},
		{StationID: "GHCND:USW00000001", Date: day(2024, 1, 2), Datatype: "TMAX", Value: 41},
	}

	require.NoError(t, s.WritePart("17", "GHCND:USW00000001", 2024, records))
	assert.True(t, s.HasPart("17", "GHCND:USW00000001", 2024))

	got, err := s.ReadPart("17", "GHCND:USW00000001", 2024)
	require.NoError(t, err)
	assert.Equal(t, records, got)
}

func TestPartPath_ColonReplaced(t *testing.T) {
	s := newTestStore(t)
	path := s.PartPath("17", "GHCND:USW00000001", 2024)
	assert.Equal(t, filepath.Join(s.Root(), "FIPS_17", "parts", "GHCND_USW00000001_2024.csv"), path)
}

func TestWritePart_EmptyYearStillCountsAsFetched(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.WritePart("17", "GHCND:USW00000001", 2003, nil))

	assert.True(t, s.HasPart("17", "GHCND:USW00000001", 2003))
	got, err := s.ReadPart("17", "GHCND:USW00000001", 2003)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestHasPart_Missing(t *testing.T) {
	s := newTestStore(t)
	assert.False(t, s.HasPart("17", "GHCND:USW00000001", 2024))
}

func TestReadPart_Corrupt(t *testing.T) {
	s := newTestStore(t)
	_, err := s.StateDir("17")
	require.NoError(t, err)

	path := s.PartPath("17", "GHCND:USW00000001", 2024)

	tests := []struct {
		name    string
		content string
	}{
		{"wrong header", "when,what,who,how\n"},
		{"short row", "date,datatype,station,value\n2024-01-01,PRCP\n"},
		{"bad date", "date,datatype,station,value\nJan 1,PRCP,GHCND:USW00000001,1\n"},
		{"bad value", "date,datatype,station,value\n2024-01-01,PRCP,GHCND:USW00000001,lots\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.NoError(t, os.WriteFile(path, []byte(tt.content), 0o644))
			_, err := s.ReadPart("17", "GHCND:USW00000001", 2024)
			require.Error(t, err)
		})
	}
}

func TestWriteStationsAndSelected(t *testing.T) {
	s := newTestStore(t)
	st := domain.Station{
		ID:           "GHCND:USW00000001",
		Name:         "CHICAGO OHARE INTERNATIONAL AIRPORT, IL US",
		Latitude:     41.96017,
		Longitude:    -87.93164,
		Elevation:    201.8,
		MinDate:      day(1958, 11, 1),
		MaxDate:      day(2025, 6, 30),
		DataCoverage: 1,
	}

	require.NoError(t, s.WriteStations("17", []domain.Station{st}))
	require.NoError(t, s.WriteSelected("17", st))

	data, err := os.ReadFile(filepath.Join(s.Root(), "FIPS_17", "selected_station.csv"))
	require.NoError(t, err)
	assert.Contains(t, string(data), "id,name,latitude,longitude,elevation,mindate,maxdate,datacoverage")
	assert.Contains(t, string(data), "GHCND:USW00000001")
	assert.Contains(t, string(data), "1958-11-01")
}

func TestSummaryRoundTrip(t *testing.T) {
	s := newTestStore(t)
	summaries := []domain.PeriodSummary{
		{PeriodStart: day(2024, 1, 1), Values: map[string]float64{"PRCP": 1.75, "TMAX": 41}},
		{PeriodStart: day(2024, 2, 1), Values: map[string]float64{"TMAX": 48}},
	}

	require.NoError(t, s.WriteSummary("17", domain.Monthly, []string{"PRCP", "TMAX"}, summaries))

	table, err := s.ReadSummary("17")
	require.NoError(t, err)
	assert.Equal(t, "17", table.FIPS)
	assert.Equal(t, domain.Monthly, table.Frequency)
	assert.Equal(t, []string{"PRCP", "TMAX"}, table.Variables)
	require.Len(t, table.Rows, 2)

	assert.Equal(t, day(2024, 1, 1), table.Rows[0].PeriodStart)
	assert.Equal(t, "1.75", table.Rows[0].Cells["PRCP"])

	_, ok := table.Rows[1].Cells["PRCP"]
	assert.False(t, ok, "a missing cell reads back as absent, not empty")
}

func TestWriteSummary_FrequencyColumn(t *testing.T) {
	s := newTestStore(t)
	summaries := []domain.PeriodSummary{
		{PeriodStart: day(2024, 4, 22), Values: map[string]float64{"PRCP": 0.5}},
	}
	require.NoError(t, s.WriteSummary("17", domain.Weekly, []string{"PRCP"}, summaries))

	data, err := os.ReadFile(s.SummaryPath("17", domain.Weekly))
	require.NoError(t, err)
	assert.Contains(t, string(data), "week_start,frequency,PRCP")
	assert.Contains(t, string(data), "2024-04-22,weekly,0.5")
}

func TestReadSummary_PrefersMonthly(t *testing.T) {
	s := newTestStore(t)
	weekly := []domain.PeriodSummary{{PeriodStart: day(2024, 4, 22), Values: map[string]float64{"PRCP": 1}}}
	monthly := []domain.PeriodSummary{{PeriodStart: day(2024, 4, 1), Values: map[string]float64{"PRCP": 2}}}

	require.NoError(t, s.WriteSummary("17", domain.Weekly, []string{"PRCP"}, weekly))
	require.NoError(t, s.WriteSummary("17", domain.Monthly, []string{"PRCP"}, monthly))

	table, err := s.ReadSummary("17")
	require.NoError(t, err)
	assert.Equal(t, domain.Monthly, table.Frequency)
}

func TestReadSummary_Missing(t *testing.T) {
	s := newTestStore(t)
	_, err := s.ReadSummary("56")
	require.ErrorIs(t, err, os.ErrNotExist)
}

func TestReadSummary_MismatchedFrequencyTag(t *testing.T) {
	s := newTestStore(t)
	_, err := s.StateDir("17")
	require.NoError(t, err)

	path := s.SummaryPath("17", domain.Monthly)
	content := "month_start,frequency,PRCP\n2024-04-01,weekly,1\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	_, err = s.ReadSummary("17")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "frequency tag")
}

func TestWriteCSV_Atomic(t *testing.T) {
	s := newTestStore(t)
	path := filepath.Join(s.Root(), "out.csv")
	require.NoError(t, WriteCSV(path, []string{"a", "b"}, [][]string{{"1", "2"}}))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "a,b\n1,2\n", string(data))

	entries, err := os.ReadDir(s.Root())
	require.NoError(t, err)
	for _, e := range entries {
		assert.False(t, strings.HasPrefix(e.Name(), "."), "no temp files left behind: %s", e.Name())
	}
}
