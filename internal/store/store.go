// Package store owns the on-disk artifact layout of the pipeline: one
// directory per state keyed by FIPS code, holding the station catalog, the
// selected station, per-station-year raw parts, and the period summary.
// Parts double as the resume cache across runs.
package store

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/AkkshayaRajesh/ghcnd-pipeline/internal/domain"
)

const (
	stationsFile  = "stations_meta.csv"
	selectedFile  = "selected_station.csv"
	partsDirName  = "parts"
	variablesFile = "variables_selected.json"

	dateLayout = "2006-01-02"
)

var stationHeader = []string{"id", "name", "latitude", "longitude", "elevation", "mindate", "maxdate", "datacoverage"}
var partHeader = []string{"date", "datatype", "station", "value"}

// Store reads and writes pipeline artifacts under one output root.
type Store struct {
	root string
}

// New creates the output root if needed. An unwritable root is a
// configuration error and fails before any network call.
func New(root string) (*Store, error) {
	if root == "" {
		return nil, fmt.Errorf("output directory is required")
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create output directory: %w", err)
	}
	return &Store{root: root}, nil
}

// Root returns the output root path.
func (s *Store) Root() string { return s.root }

// StateDir returns the per-state artifact directory, creating it on demand.
func (s *Store) StateDir(fips string) (string, error) {
	dir := filepath.Join(s.root, "FIPS_"+fips)
	if err := os.MkdirAll(filepath.Join(dir, partsDirName), 0o755); err != nil {
		return "", fmt.Errorf("create state directory: %w", err)
	}
	return dir, nil
}

// WriteVariables records the variable set of the run at the output root.
func (s *Store) WriteVariables(variables []string) error {
	data, err := json.MarshalIndent(map[string][]string{"vars": variables}, "", "  ")
	if err != nil {
		return err
	}
	return writeFileAtomic(filepath.Join(s.root, variablesFile), append(data, '\n'))
}

// WriteStations persists the full station catalog for a state.
func (s *Store) WriteStations(fips string, stations []domain.Station) error {
	dir, err := s.StateDir(fips)
	if err != nil {
		return err
	}
	rows := make([][]string, 0, len(stations))
	for _, st := range stations {
		rows = append(rows, stationRow(st))
	}
	return writeCSV(filepath.Join(dir, stationsFile), stationHeader, rows)
}

// WriteSelected persists the representative station for a state.
func (s *Store) WriteSelected(fips string, st domain.Station) error {
	dir, err := s.StateDir(fips)
	if err != nil {
		return err
	}
	return writeCSV(filepath.Join(dir, selectedFile), stationHeader, [][]string{stationRow(st)})
}

func stationRow(st domain.Station) []string {
	return []string{
		st.ID,
		st.Name,
		formatFloat(st.Latitude),
		formatFloat(st.Longitude),
		formatFloat(st.Elevation),
		st.MinDate.Format(dateLayout),
		st.MaxDate.Format(dateLayout),
		formatFloat(st.DataCoverage),
	}
}

// PartPath returns the raw fetch file for one station-year.
func (s *Store) PartPath(fips, stationID string, year int) string {
	name := fmt.Sprintf("%s_%d.csv", strings.ReplaceAll(stationID, ":", "_"), year)
	return filepath.Join(s.root, "FIPS_"+fips, partsDirName, name)
}

// HasPart reports whether a station-year was already fetched. A header-only
// part records a confirmed-empty year and still counts as done.
func (s *Store) HasPart(fips, stationID string, year int) bool {
	info, err := os.Stat(s.PartPath(fips, stationID, year))
	return err == nil && info.Size() > 0
}

// WritePart persists one station-year of raw daily records. An empty record
// set writes a header-only file so re-runs skip the year.
func (s *Store) WritePart(fips, stationID string, year int, records []domain.DailyRecord) error {
	if _, err := s.StateDir(fips); err != nil {
		return err
	}
	rows := make([][]string, 0, len(records))
	for _, r := range records {
		rows = append(rows, []string{
			r.Date.Format(dateLayout),
			r.Datatype,
			r.StationID,
			formatFloat(r.Value),
		})
	}
	return writeCSV(s.PartPath(fips, stationID, year), partHeader, rows)
}

// ReadPart loads a previously fetched station-year. Any structural or parse
// problem is an error; callers treat an unreadable part as absent and
// refetch it.
func (s *Store) ReadPart(fips, stationID string, year int) ([]domain.DailyRecord, error) {
	path := s.PartPath(fips, stationID, year)
	rows, err := readCSV(path)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 || !equalHeader(rows[0], partHeader) {
		return nil, fmt.Errorf("%s: malformed part header", path)
	}

	records := make([]domain.DailyRecord, 0, len(rows)-1)
	for _, row := range rows[1:] {
		if len(row) != len(partHeader) {
			return nil, fmt.Errorf("%s: malformed part row", path)
		}
		date, err := time.ParseInLocation(dateLayout, row[0], time.UTC)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		value, err := strconv.ParseFloat(row[3], 64)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		records = append(records, domain.DailyRecord{
			Date:      date,
			Datatype:  row[1],
			StationID: row[2],
			Value:     value,
		})
	}
	return records, nil
}

// SummaryPath returns the period-summary file for a state at one frequency.
func (s *Store) SummaryPath(fips string, freq domain.Frequency) string {
	return filepath.Join(s.root, "FIPS_"+fips, string(freq)+"_selected_station.csv")
}

// WriteSummary persists the per-state period summary. The frequency is
// written into every row so consumers never have to infer the granularity
// from column naming.
func (s *Store) WriteSummary(fips string, freq domain.Frequency, variables []string, summaries []domain.PeriodSummary) error {
	if _, err := s.StateDir(fips); err != nil {
		return err
	}

	header := append([]string{freq.LabelColumn(), "frequency"}, variables...)
	rows := make([][]string, 0, len(summaries))
	for _, p := range summaries {
		row := make([]string, 0, len(header))
		row = append(row, p.PeriodStart.Format(dateLayout), string(freq))
		for _, v := range variables {
			if value, ok := p.Value(v); ok {
				row = append(row, formatFloat(value))
			} else {
				row = append(row, "")
			}
		}
		rows = append(rows, row)
	}
	return writeCSV(s.SummaryPath(fips, freq), header, rows)
}

// SummaryTable is a per-state summary as read back for merging. Cell values
// stay as written; missing cells are absent from the map.
type SummaryTable struct {
	FIPS      string
	Frequency domain.Frequency
	Variables []string
	Rows      []SummaryRow
}

// SummaryRow is one period of a SummaryTable.
type SummaryRow struct {
	PeriodStart time.Time
	Cells       map[string]string
}

// ReadSummary loads a state's period summary, preferring monthly when both
// frequencies exist. Returns os.ErrNotExist when the state has no summary.
func (s *Store) ReadSummary(fips string) (*SummaryTable, error) {
	for _, freq := range []domain.Frequency{domain.Monthly, domain.Weekly} {
		path := s.SummaryPath(fips, freq)
		if _, err := os.Stat(path); err != nil {
			continue
		}
		return s.readSummaryFile(fips, freq, path)
	}
	return nil, fmt.Errorf("summary for FIPS:%s: %w", fips, os.ErrNotExist)
}

func (s *Store) readSummaryFile(fips string, freq domain.Frequency, path string) (*SummaryTable, error) {
	rows, err := readCSV(path)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("%s: empty summary", path)
	}

	header := rows[0]
	if len(header) < 2 || header[0] != freq.LabelColumn() || header[1] != "frequency" {
		return nil, fmt.Errorf("%s: malformed summary header", path)
	}
	variables := header[2:]

	table := &SummaryTable{FIPS: fips, Frequency: freq, Variables: variables}
	for _, row := range rows[1:] {
		if len(row) != len(header) {
			return nil, fmt.Errorf("%s: malformed summary row", path)
		}
		if tagged, err := domain.ParseFrequency(row[1]); err != nil || tagged != freq {
			return nil, fmt.Errorf("%s: frequency tag %q does not match file", path, row[1])
		}
		start, err := time.ParseInLocation(dateLayout, row[0], time.UTC)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		cells := make(map[string]string)
		for i, v := range variables {
			if row[2+i] != "" {
				cells[v] = row[2+i]
			}
		}
		table.Rows = append(table.Rows, SummaryRow{PeriodStart: start, Cells: cells})
	}
	return table, nil
}

// --- file helpers ---

// WriteCSV writes one CSV file atomically. Merged national datasets go
// through here too so every artifact shares the same write discipline.
func WriteCSV(path string, header []string, rows [][]string) error {
	return writeCSV(path, header, rows)
}

func writeCSV(path string, header []string, rows [][]string) error {
	var sb strings.Builder
	w := csv.NewWriter(&sb)
	if err := w.Write(header); err != nil {
		return err
	}
	if err := w.WriteAll(rows); err != nil {
		return err
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return err
	}
	return writeFileAtomic(path, []byte(sb.String()))
}

func readCSV(path string) ([][]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	return r.ReadAll()
}

// writeFileAtomic writes via a temp file and rename so an interrupted run
// never leaves a truncated artifact that a resume would trust.
func writeFileAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".tmp-")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), path)
}

func equalHeader(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}
