// Package merge combines per-state period summaries into one nationwide
// dataset, in wide (one row per state and period) and long (one row per
// state, period, and variable) layouts.
package merge

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/AkkshayaRajesh/ghcnd-pipeline/internal/domain"
	"github.com/AkkshayaRajesh/ghcnd-pipeline/internal/store"
)

// DefaultOutFile is specialized to GHCND_US_<frequency>_summary.csv when the
// inputs share one frequency, which they must.
const DefaultOutFile = "GHCND_US_period_summary.csv"

var (
	// ErrMixedFrequency means the inputs disagree on granularity. Weekly and
	// monthly rows never mix silently in one output.
	ErrMixedFrequency = errors.New("inputs mix weekly and monthly summaries")

	// ErrNoInputs means no requested state had a readable summary.
	ErrNoInputs = errors.New("no state summaries found")
)

// Options tunes a merge run.
type Options struct {
	States     []string
	OutFile    string // relative paths resolve under the input root
	Long       bool   // also write the long/tidy layout
	RequireAll bool   // promote a missing state to an error
	Sort       bool   // order rows by period then state
}

// Merger reads every state's summary artifact and concatenates them.
type Merger struct {
	store  *store.Store
	opts   Options
	logger *slog.Logger
}

// New creates a Merger over an existing output root.
func New(st *store.Store, opts Options, logger *slog.Logger) *Merger {
	if len(opts.States) == 0 {
		opts.States = domain.AllStateFIPS
	}
	if opts.OutFile == "" {
		opts.OutFile = DefaultOutFile
	}
	return &Merger{store: st, opts: opts, logger: logger}
}

// Result reports what a merge produced.
type Result struct {
	WidePath  string
	LongPath  string // empty unless Options.Long
	Frequency domain.Frequency
	Merged    []string // FIPS codes present in the output
	Skipped   []string // FIPS codes with no readable summary
	WideRows  int
	LongRows  int
}

// Run merges all readable state summaries. Missing states are skipped with
// a warning (or rejected under RequireAll); mixed frequencies are always
// rejected.
func (m *Merger) Run() (*Result, error) {
	tables, skipped, err := m.load()
	if err != nil {
		return nil, err
	}
	if len(tables) == 0 {
		return nil, ErrNoInputs
	}

	freq := tables[0].Frequency
	for _, t := range tables[1:] {
		if t.Frequency != freq {
			return nil, fmt.Errorf("%w: FIPS:%s is %s, FIPS:%s is %s",
				ErrMixedFrequency, tables[0].FIPS, freq, t.FIPS, t.Frequency)
		}
	}

	variables := unionVariables(tables)
	widePath := m.outPath(freq)

	wideRows := m.wideRows(tables, variables)
	if m.opts.Sort {
		sortRows(wideRows, false)
	}
	if err := store.WriteCSV(widePath, wideHeader(variables), wideRows); err != nil {
		return nil, fmt.Errorf("write wide dataset: %w", err)
	}

	result := &Result{
		WidePath:  widePath,
		Frequency: freq,
		Skipped:   skipped,
		WideRows:  len(wideRows),
	}
	for _, t := range tables {
		result.Merged = append(result.Merged, t.FIPS)
	}

	m.logger.Info("wide dataset written", "path", widePath, "rows", len(wideRows), "states", len(tables))

	if m.opts.Long {
		longRows := m.longRows(tables, variables)
		if m.opts.Sort {
			sortRows(longRows, true)
		}
		longPath := strings.TrimSuffix(widePath, ".csv") + "_long.csv"
		if err := store.WriteCSV(longPath, longHeader(), longRows); err != nil {
			return nil, fmt.Errorf("write long dataset: %w", err)
		}
		result.LongPath = longPath
		result.LongRows = len(longRows)
		m.logger.Info("long dataset written", "path", longPath, "rows", len(longRows))
	}

	return result, nil
}

func (m *Merger) load() ([]*store.SummaryTable, []string, error) {
	var tables []*store.SummaryTable
	var skipped []string
	for _, fips := range m.opts.States {
		table, err := m.store.ReadSummary(fips)
		if err != nil {
			if m.opts.RequireAll {
				return nil, nil, fmt.Errorf("FIPS:%s: %w", fips, err)
			}
			if errors.Is(err, os.ErrNotExist) {
				m.logger.Warn("state summary missing, skipping", "fips", fips)
			} else {
				m.logger.Warn("state summary unreadable, skipping", "fips", fips, "error", err)
			}
			skipped = append(skipped, fips)
			continue
		}
		tables = append(tables, table)
	}
	return tables, skipped, nil
}

// unionVariables collects every variable column seen across the inputs,
// sorted so states with differing variable sets still align.
func unionVariables(tables []*store.SummaryTable) []string {
	seen := make(map[string]bool)
	var out []string
	for _, t := range tables {
		for _, v := range t.Variables {
			if !seen[v] {
				seen[v] = true
				out = append(out, v)
			}
		}
	}
	sort.Strings(out)
	return out
}

func wideHeader(variables []string) []string {
	return append([]string{"period_start", "frequency", "fips", "state"}, variables...)
}

func longHeader() []string {
	return []string{"period_start", "frequency", "fips", "state", "variable", "value"}
}

func (m *Merger) wideRows(tables []*store.SummaryTable, variables []string) [][]string {
	var rows [][]string
	for _, t := range tables {
		for _, r := range t.Rows {
			row := []string{
				r.PeriodStart.Format("2006-01-02"),
				string(t.Frequency),
				t.FIPS,
				domain.StateName(t.FIPS),
			}
			for _, v := range variables {
				row = append(row, r.Cells[v])
			}
			rows = append(rows, row)
		}
	}
	return rows
}

// longRows melts the wide layout: one row per present (state, period,
// variable) cell. Missing cells produce no row.
func (m *Merger) longRows(tables []*store.SummaryTable, variables []string) [][]string {
	var rows [][]string
	for _, t := range tables {
		for _, r := range t.Rows {
			for _, v := range variables {
				value, ok := r.Cells[v]
				if !ok {
					continue
				}
				rows = append(rows, []string{
					r.PeriodStart.Format("2006-01-02"),
					string(t.Frequency),
					t.FIPS,
					domain.StateName(t.FIPS),
					v,
					value,
				})
			}
		}
	}
	return rows
}

// sortRows orders wide rows by (period_start, fips) and long rows by
// (period_start, variable, fips). Column 0 is the date and column 2 the
// fips in both layouts; column 4 of a long row is the variable name.
func sortRows(rows [][]string, long bool) {
	sort.SliceStable(rows, func(i, j int) bool {
		if rows[i][0] != rows[j][0] {
			return rows[i][0] < rows[j][0]
		}
		if long && rows[i][4] != rows[j][4] {
			return rows[i][4] < rows[j][4]
		}
		return rows[i][2] < rows[j][2]
	})
}

func (m *Merger) outPath(freq domain.Frequency) string {
	out := m.opts.OutFile
	if out == DefaultOutFile {
		out = fmt.Sprintf("GHCND_US_%s_summary.csv", freq)
	}
	if filepath.IsAbs(out) {
		return out
	}
	return filepath.Join(m.store.Root(), out)
}
