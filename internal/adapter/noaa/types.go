package noaa

import (
	"fmt"
	"time"

	"github.com/AkkshayaRajesh/ghcnd-pipeline/internal/domain"
)

// CDO API response types.

type stationsResponse struct {
	Results []stationResult `json:"results"`
}

type stationResult struct {
	ID           string  `json:"id"`
	Name         string  `json:"name"`
	Latitude     float64 `json:"latitude"`
	Longitude    float64 `json:"longitude"`
	Elevation    float64 `json:"elevation"`
	MinDate      string  `json:"mindate"`
	MaxDate      string  `json:"maxdate"`
	DataCoverage float64 `json:"datacoverage"`
}

func (r stationResult) toStation() (domain.Station, error) {
	minDate, err := parseCDODate(r.MinDate)
	if err != nil {
		return domain.Station{}, fmt.Errorf("station %s mindate: %w", r.ID, err)
	}
	maxDate, err := parseCDODate(r.MaxDate)
	if err != nil {
		return domain.Station{}, fmt.Errorf("station %s maxdate: %w", r.ID, err)
	}
	return domain.Station{
		ID:           r.ID,
		Name:         r.Name,
		Latitude:     r.Latitude,
		Longitude:    r.Longitude,
		Elevation:    r.Elevation,
		MinDate:      minDate,
		MaxDate:      maxDate,
		DataCoverage: r.DataCoverage,
	}, nil
}

type dataResponse struct {
	Results []dataResult `json:"results"`
}

type dataResult struct {
	Date     string  `json:"date"`
	Datatype string  `json:"datatype"`
	Station  string  `json:"station"`
	Value    float64 `json:"value"`
}

func (r dataResult) toRecord() (domain.DailyRecord, error) {
	date, err := parseCDODate(r.Date)
	if err != nil {
		return domain.DailyRecord{}, fmt.Errorf("record %s/%s: %w", r.Station, r.Datatype, err)
	}
	return domain.DailyRecord{
		StationID: r.Station,
		Date:      date,
		Datatype:  r.Datatype,
		Value:     r.Value,
	}, nil
}

// parseCDODate accepts both date formats the API emits: plain dates on the
// stations endpoint, date-times on the data endpoint.
func parseCDODate(s string) (time.Time, error) {
	if t, err := time.Parse("2006-01-02T15:04:05", s); err == nil {
		return t.UTC(), nil
	}
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse date %q: %w", s, err)
	}
	return t.UTC(), nil
}
