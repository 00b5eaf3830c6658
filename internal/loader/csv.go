// Package loader reads the traffic volume CSV into validated observations.
package loader

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"traffic-dashboard/internal/models"
)

// Column names of the source file. Extra columns are ignored.
const (
	ColumnDateTime           = "date_time"
	ColumnTrafficVolume      = "traffic_volume"
	ColumnTemperature        = "temp"
	ColumnWeatherMain        = "weather_main"
	ColumnWeatherDescription = "weather_description"
	ColumnHoliday            = "holiday"
)

var requiredColumns = []string{
	ColumnDateTime,
	ColumnTrafficVolume,
	ColumnTemperature,
	ColumnWeatherMain,
	ColumnWeatherDescription,
}

// MalformedRowPolicy decides what happens to a row that fails validation.
// Returning nil skips the row; returning an error aborts the load with it.
type MalformedRowPolicy func(*models.MalformedRowError) error

// Abort stops at the first malformed row
func Abort(err *models.MalformedRowError) error { return err }

// Skip drops malformed rows and keeps going
func Skip(*models.MalformedRowError) error { return nil }

// Options configures a load. A nil OnMalformed means Abort.
type Options struct {
	OnMalformed MalformedRowPolicy
}

func (o Options) policy() MalformedRowPolicy {
	if o.OnMalformed == nil {
		return Abort
	}
	return o.OnMalformed
}

// Stats summarizes a streamed load
type Stats struct {
	Rows     int
	Accepted int
	Rejected []*models.MalformedRowError
}

// Result is a fully materialized load
type Result struct {
	Stats
	Observations []models.Observation
}

// Reader yields raw records from a CSV source with a header row
type Reader struct {
	csv     *csv.Reader
	columns map[string]int
	row     int
}

// NewReader reads and validates the header
func NewReader(r io.Reader) (*Reader, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.ReuseRecord = true

	header, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("empty input: missing header row")
		}
		return nil, fmt.Errorf("failed to read header: %w", err)
	}

	columns := make(map[string]int, len(header))
	for i, name := range header {
		name = strings.TrimSpace(strings.TrimPrefix(name, "\ufeff"))
		columns[name] = i
	}
	for _, name := range requiredColumns {
		if _, ok := columns[name]; !ok {
			return nil, fmt.Errorf("missing required column %q", name)
		}
	}

	return &Reader{csv: cr, columns: columns}, nil
}

// Next returns the next raw record, or io.EOF after the last row.
// A row missing a required field yields a MalformedRowError.
func (r *Reader) Next() (*models.RawTrafficRecord, error) {
	fields, err := r.csv.Read()
	if err != nil {
		var parseErr *csv.ParseError
		if errors.As(err, &parseErr) {
			r.row++
			return nil, &models.MalformedRowError{
				Row:    r.row,
				Column: "record",
				Reason: parseErr.Err.Error(),
			}
		}
		return nil, err
	}
	r.row++

	record := &models.RawTrafficRecord{Row: r.row}
	targets := []struct {
		column string
		dst    *string
	}{
		{ColumnDateTime, &record.DateTime},
		{ColumnTrafficVolume, &record.TrafficVolume},
		{ColumnTemperature, &record.Temperature},
		{ColumnWeatherMain, &record.WeatherMain},
		{ColumnWeatherDescription, &record.WeatherDescription},
		{ColumnHoliday, &record.Holiday},
	}
	for _, t := range targets {
		idx, ok := r.columns[t.column]
		if !ok {
			continue
		}
		if idx >= len(fields) {
			return nil, &models.MalformedRowError{
				Row:    r.row,
				Column: t.column,
				Reason: "missing field",
			}
		}
		*t.dst = fields[idx]
	}
	return record, nil
}

// Stream validates every row and hands accepted observations to fn in file
// order. Malformed rows go through the policy in opts.
func Stream(r io.Reader, opts Options, fn func(models.Observation) error) (*Stats, error) {
	reader, err := NewReader(r)
	if err != nil {
		return nil, err
	}
	policy := opts.policy()
	stats := &Stats{}

	for {
		record, err := reader.Next()
		if errors.Is(err, io.EOF) {
			return stats, nil
		}

		var obs *models.Observation
		if err == nil {
			obs, err = record.ToObservation()
		}
		if err != nil {
			var malformed *models.MalformedRowError
			if !errors.As(err, &malformed) {
				return stats, fmt.Errorf("failed to read row %d: %w", reader.row+1, err)
			}
			stats.Rows++
			stats.Rejected = append(stats.Rejected, malformed)
			if err := policy(malformed); err != nil {
				return stats, err
			}
			continue
		}

		stats.Rows++
		stats.Accepted++
		if err := fn(*obs); err != nil {
			return stats, err
		}
	}
}

// Load reads the whole source into memory
func Load(r io.Reader, opts Options) (*Result, error) {
	result := &Result{}
	stats, err := Stream(r, opts, func(o models.Observation) error {
		result.Observations = append(result.Observations, o)
		return nil
	})
	if err != nil {
		return nil, err
	}
	result.Stats = *stats
	return result, nil
}

// LoadFile opens path and loads it
func LoadFile(path string, opts Options) (*Result, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open dataset: %w", err)
	}
	defer file.Close()

	result, err := Load(file, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to load %s: %w", path, err)
	}
	return result, nil
}
