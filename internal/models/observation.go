package models

import (
	"strconv"
	"strings"
	"time"
)

// TimestampLayouts are the accepted date_time formats, tried in order.
// Timestamps are parsed as wall-clock values without any zone conversion.
var TimestampLayouts = []string{
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04",
}

// Observation is one hourly traffic/weather record
type Observation struct {
	ID                 int64     `json:"id,omitempty" db:"id"`
	Timestamp          time.Time `json:"timestamp" db:"observed_at"`
	TrafficVolume      int       `json:"traffic_volume" db:"traffic_volume"`
	Temperature        float64   `json:"temperature_kelvin" db:"temperature_kelvin"`
	WeatherMain        string    `json:"weather_main" db:"weather_main"`
	WeatherDescription string    `json:"weather_description" db:"weather_description"`
	Holiday            *string   `json:"holiday,omitempty" db:"holiday"`
	CreatedAt          time.Time `json:"-" db:"created_at"`
}

// RawTrafficRecord is a single row of the source CSV before validation.
// Row is the 1-based data row position (header excluded).
type RawTrafficRecord struct {
	Row                int
	DateTime           string
	TrafficVolume      string
	Temperature        string
	WeatherMain        string
	WeatherDescription string
	Holiday            string
}

// ToObservation validates the raw fields and converts them.
// No partial observation is returned on failure.
func (r *RawTrafficRecord) ToObservation() (*Observation, error) {
	ts, err := ParseTimestamp(r.DateTime)
	if err != nil {
		return nil, &MalformedRowError{
			Row:    r.Row,
			Column: "date_time",
			Value:  r.DateTime,
			Reason: "unparseable timestamp",
		}
	}

	volume, err := strconv.Atoi(strings.TrimSpace(r.TrafficVolume))
	if err != nil {
		return nil, &MalformedRowError{
			Row:    r.Row,
			Column: "traffic_volume",
			Value:  r.TrafficVolume,
			Reason: "not an integer",
		}
	}
	if volume < 0 {
		return nil, &MalformedRowError{
			Row:    r.Row,
			Column: "traffic_volume",
			Value:  r.TrafficVolume,
			Reason: "negative volume",
		}
	}

	temp, err := strconv.ParseFloat(strings.TrimSpace(r.Temperature), 64)
	if err != nil {
		return nil, &MalformedRowError{
			Row:    r.Row,
			Column: "temp",
			Value:  r.Temperature,
			Reason: "not a number",
		}
	}

	obs := &Observation{
		Timestamp:          ts,
		TrafficVolume:      volume,
		Temperature:        temp,
		WeatherMain:        strings.TrimSpace(r.WeatherMain),
		WeatherDescription: strings.TrimSpace(r.WeatherDescription),
	}

	// "None" marks a regular day in the source data
	if h := strings.TrimSpace(r.Holiday); h != "" && h != "None" {
		obs.Holiday = &h
	}

	return obs, nil
}

// ParseTimestamp parses a date_time value using TimestampLayouts
func ParseTimestamp(value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	var lastErr error
	for _, layout := range TimestampLayouts {
		ts, err := time.Parse(layout, value)
		if err == nil {
			return ts, nil
		}
		lastErr = err
	}
	return time.Time{}, lastErr
}
