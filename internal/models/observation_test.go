package models

import (
	"errors"
	"testing"
	"time"
)

// TestRawTrafficRecord_ToObservation tests row validation and conversion
func TestRawTrafficRecord_ToObservation(t *testing.T) {
	tests := []struct {
		name        string
		record      RawTrafficRecord
		wantErr     bool
		wantColumn  string
		checkValues func(*testing.T, *Observation)
	}{
		{
			name: "valid record",
			record: RawTrafficRecord{
				Row:                1,
				DateTime:           "2012-10-02 09:00:00",
				TrafficVolume:      "5545",
				Temperature:        "288.28",
				WeatherMain:        "Clouds",
				WeatherDescription: "scattered clouds",
				Holiday:            "None",
			},
			checkValues: func(t *testing.T, obs *Observation) {
				want := time.Date(2012, 10, 2, 9, 0, 0, 0, time.UTC)
				if !obs.Timestamp.Equal(want) {
					t.Errorf("Timestamp = %v, want %v", obs.Timestamp, want)
				}
				if obs.TrafficVolume != 5545 {
					t.Errorf("TrafficVolume = %v, want %v", obs.TrafficVolume, 5545)
				}
				if obs.Temperature != 288.28 {
					t.Errorf("Temperature = %v, want %v", obs.Temperature, 288.28)
				}
				if obs.WeatherMain != "Clouds" {
					t.Errorf("WeatherMain = %v, want %v", obs.WeatherMain, "Clouds")
				}
				if obs.WeatherDescription != "scattered clouds" {
					t.Errorf("WeatherDescription = %v, want %v", obs.WeatherDescription, "scattered clouds")
				}
				if obs.Holiday != nil {
					t.Errorf("Holiday = %v, want nil", *obs.Holiday)
				}
			},
		},
		{
			name: "holiday is kept",
			record: RawTrafficRecord{
				Row:           2,
				DateTime:      "2012-12-25 00:00:00",
				TrafficVolume: "803",
				Temperature:   "264.4",
				Holiday:       "Christmas Day",
			},
			checkValues: func(t *testing.T, obs *Observation) {
				if obs.Holiday == nil {
					t.Fatal("Holiday should not be nil")
				}
				if *obs.Holiday != "Christmas Day" {
					t.Errorf("Holiday = %v, want %v", *obs.Holiday, "Christmas Day")
				}
			},
		},
		{
			name: "zero volume is valid",
			record: RawTrafficRecord{
				Row:           3,
				DateTime:      "2016-07-23T03:00:00",
				TrafficVolume: "0",
				Temperature:   "290",
			},
			checkValues: func(t *testing.T, obs *Observation) {
				if obs.TrafficVolume != 0 {
					t.Errorf("TrafficVolume = %v, want 0", obs.TrafficVolume)
				}
				if obs.Timestamp.Hour() != 3 {
					t.Errorf("Hour = %v, want 3", obs.Timestamp.Hour())
				}
			},
		},
		{
			name: "non-numeric volume",
			record: RawTrafficRecord{
				Row:           4,
				DateTime:      "2012-10-02 09:00:00",
				TrafficVolume: "lots",
				Temperature:   "288.28",
			},
			wantErr:    true,
			wantColumn: "traffic_volume",
		},
		{
			name: "negative volume",
			record: RawTrafficRecord{
				Row:           5,
				DateTime:      "2012-10-02 09:00:00",
				TrafficVolume: "-1",
				Temperature:   "288.28",
			},
			wantErr:    true,
			wantColumn: "traffic_volume",
		},
		{
			name: "fractional volume",
			record: RawTrafficRecord{
				Row:           6,
				DateTime:      "2012-10-02 09:00:00",
				TrafficVolume: "12.5",
				Temperature:   "288.28",
			},
			wantErr:    true,
			wantColumn: "traffic_volume",
		},
		{
			name: "invalid timestamp",
			record: RawTrafficRecord{
				Row:           7,
				DateTime:      "02/10/2012 9am",
				TrafficVolume: "100",
				Temperature:   "288.28",
			},
			wantErr:    true,
			wantColumn: "date_time",
		},
		{
			name: "invalid temperature",
			record: RawTrafficRecord{
				Row:           8,
				DateTime:      "2012-10-02 09:00:00",
				TrafficVolume: "100",
				Temperature:   "warm",
			},
			wantErr:    true,
			wantColumn: "temp",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			obs, err := tt.record.ToObservation()

			if (err != nil) != tt.wantErr {
				t.Errorf("ToObservation() error = %v, wantErr %v", err, tt.wantErr)
				return
			}

			if tt.wantErr {
				if obs != nil {
					t.Error("ToObservation() should not return a partial observation")
				}
				var rowErr *MalformedRowError
				if !errors.As(err, &rowErr) {
					t.Fatalf("error %T is not a *MalformedRowError", err)
				}
				if rowErr.Row != tt.record.Row {
					t.Errorf("Row = %v, want %v", rowErr.Row, tt.record.Row)
				}
				if rowErr.Column != tt.wantColumn {
					t.Errorf("Column = %v, want %v", rowErr.Column, tt.wantColumn)
				}
				return
			}

			if tt.checkValues != nil {
				tt.checkValues(t, obs)
			}
		})
	}
}

// TestErrors tests error messages and classification
func TestErrors(t *testing.T) {
	tests := []struct {
		name string
		err  interface {
			error
			IsTransient() bool
		}
		want string
	}{
		{
			name: "malformed row",
			err:  &MalformedRowError{Row: 12, Column: "traffic_volume", Value: "abc", Reason: "not an integer"},
			want: `malformed row 12: column traffic_volume "abc": not an integer`,
		},
		{
			name: "empty group",
			err:  &EmptyGroupError{Key: "hour=3"},
			want: "no observations for group key hour=3",
		},
		{
			name: "empty key set",
			err:  &EmptyGroupError{},
			want: "aggregation requested over an empty key set",
		},
		{
			name: "unsupported view",
			err:  &UnsupportedViewError{Kind: "view", Value: "pie"},
			want: `unsupported view: "pie"`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.err.Error() != tt.want {
				t.Errorf("Error() = %v, want %v", tt.err.Error(), tt.want)
			}
			if tt.err.IsTransient() {
				t.Error("error should not be transient")
			}
		})
	}
}
