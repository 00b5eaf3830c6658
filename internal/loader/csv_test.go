package loader

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"traffic-dashboard/internal/models"
)

const header = "holiday,temp,rain_1h,snow_1h,clouds_all,weather_main,weather_description,date_time,traffic_volume\n"

const sample = header +
	"None,288.28,0.0,0.0,40,Clouds,scattered clouds,2012-10-02 09:00:00,5545\n" +
	"None,289.36,0.0,0.0,75,Clouds,broken clouds,2012-10-02 10:00:00,4516\n" +
	"Columbus Day,273.08,0.0,0.0,20,Clear,sky is clear,2012-10-08 00:00:00,455\n"

func TestLoad(t *testing.T) {
	result, err := Load(strings.NewReader(sample), Options{})
	require.NoError(t, err)

	assert.Equal(t, 3, result.Rows)
	assert.Equal(t, 3, result.Accepted)
	assert.Empty(t, result.Rejected)
	require.Len(t, result.Observations, 3)

	first := result.Observations[0]
	assert.Equal(t, 5545, first.TrafficVolume)
	assert.Equal(t, 288.28, first.Temperature)
	assert.Equal(t, "Clouds", first.WeatherMain)
	assert.Equal(t, "scattered clouds", first.WeatherDescription)
	assert.Nil(t, first.Holiday)
	assert.Equal(t, 9, first.Timestamp.Hour())

	holiday := result.Observations[2]
	require.NotNil(t, holiday.Holiday)
	assert.Equal(t, "Columbus Day", *holiday.Holiday)
}

func TestLoadMalformedRows(t *testing.T) {
	input := header +
		"None,288.28,0,0,40,Clouds,scattered clouds,2012-10-02 09:00:00,5545\n" +
		"None,289.36,0,0,75,Clouds,broken clouds,2012-10-02 10:00:00,lots\n" +
		"None,289.58,0,0,90,Clouds,overcast clouds,not-a-date,4767\n" +
		"None,290.13,0,0,90,Clouds,overcast clouds,2012-10-02 12:00:00,5026\n"

	t.Run("abort by default", func(t *testing.T) {
		_, err := Load(strings.NewReader(input), Options{})

		var malformed *models.MalformedRowError
		require.True(t, errors.As(err, &malformed))
		assert.Equal(t, 2, malformed.Row)
		assert.Equal(t, ColumnTrafficVolume, malformed.Column)
		assert.Equal(t, "lots", malformed.Value)
	})

	t.Run("skip keeps going", func(t *testing.T) {
		result, err := Load(strings.NewReader(input), Options{OnMalformed: Skip})
		require.NoError(t, err)

		assert.Equal(t, 4, result.Rows)
		assert.Equal(t, 2, result.Accepted)
		require.Len(t, result.Rejected, 2)
		assert.Equal(t, 2, result.Rejected[0].Row)
		assert.Equal(t, 3, result.Rejected[1].Row)
		assert.Equal(t, ColumnDateTime, result.Rejected[1].Column)

		require.Len(t, result.Observations, 2)
		assert.Equal(t, 5545, result.Observations[0].TrafficVolume)
		assert.Equal(t, 5026, result.Observations[1].TrafficVolume)
	})

	t.Run("custom policy sees every rejection", func(t *testing.T) {
		var seen []int
		policy := func(err *models.MalformedRowError) error {
			seen = append(seen, err.Row)
			return nil
		}
		_, err := Load(strings.NewReader(input), Options{OnMalformed: policy})
		require.NoError(t, err)
		assert.Equal(t, []int{2, 3}, seen)
	})
}

func TestLoadShortRow(t *testing.T) {
	input := "date_time,traffic_volume,temp,weather_main,weather_description\n" +
		"2012-10-02 09:00:00,5545\n"

	_, err := Load(strings.NewReader(input), Options{})

	var malformed *models.MalformedRowError
	require.ErrorAs(t, err, &malformed)
	assert.Equal(t, 1, malformed.Row)
	assert.Equal(t, ColumnTemperature, malformed.Column)
}

func TestLoadHeaderErrors(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"empty", ""},
		{"missing traffic_volume", "date_time,temp,weather_main,weather_description\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(strings.NewReader(tt.input), Options{OnMalformed: Skip})
			assert.Error(t, err)
		})
	}
}

func TestLoadHeaderWithBOM(t *testing.T) {
	input := "\ufeffdate_time,traffic_volume,temp,weather_main,weather_description\n" +
		"2012-10-02 09:00:00,5545,288.28,Clouds,scattered clouds\n"

	result, err := Load(strings.NewReader(input), Options{})
	require.NoError(t, err)
	assert.Len(t, result.Observations, 1)
}

func TestStreamStopsOnCallbackError(t *testing.T) {
	stop := errors.New("stop")
	calls := 0

	stats, err := Stream(strings.NewReader(sample), Options{}, func(models.Observation) error {
		calls++
		return stop
	})

	assert.ErrorIs(t, err, stop)
	assert.Equal(t, 1, calls)
	assert.Equal(t, 1, stats.Accepted)
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "traffic.csv")
	require.NoError(t, os.WriteFile(path, []byte(sample), 0o644))

	result, err := LoadFile(path, Options{})
	require.NoError(t, err)
	assert.Len(t, result.Observations, 3)

	_, err = LoadFile(filepath.Join(t.TempDir(), "missing.csv"), Options{})
	assert.Error(t, err)
}
