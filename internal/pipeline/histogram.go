package pipeline

import (
	"slices"

	"traffic-dashboard/internal/models"
)

// DefaultBins matches the dashboard's distribution charts
const DefaultBins = 30

// Bin counts values in [Lower, Upper); the last bin also includes Upper
type Bin struct {
	Lower float64 `json:"lower"`
	Upper float64 `json:"upper"`
	Count int     `json:"count"`
}

// Histogram splits the value range into equal-width bins.
// A constant series is centred in [v-0.5, v+0.5].
func Histogram(values []float64, bins int) []Bin {
	if len(values) == 0 || bins <= 0 {
		return nil
	}

	lo, hi := slices.Min(values), slices.Max(values)
	if lo == hi {
		lo, hi = lo-0.5, hi+0.5
	}
	width := (hi - lo) / float64(bins)

	out := make([]Bin, bins)
	for i := range out {
		out[i].Lower = lo + float64(i)*width
		out[i].Upper = lo + float64(i+1)*width
	}
	out[bins-1].Upper = hi

	for _, v := range values {
		idx := int((v - lo) / width)
		if idx >= bins {
			idx = bins - 1
		}
		if idx < 0 {
			idx = 0
		}
		out[idx].Count++
	}
	return out
}

// Volumes extracts traffic volumes in input order
func Volumes(observations []models.Observation) []float64 {
	values := make([]float64, len(observations))
	for i, o := range observations {
		values[i] = float64(o.TrafficVolume)
	}
	return values
}

// ScatterPoint pairs volume with temperature for one observation
type ScatterPoint struct {
	TrafficVolume int     `json:"traffic_volume"`
	Temperature   float64 `json:"temperature_kelvin"`
}

// Scatter returns one point per observation in input order
func Scatter(observations []models.Observation) []ScatterPoint {
	points := make([]ScatterPoint, len(observations))
	for i, o := range observations {
		points[i] = ScatterPoint{TrafficVolume: o.TrafficVolume, Temperature: o.Temperature}
	}
	return points
}
