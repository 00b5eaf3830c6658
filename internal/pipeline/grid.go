package pipeline

import (
	"cmp"

	"traffic-dashboard/internal/models"
)

// GroupMean2D averages traffic volume per (row, column) combination.
// Only combinations with observations appear; rows then columns ascend.
func GroupMean2D[R, C cmp.Ordered](
	observations []models.Observation,
	rowKey func(models.Observation) R,
	colKey func(models.Observation) C,
) (AggregateResult[Pair[R, C]], error) {
	key := func(o models.Observation) Pair[R, C] {
		return Pair[R, C]{First: rowKey(o), Second: colKey(o)}
	}
	return GroupMeanFunc(observations, key, OrderAscending, ComparePairs[R, C])
}

// HeatmapCell is one weekday x hour mean
type HeatmapCell struct {
	Weekday string  `json:"weekday"`
	Hour    int     `json:"hour"`
	Mean    float64 `json:"mean"`
	Count   int     `json:"count"`
}

// WeekdayHourHeatmap averages volume per weekday and hour.
// Rows follow Monday..Sunday regardless of locale.
func WeekdayHourHeatmap(observations []models.Observation) ([]HeatmapCell, error) {
	grid, err := GroupMean2D(observations, dayOfWeekOf, hourOf)
	if err != nil {
		return nil, err
	}

	cells := make([]HeatmapCell, len(grid))
	for i, g := range grid {
		cells[i] = HeatmapCell{
			Weekday: g.Key.First.String(),
			Hour:    g.Key.Second,
			Mean:    g.Mean,
			Count:   g.Count,
		}
	}
	return cells, nil
}
