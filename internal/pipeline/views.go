package pipeline

import (
	"traffic-dashboard/internal/models"
)

// ViewID identifies one of the dashboard views
type ViewID string

const (
	ViewDistribution         ViewID = "traffic-distribution"
	ViewDayNight             ViewID = "day-vs-night"
	ViewMonthly              ViewID = "monthly-average"
	ViewYearly               ViewID = "yearly-average"
	ViewDayOfWeek            ViewID = "day-of-week"
	ViewHourlyWeekdayWeekend ViewID = "hourly-weekday-weekend"
	ViewWeather              ViewID = "weather"
	ViewWeatherDescription   ViewID = "weather-description"
	ViewTemperatureScatter   ViewID = "traffic-vs-temperature"
	ViewDailyTraffic         ViewID = "daily-traffic"
	ViewHourWeekdayHeatmap   ViewID = "hour-weekday-heatmap"
)

// ChartKind tells the renderer how to draw a view
type ChartKind string

const (
	ChartHistogram ChartKind = "histogram"
	ChartLine      ChartKind = "line"
	ChartBar       ChartKind = "barh"
	ChartScatter   ChartKind = "scatter"
	ChartHeatmap   ChartKind = "heatmap"
)

// Series is one plottable data set of a view. Exactly one payload field is set.
type Series struct {
	Name   string         `json:"name"`
	Values []float64      `json:"values,omitempty"`
	Bins   []Bin          `json:"bins,omitempty"`
	Groups []GroupPoint   `json:"groups,omitempty"`
	Daily  []DailyMean    `json:"daily,omitempty"`
	Points []ScatterPoint `json:"points,omitempty"`
	Cells  []HeatmapCell  `json:"cells,omitempty"`
}

// ViewSpec describes a view and how to compute it
type ViewSpec struct {
	ID        ViewID        `json:"id"`
	Title     string        `json:"title"`
	Chart     ChartKind     `json:"chart"`
	Partition PartitionName `json:"partition"`
	Key       Dimension     `json:"key,omitempty"`
	Order     Order         `json:"order,omitempty"`
	build     func(subset []models.Observation, spec ViewSpec) ([]Series, error)
}

// ViewResult is the computed output of one view
type ViewResult struct {
	ID     ViewID    `json:"id"`
	Title  string    `json:"title"`
	Chart  ChartKind `json:"chart"`
	Rows   int       `json:"rows"`
	Series []Series  `json:"series"`
}

var viewCatalog = []ViewSpec{
	{
		ID:        ViewDistribution,
		Title:     "Traffic Volume Distribution",
		Chart:     ChartHistogram,
		Partition: PartitionAll,
		build: func(subset []models.Observation, _ ViewSpec) ([]Series, error) {
			return []Series{distributionSeries("all", subset)}, nil
		},
	},
	{
		ID:        ViewDayNight,
		Title:     "Day vs Night Traffic Volume",
		Chart:     ChartHistogram,
		Partition: PartitionAll,
		build: func(subset []models.Observation, _ ViewSpec) ([]Series, error) {
			return []Series{
				distributionSeries(string(PartitionDay), Day(subset)),
				distributionSeries(string(PartitionNight), Night(subset)),
			}, nil
		},
	},
	{
		ID:        ViewMonthly,
		Title:     "Monthly Average Traffic Volume",
		Chart:     ChartLine,
		Partition: PartitionDay,
		Key:       DimMonth,
		Order:     OrderAscending,
		build:     groupedSeries,
	},
	{
		ID:        ViewYearly,
		Title:     "Yearly Average Traffic Volume",
		Chart:     ChartLine,
		Partition: PartitionDay,
		Key:       DimYear,
		Order:     OrderAscending,
		build:     groupedSeries,
	},
	{
		ID:        ViewDayOfWeek,
		Title:     "Traffic Volume by Day of the Week",
		Chart:     ChartLine,
		Partition: PartitionDay,
		Key:       DimDayOfWeek,
		Order:     OrderAscending,
		build:     groupedSeries,
	},
	{
		ID:        ViewHourlyWeekdayWeekend,
		Title:     "Hourly Traffic Volume: Weekday vs Weekend",
		Chart:     ChartLine,
		Partition: PartitionDay,
		Key:       DimHour,
		Order:     OrderAscending,
		build:     hourlyBySegment,
	},
	{
		ID:        ViewWeather,
		Title:     "Traffic Volume by Weather Condition",
		Chart:     ChartBar,
		Partition: PartitionAll,
		Key:       DimWeatherMain,
		Order:     OrderAscending,
		build:     groupedSeries,
	},
	{
		ID:        ViewWeatherDescription,
		Title:     "Traffic Volume by Detailed Weather Description",
		Chart:     ChartBar,
		Partition: PartitionAll,
		Key:       DimWeatherDescription,
		Order:     OrderByValue,
		build:     groupedSeries,
	},
	{
		ID:        ViewTemperatureScatter,
		Title:     "Traffic Volume vs Temperature",
		Chart:     ChartScatter,
		Partition: PartitionAll,
		build: func(subset []models.Observation, _ ViewSpec) ([]Series, error) {
			return []Series{{Name: "all", Points: Scatter(subset)}}, nil
		},
	},
	{
		ID:        ViewDailyTraffic,
		Title:     "Daily Traffic Volume Over Time",
		Chart:     ChartLine,
		Partition: PartitionAll,
		build: func(subset []models.Observation, _ ViewSpec) ([]Series, error) {
			daily, err := ResampleDaily(subset)
			if err != nil {
				return nil, err
			}
			return []Series{{Name: "daily_mean", Daily: daily}}, nil
		},
	},
	{
		ID:        ViewHourWeekdayHeatmap,
		Title:     "Average Traffic Volume by Hour and Weekday",
		Chart:     ChartHeatmap,
		Partition: PartitionAll,
		build: func(subset []models.Observation, _ ViewSpec) ([]Series, error) {
			cells, err := WeekdayHourHeatmap(subset)
			if err != nil {
				return nil, err
			}
			return []Series{{Name: "weekday_hour", Cells: cells}}, nil
		},
	},
}

// Views returns the view catalog in menu order
func Views() []ViewSpec {
	out := make([]ViewSpec, len(viewCatalog))
	copy(out, viewCatalog)
	return out
}

// LookupView finds a view by id
func LookupView(id ViewID) (ViewSpec, error) {
	for _, v := range viewCatalog {
		if v.ID == id {
			return v, nil
		}
	}
	return ViewSpec{}, &models.UnsupportedViewError{Kind: "view", Value: string(id)}
}

// Render computes a view over the full observation set
func Render(observations []models.Observation, id ViewID) (*ViewResult, error) {
	spec, err := LookupView(id)
	if err != nil {
		return nil, err
	}

	subset, err := Partition(observations, spec.Partition)
	if err != nil {
		return nil, err
	}

	series, err := spec.build(subset, spec)
	if err != nil {
		return nil, err
	}

	return &ViewResult{
		ID:     spec.ID,
		Title:  spec.Title,
		Chart:  spec.Chart,
		Rows:   len(subset),
		Series: series,
	}, nil
}

func distributionSeries(name string, subset []models.Observation) Series {
	values := Volumes(subset)
	return Series{
		Name:   name,
		Values: values,
		Bins:   Histogram(values, DefaultBins),
	}
}

func groupedSeries(subset []models.Observation, spec ViewSpec) ([]Series, error) {
	groups, err := GroupMeanFunc(subset, dimensionExtractors[spec.Key], spec.Order, compareDimValues)
	if err != nil {
		return nil, err
	}
	return []Series{{
		Name:   string(spec.Key),
		Groups: toGroupPoints(groups, func(k DimValue) any { return k }),
	}}, nil
}

// hourlyBySegment groups daytime rows by (segment, hour) and splits the
// result into one series per segment
func hourlyBySegment(subset []models.Observation, _ ViewSpec) ([]Series, error) {
	segmentOf := func(o models.Observation) string {
		if dayOfWeekOf(o) <= Friday {
			return string(PartitionBusinessDays)
		}
		return string(PartitionWeekend)
	}

	grid, err := GroupMean2D(subset, segmentOf, hourOf)
	if err != nil {
		return nil, err
	}

	series := []Series{
		{Name: string(PartitionBusinessDays), Groups: []GroupPoint{}},
		{Name: string(PartitionWeekend), Groups: []GroupPoint{}},
	}
	for _, g := range grid {
		i := 0
		if g.Key.First == string(PartitionWeekend) {
			i = 1
		}
		series[i].Groups = append(series[i].Groups, GroupPoint{
			Key:   g.Key.Second,
			Mean:  g.Mean,
			Count: g.Count,
		})
	}
	return series, nil
}
