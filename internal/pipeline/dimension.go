package pipeline

import (
	"cmp"
	"encoding/json"

	"traffic-dashboard/internal/models"
)

// Dimension names a field observations can be grouped by
type Dimension string

const (
	DimHour               Dimension = "hour"
	DimMonth              Dimension = "month"
	DimYear               Dimension = "year"
	DimDayOfWeek          Dimension = "day_of_week"
	DimWeekday            Dimension = "weekday"
	DimDate               Dimension = "date"
	DimWeatherMain        Dimension = "weather_main"
	DimWeatherDescription Dimension = "weather_description"
)

// DimValue is a grouping value. Num carries the ordinal of time fields,
// Text the label of categorical ones; weekday and date set both so they
// sort chronologically but render as names. Labeled marks values that
// render as Text, including an empty category.
type DimValue struct {
	Num     int
	Text    string
	Labeled bool
}

// Value returns the JSON-facing form of v
func (v DimValue) Value() any {
	if v.Labeled {
		return v.Text
	}
	return v.Num
}

func (v DimValue) MarshalJSON() ([]byte, error) {
	return json.Marshal(v.Value())
}

func compareDimValues(a, b DimValue) int {
	if c := cmp.Compare(a.Num, b.Num); c != 0 {
		return c
	}
	return cmp.Compare(a.Text, b.Text)
}

var dimensionExtractors = map[Dimension]func(models.Observation) DimValue{
	DimHour:      func(o models.Observation) DimValue { return DimValue{Num: hourOf(o)} },
	DimMonth:     func(o models.Observation) DimValue { return DimValue{Num: monthOf(o)} },
	DimYear:      func(o models.Observation) DimValue { return DimValue{Num: yearOf(o)} },
	DimDayOfWeek: func(o models.Observation) DimValue { return DimValue{Num: int(dayOfWeekOf(o))} },
	DimWeekday: func(o models.Observation) DimValue {
		d := dayOfWeekOf(o)
		return DimValue{Num: int(d), Text: d.String(), Labeled: true}
	},
	DimDate: func(o models.Observation) DimValue {
		d := dateOf(o)
		return DimValue{Num: d.year*10000 + int(d.month)*100 + d.day, Text: d.String(), Labeled: true}
	},
	DimWeatherMain: func(o models.Observation) DimValue {
		return DimValue{Text: o.WeatherMain, Labeled: true}
	},
	DimWeatherDescription: func(o models.Observation) DimValue {
		return DimValue{Text: o.WeatherDescription, Labeled: true}
	},
}

// ParseDimension validates a dimension name
func ParseDimension(s string) (Dimension, error) {
	d := Dimension(s)
	if _, ok := dimensionExtractors[d]; !ok {
		return "", &models.UnsupportedViewError{Kind: "dimension", Value: s}
	}
	return d, nil
}

// Dimensions lists the supported grouping dimensions
func Dimensions() []Dimension {
	return []Dimension{
		DimHour, DimMonth, DimYear, DimDayOfWeek, DimWeekday, DimDate,
		DimWeatherMain, DimWeatherDescription,
	}
}

// AggregateQuery is an ad-hoc (partition, key, order) request.
// SecondKey is optional and turns the result two-dimensional.
type AggregateQuery struct {
	Partition PartitionName `json:"partition"`
	Key       Dimension     `json:"key"`
	SecondKey Dimension     `json:"key2,omitempty"`
	Order     Order         `json:"order"`
}

// GroupPoint is a JSON-ready group. Key is a scalar, or a two-element
// array for two-dimensional queries.
type GroupPoint struct {
	Key   any     `json:"key"`
	Mean  float64 `json:"mean"`
	Count int     `json:"count"`
}

// Aggregate runs an ad-hoc query against the full observation set
func Aggregate(observations []models.Observation, q AggregateQuery) ([]GroupPoint, error) {
	order, err := ParseOrder(string(q.Order))
	if err != nil {
		return nil, err
	}
	first, err := ParseDimension(string(q.Key))
	if err != nil {
		return nil, err
	}
	subset, err := Partition(observations, q.Partition)
	if err != nil {
		return nil, err
	}

	if q.SecondKey == "" {
		groups, err := GroupMeanFunc(subset, dimensionExtractors[first], order, compareDimValues)
		if err != nil {
			return nil, err
		}
		return toGroupPoints(groups, func(k DimValue) any { return k }), nil
	}

	second, err := ParseDimension(string(q.SecondKey))
	if err != nil {
		return nil, err
	}
	rowKey, colKey := dimensionExtractors[first], dimensionExtractors[second]
	key := func(o models.Observation) [2]DimValue {
		return [2]DimValue{rowKey(o), colKey(o)}
	}
	compare := func(a, b [2]DimValue) int {
		if c := compareDimValues(a[0], b[0]); c != 0 {
			return c
		}
		return compareDimValues(a[1], b[1])
	}

	groups, err := GroupMeanFunc(subset, key, order, compare)
	if err != nil {
		return nil, err
	}
	return toGroupPoints(groups, func(k [2]DimValue) any { return []DimValue{k[0], k[1]} }), nil
}

func toGroupPoints[K comparable](groups AggregateResult[K], key func(K) any) []GroupPoint {
	points := make([]GroupPoint, len(groups))
	for i, g := range groups {
		points[i] = GroupPoint{Key: key(g.Key), Mean: g.Mean, Count: g.Count}
	}
	return points
}
