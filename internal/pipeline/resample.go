package pipeline

import (
	"cmp"
	"time"

	"traffic-dashboard/internal/models"
)

const dateLayout = "2006-01-02"

// DailyMean is the mean volume of one calendar date
type DailyMean struct {
	Date  string  `json:"date"`
	Mean  float64 `json:"mean"`
	Count int     `json:"count"`
}

type calendarDate struct {
	year  int
	month time.Month
	day   int
}

func dateOf(o models.Observation) calendarDate {
	y, m, d := o.Timestamp.Date()
	return calendarDate{year: y, month: m, day: d}
}

func compareDates(a, b calendarDate) int {
	if c := cmp.Compare(a.year, b.year); c != 0 {
		return c
	}
	if c := cmp.Compare(a.month, b.month); c != 0 {
		return c
	}
	return cmp.Compare(a.day, b.day)
}

func (d calendarDate) String() string {
	return time.Date(d.year, d.month, d.day, 0, 0, 0, 0, time.UTC).Format(dateLayout)
}

// ResampleDaily buckets observations by calendar date in ascending order.
// Dates without observations are omitted, never zero-filled.
func ResampleDaily(observations []models.Observation) ([]DailyMean, error) {
	groups, err := GroupMeanFunc(observations, dateOf, OrderAscending, compareDates)
	if err != nil {
		return nil, err
	}

	daily := make([]DailyMean, len(groups))
	for i, g := range groups {
		daily[i] = DailyMean{
			Date:  g.Key.String(),
			Mean:  g.Mean,
			Count: g.Count,
		}
	}
	return daily, nil
}
