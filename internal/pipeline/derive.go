// Package pipeline turns a loaded observation set into the dashboard's
// partitions, group means, daily series and heatmaps. Every function takes
// its input explicitly and returns a freshly allocated result; nothing here
// mutates the observations it is given.
package pipeline

import (
	"time"

	"traffic-dashboard/internal/models"
)

// Weekday numbers days Monday=0 through Sunday=6
type Weekday int

const (
	Monday Weekday = iota
	Tuesday
	Wednesday
	Thursday
	Friday
	Saturday
	Sunday
)

var weekdayNames = [...]string{
	"Monday", "Tuesday", "Wednesday", "Thursday", "Friday", "Saturday", "Sunday",
}

// String returns the English day name, independent of locale
func (d Weekday) String() string {
	if d < Monday || d > Sunday {
		return "Unknown"
	}
	return weekdayNames[d]
}

// Derived holds the time-bucket fields of one observation
type Derived struct {
	Hour      int     `json:"hour"`
	Month     int     `json:"month"`
	Year      int     `json:"year"`
	DayOfWeek Weekday `json:"day_of_week"`
}

// Derive projects the timestamp exactly as stored, no zone conversion
func Derive(o models.Observation) Derived {
	ts := o.Timestamp
	return Derived{
		Hour:      ts.Hour(),
		Month:     int(ts.Month()),
		Year:      ts.Year(),
		DayOfWeek: weekdayOf(ts),
	}
}

func weekdayOf(ts time.Time) Weekday {
	// time.Weekday starts the week on Sunday
	return Weekday((int(ts.Weekday()) + 6) % 7)
}

func hourOf(o models.Observation) int { return o.Timestamp.Hour() }

func monthOf(o models.Observation) int { return int(o.Timestamp.Month()) }

func yearOf(o models.Observation) int { return o.Timestamp.Year() }

func dayOfWeekOf(o models.Observation) Weekday { return weekdayOf(o.Timestamp) }
