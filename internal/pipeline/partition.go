package pipeline

import (
	"slices"

	"traffic-dashboard/internal/models"
)

// Daytime is the half-open hour range [DayStartHour, DayEndHour)
const (
	DayStartHour = 7
	DayEndHour   = 19
)

// Predicate selects observations for a partition
type Predicate func(models.Observation) bool

// PartitionName identifies one of the named subsets
type PartitionName string

const (
	PartitionAll          PartitionName = "all"
	PartitionDay          PartitionName = "day"
	PartitionNight        PartitionName = "night"
	PartitionBusinessDays PartitionName = "business_days"
	PartitionWeekend      PartitionName = "weekend"
)

var partitionPredicates = map[PartitionName]Predicate{
	PartitionAll:          func(models.Observation) bool { return true },
	PartitionDay:          IsDay,
	PartitionNight:        IsNight,
	PartitionBusinessDays: IsBusinessDay,
	PartitionWeekend:      IsWeekend,
}

// IsDay reports an observation in the [DayStartHour, DayEndHour) window
func IsDay(o models.Observation) bool {
	h := o.Timestamp.Hour()
	return h >= DayStartHour && h < DayEndHour
}

// IsNight reports an observation outside the day window
func IsNight(o models.Observation) bool {
	return !IsDay(o)
}

// IsBusinessDay reports a daytime observation falling Monday through Friday
func IsBusinessDay(o models.Observation) bool {
	return IsDay(o) && dayOfWeekOf(o) <= Friday
}

// IsWeekend reports a daytime observation falling on Saturday or Sunday
func IsWeekend(o models.Observation) bool {
	return IsDay(o) && dayOfWeekOf(o) >= Saturday
}

// Filter returns a new slice with the observations matching p, in input order
func Filter(observations []models.Observation, p Predicate) []models.Observation {
	out := make([]models.Observation, 0, len(observations)/2)
	for _, o := range observations {
		if p(o) {
			out = append(out, o)
		}
	}
	return out
}

// Day returns the daytime observations
func Day(observations []models.Observation) []models.Observation {
	return Filter(observations, IsDay)
}

// Night returns the observations outside the day window
func Night(observations []models.Observation) []models.Observation {
	return Filter(observations, IsNight)
}

// BusinessDays returns daytime observations from Monday to Friday
func BusinessDays(observations []models.Observation) []models.Observation {
	return Filter(observations, IsBusinessDay)
}

// Weekend returns daytime observations on Saturday and Sunday
func Weekend(observations []models.Observation) []models.Observation {
	return Filter(observations, IsWeekend)
}

// Partition resolves a named partition against the full observation set
func Partition(observations []models.Observation, name PartitionName) ([]models.Observation, error) {
	if name == "" || name == PartitionAll {
		return slices.Clone(observations), nil
	}
	p, ok := partitionPredicates[name]
	if !ok {
		return nil, &models.UnsupportedViewError{Kind: "partition", Value: string(name)}
	}
	return Filter(observations, p), nil
}

// PartitionNames lists the supported partitions
func PartitionNames() []PartitionName {
	return []PartitionName{
		PartitionAll,
		PartitionDay,
		PartitionNight,
		PartitionBusinessDays,
		PartitionWeekend,
	}
}
