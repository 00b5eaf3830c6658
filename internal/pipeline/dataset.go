package pipeline

import (
	"slices"
	"time"

	"traffic-dashboard/internal/models"
)

// Dataset is the observation set loaded once per process.
// It is never modified after construction, so it is safe for concurrent use.
type Dataset struct {
	observations []models.Observation
	source       string
	rejected     int
	loadedAt     time.Time
}

// Summary describes a loaded dataset
type Summary struct {
	Source   string     `json:"source"`
	Rows     int        `json:"rows"`
	Rejected int        `json:"rejected_rows"`
	First    *time.Time `json:"first_timestamp,omitempty"`
	Last     *time.Time `json:"last_timestamp,omitempty"`
	LoadedAt time.Time  `json:"loaded_at"`
}

// ObservationView is an observation with its derived fields
type ObservationView struct {
	models.Observation
	Derived Derived `json:"derived"`
}

// NewObservationView attaches the derived fields to o
func NewObservationView(o models.Observation) ObservationView {
	return ObservationView{Observation: o, Derived: Derive(o)}
}

// NewDataset copies observations into a read-only dataset.
// rejected is the number of source rows the loader's caller chose to skip.
func NewDataset(observations []models.Observation, source string, rejected int) *Dataset {
	return &Dataset{
		observations: slices.Clone(observations),
		source:       source,
		rejected:     rejected,
		loadedAt:     time.Now().UTC(),
	}
}

// Len returns the number of loaded observations
func (d *Dataset) Len() int {
	return len(d.observations)
}

// Observations returns a copy of the observations in load order
func (d *Dataset) Observations() []models.Observation {
	return slices.Clone(d.observations)
}

// Render computes one catalog view over the dataset
func (d *Dataset) Render(id ViewID) (*ViewResult, error) {
	return Render(d.observations, id)
}

// Aggregate runs an ad-hoc query over the dataset
func (d *Dataset) Aggregate(q AggregateQuery) ([]GroupPoint, error) {
	return Aggregate(d.observations, q)
}

// Summary describes the dataset
func (d *Dataset) Summary() Summary {
	s := Summary{
		Source:   d.source,
		Rows:     len(d.observations),
		Rejected: d.rejected,
		LoadedAt: d.loadedAt,
	}
	if len(d.observations) == 0 {
		return s
	}

	// rows are in source order, which need not be chronological
	first, last := d.observations[0].Timestamp, d.observations[0].Timestamp
	for _, o := range d.observations[1:] {
		if o.Timestamp.Before(first) {
			first = o.Timestamp
		}
		if o.Timestamp.After(last) {
			last = o.Timestamp
		}
	}
	s.First, s.Last = &first, &last
	return s
}

// Page returns observations whose timestamp falls in [start, end], in load
// order, plus the total number of matches. Nil bounds are open.
func (d *Dataset) Page(start, end *time.Time, offset, limit int) ([]ObservationView, int) {
	match := func(o models.Observation) bool {
		if start != nil && o.Timestamp.Before(*start) {
			return false
		}
		if end != nil && o.Timestamp.After(*end) {
			return false
		}
		return true
	}

	page := make([]ObservationView, 0, limit)
	total := 0
	for _, o := range d.observations {
		if !match(o) {
			continue
		}
		if total >= offset && len(page) < limit {
			page = append(page, NewObservationView(o))
		}
		total++
	}
	return page, total
}
