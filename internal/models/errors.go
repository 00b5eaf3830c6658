package models

import "fmt"

// MalformedRowError is returned when a source row cannot become an Observation.
// Row is the 1-based data row position so callers can decide to skip or abort.
type MalformedRowError struct {
	Row    int
	Column string
	Value  string
	Reason string
}

func (e *MalformedRowError) Error() string {
	return fmt.Sprintf("malformed row %d: column %s %q: %s", e.Row, e.Column, e.Value, e.Reason)
}

// IsTransient returns false, a bad row stays bad
func (e *MalformedRowError) IsTransient() bool {
	return false
}

// EmptyGroupError signals an aggregation over a key with no matching observations.
// It is a programming fault in the caller, not a data quality issue.
type EmptyGroupError struct {
	Key string
}

func (e *EmptyGroupError) Error() string {
	if e.Key == "" {
		return "aggregation requested over an empty key set"
	}
	return fmt.Sprintf("no observations for group key %s", e.Key)
}

func (e *EmptyGroupError) IsTransient() bool {
	return false
}

// UnsupportedViewError rejects a view, partition, dimension or ordering the pipeline does not define
type UnsupportedViewError struct {
	Kind  string
	Value string
}

func (e *UnsupportedViewError) Error() string {
	return fmt.Sprintf("unsupported %s: %q", e.Kind, e.Value)
}

func (e *UnsupportedViewError) IsTransient() bool {
	return false
}
