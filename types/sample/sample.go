// Package sample defines the telemetry sample shared by the store,
// the trace deriver and the stop detector.
package sample

import (
	"errors"
	"math"
	"time"

	"github.com/paulmach/orb"
)

var (
	ErrEmptyTrace       = errors.New("empty trace")
	ErrInvalidParameter = errors.New("invalid parameter")
)

const (
	// NoStep marks a sample without a step assignment.
	NoStep = -1

	// UnknownSpeed is the sentinel reported by the device when speed is not known.
	// It is a value, not a missing field.
	UnknownSpeed = -1.0

	// UnknownCountry labels leading rows before any country was observed.
	UnknownCountry = "unknown"
)

// Sample is one row of telemetry.
// Numeric fields use NaN for missing values, Country uses "" and Step uses NoStep.
type Sample struct {
	Timestamp int64   `json:"timestamp"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Altitude  float64 `json:"altitude"`
	Speed     float64 `json:"speed"`
	Km        float64 `json:"km"`
	Country   string  `json:"country"`
	Step      int     `json:"step"`
}

// New returns a sample at unix second ts with every value missing.
func New(ts int64) Sample {
	return Sample{
		Timestamp: ts,
		Latitude:  math.NaN(),
		Longitude: math.NaN(),
		Altitude:  math.NaN(),
		Speed:     math.NaN(),
		Km:        math.NaN(),
		Step:      NoStep,
	}
}

// Missing reports whether v represents a missing numeric value.
func Missing(v float64) bool {
	return math.IsNaN(v)
}

func (s Sample) Time() time.Time {
	return time.Unix(s.Timestamp, 0)
}

// Date returns the calendar date of the sample in loc (UTC when nil).
func (s Sample) Date(loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	t := s.Time().In(loc)
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc)
}

// HasPosition reports whether both latitude and longitude are known.
func (s Sample) HasPosition() bool {
	return !Missing(s.Latitude) && !Missing(s.Longitude)
}

func (s Sample) HasStep() bool {
	return s.Step != NoStep
}

// Point returns the sample position as an orb point, [lon, lat].
func (s Sample) Point() orb.Point {
	return orb.Point{s.Longitude, s.Latitude}
}

// SortKey orders samples by timestamp.
func SortKey(a, b Sample) int {
	switch {
	case a.Timestamp < b.Timestamp:
		return -1
	case a.Timestamp > b.Timestamp:
		return 1
	}
	return 0
}
