// Package stops picks the overnight "sleeping" locations of a trip.
package stops

import (
	"fmt"
	"math"
	"slices"
	"time"

	"github.com/capsule/tripoverview/geo/distance"
	"github.com/capsule/tripoverview/types/sample"
	"github.com/go-playground/validator/v10"
	"github.com/paulmach/orb"
)

// Stop is the last stationary sample of a calendar day.
type Stop struct {
	Timestamp int64
	Latitude  float64
	Longitude float64
	Altitude  float64
}

func (s Stop) Time() time.Time {
	return time.Unix(s.Timestamp, 0)
}

func (s Stop) Point() orb.Point {
	return orb.Point{s.Longitude, s.Latitude}
}

type Config struct {
	// SpeedThreshold is the highest speed, in km/h, considered stationary.
	SpeedThreshold float64 `json:"speed_threshold" validate:"gt=0"`
	// MinSeparationKm is the smallest distance between two retained stops.
	MinSeparationKm float64 `json:"min_separation_km" validate:"gt=0"`
	// Location defines calendar days. UTC when nil.
	Location *time.Location `json:"-" validate:"-"`
}

func DefaultConfig() Config {
	return Config{
		SpeedThreshold:  1,
		MinSeparationKm: 10,
	}
}

var validate = validator.New()

// Validate checks the struct tags. NaN fails every gt rule.
func (c Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("%w: %v", sample.ErrInvalidParameter, err)
	}
	return nil
}

// Detect returns the sleeping stops among raw samples, in chronological order.
//
// A sample is stationary when its speed is known, its position is known and
// speed <= SpeedThreshold. The speed sentinel -1 counts as stationary.
// The latest stationary sample of each calendar day is a candidate.
// The first candidate is always kept; later ones are kept only when at least
// MinSeparationKm away from the previously kept stop.
func Detect(samples []sample.Sample, cfg Config) ([]Stop, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	loc := cfg.Location
	if loc == nil {
		loc = time.UTC
	}

	sorted := slices.Clone(samples)
	slices.SortStableFunc(sorted, sample.SortKey)

	var (
		candidates []sample.Sample
		lastDate   time.Time
	)
	for _, s := range sorted {
		if math.IsNaN(s.Speed) || !s.HasPosition() || s.Speed > cfg.SpeedThreshold {
			continue
		}
		date := s.Date(loc)
		if len(candidates) > 0 && date.Equal(lastDate) {
			candidates[len(candidates)-1] = s
			continue
		}
		candidates = append(candidates, s)
		lastDate = date
	}

	out := []Stop{}
	for _, c := range candidates {
		stop := Stop{
			Timestamp: c.Timestamp,
			Latitude:  c.Latitude,
			Longitude: c.Longitude,
			Altitude:  c.Altitude,
		}
		if len(out) > 0 && distance.Between(out[len(out)-1].Point(), stop.Point()) < cfg.MinSeparationKm {
			continue
		}
		out = append(out, stop)
	}
	return out, nil
}
