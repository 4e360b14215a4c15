// Package trace derives a continuous, step-grouped trace from raw samples.
package trace

import (
	"math"
	"slices"
	"sort"
	"time"

	"github.com/capsule/tripoverview/types/sample"
	"github.com/paulmach/orb"
)

// Point is a derived sample with its calendar date attached.
type Point struct {
	sample.Sample
	Date time.Time

	// Interpolated is set when any value of the point was filled in.
	Interpolated bool
}

// Step is a group of consecutive-in-time points sharing a step index.
type Step struct {
	Index  int
	Points []Point
	Stats  StepStats
}

// Trace is the derived, never persisted, view of the trip.
type Trace struct {
	// Points holds every derived point in timestamp order.
	Points []Point
	// Steps groups Points by step index, ascending.
	Steps []Step
	// Bound covers every known position.
	Bound orb.Bound
}

// Derive builds the trace for samples. Dates are computed in loc, or UTC when nil.
// The input slice is not modified.
func Derive(samples []sample.Sample, loc *time.Location) (*Trace, error) {
	if len(samples) == 0 {
		return nil, sample.ErrEmptyTrace
	}
	if loc == nil {
		loc = time.UTC
	}

	sorted := slices.Clone(samples)
	slices.SortStableFunc(sorted, sample.SortKey)

	n := len(sorted)
	ts := make([]int64, n)
	for i, s := range sorted {
		ts[i] = s.Timestamp
	}
	filled := make([]bool, n)

	column := func(get func(s sample.Sample) float64, set func(s *sample.Sample, v float64)) {
		vals := make([]float64, n)
		for i, s := range sorted {
			vals[i] = get(s)
		}
		for i, ok := range interpolate(ts, vals) {
			if ok {
				set(&sorted[i], vals[i])
				filled[i] = true
			}
		}
	}
	column(func(s sample.Sample) float64 { return s.Latitude }, func(s *sample.Sample, v float64) { s.Latitude = v })
	column(func(s sample.Sample) float64 { return s.Longitude }, func(s *sample.Sample, v float64) { s.Longitude = v })
	column(func(s sample.Sample) float64 { return s.Altitude }, func(s *sample.Sample, v float64) { s.Altitude = v })
	column(func(s sample.Sample) float64 { return s.Speed }, func(s *sample.Sample, v float64) { s.Speed = v })
	column(func(s sample.Sample) float64 { return s.Km }, func(s *sample.Sample, v float64) { s.Km = v })

	country := sample.UnknownCountry
	step := 0
	for i := range sorted {
		if sorted[i].Country == "" {
			sorted[i].Country = country
			filled[i] = true
		} else {
			country = sorted[i].Country
		}
		if !sorted[i].HasStep() {
			sorted[i].Step = step
			filled[i] = true
		} else {
			step = sorted[i].Step
		}
	}

	tr := &Trace{Points: make([]Point, n)}
	var positions orb.MultiPoint
	for i, s := range sorted {
		tr.Points[i] = Point{
			Sample:       s,
			Date:         s.Date(loc),
			Interpolated: filled[i],
		}
		if s.HasPosition() {
			positions = append(positions, s.Point())
		}
	}
	if len(positions) > 0 {
		tr.Bound = positions.Bound()
	}
	tr.Steps = groupSteps(tr.Points)
	return tr, nil
}

// interpolate fills NaN entries of vals in place, linearly in time between the
// nearest known neighbours and flat beyond the first and last known values.
// The returned slice marks the filled positions. A column without any known
// value is left untouched.
func interpolate(ts []int64, vals []float64) []bool {
	filled := make([]bool, len(vals))
	known := make([]int, 0, len(vals))
	for i, v := range vals {
		if !math.IsNaN(v) {
			known = append(known, i)
		}
	}
	if len(known) == 0 {
		return filled
	}
	first, last := known[0], known[len(known)-1]
	for i := 0; i < first; i++ {
		vals[i] = vals[first]
		filled[i] = true
	}
	for i := last + 1; i < len(vals); i++ {
		vals[i] = vals[last]
		filled[i] = true
	}
	for k := 1; k < len(known); k++ {
		lo, hi := known[k-1], known[k]
		if hi-lo < 2 {
			continue
		}
		span := float64(ts[hi] - ts[lo])
		for i := lo + 1; i < hi; i++ {
			frac := 0.0
			if span > 0 {
				frac = float64(ts[i]-ts[lo]) / span
			}
			vals[i] = vals[lo] + (vals[hi]-vals[lo])*frac
			filled[i] = true
		}
	}
	return filled
}

func groupSteps(points []Point) []Step {
	byStep := map[int][]Point{}
	for _, p := range points {
		byStep[p.Step] = append(byStep[p.Step], p)
	}
	indexes := make([]int, 0, len(byStep))
	for k := range byStep {
		indexes = append(indexes, k)
	}
	sort.Ints(indexes)

	steps := make([]Step, 0, len(indexes))
	for _, idx := range indexes {
		pts := byStep[idx]
		steps = append(steps, Step{
			Index:  idx,
			Points: pts,
			Stats:  computeStats(pts),
		})
	}
	return steps
}

// LineString returns the known positions of the step in order.
func (s Step) LineString() orb.LineString {
	ls := make(orb.LineString, 0, len(s.Points))
	for _, p := range s.Points {
		if p.HasPosition() {
			ls = append(ls, p.Point())
		}
	}
	return ls
}

// First returns the first point of the step.
func (s Step) First() Point {
	return s.Points[0]
}

// Last returns the last point of the step.
func (s Step) Last() Point {
	return s.Points[len(s.Points)-1]
}

// Last returns the latest point of the trace.
func (t *Trace) Last() Point {
	return t.Points[len(t.Points)-1]
}
