package api

import (
	"context"
	"math"
	"slices"

	"github.com/capsule/tripoverview/common"
	"github.com/capsule/tripoverview/geo/distance"
	"github.com/capsule/tripoverview/params"
	"github.com/capsule/tripoverview/types/sample"
)

// CommitPosition stores one sample.
// With GPS kilometers, km continues from the latest stored sample.
// A blank country is looked up; a failed lookup leaves it blank.
// A missing step is assigned by the step policy.
func (t *Trip) CommitPosition(ctx context.Context, s sample.Sample) error {
	prev, err := t.previous(ctx)
	if err != nil {
		return err
	}

	if t.config.KilometerSource == params.KilometerSourceGPS {
		acc := newOdometer(prev, t.config.KmPrecision)
		s.Km = acc.next(s)
	}
	if s.Country == "" && s.HasPosition() {
		s.Country = t.lookupCountry(ctx, s)
	}
	s.Step = t.assignStep(prev, s)

	if err := t.store.Append(ctx, s); err != nil {
		return err
	}
	t.logger.Debug("Committed position", "timestamp", s.Timestamp, "km", s.Km, "country", s.Country, "step", s.Step)
	return nil
}

// CommitBatch stores samples in one all-or-nothing batch, ordered by timestamp.
// Countries are looked up once per geocode bucket, then forward-filled
// inside the batch, leading blanks taking the first known country. GPS km and steps continue from the
// latest stored sample. It returns the number of committed samples.
func (t *Trip) CommitBatch(ctx context.Context, samples []sample.Sample) (int, error) {
	if len(samples) == 0 {
		return 0, nil
	}
	batch := slices.Clone(samples)
	slices.SortStableFunc(batch, sample.SortKey)

	prev, err := t.previous(ctx)
	if err != nil {
		return 0, err
	}

	t.fillCountries(ctx, batch)

	if t.config.KilometerSource == params.KilometerSourceGPS {
		acc := newOdometer(prev, t.config.KmPrecision)
		for i := range batch {
			batch[i].Km = acc.next(batch[i])
		}
	}

	for i := range batch {
		batch[i].Step = t.assignStep(prev, batch[i])
		prev = &batch[i]
	}

	n, err := t.store.AppendBatch(ctx, batch)
	if err != nil {
		return n, err
	}
	t.logger.Info("Committed batch", "count", n,
		"first", batch[0].Time(), "last", batch[len(batch)-1].Time())
	return n, nil
}

func (t *Trip) lookupCountry(ctx context.Context, s sample.Sample) string {
	c, err := t.geocoder.Country(ctx, s.Latitude, s.Longitude)
	if err != nil {
		t.logger.Warn("Country lookup failed", "timestamp", s.Timestamp,
			"lat", s.Latitude, "lon", s.Longitude, "error", err)
		return ""
	}
	return c
}

// fillCountries geocodes the first positioned sample with a blank country
// of every bucket, then fills the remaining blanks forward, and the leading
// ones backward.
func (t *Trip) fillCountries(ctx context.Context, batch []sample.Sample) {
	bucket := int64(t.config.GeocodeBucket.Seconds())
	if bucket < 1 {
		bucket = 1
	}
	looked := map[int64]bool{}
	for i := range batch {
		s := &batch[i]
		if s.Country != "" || !s.HasPosition() {
			continue
		}
		b := floorDiv(s.Timestamp, bucket)
		if looked[b] {
			continue
		}
		looked[b] = true
		s.Country = t.lookupCountry(ctx, *s)
	}

	prev := ""
	for i := range batch {
		if batch[i].Country == "" {
			batch[i].Country = prev
		} else {
			prev = batch[i].Country
		}
	}
	next := ""
	for i := len(batch) - 1; i >= 0; i-- {
		if batch[i].Country == "" {
			batch[i].Country = next
		} else {
			next = batch[i].Country
		}
	}
}

// previous returns the latest stored sample, nil when the trip is empty.
// A missing step or km is replaced by the last one stored,
// so new samples continue from the last known values.
func (t *Trip) previous(ctx context.Context) (*sample.Sample, error) {
	last, ok, err := t.store.Last(ctx)
	if err != nil || !ok {
		return nil, err
	}
	if !last.HasStep() {
		if last.Step, err = t.store.LastStep(ctx); err != nil {
			return nil, err
		}
	}
	if math.IsNaN(last.Km) {
		km, found, err := t.store.LastKm(ctx)
		if err != nil {
			return nil, err
		}
		if found {
			last.Km = km
		}
	}
	return &last, nil
}

// assignStep returns the step of s, given the sample committed before it.
func (t *Trip) assignStep(prev *sample.Sample, s sample.Sample) int {
	if s.HasStep() {
		return s.Step
	}
	if prev == nil {
		return 0
	}
	step := prev.Step
	if !prev.HasStep() {
		step = 0
	}
	if t.config.StepPolicy == params.StepPolicyDaily {
		loc := t.config.Location()
		if !s.Date(loc).Equal(prev.Date(loc)) {
			return step + 1
		}
	}
	return step
}

// odometer accumulates great-circle kilometers between known positions.
type odometer struct {
	km        float64
	pos       *sample.Sample
	precision int
}

func newOdometer(prev *sample.Sample, precision int) *odometer {
	o := &odometer{precision: precision}
	if prev == nil {
		return o
	}
	if !math.IsNaN(prev.Km) {
		o.km = prev.Km
	}
	if prev.HasPosition() {
		p := *prev
		o.pos = &p
	}
	return o
}

func (o *odometer) next(s sample.Sample) float64 {
	if !s.HasPosition() {
		return o.km
	}
	if o.pos != nil {
		o.km = common.DecimalToFixed(o.km+distance.Between(o.pos.Point(), s.Point()), o.precision)
	} else if !math.IsNaN(s.Km) {
		o.km = s.Km
	}
	p := s
	o.pos = &p
	return o.km
}

func floorDiv(a, b int64) int64 {
	q := a / b
	if a%b != 0 && (a < 0) != (b < 0) {
		q--
	}
	return q
}
