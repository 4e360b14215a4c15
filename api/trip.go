// Package api binds a trace store, a geocoder and the trip configuration
// into the operations the commands and daemons use.
package api

import (
	"context"
	"log/slog"

	"github.com/capsule/tripoverview/geo/stops"
	"github.com/capsule/tripoverview/params"
	"github.com/capsule/tripoverview/rgeo"
	"github.com/capsule/tripoverview/summary"
	"github.com/capsule/tripoverview/trace"
	"github.com/capsule/tripoverview/tripdb"
	"github.com/capsule/tripoverview/types/sample"
)

// Store is the subset of *tripdb.Store the trip operates on.
type Store interface {
	Append(ctx context.Context, s sample.Sample) error
	AppendBatch(ctx context.Context, samples []sample.Sample) (int, error)
	QueryAll(ctx context.Context) ([]sample.Sample, error)
	Last(ctx context.Context) (sample.Sample, bool, error)
	LastStep(ctx context.Context) (int, error)
	LastKm(ctx context.Context) (float64, bool, error)
	CheckConsistency(ctx context.Context) ([]tripdb.TimestampInconsistency, error)
}

// Trip is the single vehicle trip backed by a store.
type Trip struct {
	store    Store
	geocoder rgeo.Geocoder
	config   *params.TripConfig
	logger   *slog.Logger
}

// NewTrip returns a trip. A nil geocoder disables country lookups;
// a nil config uses the defaults.
func NewTrip(store Store, geocoder rgeo.Geocoder, config *params.TripConfig) *Trip {
	if geocoder == nil {
		geocoder = rgeo.Nop{}
	}
	if config == nil {
		config = params.DefaultTripConfig()
	}
	return &Trip{
		store:    store,
		geocoder: geocoder,
		config:   config,
		logger:   slog.With("api", "trip"),
	}
}

func (t *Trip) Config() *params.TripConfig {
	return t.config
}

// Samples returns the raw stored samples in timestamp order.
func (t *Trip) Samples(ctx context.Context) ([]sample.Sample, error) {
	return t.store.QueryAll(ctx)
}

// Trace derives the step-grouped trace of every stored sample.
func (t *Trip) Trace(ctx context.Context) (*trace.Trace, error) {
	samples, err := t.store.QueryAll(ctx)
	if err != nil {
		return nil, err
	}
	return trace.Derive(samples, t.config.Location())
}

// Stops detects the sleeping stops on the raw stored samples.
func (t *Trip) Stops(ctx context.Context, cfg stops.Config) ([]stops.Stop, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	samples, err := t.store.QueryAll(ctx)
	if err != nil {
		return nil, err
	}
	if cfg.Location == nil {
		cfg.Location = t.config.Location()
	}
	return stops.Detect(samples, cfg)
}

// StopsConfig returns the configured stop detection parameters.
func (t *Trip) StopsConfig() stops.Config {
	return stops.Config{
		SpeedThreshold:  t.config.Stops.SpeedThreshold,
		MinSeparationKm: t.config.Stops.MinSeparationKm,
		Location:        t.config.Location(),
	}
}

// Describe summarizes the raw stored samples.
func (t *Trip) Describe(ctx context.Context) (summary.Summary, error) {
	samples, err := t.store.QueryAll(ctx)
	if err != nil {
		return summary.Summary{}, err
	}
	return summary.Describe(samples, t.config.Location())
}

// Last returns the latest stored sample. The boolean is false when the trip is empty.
func (t *Trip) Last(ctx context.Context) (sample.Sample, bool, error) {
	return t.store.Last(ctx)
}

// LastStep returns the step of the latest sample, 0 when empty.
func (t *Trip) LastStep(ctx context.Context) (int, error) {
	return t.store.LastStep(ctx)
}

// NextStep returns the step index following the latest one.
// An empty trip starts at step 0.
func (t *Trip) NextStep(ctx context.Context) (int, error) {
	_, ok, err := t.store.Last(ctx)
	if err != nil || !ok {
		return 0, err
	}
	last, err := t.store.LastStep(ctx)
	if err != nil {
		return 0, err
	}
	return last + 1, nil
}

// CheckConsistency reports out of order timestamps in insertion order.
func (t *Trip) CheckConsistency(ctx context.Context) ([]tripdb.TimestampInconsistency, error) {
	return t.store.CheckConsistency(ctx)
}
