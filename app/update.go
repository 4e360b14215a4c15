package app

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/capsule/tripoverview/api"
	"github.com/capsule/tripoverview/ingest"
	"github.com/capsule/tripoverview/params"
	"github.com/capsule/tripoverview/site"
	"github.com/capsule/tripoverview/state"
	"github.com/capsule/tripoverview/types/sample"
	"github.com/dustin/go-humanize"
)

// Source provides raw telemetry samples for a time range.
type Source interface {
	Fetch(ctx context.Context, start, end time.Time) ([]sample.Sample, error)
}

// Updater pulls new telemetry into the trip and re-renders the site,
// at most once per UpdateConfig.MinInterval.
type Updater struct {
	Trip   *api.Trip
	State  *state.State
	Source Source

	Config *params.UpdateConfig
	Site   *params.SiteConfig

	// StationarySpeed is passed to ingest.Clean.
	StationarySpeed float64

	// Uploader publishes the rendered site. Nil skips publishing.
	Uploader site.Uploader

	logger *slog.Logger
}

// Report describes one update run.
type Report struct {
	Skipped    bool
	Since      time.Time
	Fetched    int
	Committed  int
	Files      []string
	Uploaded   int
	LastRender time.Time // zero when the site was never rendered
}

func (u *Updater) log() *slog.Logger {
	if u.logger == nil {
		u.logger = slog.With("app", "update")
	}
	return u.logger
}

// LastUpdate returns the recorded last update,
// or now minus FirstLookback when none was recorded.
func (u *Updater) LastUpdate(now time.Time) (time.Time, error) {
	last, ok, err := u.State.LastUpdate()
	if err != nil {
		return time.Time{}, err
	}
	if !ok {
		return now.Add(-u.Config.FirstLookback), nil
	}
	return last, nil
}

// Due reports whether more than MinInterval passed since the last update.
func (u *Updater) Due(now time.Time) (bool, time.Time, error) {
	last, err := u.LastUpdate(now)
	if err != nil {
		return false, last, err
	}
	return now.Sub(last) > u.Config.MinInterval, last, nil
}

// Run performs one update cycle at now: fetch [last update, now], clean,
// commit the samples newer than the stored trip, render and publish the site,
// then record now as the last update.
func (u *Updater) Run(ctx context.Context, now time.Time) (*Report, error) {
	due, last, err := u.Due(now)
	if err != nil {
		return nil, err
	}
	report := &Report{Since: last}
	if !due {
		rendered, _, err := u.State.LastRender()
		if err != nil {
			return nil, err
		}
		u.log().Info("Already updated", "last", last, "ago", humanize.Time(last), "rendered", rendered)
		report.Skipped = true
		report.LastRender = rendered
		return report, nil
	}

	raw, err := u.Source.Fetch(ctx, last, now)
	if err != nil {
		return nil, err
	}
	samples := ingest.Clean(raw, last, now, u.StationarySpeed)
	report.Fetched = len(samples)

	samples, err = u.newerThanStored(ctx, samples)
	if err != nil {
		return nil, err
	}
	report.Committed, err = u.Trip.CommitBatch(ctx, samples)
	if err != nil {
		return nil, err
	}
	u.log().Info("Committed telemetry", "fetched", report.Fetched, "committed", report.Committed, "since", last)

	res, err := RenderSite(ctx, u.Trip, u.Site, now)
	switch {
	case errors.Is(err, sample.ErrEmptyTrace):
		u.log().Warn("Nothing to render, trip is empty")
	case err != nil:
		return nil, err
	default:
		report.Files = res.Files
		if err := u.State.StoreLastRender(now); err != nil {
			return nil, err
		}
		report.LastRender = now
		if u.Uploader != nil {
			report.Uploaded, err = site.Publish(ctx, u.Site.OutputDir, u.Site.S3, u.Uploader)
			if err != nil {
				return nil, err
			}
		}
	}

	if err := u.State.StoreLastUpdate(now); err != nil {
		return nil, err
	}
	return report, nil
}

// newerThanStored drops samples at or before the latest stored timestamp,
// since consecutive update windows share their boundary.
func (u *Updater) newerThanStored(ctx context.Context, samples []sample.Sample) ([]sample.Sample, error) {
	last, ok, err := u.Trip.Last(ctx)
	if err != nil || !ok {
		return samples, err
	}
	out := samples[:0:0]
	for _, s := range samples {
		if s.Timestamp > last.Timestamp {
			out = append(out, s)
		}
	}
	if dropped := len(samples) - len(out); dropped > 0 {
		u.log().Debug("Dropped already stored samples", "count", dropped)
	}
	return out, nil
}
