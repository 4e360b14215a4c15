// Package app runs the trip's periodic work: pulling telemetry into the
// store and rendering the published site.
package app

import (
	"context"
	"time"

	"github.com/capsule/tripoverview/api"
	"github.com/capsule/tripoverview/params"
	"github.com/capsule/tripoverview/site"
)

// BuildView derives everything the site shows from the stored trip.
func BuildView(ctx context.Context, trip *api.Trip) (site.View, error) {
	tr, err := trip.Trace(ctx)
	if err != nil {
		return site.View{}, err
	}
	found, err := trip.Stops(ctx, trip.StopsConfig())
	if err != nil {
		return site.View{}, err
	}
	sum, err := trip.Describe(ctx)
	if err != nil {
		return site.View{}, err
	}
	return site.View{Trace: tr, Stops: found, Summary: sum}, nil
}

// RenderSite builds the view of trip and renders it with cfg.
func RenderSite(ctx context.Context, trip *api.Trip, cfg *params.SiteConfig, now time.Time) (*site.Result, error) {
	view, err := BuildView(ctx, trip)
	if err != nil {
		return nil, err
	}
	return site.Render(ctx, view, cfg, trip.Config().Location(), now)
}
