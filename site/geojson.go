// Package site renders the trip into GeoJSON and standalone HTML maps.
package site

import (
	"math"
	"time"

	"github.com/capsule/tripoverview/common"
	"github.com/capsule/tripoverview/geo/stops"
	"github.com/capsule/tripoverview/summary"
	"github.com/capsule/tripoverview/trace"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

// Feature kinds, stored in the "kind" property.
const (
	KindStep  = "step"
	KindSleep = "sleep"
	KindStop  = "stop"
)

// View is everything the renderer draws.
type View struct {
	Trace   *trace.Trace
	Stops   []stops.Stop
	Summary summary.Summary
}

// num returns nil for a missing value so that it encodes as JSON null.
func num(v float64) any {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return v
}

// FeatureCollection returns one LineString per step with at least two positions,
// one sleep Point at the end of every step, and one Point per detected stop.
func FeatureCollection(view View, loc *time.Location) *geojson.FeatureCollection {
	if loc == nil {
		loc = time.UTC
	}
	fc := geojson.NewFeatureCollection()
	if view.Trace != nil {
		for i, step := range view.Trace.Steps {
			ls := step.LineString()
			if len(ls) > 1 {
				f := geojson.NewFeature(ls)
				f.Properties["kind"] = KindStep
				f.Properties["step"] = step.Index
				f.Properties["date"] = step.First().Date.Format(time.DateOnly)
				f.Properties["start"] = step.Stats.Start.In(loc).Format(time.RFC3339)
				f.Properties["end"] = step.Stats.End.In(loc).Format(time.RFC3339)
				f.Properties["km"] = num(common.DecimalToFixed(step.Stats.KmEnd-step.Stats.KmStart, 1))
				f.Properties["distance_km"] = num(step.Stats.DistanceKm)
				f.Properties["speed_mean"] = num(step.Stats.SpeedMean)
				f.Properties["speed_max"] = num(step.Stats.SpeedMax)
				f.Properties["altitude_min"] = num(step.Stats.AltitudeMin)
				f.Properties["altitude_max"] = num(step.Stats.AltitudeMax)
				f.Properties["color"] = stepColor(i)
				fc.Append(f)
			}
			last := step.Last()
			if !last.HasPosition() {
				continue
			}
			f := geojson.NewFeature(last.Point())
			f.Properties["kind"] = KindSleep
			f.Properties["step"] = step.Index + 1
			f.Properties["date"] = last.Date.Format("02 January 2006")
			f.Properties["km"] = num(common.DecimalToFixed(last.Km, 1))
			f.Properties["latitude"] = last.Latitude
			f.Properties["longitude"] = last.Longitude
			f.Properties["country"] = last.Country
			fc.Append(f)
		}
	}
	for _, s := range view.Stops {
		f := geojson.NewFeature(s.Point())
		f.Properties["kind"] = KindStop
		f.Properties["timestamp"] = s.Timestamp
		f.Properties["time"] = s.Time().In(loc).Format(time.RFC3339)
		f.Properties["altitude"] = num(s.Altitude)
		fc.Append(f)
	}

	sum := view.Summary
	fc.ExtraMembers = geojson.Properties{
		"summary": map[string]any{
			"duration_days": sum.DurationDays,
			"countries":     sum.Countries,
			"total_km":      sum.TotalKm,
			"text":          sum.Text,
		},
	}
	return fc
}

var palette = []string{"#e6194b", "#3cb44b", "#4363d8", "#f58231", "#911eb4", "#42d4f4", "#f032e6", "#9a6324"}

func stepColor(i int) string {
	return palette[i%len(palette)]
}

// center returns the latest known position of the trace.
func center(tr *trace.Trace) (orb.Point, bool) {
	if tr == nil {
		return orb.Point{}, false
	}
	for i := len(tr.Points) - 1; i >= 0; i-- {
		if tr.Points[i].HasPosition() {
			return tr.Points[i].Point(), true
		}
	}
	return orb.Point{}, false
}
