// Package ingest reads telemetry samples from InfluxDB or NDJSON
// and prepares them for commit.
package ingest

import (
	"math"
	"slices"
	"time"

	"github.com/capsule/tripoverview/types/sample"
)

// Clean prepares fetched samples for commit:
// samples without latitude or longitude are dropped,
// duplicate timestamps keep their first sample,
// each run of consecutive stationary samples (speed below stationarySpeed)
// collapses to its first sample,
// and only samples within [start, end] are kept.
// A zero start or end leaves that side open.
// The result is ordered by timestamp.
func Clean(samples []sample.Sample, start, end time.Time, stationarySpeed float64) []sample.Sample {
	out := make([]sample.Sample, 0, len(samples))
	for _, s := range samples {
		if s.HasPosition() {
			out = append(out, s)
		}
	}
	slices.SortStableFunc(out, sample.SortKey)
	out = slices.CompactFunc(out, func(a, b sample.Sample) bool {
		return a.Timestamp == b.Timestamp
	})

	stationary := func(s sample.Sample) bool {
		return !math.IsNaN(s.Speed) && s.Speed >= 0 && s.Speed < stationarySpeed
	}
	collapsed := make([]sample.Sample, 0, len(out))
	prevStationary := false
	for _, s := range out {
		st := stationary(s)
		if !(st && prevStationary) {
			collapsed = append(collapsed, s)
		}
		prevStationary = st
	}

	kept := collapsed[:0]
	for _, s := range collapsed {
		if !start.IsZero() && s.Timestamp < start.Unix() {
			continue
		}
		if !end.IsZero() && s.Timestamp > end.Unix() {
			continue
		}
		kept = append(kept, s)
	}
	return kept
}
