package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"slices"
	"strings"
	"time"

	"github.com/capsule/tripoverview/params"
	"github.com/capsule/tripoverview/types/sample"
	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// Telemetry topic suffixes, joined with the configured prefix.
const (
	TopicLatitude  = "latitude"
	TopicLongitude = "longitude"
	TopicAltitude  = "altitude"
	TopicSpeed     = "speed"
)

var topics = []string{TopicLatitude, TopicLongitude, TopicAltitude, TopicSpeed}

// InfluxSource reads resampled GPS telemetry from InfluxDB.
// Each measurement point holds one value tagged with its topic.
type InfluxSource struct {
	config *params.InfluxConfig
	client influxdb2.Client
	logger *slog.Logger
}

func NewInfluxSource(config *params.InfluxConfig) *InfluxSource {
	if config == nil {
		config = params.DefaultInfluxConfig()
	}
	opts := influxdb2.DefaultOptions()
	opts.SetPrecision(time.Second)
	return &InfluxSource{
		config: config,
		client: influxdb2.NewClientWithOptions(config.URL, config.Token, opts),
		logger: slog.With("source", "influxdb"),
	}
}

func (s *InfluxSource) Close() {
	s.client.Close()
}

// Query returns the Flux query for the [start, end] window widened by the margin.
func (s *InfluxSource) Query(start, end time.Time) string {
	c := s.config
	filters := make([]string, 0, len(topics))
	for _, t := range topics {
		filters = append(filters, fmt.Sprintf(`r.topic == %q`, c.TopicPrefix+t))
	}
	return fmt.Sprintf(`from(bucket: %q)
  |> range(start: %s, stop: %s)
  |> filter(fn: (r) => r._measurement == %q and r._field == "value")
  |> filter(fn: (r) => %s)
  |> aggregateWindow(every: %s, fn: mean, timeSrc: "_start", createEmpty: true)
  |> fill(usePrevious: true)
  |> keep(columns: ["_time", "_value", "topic"])`,
		c.Bucket,
		start.Add(-c.Margin).UTC().Format(time.RFC3339),
		end.Add(c.Margin).UTC().Format(time.RFC3339),
		c.Measurement,
		strings.Join(filters, " or "),
		c.Resample.String(),
	)
}

// Fetch returns the samples between start and end, one per resample window,
// in timestamp order. Values missing from a window stay missing.
func (s *InfluxSource) Fetch(ctx context.Context, start, end time.Time) ([]sample.Sample, error) {
	query := s.Query(start, end)
	s.logger.Debug("Querying telemetry", "start", start, "end", end)
	result, err := s.client.QueryAPI(s.config.Org).Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("influx query: %w", err)
	}
	defer result.Close()

	byTime := map[int64]*sample.Sample{}
	for result.Next() {
		rec := result.Record()
		v, ok := toFloat(rec.Value())
		if !ok {
			continue
		}
		topic, _ := rec.ValueByKey("topic").(string)
		ts := rec.Time().Unix()
		smp, ok := byTime[ts]
		if !ok {
			n := sample.New(ts)
			smp = &n
			byTime[ts] = smp
		}
		switch strings.TrimPrefix(topic, s.config.TopicPrefix) {
		case TopicLatitude:
			smp.Latitude = v
		case TopicLongitude:
			smp.Longitude = v
		case TopicAltitude:
			smp.Altitude = v
		case TopicSpeed:
			smp.Speed = v
		}
	}
	if err := result.Err(); err != nil {
		return nil, fmt.Errorf("influx result: %w", err)
	}

	out := make([]sample.Sample, 0, len(byTime))
	for _, smp := range byTime {
		out = append(out, *smp)
	}
	slices.SortFunc(out, sample.SortKey)
	s.logger.Info("Fetched telemetry", "windows", len(out), "start", start, "end", end)
	return out, nil
}

// Write posts samples in the layout Fetch reads, one point per known value.
func (s *InfluxSource) Write(ctx context.Context, samples []sample.Sample) error {
	points := make([]*write.Point, 0, len(samples)*len(topics))
	for _, smp := range samples {
		for topic, v := range map[string]float64{
			TopicLatitude:  smp.Latitude,
			TopicLongitude: smp.Longitude,
			TopicAltitude:  smp.Altitude,
			TopicSpeed:     smp.Speed,
		} {
			if math.IsNaN(v) {
				continue
			}
			p := influxdb2.NewPointWithMeasurement(s.config.Measurement).
				SetTime(smp.Time()).
				AddTag("topic", s.config.TopicPrefix+topic).
				AddField("value", v)
			points = append(points, p)
		}
	}
	writeAPI := s.client.WriteAPIBlocking(s.config.Org, s.config.Bucket)
	if err := writeAPI.WritePoint(ctx, points...); err != nil {
		return fmt.Errorf("influx write: %w", err)
	}
	s.logger.Info("Wrote telemetry", "samples", len(samples), "points", len(points))
	return nil
}

func toFloat(v any) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return x, true
	case int64:
		return float64(x), true
	case uint64:
		return float64(x), true
	}
	return 0, false
}
