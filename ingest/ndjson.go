package ingest

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"slices"
	"time"

	"github.com/capsule/tripoverview/stream"
	"github.com/capsule/tripoverview/types/sample"
	"github.com/golang/groupcache/lru"
	"github.com/mitchellh/hashstructure/v2"
	"github.com/tidwall/gjson"
)

var ErrNoTimestamp = errors.New("no timestamp")

// Accepted keys, first match wins.
var (
	keysTimestamp = []string{"timestamp", "time", "unix"}
	keysLatitude  = []string{"latitude", "lat"}
	keysLongitude = []string{"longitude", "lon", "lng"}
	keysAltitude  = []string{"altitude", "elevation", "alt"}
	keysSpeed     = []string{"speed"}
	keysKm        = []string{"km", "cumulative_km"}
	keysCountry   = []string{"country", "current_country"}
	keysStep      = []string{"step", "current_step"}
)

// DedupeCacheSize bounds the number of remembered lines.
var DedupeCacheSize = 10_000

// ParseSample decodes one JSON object into a sample.
// The timestamp may be unix seconds or an RFC3339 string.
// Absent and null values are missing.
func ParseSample(line []byte) (sample.Sample, error) {
	if !gjson.ValidBytes(line) {
		return sample.Sample{}, fmt.Errorf("invalid json: %.40q", line)
	}
	doc := gjson.ParseBytes(line)

	tsv := first(doc, keysTimestamp)
	var ts int64
	switch tsv.Type {
	case gjson.Number:
		ts = tsv.Int()
	case gjson.String:
		t, err := time.Parse(time.RFC3339, tsv.Str)
		if err != nil {
			return sample.Sample{}, fmt.Errorf("%w: %v", ErrNoTimestamp, err)
		}
		ts = t.Unix()
	default:
		return sample.Sample{}, ErrNoTimestamp
	}

	s := sample.New(ts)
	s.Latitude = number(doc, keysLatitude)
	s.Longitude = number(doc, keysLongitude)
	s.Altitude = number(doc, keysAltitude)
	s.Speed = number(doc, keysSpeed)
	s.Km = number(doc, keysKm)
	if c := first(doc, keysCountry); c.Type == gjson.String {
		s.Country = c.Str
	}
	if st := first(doc, keysStep); st.Type == gjson.Number {
		s.Step = int(st.Int())
	}
	return s, nil
}

func first(doc gjson.Result, keys []string) gjson.Result {
	for _, k := range keys {
		if v := doc.Get(k); v.Exists() && v.Type != gjson.Null {
			return v
		}
	}
	return gjson.Result{}
}

func number(doc gjson.Result, keys []string) float64 {
	v := first(doc, keys)
	if v.Type != gjson.Number {
		return math.NaN()
	}
	return v.Float()
}

// NewDedupePassLRUFunc returns a predicate that is false for a sample
// identical to one seen among the recently passed ones.
func NewDedupePassLRUFunc() func(sample.Sample) bool {
	var dedupeCache = lru.New(DedupeCacheSize)
	return func(s sample.Sample) bool {
		hash, err := hashstructure.Hash(s, hashstructure.FormatV2, nil)
		if err != nil {
			return false
		}
		key := fmt.Sprintf("%d", hash)
		if _, ok := dedupeCache.Get(key); ok {
			return false
		}
		dedupeCache.Add(key, true)
		return true
	}
}

type parsed struct {
	sample sample.Sample
	err    error
}

// ReadNDJSON reads one sample per line, in timestamp order.
// Lines that do not decode are skipped and logged; exact duplicates are dropped.
func ReadNDJSON(ctx context.Context, r io.Reader) ([]sample.Sample, error) {
	logger := slog.With("source", "ndjson")
	lines, errs := stream.Lines(ctx, r)

	skipped := 0
	decoded := stream.Transform(ctx, func(line []byte) parsed {
		s, err := ParseSample(line)
		return parsed{s, err}
	}, lines)
	valid := stream.Filter(ctx, func(p parsed) bool {
		if p.err != nil {
			skipped++
			logger.Warn("Skipping line", "error", p.err)
			return false
		}
		return true
	}, decoded)
	dedupe := NewDedupePassLRUFunc()
	unique := stream.Filter(ctx, func(p parsed) bool {
		return dedupe(p.sample)
	}, valid)

	collected, err := stream.Collect(ctx, unique)
	if err != nil {
		return nil, err
	}
	if err := <-errs; err != nil {
		return nil, err
	}
	out := make([]sample.Sample, 0, len(collected))
	for _, p := range collected {
		out = append(out, p.sample)
	}
	slices.SortStableFunc(out, sample.SortKey)
	logger.Debug("Read samples", "count", len(out), "skipped", skipped)
	return out, nil
}
