package ingest

import (
	"context"
	"log/slog"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/capsule/tripoverview/common"
	"github.com/capsule/tripoverview/params"
	"github.com/capsule/tripoverview/types/sample"
)

func at(ts int64, lat, lon, speed float64) sample.Sample {
	s := sample.New(ts)
	s.Latitude, s.Longitude, s.Speed = lat, lon, speed
	return s
}

func TestClean(t *testing.T) {
	noLon := at(15, 45, 5, 50)
	noLon.Longitude = math.NaN()
	in := []sample.Sample{
		at(60, 45.6, 5, 50),
		at(10, 45.1, 5, 50),
		noLon,
		at(20, 45.2, 5, 0.05),
		at(30, 45.2, 5, 0),
		at(40, 45.2, 5, 0.09),
		at(50, 45.3, 5, 40),
		at(55, 45.3, 5, 0),
		at(10, 45.9, 5, 50),
		at(5, 45.0, 5, 50),
	}
	got := Clean(in, time.Unix(10, 0), time.Unix(55, 0), 0.1)
	want := []int64{10, 20, 50, 55}
	if len(got) != len(want) {
		t.Fatalf("want %v, got %+v", want, got)
	}
	for i, ts := range want {
		if got[i].Timestamp != ts {
			t.Errorf("%d: want %d, got %d", i, ts, got[i].Timestamp)
		}
	}
	if got[0].Latitude != 45.1 {
		t.Errorf("duplicate timestamp should keep the first sample, got %v", got[0].Latitude)
	}
}

func TestCleanOpenWindow(t *testing.T) {
	in := []sample.Sample{at(1, 1, 1, 10), at(2, 2, 2, 10)}
	if got := Clean(in, time.Time{}, time.Time{}, 0.1); len(got) != 2 {
		t.Errorf("zero window should keep everything, got %d", len(got))
	}
}

func TestParseSample(t *testing.T) {
	s, err := ParseSample([]byte(`{"time":"2023-07-01T10:00:00Z","lat":45.5,"lng":5.5,"elevation":300,"speed":-1,"country":"France","step":2}`))
	if err != nil {
		t.Fatal(err)
	}
	if s.Timestamp != 1688205600 {
		t.Errorf("want 1688205600, got %d", s.Timestamp)
	}
	if s.Latitude != 45.5 || s.Longitude != 5.5 || s.Altitude != 300 || s.Speed != -1 {
		t.Errorf("unexpected values %+v", s)
	}
	if s.Country != "France" || s.Step != 2 {
		t.Errorf("unexpected labels %q %d", s.Country, s.Step)
	}
	if !math.IsNaN(s.Km) {
		t.Errorf("absent km should be missing, got %v", s.Km)
	}

	s, err = ParseSample([]byte(`{"timestamp":1688205600,"latitude":null,"longitude":5}`))
	if err != nil {
		t.Fatal(err)
	}
	if !math.IsNaN(s.Latitude) || s.Step != sample.NoStep {
		t.Errorf("null values should be missing, got %+v", s)
	}

	for _, bad := range []string{`{"lat":1}`, `not json`, `{"time":"yesterday"}`} {
		if _, err := ParseSample([]byte(bad)); err == nil {
			t.Errorf("%s: want error", bad)
		}
	}
}

func TestReadNDJSON(t *testing.T) {
	defer common.SlogResetLevel(slog.Level(slog.LevelWarn + 1))()
	input := strings.Join([]string{
		`{"timestamp":30,"lat":45.3,"lon":5}`,
		`{"timestamp":10,"lat":45.1,"lon":5}`,
		`garbage`,
		`{"timestamp":10,"lat":45.1,"lon":5}`,
		``,
		`{"timestamp":20,"lat":45.2,"lon":5,"km":12}`,
	}, "\n")
	got, err := ReadNDJSON(context.Background(), strings.NewReader(input))
	if err != nil {
		t.Fatal(err)
	}
	want := []int64{10, 20, 30}
	if len(got) != len(want) {
		t.Fatalf("want %v, got %+v", want, got)
	}
	for i, ts := range want {
		if got[i].Timestamp != ts {
			t.Errorf("%d: want %d, got %d", i, ts, got[i].Timestamp)
		}
	}
	if got[1].Km != 12 {
		t.Errorf("want km 12, got %v", got[1].Km)
	}
}

func TestInfluxQuery(t *testing.T) {
	src := NewInfluxSource(params.DefaultInfluxConfig())
	defer src.Close()
	start := time.Date(2023, 7, 1, 0, 0, 0, 0, time.UTC)
	q := src.Query(start, start.Add(12*time.Hour))
	for _, want := range []string{
		`range(start: 2023-06-30T23:59:55Z, stop: 2023-07-01T12:00:05Z)`,
		`r._measurement == "mqtt_consumer"`,
		`r.topic == "gps_measure/latitude"`,
		`r.topic == "gps_measure/speed"`,
		`aggregateWindow(every: 5s, fn: mean`,
		`fill(usePrevious: true)`,
	} {
		if !strings.Contains(q, want) {
			t.Errorf("query missing %q:\n%s", want, q)
		}
	}
}
