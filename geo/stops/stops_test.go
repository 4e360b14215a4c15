package stops

import (
	"errors"
	"math"
	"testing"

	"github.com/capsule/tripoverview/types/sample"
)

const day = int64(24 * 60 * 60)

// 2023-07-01T00:00:00Z
const midnight = int64(1688169600)

func at(ts int64, lat, lon, speed float64) sample.Sample {
	s := sample.New(ts)
	s.Latitude, s.Longitude = lat, lon
	s.Speed = speed
	return s
}

func TestDetectInvalidParameter(t *testing.T) {
	for _, cfg := range []Config{
		{SpeedThreshold: 0, MinSeparationKm: 10},
		{SpeedThreshold: 1, MinSeparationKm: -1},
		{SpeedThreshold: math.NaN(), MinSeparationKm: 10},
		{SpeedThreshold: 1, MinSeparationKm: math.NaN()},
		{SpeedThreshold: math.Inf(-1), MinSeparationKm: 10},
	} {
		if _, err := Detect(nil, cfg); !errors.Is(err, sample.ErrInvalidParameter) {
			t.Errorf("%+v: want ErrInvalidParameter, got %v", cfg, err)
		}
	}
}

func TestDetectLastStationaryPerDay(t *testing.T) {
	samples := []sample.Sample{
		at(midnight+8*3600, 45.0, 5.0, 0),
		at(midnight+12*3600, 45.5, 5.0, 80),
		at(midnight+22*3600, 46.0, 5.0, 0.5),
		at(midnight+day+22*3600, 47.0, 5.0, 0),
		at(midnight+2*day+21*3600, 48.0, 5.0, 0),
	}
	got, err := Detect(samples, DefaultConfig())
	if err != nil {
		t.Fatal(err)
	}
	wantLat := []float64{46, 47, 48}
	if len(got) != len(wantLat) {
		t.Fatalf("want %d stops, got %+v", len(wantLat), got)
	}
	for i, lat := range wantLat {
		if got[i].Latitude != lat {
			t.Errorf("stop %d: want lat %v, got %v", i, lat, got[i].Latitude)
		}
	}
}

func TestDetectMinSeparation(t *testing.T) {
	// Day 2 is about 5.6 km from day 1, day 3 is about 11 km from day 1.
	samples := []sample.Sample{
		at(midnight+20*3600, 45.00, 5.0, 0),
		at(midnight+day+20*3600, 45.05, 5.0, 0),
		at(midnight+2*day+20*3600, 45.10, 5.0, 0),
	}
	got, err := Detect(samples, DefaultConfig())
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 {
		t.Fatalf("want 2 stops, got %+v", got)
	}
	if got[0].Latitude != 45.00 || got[1].Latitude != 45.10 {
		t.Errorf("separation measured from the previously kept stop, got %+v", got)
	}
}

func TestDetectReturnToEarlierStop(t *testing.T) {
	// A, A again, B about 111 km north, back to A.
	samples := []sample.Sample{
		at(midnight+22*3600, 45, 5, 0),
		at(midnight+day+22*3600, 45, 5, 0),
		at(midnight+2*day+22*3600, 46, 5, 0),
		at(midnight+3*day+22*3600, 45, 5, 0),
	}
	got, err := Detect(samples, DefaultConfig())
	if err != nil {
		t.Fatal(err)
	}
	wantLat := []float64{45, 46, 45}
	if len(got) != len(wantLat) {
		t.Fatalf("want %d stops, got %+v", len(wantLat), got)
	}
	for i, lat := range wantLat {
		if got[i].Latitude != lat {
			t.Errorf("stop %d: want lat %v, got %v", i, lat, got[i].Latitude)
		}
	}
	if got[2].Timestamp != midnight+3*day+22*3600 {
		t.Errorf("return stop should be the day 3 sample, got %v", got[2].Time())
	}
}

func TestDetectMissingValues(t *testing.T) {
	noSpeed := at(midnight+20*3600, 45, 5, 0)
	noSpeed.Speed = math.NaN()
	noPos := at(midnight+day+20*3600, 46, 5, 0)
	noPos.Latitude = math.NaN()
	sentinel := at(midnight+2*day+20*3600, 47, 5, sample.UnknownSpeed)

	got, err := Detect([]sample.Sample{noSpeed, noPos, sentinel}, DefaultConfig())
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0].Latitude != 47 {
		t.Errorf("only the sentinel speed sample should qualify, got %+v", got)
	}
}

func TestDetectEmpty(t *testing.T) {
	got, err := Detect(nil, DefaultConfig())
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 0 {
		t.Errorf("want no stops, got %v", got)
	}
}
