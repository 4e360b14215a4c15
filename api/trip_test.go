package api

import (
	"context"
	"errors"
	"log/slog"
	"math"
	"path/filepath"
	"testing"

	"github.com/capsule/tripoverview/common"
	"github.com/capsule/tripoverview/geo/distance"
	"github.com/capsule/tripoverview/geo/stops"
	"github.com/capsule/tripoverview/params"
	"github.com/capsule/tripoverview/rgeo"
	"github.com/capsule/tripoverview/tripdb"
	"github.com/capsule/tripoverview/types/sample"
)

const hour = int64(60 * 60)

// 2023-07-01T00:00:00Z
const midnight = int64(1688169600)

// latGeocoder names the country after the latitude band.
type latGeocoder struct {
	calls int
}

func (g *latGeocoder) Country(ctx context.Context, lat, lon float64) (string, error) {
	g.calls++
	switch {
	case lat < 45:
		return "", rgeo.ErrNoCountry
	case lat < 46:
		return "France", nil
	}
	return "Italy", nil
}

func testTrip(t *testing.T, g rgeo.Geocoder, config *params.TripConfig) (*Trip, *tripdb.Store) {
	t.Helper()
	store, err := tripdb.Open(context.Background(), filepath.Join(t.TempDir(), "trip.db"), true)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { store.Close() })
	return NewTrip(store, g, config), store
}

func pos(ts int64, lat, lon, speed float64) sample.Sample {
	s := sample.New(ts)
	s.Latitude, s.Longitude = lat, lon
	s.Speed = speed
	s.Altitude = 300
	return s
}

func TestCommitPositionGPSKm(t *testing.T) {
	defer common.SlogResetLevel(slog.Level(slog.LevelWarn + 1))()
	ctx := context.Background()
	g := &latGeocoder{}
	trip, store := testTrip(t, g, nil)

	a := pos(midnight+8*hour, 45.5, 5.0, 50)
	b := pos(midnight+9*hour, 45.6, 5.0, 50)
	b.Km = 999 // ignored with GPS km
	for _, s := range []sample.Sample{a, b} {
		if err := trip.CommitPosition(ctx, s); err != nil {
			t.Fatal(err)
		}
	}
	got, err := store.QueryAll(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if got[0].Km != 0 {
		t.Errorf("first km should be 0, got %v", got[0].Km)
	}
	want := common.DecimalToFixed(distance.Haversine(45.5, 5, 45.6, 5), 2)
	if got[1].Km != want {
		t.Errorf("want km %v, got %v", want, got[1].Km)
	}
	if got[0].Country != "France" || got[1].Country != "France" {
		t.Errorf("want geocoded countries, got %q %q", got[0].Country, got[1].Country)
	}
	if got[0].Step != 0 || got[1].Step != 0 {
		t.Errorf("same day should share a step, got %d %d", got[0].Step, got[1].Step)
	}
}

func TestCommitPositionGeocodeFailure(t *testing.T) {
	defer common.SlogResetLevel(slog.Level(slog.LevelWarn + 1))()
	ctx := context.Background()
	trip, store := testTrip(t, &latGeocoder{}, nil)
	if err := trip.CommitPosition(ctx, pos(midnight, 10, 5, 0)); err != nil {
		t.Fatal(err)
	}
	got, _ := store.QueryAll(ctx)
	if got[0].Country != "" {
		t.Errorf("failed lookup should leave country blank, got %q", got[0].Country)
	}
}

func TestCommitPositionDuplicate(t *testing.T) {
	defer common.SlogResetLevel(slog.Level(slog.LevelWarn + 1))()
	ctx := context.Background()
	trip, _ := testTrip(t, nil, nil)
	if err := trip.CommitPosition(ctx, pos(midnight, 45, 5, 0)); err != nil {
		t.Fatal(err)
	}
	if err := trip.CommitPosition(ctx, pos(midnight, 46, 5, 0)); !errors.Is(err, tripdb.ErrConstraintViolation) {
		t.Fatalf("want ErrConstraintViolation, got %v", err)
	}
}

func TestCommitBatch(t *testing.T) {
	defer common.SlogResetLevel(slog.Level(slog.LevelWarn + 1))()
	ctx := context.Background()
	g := &latGeocoder{}
	trip, store := testTrip(t, g, nil)

	if err := trip.CommitPosition(ctx, pos(midnight+20*hour, 45.0, 5.0, 0)); err != nil {
		t.Fatal(err)
	}
	g.calls = 0

	day2 := midnight + 24*hour
	batch := []sample.Sample{
		pos(day2+3*hour, 45.3, 5.0, 60), // bucket 0, geocoded later in order
		pos(day2+1*hour, 45.1, 5.0, 60), // bucket 0, first in time
		pos(day2+2*hour, 45.2, 5.0, 60),
		pos(day2+7*hour, 46.5, 5.0, 60), // bucket 1
		sample.New(day2 + 8*hour),       // no position
	}
	n, err := trip.CommitBatch(ctx, batch)
	if err != nil {
		t.Fatal(err)
	}
	if n != len(batch) {
		t.Fatalf("want %d committed, got %d", len(batch), n)
	}
	if g.calls != 2 {
		t.Errorf("want one lookup per 6h bucket, got %d", g.calls)
	}

	got, err := store.QueryAll(ctx)
	if err != nil {
		t.Fatal(err)
	}
	wantCountries := []string{"France", "France", "France", "France", "Italy", "Italy"}
	for i, c := range wantCountries {
		if got[i].Country != c {
			t.Errorf("row %d: want %s, got %s", i, c, got[i].Country)
		}
	}

	// km continues from the stored sample at 45.0.
	for i := 1; i < len(got); i++ {
		if got[i].Km < got[i-1].Km {
			t.Errorf("km must not decrease: %v then %v", got[i-1].Km, got[i].Km)
		}
	}
	wantKm := common.DecimalToFixed(distance.Haversine(45.0, 5, 45.1, 5), 2)
	if got[1].Km != wantKm {
		t.Errorf("want km %v, got %v", wantKm, got[1].Km)
	}
	if got[5].Km != got[4].Km {
		t.Errorf("sample without position keeps km, got %v then %v", got[4].Km, got[5].Km)
	}

	// Daily steps: day 1 is step 0, day 2 is step 1.
	if got[0].Step != 0 {
		t.Errorf("want step 0, got %d", got[0].Step)
	}
	for _, s := range got[1:] {
		if s.Step != 1 {
			t.Errorf("want step 1, got %d", s.Step)
		}
	}
}

func TestCommitBatchAllOrNothing(t *testing.T) {
	defer common.SlogResetLevel(slog.Level(slog.LevelWarn + 1))()
	ctx := context.Background()
	trip, store := testTrip(t, nil, nil)
	if err := trip.CommitPosition(ctx, pos(midnight, 45, 5, 0)); err != nil {
		t.Fatal(err)
	}
	_, err := trip.CommitBatch(ctx, []sample.Sample{
		pos(midnight+hour, 45.1, 5, 0),
		pos(midnight, 45.2, 5, 0),
	})
	if !errors.Is(err, tripdb.ErrConstraintViolation) {
		t.Fatalf("want ErrConstraintViolation, got %v", err)
	}
	if rows, _ := store.QueryAll(ctx); len(rows) != 1 {
		t.Errorf("failed batch must not write, have %d rows", len(rows))
	}
}

func TestStepPolicyManual(t *testing.T) {
	defer common.SlogResetLevel(slog.Level(slog.LevelWarn + 1))()
	ctx := context.Background()
	config := params.DefaultTripConfig()
	config.StepPolicy = params.StepPolicyManual
	trip, store := testTrip(t, nil, config)

	first := pos(midnight, 45, 5, 0)
	first.Step = 3
	trip.CommitPosition(ctx, first)
	trip.CommitPosition(ctx, pos(midnight+48*hour, 45.1, 5, 0))

	next, err := trip.NextStep(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if next != 4 {
		t.Errorf("want next step 4, got %d", next)
	}
	explicit := pos(midnight+49*hour, 45.2, 5, 0)
	explicit.Step = next
	trip.CommitPosition(ctx, explicit)

	got, _ := store.QueryAll(ctx)
	for i, want := range []int{3, 3, 4} {
		if got[i].Step != want {
			t.Errorf("row %d: want step %d, got %d", i, want, got[i].Step)
		}
	}
}

func TestOdometerKm(t *testing.T) {
	defer common.SlogResetLevel(slog.Level(slog.LevelWarn + 1))()
	ctx := context.Background()
	config := params.DefaultTripConfig()
	config.KilometerSource = params.KilometerSourceOdometer
	trip, store := testTrip(t, nil, config)
	s := pos(midnight, 45, 5, 0)
	s.Km = 1234.5
	if err := trip.CommitPosition(ctx, s); err != nil {
		t.Fatal(err)
	}
	got, _ := store.QueryAll(ctx)
	if got[0].Km != 1234.5 {
		t.Errorf("odometer km should be kept, got %v", got[0].Km)
	}
}

func TestViews(t *testing.T) {
	defer common.SlogResetLevel(slog.Level(slog.LevelWarn + 1))()
	ctx := context.Background()
	trip, _ := testTrip(t, &latGeocoder{}, nil)

	if _, err := trip.Trace(ctx); !errors.Is(err, sample.ErrEmptyTrace) {
		t.Errorf("want ErrEmptyTrace, got %v", err)
	}
	if _, err := trip.Describe(ctx); !errors.Is(err, sample.ErrEmptyTrace) {
		t.Errorf("want ErrEmptyTrace, got %v", err)
	}
	if step, err := trip.LastStep(ctx); step != 0 || err != nil {
		t.Errorf("want 0 nil, got %d %v", step, err)
	}

	var batch []sample.Sample
	for d := int64(0); d < 3; d++ {
		base := midnight + d*24*hour
		batch = append(batch,
			pos(base+10*hour, 45.2+float64(d)*0.5, 5, 80),
			pos(base+21*hour, 45.4+float64(d)*0.5, 5, 0),
		)
	}
	if _, err := trip.CommitBatch(ctx, batch); err != nil {
		t.Fatal(err)
	}

	tr, err := trip.Trace(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(tr.Steps) != 3 || len(tr.Points) != 6 {
		t.Errorf("want 3 steps of 6 points, got %d steps %d points", len(tr.Steps), len(tr.Points))
	}

	found, err := trip.Stops(ctx, trip.StopsConfig())
	if err != nil {
		t.Fatal(err)
	}
	if len(found) != 3 {
		t.Errorf("want 3 stops, got %+v", found)
	}
	if _, err := trip.Stops(ctx, stops.Config{SpeedThreshold: 0, MinSeparationKm: 10}); !errors.Is(err, sample.ErrInvalidParameter) {
		t.Errorf("want ErrInvalidParameter, got %v", err)
	}

	sum, err := trip.Describe(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if sum.DurationDays != 2 || sum.CountryCount() != 2 {
		t.Errorf("unexpected summary %+v", sum)
	}
	if math.Abs(sum.TotalKm-tr.Last().Km) > 1e-9 {
		t.Errorf("summary km %v should match trace km %v", sum.TotalKm, tr.Last().Km)
	}
	if step, _ := trip.LastStep(ctx); step != 2 {
		t.Errorf("want last step 2, got %d", step)
	}
	bad, err := trip.CheckConsistency(ctx)
	if err != nil || len(bad) != 0 {
		t.Errorf("want consistent store, got %v %v", bad, err)
	}
}
