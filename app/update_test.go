package app

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/capsule/tripoverview/api"
	"github.com/capsule/tripoverview/common"
	"github.com/capsule/tripoverview/params"
	"github.com/capsule/tripoverview/state"
	"github.com/capsule/tripoverview/tripdb"
	"github.com/capsule/tripoverview/types/sample"
)

type fakeSource struct {
	samples []sample.Sample
	calls   int
}

func (f *fakeSource) Fetch(ctx context.Context, start, end time.Time) ([]sample.Sample, error) {
	f.calls++
	return f.samples, nil
}

func at(t time.Time, lat float64) sample.Sample {
	s := sample.New(t.Unix())
	s.Latitude, s.Longitude = lat, 5
	s.Speed = 50
	return s
}

func testUpdater(t *testing.T, src Source) (*Updater, *tripdb.Store) {
	t.Helper()
	ctx := context.Background()
	dir := t.TempDir()
	store, err := tripdb.Open(ctx, filepath.Join(dir, "trip.db"), true)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { store.Close() })
	st, err := state.Open(filepath.Join(dir, "state.db"), false)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { st.Close() })

	siteCfg := params.DefaultSiteConfig()
	siteCfg.OutputDir = filepath.Join(dir, "site")
	siteCfg.OfflineTileURL = ""

	return &Updater{
		Trip:            api.NewTrip(store, nil, nil),
		State:           st,
		Source:          src,
		Config:          params.DefaultUpdateConfig(),
		Site:            siteCfg,
		StationarySpeed: 0.1,
	}, store
}

func TestUpdaterRun(t *testing.T) {
	defer common.SlogResetLevel(slog.Level(slog.LevelWarn + 1))()
	ctx := context.Background()
	now := time.Date(2023, 7, 2, 12, 0, 0, 0, time.UTC)

	src := &fakeSource{samples: []sample.Sample{
		at(now.Add(-48*time.Hour), 44.0), // before the first lookback
		at(now.Add(-3*time.Hour), 45.0),
		at(now.Add(-2*time.Hour), 45.1),
		at(now.Add(-1*time.Hour), 45.2),
		at(now, 45.3),
	}}
	u, store := testUpdater(t, src)

	report, err := u.Run(ctx, now)
	if err != nil {
		t.Fatal(err)
	}
	if report.Skipped {
		t.Fatal("first update should run")
	}
	if !report.Since.Equal(now.Add(-24 * time.Hour)) {
		t.Errorf("first update should look back 24h, got %v", report.Since)
	}
	if report.Fetched != 4 || report.Committed != 4 {
		t.Errorf("want 4 fetched and committed, got %d %d", report.Fetched, report.Committed)
	}
	if len(report.Files) == 0 {
		t.Error("expected rendered files")
	}
	if _, err := os.Stat(filepath.Join(u.Site.OutputDir, "online_index.html")); err != nil {
		t.Error(err)
	}

	last, ok, err := u.State.LastUpdate()
	if err != nil || !ok || !last.Equal(now) {
		t.Fatalf("want last update %v, got %v %v %v", now, last, ok, err)
	}

	// Within the minimum interval nothing is fetched.
	report, err = u.Run(ctx, now.Add(time.Hour))
	if err != nil {
		t.Fatal(err)
	}
	if !report.Skipped || src.calls != 1 {
		t.Errorf("want skipped update without fetch, got %+v after %d calls", report, src.calls)
	}
	if !report.LastRender.Equal(now) {
		t.Errorf("skipped update should report the render at %v, got %v", now, report.LastRender)
	}

	// The next window starts at the previous update; its boundary sample is already stored.
	later := now.Add(13 * time.Hour)
	src.samples = append(src.samples, at(now.Add(12*time.Hour), 45.4))
	report, err = u.Run(ctx, later)
	if err != nil {
		t.Fatal(err)
	}
	if report.Fetched != 2 || report.Committed != 1 {
		t.Errorf("want 2 fetched and 1 committed, got %d %d", report.Fetched, report.Committed)
	}
	n, err := store.Count(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if n != 5 {
		t.Errorf("want 5 stored samples, got %d", n)
	}
}

func TestUpdaterEmptyTrip(t *testing.T) {
	defer common.SlogResetLevel(slog.Level(slog.LevelWarn + 1))()
	now := time.Date(2023, 7, 2, 12, 0, 0, 0, time.UTC)
	u, _ := testUpdater(t, &fakeSource{})

	report, err := u.Run(context.Background(), now)
	if err != nil {
		t.Fatal(err)
	}
	if report.Committed != 0 || len(report.Files) != 0 {
		t.Errorf("empty update should commit and render nothing, got %+v", report)
	}
	if _, ok, _ := u.State.LastUpdate(); !ok {
		t.Error("empty update should still be recorded")
	}
	if _, ok, _ := u.State.LastRender(); ok || !report.LastRender.IsZero() {
		t.Error("empty trip should not record a render")
	}
}
