package webd

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/capsule/tripoverview/api"
	"github.com/capsule/tripoverview/common"
	"github.com/capsule/tripoverview/params"
	"github.com/capsule/tripoverview/summary"
	"github.com/capsule/tripoverview/tripdb"
	"github.com/capsule/tripoverview/types/sample"
	"github.com/paulmach/orb/geojson"
)

// 2023-07-01T00:00:00Z
const midnight = int64(1688169600)

const hour = int64(60 * 60)

func newTestWebDaemon(t *testing.T, samples ...sample.Sample) *WebDaemon {
	t.Helper()
	ctx := context.Background()
	store, err := tripdb.Open(ctx, filepath.Join(t.TempDir(), "trip.db"), true)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { store.Close() })
	if len(samples) > 0 {
		if _, err := store.AppendBatch(ctx, samples); err != nil {
			t.Fatal(err)
		}
	}
	return NewWebDaemon(params.DefaultTestWebDaemonConfig(), api.NewTrip(store, nil, nil))
}

func tripSamples() []sample.Sample {
	var out []sample.Sample
	for i, day := range []int64{0, 0, 1, 1} {
		s := sample.New(midnight + day*24*hour + int64(i+8)*hour)
		s.Latitude = 45.0 + float64(i)*0.2
		s.Longitude = 5.0
		s.Altitude = 250
		s.Speed = 40
		if i%2 == 1 {
			s.Speed = 0
		}
		s.Km = float64(i) * 22.2
		s.Country = "France"
		s.Step = int(day)
		out = append(out, s)
	}
	return out
}

func serve(t *testing.T, s *WebDaemon, target string) *http.Response {
	t.Helper()
	req := httptest.NewRequest("GET", target, nil)
	w := httptest.NewRecorder()
	s.NewRouter().ServeHTTP(w, req)
	return w.Result()
}

func TestPingPong(t *testing.T) {
	defer common.SlogResetLevel(slog.Level(slog.LevelWarn + 1))()
	s := newTestWebDaemon(t)
	res := serve(t, s, "/ping")
	defer res.Body.Close()
	if res.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", res.StatusCode)
	}
	if res.Header.Get("Access-Control-Allow-Origin") != "*" {
		t.Error("expected permissive CORS header")
	}
	body, _ := io.ReadAll(res.Body)
	if string(body) != "pong" {
		t.Errorf("expected pong, got %q", body)
	}
}

func TestStatusReport(t *testing.T) {
	defer common.SlogResetLevel(slog.Level(slog.LevelWarn + 1))()
	s := newTestWebDaemon(t, tripSamples()...)
	res := serve(t, s, "/status")
	defer res.Body.Close()
	if res.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", res.StatusCode)
	}
	var st webDaemonStatus
	if err := json.NewDecoder(res.Body).Decode(&st); err != nil {
		t.Fatal(err)
	}
	if st.LastStep != 1 {
		t.Errorf("expected last step 1, got %d", st.LastStep)
	}
	if st.Config == nil || st.Config.Address != "localhost:3333" {
		t.Errorf("unexpected config %+v", st.Config)
	}
}

func TestEmptyTraceNoContent(t *testing.T) {
	defer common.SlogResetLevel(slog.Level(slog.LevelWarn + 1))()
	s := newTestWebDaemon(t)
	for _, target := range []string{"/api/summary", "/api/trace"} {
		res := serve(t, s, target)
		res.Body.Close()
		if res.StatusCode != http.StatusNoContent {
			t.Errorf("%s: expected 204, got %d", target, res.StatusCode)
		}
	}
}

func TestSummary(t *testing.T) {
	defer common.SlogResetLevel(slog.Level(slog.LevelWarn + 1))()
	s := newTestWebDaemon(t, tripSamples()...)
	res := serve(t, s, "/api/summary")
	defer res.Body.Close()
	if ct := res.Header.Get("Content-Type"); ct != "application/json" {
		t.Errorf("unexpected content type %q", ct)
	}
	var sum summary.Summary
	if err := json.NewDecoder(res.Body).Decode(&sum); err != nil {
		t.Fatal(err)
	}
	if sum.DurationDays != 1 {
		t.Errorf("expected 1 day, got %d", sum.DurationDays)
	}
	if len(sum.Countries) != 1 || sum.Countries[0] != "France" {
		t.Errorf("unexpected countries %v", sum.Countries)
	}
	if !strings.HasPrefix(sum.Text, "The current trip lasted 1 days") {
		t.Errorf("unexpected text %q", sum.Text)
	}
}

func TestTraceGeoJSON(t *testing.T) {
	defer common.SlogResetLevel(slog.Level(slog.LevelWarn + 1))()
	s := newTestWebDaemon(t, tripSamples()...)
	res := serve(t, s, "/api/trace")
	defer res.Body.Close()
	if ct := res.Header.Get("Content-Type"); ct != "application/geo+json" {
		t.Errorf("unexpected content type %q", ct)
	}
	body, err := io.ReadAll(res.Body)
	if err != nil {
		t.Fatal(err)
	}
	fc, err := geojson.UnmarshalFeatureCollection(body)
	if err != nil {
		t.Fatal(err)
	}
	// Two step lines and two sleep markers.
	if len(fc.Features) != 4 {
		t.Errorf("expected 4 features, got %d", len(fc.Features))
	}
}

func TestStops(t *testing.T) {
	defer common.SlogResetLevel(slog.Level(slog.LevelWarn + 1))()
	s := newTestWebDaemon(t, tripSamples()...)

	res := serve(t, s, "/api/stops?threshold=1&separation=5")
	defer res.Body.Close()
	if res.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", res.StatusCode)
	}
	var got []stopJSON
	if err := json.NewDecoder(res.Body).Decode(&got); err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 {
		t.Fatalf("expected one stop per day, got %d", len(got))
	}
	if got[0].Timestamp != tripSamples()[1].Timestamp {
		t.Errorf("first stop should be the first day's last stationary sample, got %d", got[0].Timestamp)
	}
	if got[0].Altitude == nil || *got[0].Altitude != 250 {
		t.Errorf("unexpected altitude %v", got[0].Altitude)
	}
}

func TestStopsInvalidParameter(t *testing.T) {
	defer common.SlogResetLevel(slog.Level(slog.LevelWarn + 1))()
	s := newTestWebDaemon(t, tripSamples()...)
	for _, target := range []string{
		"/api/stops?threshold=0",
		"/api/stops?separation=-1",
		"/api/stops?threshold=fast",
	} {
		res := serve(t, s, target)
		body, _ := io.ReadAll(res.Body)
		res.Body.Close()
		if res.StatusCode != http.StatusBadRequest {
			t.Errorf("%s: expected 400, got %d", target, res.StatusCode)
		}
		if !strings.Contains(string(body), sample.ErrInvalidParameter.Error()) {
			t.Errorf("%s: unexpected body %q", target, body)
		}
	}
}

func TestLastStepAndConsistency(t *testing.T) {
	defer common.SlogResetLevel(slog.Level(slog.LevelWarn + 1))()
	s := newTestWebDaemon(t, tripSamples()...)

	res := serve(t, s, "/api/laststep")
	var last map[string]int
	if err := json.NewDecoder(res.Body).Decode(&last); err != nil {
		t.Fatal(err)
	}
	res.Body.Close()
	if last["last_step"] != 1 {
		t.Errorf("expected last step 1, got %v", last)
	}

	res = serve(t, s, "/api/consistency")
	defer res.Body.Close()
	var report consistencyReport
	if err := json.NewDecoder(res.Body).Decode(&report); err != nil {
		t.Fatal(err)
	}
	if !report.Consistent || len(report.Inconsistencies) != 0 {
		t.Errorf("expected a consistent store, got %+v", report)
	}
}

func TestStaticSite(t *testing.T) {
	defer common.SlogResetLevel(slog.Level(slog.LevelWarn + 1))()
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "online_index.html"), []byte("<html>map</html>"), 0644); err != nil {
		t.Fatal(err)
	}
	s := newTestWebDaemon(t)
	s.Config.SiteDir = dir

	res := serve(t, s, "/online_index.html")
	defer res.Body.Close()
	if res.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", res.StatusCode)
	}
	body, _ := io.ReadAll(res.Body)
	if string(body) != "<html>map</html>" {
		t.Errorf("unexpected body %q", body)
	}
}

func TestRunShutdown(t *testing.T) {
	defer common.SlogResetLevel(slog.Level(slog.LevelWarn + 1))()
	s := newTestWebDaemon(t)
	s.Config.Address = "localhost:0"
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()
	cancel()
	if err := <-done; err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
