package webd

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/capsule/tripoverview/geo/stops"
	"github.com/capsule/tripoverview/params"
	"github.com/capsule/tripoverview/site"
	"github.com/capsule/tripoverview/tripdb"
	"github.com/capsule/tripoverview/types/sample"
)

func pingPong(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("pong"))
}

type webDaemonStatus struct {
	StartedAt time.Time               `json:"started_at"`
	Uptime    string                  `json:"uptime"`
	Config    *params.WebDaemonConfig `json:"config"`
	LastStep  int                     `json:"last_step"`
}

func (s *WebDaemon) statusReport(w http.ResponseWriter, r *http.Request) {
	step, err := s.trip.LastStep(r.Context())
	if err != nil {
		s.serverError(w, err)
		return
	}
	st := webDaemonStatus{
		StartedAt: s.started,
		Uptime:    time.Since(s.started).Round(time.Second).String(),
		Config:    s.Config,
		LastStep:  step,
	}
	w.Header().Set("Content-Type", "application/json")
	s.writeJSON(w, st)
}

func (s *WebDaemon) writeJSON(w http.ResponseWriter, v any) {
	j, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		s.serverError(w, err)
		return
	}
	if _, err := w.Write(j); err != nil {
		s.logger.Error("Failed to write response", "error", err)
	}
}

func (s *WebDaemon) serverError(w http.ResponseWriter, err error) {
	s.logger.Error("Request failed", "error", err)
	http.Error(w, "Internal server error", http.StatusInternalServerError)
}

// handleEngineError writes the status for an engine error and reports whether err was handled.
func (s *WebDaemon) handleEngineError(w http.ResponseWriter, err error) bool {
	switch {
	case err == nil:
		return false
	case errors.Is(err, sample.ErrEmptyTrace):
		w.WriteHeader(http.StatusNoContent)
	case errors.Is(err, sample.ErrInvalidParameter):
		http.Error(w, err.Error(), http.StatusBadRequest)
	default:
		s.serverError(w, err)
	}
	return true
}

func (s *WebDaemon) handleSummary(w http.ResponseWriter, r *http.Request) {
	sum, err := s.trip.Describe(r.Context())
	if s.handleEngineError(w, err) {
		return
	}
	s.writeJSON(w, sum)
}

func (s *WebDaemon) handleTrace(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tr, err := s.trip.Trace(ctx)
	if s.handleEngineError(w, err) {
		return
	}
	sum, err := s.trip.Describe(ctx)
	if s.handleEngineError(w, err) {
		return
	}
	fc := site.FeatureCollection(site.View{Trace: tr, Summary: sum}, s.trip.Config().Location())
	b, err := fc.MarshalJSON()
	if err != nil {
		s.serverError(w, err)
		return
	}
	_, _ = w.Write(b)
}

// stopsConfigFromRequest reads the threshold and separation query parameters
// over the configured defaults.
func (s *WebDaemon) stopsConfigFromRequest(r *http.Request) (stops.Config, error) {
	cfg := s.trip.StopsConfig()
	q := r.URL.Query()
	for _, p := range []struct {
		name string
		dst  *float64
	}{
		{"threshold", &cfg.SpeedThreshold},
		{"separation", &cfg.MinSeparationKm},
	} {
		raw := q.Get(p.name)
		if raw == "" {
			continue
		}
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return cfg, fmt.Errorf("%w: %s: %q is not a number", sample.ErrInvalidParameter, p.name, raw)
		}
		*p.dst = v
	}
	return cfg, cfg.Validate()
}

type stopJSON struct {
	Timestamp int64    `json:"timestamp"`
	Time      string   `json:"time"`
	Latitude  float64  `json:"latitude"`
	Longitude float64  `json:"longitude"`
	Altitude  *float64 `json:"altitude"`
}

func (s *WebDaemon) handleStops(w http.ResponseWriter, r *http.Request) {
	cfg, err := s.stopsConfigFromRequest(r)
	if s.handleEngineError(w, err) {
		return
	}
	found, err := s.trip.Stops(r.Context(), cfg)
	if s.handleEngineError(w, err) {
		return
	}
	out := make([]stopJSON, 0, len(found))
	for _, st := range found {
		sj := stopJSON{
			Timestamp: st.Timestamp,
			Time:      st.Time().In(cfg.Location).Format(time.RFC3339),
			Latitude:  st.Latitude,
			Longitude: st.Longitude,
		}
		if !sample.Missing(st.Altitude) {
			alt := st.Altitude
			sj.Altitude = &alt
		}
		out = append(out, sj)
	}
	s.writeJSON(w, out)
}

func (s *WebDaemon) handleLastStep(w http.ResponseWriter, r *http.Request) {
	step, err := s.trip.LastStep(r.Context())
	if s.handleEngineError(w, err) {
		return
	}
	s.writeJSON(w, map[string]int{"last_step": step})
}

type consistencyReport struct {
	Consistent      bool                            `json:"consistent"`
	Inconsistencies []tripdb.TimestampInconsistency `json:"inconsistencies"`
}

func (s *WebDaemon) handleConsistency(w http.ResponseWriter, r *http.Request) {
	found, err := s.trip.CheckConsistency(r.Context())
	if s.handleEngineError(w, err) {
		return
	}
	s.writeJSON(w, consistencyReport{
		Consistent:      len(found) == 0,
		Inconsistencies: found,
	})
}
