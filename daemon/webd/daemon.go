package webd

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/capsule/tripoverview/api"
	"github.com/capsule/tripoverview/params"
	"github.com/gorilla/mux"
)

type WebDaemon struct {
	Config  *params.WebDaemonConfig
	trip    *api.Trip
	logger  *slog.Logger
	started time.Time
}

func NewWebDaemon(config *params.WebDaemonConfig, trip *api.Trip) *WebDaemon {
	if config == nil {
		config = params.DefaultWebDaemonConfig()
	}
	return &WebDaemon{
		Config: config,
		trip:   trip,
		logger: slog.With("d", "web"),
	}
}

// Run serves HTTP until ctx is done, then shuts the server down gracefully.
func (s *WebDaemon) Run(ctx context.Context) error {
	listener, err := net.Listen(s.Config.Network, s.Config.Address)
	if err != nil {
		return err
	}
	server := &http.Server{
		Handler:           s.NewRouter(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.started = time.Now()
	s.logger.Info("Starting web daemon", "network", s.Config.Network, "address", listener.Addr().String(), "site", s.Config.SiteDir)

	errs := make(chan error, 1)
	go func() {
		errs <- server.Serve(listener)
	}()

	select {
	case err := <-errs:
		return err
	case <-ctx.Done():
	}
	s.logger.Info("Web daemon stopping")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errs; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *WebDaemon) NewRouter() *mux.Router {
	if s.started.IsZero() {
		s.started = time.Now()
	}
	router := mux.NewRouter().StrictSlash(false)
	router.Use(loggingMiddleware)
	router.Use(compressionMiddleware)

	apiRoutes := router.NewRoute().Subrouter()

	// All API routes use permissive CORS settings.
	apiRoutes.Use(permissiveCorsMiddleware)

	// /ping is a simple server healthcheck endpoint
	apiRoutes.Path("/ping").HandlerFunc(pingPong)
	apiRoutes.Path("/status").HandlerFunc(s.statusReport).Methods(http.MethodGet)

	apiJSONRoutes := apiRoutes.PathPrefix("/api").Subrouter()
	apiJSONRoutes.Use(contentTypeMiddlewareFunc("application/json"))

	apiJSONRoutes.Path("/summary").HandlerFunc(s.handleSummary).Methods(http.MethodGet)
	apiJSONRoutes.Path("/stops").HandlerFunc(s.handleStops).Methods(http.MethodGet)
	apiJSONRoutes.Path("/laststep").HandlerFunc(s.handleLastStep).Methods(http.MethodGet)
	apiJSONRoutes.Path("/consistency").HandlerFunc(s.handleConsistency).Methods(http.MethodGet)

	geoJSONRoutes := apiRoutes.PathPrefix("/api").Subrouter()
	geoJSONRoutes.Use(contentTypeMiddlewareFunc("application/geo+json"))
	geoJSONRoutes.Path("/trace").HandlerFunc(s.handleTrace).Methods(http.MethodGet)

	if s.Config.SiteDir != "" {
		router.PathPrefix("/").Handler(http.FileServer(http.Dir(s.Config.SiteDir)))
	}
	return router
}
