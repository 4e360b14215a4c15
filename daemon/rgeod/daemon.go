package rgeod

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"net/rpc"
	"os"
	"strings"
	"sync/atomic"
	"time"

	"github.com/capsule/tripoverview/common"
	"github.com/capsule/tripoverview/params"
	"github.com/capsule/tripoverview/rgeo"
	"github.com/jellydator/ttlcache/v3"
)

// RgeoDaemon serves country lookups over RPC.
// Loading the dataset takes seconds, so commands share one running daemon.
type RgeoDaemon struct {
	config    *params.RgeoDaemonConfig
	geocoder  rgeo.Geocoder
	cache     *ttlcache.Cache[string, string]
	server    *rpc.Server
	listener  net.Listener
	logger    *slog.Logger
	interrupt chan struct{}
	ready     atomic.Bool
}

// CacheTTL is how long a resolved position is kept.
var CacheTTL = 24 * time.Hour

// NewDaemon returns a daemon answering with geocoder.
// A nil geocoder loads the in-process dataset on Start.
func NewDaemon(config *params.RgeoDaemonConfig, geocoder rgeo.Geocoder) (*RgeoDaemon, error) {
	logger := slog.With("daemon", "rgeo")
	if config == nil {
		logger.Warn("No config provided, using default")
		config = params.DefaultRgeoDaemonConfig()
	}
	d := &RgeoDaemon{
		config:    config,
		geocoder:  geocoder,
		logger:    logger,
		interrupt: make(chan struct{}, 1),
	}
	if config.CacheSize > 0 {
		d.cache = ttlcache.New[string, string](
			ttlcache.WithTTL[string, string](CacheTTL),
			ttlcache.WithCapacity[string, string](uint64(config.CacheSize)),
		)
	}
	return d, nil
}

var ErrAlreadyRunning = errors.New("rgeo daemon already running")

// Start starts the daemon and blocks until Stop is called.
func (d *RgeoDaemon) Start() error {
	d.logger.Info("Rgeo daemon starting...",
		"network", d.config.Network, "address", d.config.Address)

	if strings.HasPrefix(d.config.Network, "unix") {
		if _, err := os.Stat(d.config.Address); err == nil {
			d.logger.Info("Found existing socket file, checking response", "address", d.config.Address)
			c, err := common.DialRPC(d.config.Network, d.config.Address)
			if err == nil {
				c.Close()
				d.logger.Warn("Socket file already in use, refusing to compete", "address", d.config.Address)
				return fmt.Errorf("%w: %s", ErrAlreadyRunning, d.config.Address)
			}
			d.logger.Warn("Removing existing socket file (non-responsive)", "address", d.config.Address)
			os.Remove(d.config.Address)
		}
		defer os.Remove(d.config.Address)
	}

	d.server = rpc.NewServer()
	if err := d.server.RegisterName(d.config.ServiceName, &ReverseGeocodeService{d}); err != nil {
		return err
	}
	listener, err := net.Listen(d.config.Network, d.config.Address)
	if err != nil {
		return err
	}
	d.listener = listener
	if strings.HasPrefix(d.config.Network, "unix") {
		go d.server.Accept(listener)
	} else {
		mux := http.NewServeMux()
		mux.Handle(rpc.DefaultRPCPath, d.server)
		go http.Serve(listener, mux)
	}

	if d.cache != nil {
		go d.cache.Start()
		defer d.cache.Stop()
	}

	if d.geocoder == nil {
		d.logger.Info("Initializing rgeo dataset (this may take a while)... ")
		local, err := rgeo.NewLocal()
		if err != nil {
			listener.Close()
			return err
		}
		d.geocoder = local
	}
	d.ready.Store(true)
	d.logger.Info("Rgeo daemon and dataset ready")
	<-d.interrupt
	d.logger.Info("Rgeo daemon interrupted")
	return listener.Close()
}

// Stop signals a started daemon to return.
func (d *RgeoDaemon) Stop() error {
	d.logger.Info("Rgeo daemon stopping")
	d.interrupt <- struct{}{}
	return nil
}

// Ready reports whether the daemon accepts lookups.
func (d *RgeoDaemon) Ready() bool {
	return d.ready.Load()
}

var ErrNotReady = errors.New("rgeo daemon not ready")

type ReverseGeocodeService struct {
	*RgeoDaemon
}

func (r *ReverseGeocodeService) Ping(_ *int, _ *int) error {
	if !r.ready.Load() {
		r.logger.Error("Ping")
		return ErrNotReady
	}
	r.logger.Debug("Ping")
	return nil
}

func (r *ReverseGeocodeService) Country(req *rgeo.CountryRequest, res *rgeo.CountryResponse) error {
	if req == nil {
		return errors.New("request is nil")
	}
	if res == nil {
		return errors.New("response is nil")
	}
	if !r.ready.Load() {
		return ErrNotReady
	}
	defer func() {
		if res.Error != "" {
			r.logger.Debug("ReverseGeocode.Country", "request", req, "error", res.Error)
		} else {
			r.logger.Debug("ReverseGeocode.Country", "request", req, "response", res.Country)
		}
	}()

	key := fmt.Sprintf("%.5f,%.5f", req.Lat, req.Lon)
	if r.cache != nil {
		if item := r.cache.Get(key); item != nil {
			res.Country = item.Value()
			return nil
		}
	}
	country, err := r.geocoder.Country(context.Background(), req.Lat, req.Lon)
	if err != nil {
		res.Error = err.Error()
		return nil
	}
	res.Country = country
	if r.cache != nil {
		r.cache.Set(key, country, ttlcache.DefaultTTL)
	}
	return nil
}
