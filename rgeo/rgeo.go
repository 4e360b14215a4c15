// Package rgeo resolves GPS positions to country names.
package rgeo

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sync"

	srgeo "github.com/sams96/rgeo"
)

var ErrNoCountry = errors.New("no country at position")

// Geocoder looks up the country of a position.
type Geocoder interface {
	Country(ctx context.Context, lat, lon float64) (string, error)
}

// Nop never resolves a country.
type Nop struct{}

func (Nop) Country(ctx context.Context, lat, lon float64) (string, error) {
	return "", ErrNoCountry
}

// Local geocodes in process using the Countries10 dataset.
type Local struct {
	r *srgeo.Rgeo
}

var (
	localOnce sync.Once
	local     *Local
	localErr  error
)

// NewLocal returns the in-process geocoder.
// The dataset is loaded once per process and takes a few seconds.
func NewLocal() (*Local, error) {
	localOnce.Do(func() {
		slog.Debug("Loading rgeo dataset", "dataset", "Countries10")
		r, err := srgeo.New(srgeo.Countries10)
		if err != nil {
			localErr = fmt.Errorf("load rgeo dataset: %w", err)
			return
		}
		local = &Local{r: r}
	})
	return local, localErr
}

func (l *Local) Country(ctx context.Context, lat, lon float64) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if math.IsNaN(lat) || math.IsNaN(lon) {
		return "", ErrNoCountry
	}
	loc, err := l.r.ReverseGeocode([]float64{lon, lat})
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrNoCountry, err)
	}
	if loc.Country == "" {
		return "", ErrNoCountry
	}
	return loc.Country, nil
}
