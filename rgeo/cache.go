package rgeo

import (
	"context"
	"math"

	"github.com/capsule/tripoverview/common"
	lru "github.com/hashicorp/golang-lru/v2"
)

type cacheKey struct {
	lat, lon float64
}

// Cached memoizes successful lookups of a Geocoder.
// Positions share a cache entry when equal at town precision;
// the first one of an entry is looked up as given.
type Cached struct {
	Geocoder
	cache *lru.Cache[cacheKey, string]
}

// NewCached wraps g. A size below 1 returns g unchanged.
func NewCached(g Geocoder, size int) Geocoder {
	if size < 1 {
		return g
	}
	cache, err := lru.New[cacheKey, string](size)
	if err != nil {
		return g
	}
	return &Cached{Geocoder: g, cache: cache}
}

func (c *Cached) Country(ctx context.Context, lat, lon float64) (string, error) {
	if math.IsNaN(lat) || math.IsNaN(lon) {
		return c.Geocoder.Country(ctx, lat, lon)
	}
	key := cacheKey{
		lat: common.DecimalToFixed(lat, common.GPSPrecision2),
		lon: common.DecimalToFixed(lon, common.GPSPrecision2),
	}
	if v, ok := c.cache.Get(key); ok {
		return v, nil
	}
	v, err := c.Geocoder.Country(ctx, lat, lon)
	if err != nil {
		return "", err
	}
	c.cache.Add(key, v)
	return v, nil
}

// Len returns the number of cached positions.
func (c *Cached) Len() int {
	return c.cache.Len()
}
