package params

import (
	"os"
	"path/filepath"
)

type RgeoDaemonConfig struct {
	ListenerConfig `mapstructure:",squash" yaml:",inline"`
	ServiceName    string `mapstructure:"service" yaml:"service" validate:"required"`
	// CacheSize bounds the number of cached lookups. Zero disables the cache.
	CacheSize int `mapstructure:"cache_size" yaml:"cache_size" validate:"gte=0"`
}

func DefaultRgeoDaemonConfig() *RgeoDaemonConfig {
	return &RgeoDaemonConfig{
		ListenerConfig: ListenerConfig{
			Network: "unix",
			Address: filepath.Join(os.TempDir(), "tripoverview-rgeo.sock"),
		},
		ServiceName: "ReverseGeocode",
		CacheSize:   10_000,
	}
}

// GeocoderConfig selects the reverse geocoder used on commit.
type GeocoderConfig struct {
	// Mode is "local" to load the dataset in process,
	// "rpc" to call a running rgeod, or "none" to skip geocoding.
	Mode      string           `mapstructure:"mode" yaml:"mode" validate:"oneof=local rpc none"`
	RgeoD     RgeoDaemonConfig `mapstructure:"rgeod" yaml:"rgeod"`
	CacheSize int              `mapstructure:"cache_size" yaml:"cache_size" validate:"gte=0"`
}

func DefaultGeocoderConfig() *GeocoderConfig {
	return &GeocoderConfig{
		Mode:      "local",
		RgeoD:     *DefaultRgeoDaemonConfig(),
		CacheSize: 4096,
	}
}
