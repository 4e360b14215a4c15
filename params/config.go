package params

import (
	"github.com/go-playground/validator/v10"
)

type LogConfig struct {
	Level string `mapstructure:"level" yaml:"level" validate:"oneof=debug info warn error"`
	JSON  bool   `mapstructure:"json" yaml:"json"`
	// File appends logs to the named file instead of stderr.
	File string `mapstructure:"file" yaml:"file"`
}

// Config is the whole application configuration.
type Config struct {
	Log      LogConfig        `mapstructure:"log" yaml:"log"`
	Store    StoreConfig      `mapstructure:"store" yaml:"store"`
	Trip     TripConfig       `mapstructure:"trip" yaml:"trip"`
	Geocoder GeocoderConfig   `mapstructure:"geocoder" yaml:"geocoder"`
	Influx   InfluxConfig     `mapstructure:"influx" yaml:"influx"`
	Site     SiteConfig       `mapstructure:"site" yaml:"site"`
	Update   UpdateConfig     `mapstructure:"update" yaml:"update"`
	RgeoD    RgeoDaemonConfig `mapstructure:"rgeod" yaml:"rgeod"`
	Web      WebDaemonConfig  `mapstructure:"webd" yaml:"webd"`
}

func DefaultConfig() *Config {
	return &Config{
		Log:      LogConfig{Level: "info"},
		Store:    *DefaultStoreConfig(),
		Trip:     *DefaultTripConfig(),
		Geocoder: *DefaultGeocoderConfig(),
		Influx:   *DefaultInfluxConfig(),
		Site:     *DefaultSiteConfig(),
		Update:   *DefaultUpdateConfig(),
		RgeoD:    *DefaultRgeoDaemonConfig(),
		Web:      *DefaultWebDaemonConfig(),
	}
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks every `validate` tag of the configuration.
func (c *Config) Validate() error {
	return validate.Struct(c)
}
