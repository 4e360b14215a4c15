package params

import "time"

type InfluxConfig struct {
	URL    string `mapstructure:"url" yaml:"url" validate:"required,url"`
	Token  string `mapstructure:"token" yaml:"token"`
	Org    string `mapstructure:"org" yaml:"org"`
	Bucket string `mapstructure:"bucket" yaml:"bucket" validate:"required"`

	// Measurement holds one point per telemetry topic.
	Measurement string `mapstructure:"measurement" yaml:"measurement" validate:"required"`
	// TopicPrefix is joined with latitude, longitude, altitude and speed.
	TopicPrefix string `mapstructure:"topic_prefix" yaml:"topic_prefix"`

	// Resample is the aggregation window.
	Resample time.Duration `mapstructure:"resample" yaml:"resample" validate:"gt=0"`
	// Margin widens the queried range on both ends.
	Margin time.Duration `mapstructure:"margin" yaml:"margin" validate:"gte=0"`
	// StationarySpeed is the speed under which consecutive samples collapse to one.
	StationarySpeed float64 `mapstructure:"stationary_speed" yaml:"stationary_speed" validate:"gte=0"`
}

func DefaultInfluxConfig() *InfluxConfig {
	return &InfluxConfig{
		URL:             "http://localhost:8086",
		Bucket:          "telegraf/autogen",
		Measurement:     "mqtt_consumer",
		TopicPrefix:     "gps_measure/",
		Resample:        5 * time.Second,
		Margin:          5 * time.Second,
		StationarySpeed: 0.1,
	}
}
