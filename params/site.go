package params

import (
	"path/filepath"
	"time"
)

type SiteConfig struct {
	OutputDir string `mapstructure:"output_dir" yaml:"output_dir" validate:"required"`
	Title     string `mapstructure:"title" yaml:"title"`

	// OfflineTileURL is the tile template of the local tile server.
	OfflineTileURL string `mapstructure:"offline_tile_url" yaml:"offline_tile_url"`
	// OnlineTileURL is the public tile template.
	OnlineTileURL string `mapstructure:"online_tile_url" yaml:"online_tile_url" validate:"required"`

	// S3 uploads the rendered site when Bucket is set.
	S3 S3Config `mapstructure:"s3" yaml:"s3"`
}

type S3Config struct {
	Bucket string `mapstructure:"bucket" yaml:"bucket"`
	Region string `mapstructure:"region" yaml:"region"`
	Prefix string `mapstructure:"prefix" yaml:"prefix"`
}

func DefaultSiteConfig() *SiteConfig {
	return &SiteConfig{
		OutputDir:      filepath.Join(DatadirRoot, "site"),
		Title:          "Trip overview",
		OfflineTileURL: "http://localhost:8080/styles/basic/{z}/{x}/{y}.png",
		OnlineTileURL:  "https://tile.openstreetmap.org/{z}/{x}/{y}.png",
		S3: S3Config{
			Region: "us-east-1",
		},
	}
}

type UpdateConfig struct {
	// StatePath is the bbolt file remembering the last update.
	StatePath string `mapstructure:"state_path" yaml:"state_path" validate:"required"`
	// MinInterval is the least time between two updates.
	MinInterval time.Duration `mapstructure:"min_interval" yaml:"min_interval" validate:"gte=0"`
	// FirstLookback is used as last update when none was recorded.
	FirstLookback time.Duration `mapstructure:"first_lookback" yaml:"first_lookback" validate:"gt=0"`
}

func DefaultUpdateConfig() *UpdateConfig {
	return &UpdateConfig{
		StatePath:     filepath.Join(DatadirRoot, "state.db"),
		MinInterval:   12 * time.Hour,
		FirstLookback: 24 * time.Hour,
	}
}
