package params

import (
	"os"
	"path/filepath"
	"time"
)

// StepPolicy decides how samples without an explicit step are assigned one.
type StepPolicy string

const (
	// StepPolicyManual keeps the previous step.
	StepPolicyManual StepPolicy = "manual"
	// StepPolicyDaily starts a new step on each new calendar day.
	StepPolicyDaily StepPolicy = "daily"
)

const (
	KilometerSourceGPS      = "GPS"
	KilometerSourceOdometer = "ODOMETER"
)

var DatadirRoot = func() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), "tripoverview")
	}
	return filepath.Join(home, ".tripoverview")
}()

type StoreConfig struct {
	// Path is the SQLite file holding the trip_data table.
	Path string `mapstructure:"path" yaml:"path" validate:"required"`
	// Create allows creating the file when it does not exist.
	Create bool `mapstructure:"create" yaml:"create"`
}

func DefaultStoreConfig() *StoreConfig {
	return &StoreConfig{
		Path:   filepath.Join(DatadirRoot, "trip.db"),
		Create: true,
	}
}

type TripConfig struct {
	// KilometerSource is GPS to accumulate km from positions,
	// or ODOMETER to trust the km reported with each sample.
	KilometerSource string     `mapstructure:"km_source" yaml:"km_source" validate:"oneof=GPS ODOMETER"`
	StepPolicy      StepPolicy `mapstructure:"step_policy" yaml:"step_policy" validate:"oneof=manual daily"`

	// Timezone names the location used for calendar days, eg. "Europe/Paris".
	Timezone string `mapstructure:"timezone" yaml:"timezone" validate:"timezone"`

	// GeocodeBucket is the time span sharing one geocoder lookup in batch commits.
	GeocodeBucket time.Duration `mapstructure:"geocode_bucket" yaml:"geocode_bucket" validate:"gt=0"`

	// KmPrecision is the number of decimals kept for GPS km.
	KmPrecision int `mapstructure:"km_precision" yaml:"km_precision" validate:"gte=0,lte=6"`

	Stops StopsConfig `mapstructure:"stops" yaml:"stops"`
}

type StopsConfig struct {
	SpeedThreshold  float64 `mapstructure:"speed_threshold" yaml:"speed_threshold" validate:"gt=0"`
	MinSeparationKm float64 `mapstructure:"min_separation_km" yaml:"min_separation_km" validate:"gt=0"`
}

func DefaultTripConfig() *TripConfig {
	return &TripConfig{
		KilometerSource: KilometerSourceGPS,
		StepPolicy:      StepPolicyDaily,
		Timezone:        "UTC",
		GeocodeBucket:   6 * time.Hour,
		KmPrecision:     2,
		Stops: StopsConfig{
			SpeedThreshold:  1,
			MinSeparationKm: 10,
		},
	}
}

// Location returns the configured time zone, UTC if unset or unknown.
func (c *TripConfig) Location() *time.Location {
	if c == nil || c.Timezone == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}
