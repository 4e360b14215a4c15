package cmd

import (
	"context"
	"log"
	"log/slog"
	"math"
	"time"

	"github.com/capsule/tripoverview/types/sample"
	"github.com/spf13/cobra"
)

var (
	optCommitLat     float64
	optCommitLon     float64
	optCommitAlt     float64
	optCommitSpeed   float64
	optCommitKm      float64
	optCommitTime    string
	optCommitCountry string
	optCommitStep    int
	optCommitNewStep bool
)

// commitCmd represents the commit command
var commitCmd = &cobra.Command{
	Use:   "commit",
	Short: "Commit one position to the trip",
	Long: `Commit one sample to the trip store.

Unset values are stored as missing. With GPS kilometers the km flag is ignored
and the distance from the latest sample is accumulated instead.
A blank country is reverse geocoded. Without --step the configured step policy
assigns one; --new-step starts the next step.

Examples:

  tripoverview commit --lat 45.76 --lon 4.84 --speed 0 --time 2023-07-01T19:00:00+02:00
  tripoverview commit --lat 44.2 --lon 6.1 --new-step
`,
	Run: func(cmd *cobra.Command, args []string) {
		setDefaultSlog(cmd, args)
		ctx := context.Background()

		ts := time.Now()
		if optCommitTime != "" {
			var err error
			ts, err = time.Parse(time.RFC3339, optCommitTime)
			if err != nil {
				log.Fatalln(err)
			}
		}
		s := sample.New(ts.Unix())
		s.Latitude = optCommitLat
		s.Longitude = optCommitLon
		s.Altitude = optCommitAlt
		s.Speed = optCommitSpeed
		s.Km = optCommitKm
		s.Country = optCommitCountry
		s.Step = optCommitStep

		trip, closer, err := openTrip(ctx, true)
		if err != nil {
			log.Fatalln(err)
		}
		defer closer()

		if optCommitNewStep {
			s.Step, err = trip.NextStep(ctx)
			if err != nil {
				log.Fatalln(err)
			}
		}
		if err := trip.CommitPosition(ctx, s); err != nil {
			log.Fatalln(err)
		}
		slog.Info("Committed position", "time", s.Time(), "lat", s.Latitude, "lon", s.Longitude)
	},
}

func init() {
	rootCmd.AddCommand(commitCmd)

	flags := commitCmd.Flags()
	flags.Float64Var(&optCommitLat, "lat", math.NaN(), "Latitude in degrees")
	flags.Float64Var(&optCommitLon, "lon", math.NaN(), "Longitude in degrees")
	flags.Float64Var(&optCommitAlt, "alt", math.NaN(), "Altitude in meters")
	flags.Float64Var(&optCommitSpeed, "speed", math.NaN(), "Speed in km/h, -1 when the device does not know")
	flags.Float64Var(&optCommitKm, "km", math.NaN(), "Odometer km, used with the ODOMETER km source")
	flags.StringVar(&optCommitTime, "time", "", "Sample time, RFC3339 (default now)")
	flags.StringVar(&optCommitCountry, "country", "", "Country label (default reverse geocoded)")
	flags.IntVar(&optCommitStep, "step", sample.NoStep, "Step index (default by step policy)")
	flags.BoolVar(&optCommitNewStep, "new-step", false, "Start a new step with this sample")
	commitCmd.MarkFlagsMutuallyExclusive("step", "new-step")
}
