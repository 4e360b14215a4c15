package cmd

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/capsule/tripoverview/common"
	"github.com/spf13/cobra"
)

var (
	optStopsThreshold  float64
	optStopsSeparation float64
)

// stopsCmd represents the stops command
var stopsCmd = &cobra.Command{
	Use:   "stops",
	Short: "List the sleeping stops of the trip",
	Long: `Stops lists the last stationary sample of each day,
keeping only those at least --separation km from the previously listed stop.
`,
	Run: func(cmd *cobra.Command, args []string) {
		setDefaultSlog(cmd, args)
		ctx := context.Background()

		trip, closer, err := openTrip(ctx, false)
		if err != nil {
			log.Fatalln(err)
		}
		defer closer()

		cfg := trip.StopsConfig()
		if cmd.Flags().Changed("threshold") {
			cfg.SpeedThreshold = optStopsThreshold
		}
		if cmd.Flags().Changed("separation") {
			cfg.MinSeparationKm = optStopsSeparation
		}
		found, err := trip.Stops(ctx, cfg)
		if err != nil {
			log.Fatalln(err)
		}
		for i, s := range found {
			fmt.Printf("%3d  %s  %s, %s\n", i+1,
				s.Time().In(cfg.Location).Format(time.DateTime),
				common.FormatFixed(common.DecimalToFixed(s.Latitude, common.GPSPrecision4)),
				common.FormatFixed(common.DecimalToFixed(s.Longitude, common.GPSPrecision4)))
		}
	},
}

func init() {
	rootCmd.AddCommand(stopsCmd)
	defaults := config.Trip.Stops
	stopsCmd.Flags().Float64Var(&optStopsThreshold, "threshold", defaults.SpeedThreshold, "Speed at or under which a sample is stationary")
	stopsCmd.Flags().Float64Var(&optStopsSeparation, "separation", defaults.MinSeparationKm, "Minimum km between two stops")
}
