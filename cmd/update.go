package cmd

import (
	"context"
	"log"
	"log/slog"
	"time"

	"github.com/capsule/tripoverview/app"
	"github.com/capsule/tripoverview/ingest"
	"github.com/capsule/tripoverview/site"
	"github.com/capsule/tripoverview/state"
	"github.com/spf13/cobra"
)

var optUpdateForce bool

// updateCmd represents the update command
var updateCmd = &cobra.Command{
	Use:   "update",
	Short: "Pull new telemetry from InfluxDB and render the site",
	Long: `Update runs one update cycle, meant to be run periodically (eg. from cron).

When more than update.min_interval passed since the last update,
samples since the last update (or the last update.first_lookback on first run)
are fetched from InfluxDB, cleaned and committed in one batch.
The site is then rendered, uploaded to S3 when site.s3.bucket is set,
and the update time is recorded. Otherwise nothing happens.
`,
	Run: func(cmd *cobra.Command, args []string) {
		setDefaultSlog(cmd, args)
		ctx := context.Background()

		st, err := state.Open(config.Update.StatePath, false)
		if err != nil {
			log.Fatalln(err)
		}
		defer st.Close()

		trip, closer, err := openTrip(ctx, true)
		if err != nil {
			log.Fatalln(err)
		}
		defer closer()

		src := ingest.NewInfluxSource(&config.Influx)
		defer src.Close()

		updateConfig := config.Update
		if optUpdateForce {
			updateConfig.MinInterval = 0
		}
		u := &app.Updater{
			Trip:            trip,
			State:           st,
			Source:          src,
			Config:          &updateConfig,
			Site:            &config.Site,
			StationarySpeed: config.Influx.StationarySpeed,
		}
		if config.Site.S3.Bucket != "" {
			u.Uploader, err = site.NewUploader(config.Site.S3)
			if err != nil {
				log.Fatalln(err)
			}
		}

		report, err := u.Run(ctx, time.Now())
		if err != nil {
			log.Fatalln(err)
		}
		if !report.Skipped {
			slog.Info("Update done", "since", report.Since, "fetched", report.Fetched,
				"committed", report.Committed, "files", len(report.Files), "uploaded", report.Uploaded)
		}
	},
}

func init() {
	rootCmd.AddCommand(updateCmd)
	updateCmd.Flags().BoolVar(&optUpdateForce, "force", false, "Update even within the minimum interval")
}
