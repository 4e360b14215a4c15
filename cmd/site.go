package cmd

import (
	"context"
	"log"
	"log/slog"
	"time"

	"github.com/capsule/tripoverview/app"
	"github.com/capsule/tripoverview/site"
	"github.com/capsule/tripoverview/state"
	"github.com/spf13/cobra"
)

var optSitePublish bool

// siteCmd represents the site command
var siteCmd = &cobra.Command{
	Use:   "site",
	Short: "Render the trip maps from the store",
	Long: `Site renders the offline and online maps, the GeoJSON trace and
its dated gzipped copy into site.output_dir.
With --publish the output directory is uploaded to site.s3.bucket.
`,
	Run: func(cmd *cobra.Command, args []string) {
		setDefaultSlog(cmd, args)
		ctx := context.Background()

		trip, closer, err := openTrip(ctx, false)
		if err != nil {
			log.Fatalln(err)
		}
		defer closer()

		now := time.Now()
		res, err := app.RenderSite(ctx, trip, &config.Site, now)
		if err != nil {
			log.Fatalln(err)
		}
		slog.Info("Rendered site", "dir", config.Site.OutputDir, "files", len(res.Files))

		if st, err := state.Open(config.Update.StatePath, false); err != nil {
			slog.Warn("Failed to open state, render time not recorded", "error", err)
		} else {
			if err := st.StoreLastRender(now); err != nil {
				slog.Warn("Failed to record render time", "error", err)
			}
			st.Close()
		}

		if !optSitePublish {
			return
		}
		up, err := site.NewUploader(config.Site.S3)
		if err != nil {
			log.Fatalln(err)
		}
		n, err := site.Publish(ctx, config.Site.OutputDir, config.Site.S3, up)
		if err != nil {
			log.Fatalln(err)
		}
		slog.Info("Published site", "bucket", config.Site.S3.Bucket, "files", n)
	},
}

func init() {
	rootCmd.AddCommand(siteCmd)
	siteCmd.Flags().BoolVar(&optSitePublish, "publish", false, "Upload the rendered site to S3")
}
