package cmd

import (
	"context"
	"log"
	"log/slog"

	"github.com/capsule/tripoverview/common"
	"github.com/capsule/tripoverview/daemon/webd"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// webdCmd represents the webd command
var webdCmd = &cobra.Command{
	Use:   "webd",
	Short: "Start the webserver",
	Long: `Serves the trip summary, trace and stops as JSON under /api,
and the rendered site from webd.site_dir.`,
	Run: func(cmd *cobra.Command, args []string) {
		setDefaultSlog(cmd, args)
		slog.Info("webd.Run")

		ctx, stop := common.InterruptContext(context.Background())
		defer stop()

		trip, closer, err := openTrip(ctx, false)
		if err != nil {
			log.Fatalln(err)
		}
		defer closer()

		server := webd.NewWebDaemon(&config.Web, trip)
		if err := server.Run(ctx); err != nil {
			log.Fatalln(err)
		}
	},
}

func init() {
	rootCmd.AddCommand(webdCmd)

	flags := webdCmd.Flags()
	flags.String("address", config.Web.Address, "HTTP address to listen on")
	flags.String("site-dir", config.Web.SiteDir, "Directory served at /")
	for key, flag := range map[string]string{
		"webd.address":  "address",
		"webd.site_dir": "site-dir",
	} {
		if err := viper.BindPFlag(key, flags.Lookup(flag)); err != nil {
			log.Fatalln(err)
		}
	}
}
