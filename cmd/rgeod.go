package cmd

import (
	"log"
	"log/slog"

	"github.com/capsule/tripoverview/common"
	"github.com/capsule/tripoverview/daemon/rgeod"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// rgeodCmd represents the rgeod command
var rgeodCmd = &cobra.Command{
	Use:   "rgeod",
	Short: "Run reverse geocode RPC daemon",
	Long: `RGeoD is the reverse-geocoder daemon.

It loads the country boundaries once, and then looks countries up for you.
Other commands use it with geocoder.mode: rpc.
`,
	Run: func(cmd *cobra.Command, args []string) {
		setDefaultSlog(cmd, args)
		slog.Info("rgeod.Run")

		d, err := rgeod.NewDaemon(&config.RgeoD, nil)
		if err != nil {
			log.Fatalln(err)
		}
		errs := make(chan error, 1)
		go func() {
			errs <- d.Start()
		}()
		select {
		case err := <-errs:
			if err != nil {
				log.Fatalln(err)
			}
		case sig := <-common.Interrupted():
			slog.Info("rgeod interrupted", "signal", sig)
			if err := d.Stop(); err != nil {
				log.Fatalln(err)
			}
			<-errs
		}
	},
}

var rgeodListenerFlags = pflag.NewFlagSet("rgeod.listen", pflag.ContinueOnError)

func init() {
	rootCmd.AddCommand(rgeodCmd)

	// These flags configure the daemon listener only; clients read geocoder.rgeod.
	rgeodListenerFlags.String("rgeod.network", config.RgeoD.Network, "Network to listen on")
	rgeodListenerFlags.String("rgeod.address", config.RgeoD.Address, "Address to listen on")
	rgeodListenerFlags.String("rgeod.service", config.RgeoD.ServiceName,
		"RPC service name\nThis is used as MyServiceName.MethodName in RPC calls.")
	rgeodCmd.Flags().AddFlagSet(rgeodListenerFlags)

	for _, key := range []string{"rgeod.network", "rgeod.address", "rgeod.service"} {
		if err := viper.BindPFlag(key, rgeodListenerFlags.Lookup(key)); err != nil {
			log.Fatalln(err)
		}
	}
}
