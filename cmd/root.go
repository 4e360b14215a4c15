package cmd

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/capsule/tripoverview/api"
	"github.com/capsule/tripoverview/params"
	"github.com/capsule/tripoverview/rgeo"
	"github.com/capsule/tripoverview/tripdb"
	"github.com/mitchellh/go-homedir"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

var cfgFile string

// config is the effective configuration, loaded before any command runs.
var config = params.DefaultConfig()

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "tripoverview",
	Short: "Follow a vehicle trip from its telemetry",
	Long: `tripoverview stores the GPS samples of one vehicle trip,
derives its daily steps, sleeping stops and summary,
and renders them as maps.

Samples come from InfluxDB (update), NDJSON (import) or the command line (commit).
`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	pFlags := rootCmd.PersistentFlags()
	pFlags.StringVar(&cfgFile, "config", "", "config file (default is $HOME/.tripoverview.yaml)")
	pFlags.String("log-level", config.Log.Level, "Log level: debug, info, warn, error")
	pFlags.Bool("log-json", config.Log.JSON, "Log JSON lines instead of text")
	pFlags.String("log-file", config.Log.File, "Append logs to this file instead of stderr")
	pFlags.String("store", config.Store.Path, "SQLite trip store")

	for key, flag := range map[string]string{
		"log.level":  "log-level",
		"log.json":   "log-json",
		"log.file":   "log-file",
		"store.path": "store",
	} {
		if err := viper.BindPFlag(key, pFlags.Lookup(flag)); err != nil {
			log.Fatalln(err)
		}
	}
}

// initConfig layers the defaults, the config file, TRIPOVERVIEW_* environment
// variables and the flags into config.
func initConfig() {
	if err := loadConfig(viper.GetViper(), cfgFile); err != nil {
		fmt.Fprintln(os.Stderr, "Config:", err)
		os.Exit(1)
	}
}

func loadConfig(v *viper.Viper, file string) error {
	defaults, err := yaml.Marshal(params.DefaultConfig())
	if err != nil {
		return err
	}
	v.SetConfigType("yaml")
	if err := v.ReadConfig(bytes.NewReader(defaults)); err != nil {
		return err
	}

	if file == "" {
		home, err := homedir.Dir()
		if err == nil {
			file = filepath.Join(home, ".tripoverview.yaml")
			if _, err := os.Stat(file); err != nil {
				file = ""
			}
		}
	} else if file, err = homedir.Expand(file); err != nil {
		return err
	}
	if file != "" {
		v.SetConfigFile(file)
		if err := v.MergeInConfig(); err != nil {
			return fmt.Errorf("read %s: %w", file, err)
		}
	}

	v.SetEnvPrefix("TRIPOVERVIEW")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	c := params.DefaultConfig()
	if err := v.Unmarshal(c); err != nil {
		return err
	}
	if err := c.Validate(); err != nil {
		return err
	}
	config = c
	return nil
}

// setDefaultSlog installs the configured slog handler as the default logger.
func setDefaultSlog(cmd *cobra.Command, args []string) {
	var out io.Writer = os.Stderr
	if config.Log.File != "" {
		f, err := os.OpenFile(config.Log.File, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
		if err != nil {
			log.Fatalln(err)
		}
		out = f
	}
	var level slog.Level
	if err := level.UnmarshalText([]byte(config.Log.Level)); err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler = slog.NewTextHandler(out, opts)
	if config.Log.JSON {
		handler = slog.NewJSONHandler(out, opts)
	}
	slog.SetDefault(slog.New(handler).With("cmd", cmd.Name()))
}

// newGeocoder returns the configured geocoder and a closer releasing it.
func newGeocoder() (rgeo.Geocoder, func(), error) {
	nop := func() {}
	var g rgeo.Geocoder
	closer := nop
	switch config.Geocoder.Mode {
	case "none":
		return rgeo.Nop{}, nop, nil
	case "rpc":
		client, err := rgeo.NewRPCClient(&config.Geocoder.RgeoD)
		if err != nil {
			return nil, nop, err
		}
		g = client
		closer = func() { _ = client.Close() }
	default:
		local, err := rgeo.NewLocal()
		if err != nil {
			return nil, nop, err
		}
		g = local
	}
	return rgeo.NewCached(g, config.Geocoder.CacheSize), closer, nil
}

// openTrip opens the configured store and binds it to a trip.
// The returned closer releases the store and the geocoder.
func openTrip(ctx context.Context, withGeocoder bool) (*api.Trip, func(), error) {
	store, err := tripdb.Open(ctx, config.Store.Path, config.Store.Create)
	if err != nil {
		return nil, nil, err
	}
	if !withGeocoder {
		return api.NewTrip(store, nil, &config.Trip), func() { _ = store.Close() }, nil
	}
	g, closeGeocoder, err := newGeocoder()
	if err != nil {
		_ = store.Close()
		return nil, nil, err
	}
	closer := func() {
		closeGeocoder()
		_ = store.Close()
	}
	return api.NewTrip(store, g, &config.Trip), closer, nil
}
