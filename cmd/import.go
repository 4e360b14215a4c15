package cmd

import (
	"context"
	"io"
	"log"
	"log/slog"
	"os"
	"strings"

	"github.com/capsule/tripoverview/catz"
	"github.com/capsule/tripoverview/common"
	"github.com/capsule/tripoverview/ingest"
	"github.com/spf13/cobra"
)

var optImportInflux bool

// importCmd represents the import command
var importCmd = &cobra.Command{
	Use:   "import [file]",
	Short: "Import samples from NDJSON",
	Long: `Import reads one JSON sample per line from the file, or stdin when none is given.

Recognized keys:

  timestamp, time, unix           RFC3339 or unix seconds (required)
  latitude, lat                   degrees
  longitude, lon, lng             degrees
  altitude, elevation             meters
  speed                           km/h
  km                              odometer km
  step                            step index
  country                         country label

Files ending with .gz are decompressed.
Lines that do not decode are skipped with a warning. Exact duplicates are dropped.
Samples are committed in one batch: either all of them are stored, or none.

With --influx, samples are written to the configured InfluxDB measurement
instead, in the layout the update command reads.

Examples:

  tripoverview import track.ndjson.gz
  cat track.ndjson | tripoverview import
  tripoverview import --influx track.ndjson
`,
	Args: cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		setDefaultSlog(cmd, args)

		ctx, stop := common.InterruptContext(context.Background())
		defer stop()

		var r io.Reader = os.Stdin
		if len(args) == 1 {
			f, err := openImport(args[0])
			if err != nil {
				log.Fatalln(err)
			}
			defer f.Close()
			r = f
		}

		samples, err := ingest.ReadNDJSON(ctx, r)
		if err != nil {
			log.Fatalln(err)
		}
		slog.Info("Read samples", "count", len(samples))

		if optImportInflux {
			src := ingest.NewInfluxSource(&config.Influx)
			defer src.Close()
			if err := src.Write(ctx, samples); err != nil {
				log.Fatalln(err)
			}
			return
		}

		trip, closer, err := openTrip(ctx, true)
		if err != nil {
			log.Fatalln(err)
		}
		defer closer()
		n, err := trip.CommitBatch(ctx, samples)
		if err != nil {
			log.Fatalln(err)
		}
		slog.Info("Import done", "committed", n)
	},
}

// openImport opens name, decompressing it when it ends with .gz.
func openImport(name string) (io.ReadCloser, error) {
	if strings.HasSuffix(name, ".gz") {
		return catz.OpenGZ(name)
	}
	return os.Open(name)
}

func init() {
	rootCmd.AddCommand(importCmd)
	importCmd.Flags().BoolVar(&optImportInflux, "influx", false, "Write samples to InfluxDB instead of the trip store")
}
