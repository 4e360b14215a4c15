package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/spf13/cobra"
)

var optDescribeJSON bool

// describeCmd represents the describe command
var describeCmd = &cobra.Command{
	Use:   "describe",
	Short: "Print the trip summary",
	Run: func(cmd *cobra.Command, args []string) {
		setDefaultSlog(cmd, args)
		ctx := context.Background()

		trip, closer, err := openTrip(ctx, false)
		if err != nil {
			log.Fatalln(err)
		}
		defer closer()

		sum, err := trip.Describe(ctx)
		if err != nil {
			log.Fatalln(err)
		}
		if optDescribeJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			if err := enc.Encode(sum); err != nil {
				log.Fatalln(err)
			}
			return
		}
		fmt.Println(sum.Text)
		fmt.Printf("From %s to %s\n",
			sum.Start.In(trip.Config().Location()).Format(time.DateTime),
			sum.End.In(trip.Config().Location()).Format(time.DateTime))
		for _, c := range sum.Countries {
			fmt.Println(" -", c)
		}
	},
}

func init() {
	rootCmd.AddCommand(describeCmd)
	describeCmd.Flags().BoolVar(&optDescribeJSON, "json", false, "Print the summary as JSON")
}
