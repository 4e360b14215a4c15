package cmd

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
)

// checkCmd represents the check command
var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Check that stored timestamps increase in insertion order",
	Long: `Check lists every stored row whose timestamp does not follow the row
inserted before it, and exits with status 1 when any is found.
`,
	Run: func(cmd *cobra.Command, args []string) {
		setDefaultSlog(cmd, args)
		ctx := context.Background()

		trip, closer, err := openTrip(ctx, false)
		if err != nil {
			log.Fatalln(err)
		}
		found, err := trip.CheckConsistency(ctx)
		closer()
		if err != nil {
			log.Fatalln(err)
		}
		for _, inc := range found {
			fmt.Println(inc)
		}
		if len(found) > 0 {
			slog.Error("Store is inconsistent", "rows", len(found))
			os.Exit(1)
		}
		slog.Info("Store is consistent")
	},
}

// laststepCmd represents the laststep command
var laststepCmd = &cobra.Command{
	Use:   "laststep",
	Short: "Print the step of the latest sample",
	Run: func(cmd *cobra.Command, args []string) {
		setDefaultSlog(cmd, args)
		ctx := context.Background()

		trip, closer, err := openTrip(ctx, false)
		if err != nil {
			log.Fatalln(err)
		}
		defer closer()
		step, err := trip.LastStep(ctx)
		if err != nil {
			log.Fatalln(err)
		}
		fmt.Println(step)
	},
}

func init() {
	rootCmd.AddCommand(checkCmd)
	rootCmd.AddCommand(laststepCmd)
}
