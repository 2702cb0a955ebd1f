package cmd

import (
	"context"
	"fmt"
	"time"

	"LiveRadio/core/radio"
	"LiveRadio/logger"
	"LiveRadio/server"

	"github.com/spf13/cobra"
)

var catalogCmd = &cobra.Command{
	Use:   "catalog",
	Short: "List the track catalog with parsed durations",
	Run: func(cmd *cobra.Command, args []string) {
		source, err := server.NewCatalogSource(cfg)
		if err != nil {
			logger.Fatal("failed to open catalog source", logger.ErrorField(err))
		}

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		catalog := radio.NewCatalog(source, nil)
		if err := catalog.Refresh(ctx); err != nil {
			logger.Fatal("failed to list catalog", logger.ErrorField(err))
		}

		total := 0
		for _, e := range catalog.Describe(ctx) {
			fmt.Printf("%4d  %-40s %8s  %s\n", e.Index, e.Name, e.Duration, e.Title)
			total += radio.ParseDuration(e.Duration)
		}
		fmt.Printf("\n%d tracks, %s total\n", catalog.Len(), radio.FormatDuration(total))
	},
}

func init() {
	rootCmd.AddCommand(catalogCmd)
}
