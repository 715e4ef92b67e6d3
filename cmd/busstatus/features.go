package main

import (
	"context"
	"fmt"
	"os"

	"github.com/gocarina/gocsv"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/naimul214/busstatus"
)

var featuresCmd = &cobra.Command{
	Use:   "features",
	Short: "Fetches both feeds once and writes the feature records as CSV",
	Args:  cobra.NoArgs,
	RunE:  features,
}

func init() {
	rootCmd.AddCommand(featuresCmd)
}

func features(cmd *cobra.Command, args []string) error {
	catalog, err := LoadCatalog(cfg.Stops)
	if err != nil {
		return err
	}

	// Building features needs no model.
	manager, err := NewManager(catalog, nil, nil)
	if err != nil {
		return err
	}

	ctx := context.Background()
	vehicles, err := manager.FetchFeed(ctx, busstatus.FeedVehiclePositions)
	if err != nil {
		return err
	}
	trips, err := manager.FetchFeed(ctx, busstatus.FeedTripUpdates)
	if err != nil {
		return err
	}

	records, stats, err := manager.BuildFeatures(vehicles, trips)
	if err != nil {
		return err
	}

	log.Info().Interface("stats", stats).Msg("built features")

	if len(records) == 0 {
		return fmt.Errorf("no vehicles could be matched to an upcoming stop")
	}

	return gocsv.Marshal(records, os.Stdout)
}
