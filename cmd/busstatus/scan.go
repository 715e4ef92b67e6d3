package main

import (
	"context"
	"os"
	"os/signal"
	"sort"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/naimul214/busstatus"
	"github.com/naimul214/busstatus/metrics"
)

var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Polls the realtime feeds and logs predictions",
	Args:  cobra.NoArgs,
	RunE:  scan,
}

var interval time.Duration

func init() {
	scanCmd.Flags().DurationVarP(&interval, "interval", "i", -1, "Time between cycles (0 runs once, default from config)")
	rootCmd.AddCommand(scanCmd)
}

func scan(cmd *cobra.Command, args []string) error {
	if interval >= 0 {
		cfg.Poll.Interval = interval
	}

	catalog, err := LoadCatalog(cfg.Stops)
	if err != nil {
		return err
	}

	model, err := LoadModel(cfg.Model)
	if err != nil {
		return err
	}

	manager, err := NewManager(catalog, model, metrics.NewCollector())
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	poller := &busstatus.Poller{
		Manager:  manager,
		Interval: cfg.Poll.Interval,
		Handle:   logResult,
	}
	poller.Run(ctx)

	return nil
}

func logResult(result *busstatus.Result, err error) {
	if err != nil {
		log.Error().Err(err).Msg("cycle failed")
		return
	}

	ids := make([]string, 0, len(result.Predictions))
	for id := range result.Predictions {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	for _, id := range ids {
		log.Info().
			Str("cycle", result.ID.String()).
			Str("bus_id", id).
			Str("status", string(result.Predictions[id])).
			Msg("prediction")
	}
}
