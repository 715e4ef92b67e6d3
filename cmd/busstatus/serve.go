package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/naimul214/busstatus/metrics"
	"github.com/naimul214/busstatus/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve [port]",
	Short: "Serves predictions over HTTP",
	Args:  cobra.RangeArgs(0, 1),
	RunE:  serve,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func serve(cmd *cobra.Command, args []string) error {
	if len(args) == 1 {
		port, err := strconv.Atoi(args[0])
		if err != nil || port < 1 || port > 65535 {
			return fmt.Errorf("invalid port %q", args[0])
		}
		cfg.Server.Port = port
	}

	catalog, err := LoadCatalog(cfg.Stops)
	if err != nil {
		return err
	}

	model, err := LoadModel(cfg.Model)
	if err != nil {
		return err
	}

	collector := metrics.NewCollector()
	manager, err := NewManager(catalog, model, collector)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	s := server.New(manager, server.Options{
		AllowedOrigins: cfg.Server.AllowedOrigins,
		Metrics:        collector,
	})

	return s.ListenAndServe(ctx, cfg.Addr())
}
