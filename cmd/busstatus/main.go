package main

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/naimul214/busstatus"
	"github.com/naimul214/busstatus/config"
	"github.com/naimul214/busstatus/downloader"
	"github.com/naimul214/busstatus/metrics"
	"github.com/naimul214/busstatus/predict"
	"github.com/naimul214/busstatus/storage"
)

var rootCmd = &cobra.Command{
	Use:               "busstatus",
	Short:             "Bus arrival status predictor",
	Long:              "Predicts whether buses will be early, on time or late from GTFS Realtime feeds",
	SilenceUsage:      true,
	PersistentPreRunE: setup,
}

var (
	configPath string
	logLevel   string
	logFormat  string
	headers    []string

	cfg *config.Config
)

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "YAML config file")
	rootCmd.PersistentFlags().StringVarP(&logLevel, "log-level", "", "", "Log level (trace, debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVarP(&logFormat, "log-format", "", "", "Log format (console, json)")
	rootCmd.PersistentFlags().StringSliceVarP(
		&headers,
		"header",
		"",
		[]string{},
		"GTFS Realtime HTTP header",
	)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func setup(cmd *cobra.Command, args []string) error {
	var err error
	cfg, err = config.Load(configPath)
	if err != nil {
		return err
	}

	if logLevel != "" {
		cfg.Log.Level = logLevel
	}
	if logFormat != "" {
		cfg.Log.Format = logFormat
	}
	err = setupLogging(cfg.Log)
	if err != nil {
		return err
	}

	parsed, err := parseHeaders(headers)
	if err != nil {
		return fmt.Errorf("invalid header: %w", err)
	}
	if cfg.Feeds.Headers == nil {
		cfg.Feeds.Headers = map[string]string{}
	}
	for k, v := range parsed {
		cfg.Feeds.Headers[k] = v
	}

	return nil
}

func setupLogging(c config.LogConfig) error {
	level, err := zerolog.ParseLevel(c.Level)
	if err != nil {
		return fmt.Errorf("invalid log level: %w", err)
	}

	switch c.Format {
	case "json":
		log.Logger = zerolog.New(os.Stderr).With().Timestamp().Logger()
	case "console", "":
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	default:
		return fmt.Errorf("invalid log format %q", c.Format)
	}
	log.Logger = log.Logger.Level(level)

	return nil
}

func parseHeaders(headers []string) (map[string]string, error) {
	parsed := map[string]string{}
	for _, header := range headers {
		parts := strings.SplitN(header, ":", 2)
		if len(parts) != 2 {
			return nil, fmt.Errorf("'%s' is not on form <key>:<value>", header)
		}
		parsed[strings.TrimSpace(parts[0])] = strings.TrimSpace(parts[1])
	}
	return parsed, nil
}

func openStorage(c config.StopsConfig) (storage.Storage, error) {
	switch c.Storage {
	case "memory", "":
		return storage.NewMemoryStorage(), nil
	case "sqlite":
		if c.SQLiteDir == "" {
			return storage.NewSQLiteStorage()
		}
		return storage.NewSQLiteStorage(storage.SQLiteConfig{OnDisk: true, Directory: c.SQLiteDir})
	case "postgres":
		return storage.NewPSQLStorage(c.PostgresDSN, false)
	}
	return nil, fmt.Errorf("unknown storage %q", c.Storage)
}

// Loads stops.txt (or a GTFS zip) into the configured storage.
func LoadCatalog(c config.StopsConfig) (*busstatus.Catalog, error) {
	s, err := openStorage(c)
	if err != nil {
		return nil, fmt.Errorf("opening storage: %w", err)
	}

	data, err := os.ReadFile(c.Path)
	if err != nil {
		return nil, fmt.Errorf("reading stops: %w", err)
	}

	catalog, err := busstatus.LoadCatalog(s, "stops", data)
	if err != nil {
		return nil, fmt.Errorf("loading stops: %w", err)
	}

	log.Info().Str("path", c.Path).Int("stops", catalog.Size()).Msg("loaded stop catalog")

	return catalog, nil
}

// Loads the model artifacts. A missing or broken model is fatal to
// anything that predicts.
func LoadModel(c config.ModelConfig) (*predict.Service, error) {
	service, err := predict.Load(c.ScalerPath, c.ClassifierPath)
	if err != nil {
		return nil, err
	}

	log.Info().
		Str("scaler", c.ScalerPath).
		Str("classifier", c.ClassifierPath).
		Strs("columns", service.Columns).
		Msg("loaded model")

	return service, nil
}

func NewManager(
	catalog *busstatus.Catalog,
	predictor busstatus.Predictor,
	collector *metrics.Collector,
) (*busstatus.Manager, error) {
	manager := busstatus.NewManager(catalog, predictor)
	manager.VehiclePositionsURL = cfg.Feeds.VehiclePositionsURL
	manager.TripUpdatesURL = cfg.Feeds.TripUpdatesURL
	manager.Headers = cfg.Feeds.Headers
	manager.FetchTimeout = cfg.Feeds.Timeout
	manager.FetchMaxSize = cfg.Feeds.MaxSize
	manager.Metrics = collector

	if cfg.Feeds.Capture != "" {
		fs, err := downloader.NewFilesystem(cfg.Feeds.Capture, cfg.Feeds.Record)
		if err != nil {
			return nil, fmt.Errorf("opening capture: %w", err)
		}
		manager.Downloader = fs
	}

	return manager, nil
}
