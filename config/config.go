package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const EnvPrefix = "BUSSTATUS_"

type Config struct {
	Server ServerConfig `yaml:"server"`
	Feeds  FeedsConfig  `yaml:"feeds"`
	Stops  StopsConfig  `yaml:"stops"`
	Model  ModelConfig  `yaml:"model"`
	Poll   PollConfig   `yaml:"poll"`
	Log    LogConfig    `yaml:"log"`
}

type ServerConfig struct {
	Host           string   `yaml:"host"`
	Port           int      `yaml:"port" validate:"min=1,max=65535"`
	AllowedOrigins []string `yaml:"allowed_origins"`
}

type FeedsConfig struct {
	VehiclePositionsURL string            `yaml:"vehicle_positions_url" validate:"required"`
	TripUpdatesURL      string            `yaml:"trip_updates_url" validate:"required"`
	Headers             map[string]string `yaml:"headers"`
	Timeout             time.Duration     `yaml:"timeout" validate:"min=0"`
	MaxSize             int               `yaml:"max_size" validate:"min=0"`

	// Replays feeds from a capture file instead of the network.
	// With Record set, missing feeds are fetched and added.
	Capture string `yaml:"capture"`
	Record  bool   `yaml:"record"`
}

type StopsConfig struct {
	Path        string `yaml:"path" validate:"required"`
	Storage     string `yaml:"storage" validate:"oneof=memory sqlite postgres"`
	SQLiteDir   string `yaml:"sqlite_dir"`
	PostgresDSN string `yaml:"postgres_dsn" validate:"required_if=Storage postgres"`
}

type ModelConfig struct {
	ScalerPath     string `yaml:"scaler_path" validate:"required"`
	ClassifierPath string `yaml:"classifier_path" validate:"required"`
}

type PollConfig struct {
	// Zero runs a single cycle.
	Interval time.Duration `yaml:"interval" validate:"min=0"`
}

type LogConfig struct {
	Level  string `yaml:"level" validate:"oneof=trace debug info warn error"`
	Format string `yaml:"format" validate:"oneof=console json"`
}

func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:           8000,
			AllowedOrigins: []string{"*"},
		},
		Feeds: FeedsConfig{
			VehiclePositionsURL: "https://drtonline.durhamregiontransit.com/gtfsrealtime/VehiclePositions",
			TripUpdatesURL:      "https://drtonline.durhamregiontransit.com/gtfsrealtime/TripUpdates",
			Timeout:             30 * time.Second,
			MaxSize:             1 << 20,
		},
		Stops: StopsConfig{
			Path:    "data/stops.txt",
			Storage: "memory",
		},
		Model: ModelConfig{
			ScalerPath:     "models/scaler.json",
			ClassifierPath: "models/decision_tree.json",
		},
		Poll: PollConfig{
			Interval: 5 * time.Second,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

// Builds the configuration from defaults, then the YAML file at path
// (skipped if empty), then a .env file in the working directory, then
// BUSSTATUS_* environment variables. The result is validated.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config: %w", err)
		}
	}

	err := godotenv.Load()
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("loading .env: %w", err)
	}

	err = cfg.ApplyEnv(os.LookupEnv)
	if err != nil {
		return nil, err
	}

	err = cfg.Validate()
	if err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) Validate() error {
	err := validator.New().Struct(c)
	if err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

// Overrides fields from environment variables, as returned by lookup.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(EnvPrefix + key); ok && v != "" {
			*dst = v
		}
	}

	var errs []error
	integer := func(key string, dst *int) {
		if v, ok := lookup(EnvPrefix + key); ok && v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s%s: %w", EnvPrefix, key, err))
				return
			}
			*dst = n
		}
	}
	duration := func(key string, dst *time.Duration) {
		if v, ok := lookup(EnvPrefix + key); ok && v != "" {
			d, err := time.ParseDuration(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s%s: %w", EnvPrefix, key, err))
				return
			}
			*dst = d
		}
	}

	str("HOST", &c.Server.Host)
	integer("PORT", &c.Server.Port)
	if v, ok := lookup(EnvPrefix + "ALLOWED_ORIGINS"); ok && v != "" {
		c.Server.AllowedOrigins = strings.Split(v, ",")
	}

	str("VEHICLE_POSITIONS_URL", &c.Feeds.VehiclePositionsURL)
	str("TRIP_UPDATES_URL", &c.Feeds.TripUpdatesURL)
	duration("FETCH_TIMEOUT", &c.Feeds.Timeout)
	integer("FETCH_MAX_SIZE", &c.Feeds.MaxSize)
	str("CAPTURE", &c.Feeds.Capture)

	str("STOPS_PATH", &c.Stops.Path)
	str("STORAGE", &c.Stops.Storage)
	str("SQLITE_DIR", &c.Stops.SQLiteDir)
	str("POSTGRES_DSN", &c.Stops.PostgresDSN)

	str("SCALER_PATH", &c.Model.ScalerPath)
	str("CLASSIFIER_PATH", &c.Model.ClassifierPath)

	duration("POLL_INTERVAL", &c.Poll.Interval)

	str("LOG_LEVEL", &c.Log.Level)
	str("LOG_FORMAT", &c.Log.Format)

	return errors.Join(errs...)
}
