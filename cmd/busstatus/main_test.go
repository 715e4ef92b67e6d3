package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/naimul214/busstatus/config"
)

func TestParseHeaders(t *testing.T) {
	parsed, err := parseHeaders([]string{"Authorization: Bearer abc", " X-Key :v:1"})
	require.NoError(t, err)
	assert.Equal(t, map[string]string{
		"Authorization": "Bearer abc",
		"X-Key":         "v:1",
	}, parsed)

	_, err = parseHeaders([]string{"no-colon"})
	assert.Error(t, err)
}

func TestSetupLogging(t *testing.T) {
	defer func(l zerolog.Logger) { log.Logger = l }(log.Logger)

	require.NoError(t, setupLogging(config.LogConfig{Level: "debug", Format: "json"}))
	assert.Equal(t, zerolog.DebugLevel, log.Logger.GetLevel())

	require.NoError(t, setupLogging(config.LogConfig{Level: "warn", Format: "console"}))
	assert.Equal(t, zerolog.WarnLevel, log.Logger.GetLevel())

	assert.Error(t, setupLogging(config.LogConfig{Level: "loud", Format: "json"}))
	assert.Error(t, setupLogging(config.LogConfig{Level: "info", Format: "xml"}))
}

func TestLoadCatalog(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "stops.txt")
	require.NoError(t, os.WriteFile(path, []byte(
		"stop_id,stop_name,stop_lat,stop_lon\n"+
			"S1,Stop One,43.0,-79.0\n"+
			"S2,Stop Two,43.01,-79.0\n",
	), 0644))

	for _, c := range []config.StopsConfig{
		{Path: path, Storage: "memory"},
		{Path: path, Storage: "sqlite"},
		{Path: path, Storage: "sqlite", SQLiteDir: dir},
	} {
		catalog, err := LoadCatalog(c)
		require.NoError(t, err, c.Storage)
		assert.Equal(t, 2, catalog.Size())

		stop, err := catalog.Stop("S2")
		require.NoError(t, err)
		assert.Equal(t, "Stop Two", stop.Name)
	}

	_, err := LoadCatalog(config.StopsConfig{Path: filepath.Join(dir, "missing.txt"), Storage: "memory"})
	assert.Error(t, err)

	_, err = openStorage(config.StopsConfig{Storage: "redis"})
	assert.Error(t, err)
}

func TestLoadModel(t *testing.T) {
	service, err := LoadModel(config.ModelConfig{
		ScalerPath:     "../../predict/testdata/scaler.json",
		ClassifierPath: "../../predict/testdata/decision_tree.json",
	})
	require.NoError(t, err)
	assert.Equal(t, 11, len(service.Columns))

	_, err = LoadModel(config.ModelConfig{
		ScalerPath:     "missing.json",
		ClassifierPath: "../../predict/testdata/decision_tree.json",
	})
	assert.Error(t, err)
}

func TestNewManager(t *testing.T) {
	defer func(c *config.Config) { cfg = c }(cfg)
	cfg = config.Default()
	cfg.Feeds.VehiclePositionsURL = "http://example.com/vp"
	cfg.Feeds.Headers = map[string]string{"X-Key": "abc"}

	m, err := NewManager(nil, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, "http://example.com/vp", m.VehiclePositionsURL)
	assert.Equal(t, cfg.Feeds.TripUpdatesURL, m.TripUpdatesURL)
	assert.Equal(t, "abc", m.Headers["X-Key"])

	cfg.Feeds.Capture = filepath.Join(t.TempDir(), "capture.json")
	m, err = NewManager(nil, nil, nil)
	require.NoError(t, err)
	assert.NotNil(t, m.Downloader)
}
