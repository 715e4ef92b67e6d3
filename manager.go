package busstatus

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/sourcegraph/conc/pool"

	"github.com/naimul214/busstatus/downloader"
	"github.com/naimul214/busstatus/metrics"
	"github.com/naimul214/busstatus/model"
	"github.com/naimul214/busstatus/parse"
)

const (
	DefaultVehiclePositionsURL = "https://drtonline.durhamregiontransit.com/gtfsrealtime/VehiclePositions"
	DefaultTripUpdatesURL      = "https://drtonline.durhamregiontransit.com/gtfsrealtime/TripUpdates"
	DefaultFetchTimeout        = 30 * time.Second
	DefaultFetchMaxSize        = 1 << 20 // 1 MB
)

type FeedKind int

const (
	FeedVehiclePositions FeedKind = iota
	FeedTripUpdates
)

func (k FeedKind) String() string {
	switch k {
	case FeedVehiclePositions:
		return "vehicle_positions"
	case FeedTripUpdates:
		return "trip_updates"
	}
	return fmt.Sprintf("feed(%d)", int(k))
}

type StopResolver interface {
	Stop(id string) (*model.Stop, error)
}

type Predictor interface {
	Predict(records []*model.FeatureRecord) (model.Predictions, error)
}

type ResultStatus string

const (
	ResultOK     ResultStatus = "ok"
	ResultNoData ResultStatus = "no_data"
)

type Stats struct {
	CorrelationStats

	UnknownStop    int `json:"unknown_stop"`
	MissingArrival int `json:"missing_arrival"`
	Records        int `json:"records"`
}

// Outcome of one cycle. Owned by the caller; the Manager keeps no
// reference to it.
type Result struct {
	ID          uuid.UUID
	Status      ResultStatus
	FeedTime    int64
	Records     []*model.FeatureRecord
	Predictions model.Predictions
	Stats       Stats
	StartedAt   time.Time
	Duration    time.Duration
}

// Manager runs prediction cycles. It holds no per cycle state, so
// RunCycle may be called concurrently.
type Manager struct {
	VehiclePositionsURL string
	TripUpdatesURL      string
	Headers             map[string]string
	FetchTimeout        time.Duration
	FetchMaxSize        int
	Downloader          downloader.Downloader
	Metrics             *metrics.Collector

	catalog   StopResolver
	predictor Predictor
}

func NewManager(catalog StopResolver, predictor Predictor) *Manager {
	return &Manager{
		VehiclePositionsURL: DefaultVehiclePositionsURL,
		TripUpdatesURL:      DefaultTripUpdatesURL,
		FetchTimeout:        DefaultFetchTimeout,
		FetchMaxSize:        DefaultFetchMaxSize,
		Downloader:          downloader.HTTP{},

		catalog:   catalog,
		predictor: predictor,
	}
}

func (m *Manager) url(kind FeedKind) string {
	switch kind {
	case FeedVehiclePositions:
		return m.VehiclePositionsURL
	case FeedTripUpdates:
		return m.TripUpdatesURL
	}
	return ""
}

// Single attempt, bounded by FetchTimeout.
func (m *Manager) fetch(ctx context.Context, kind FeedKind) ([]byte, error) {
	url := m.url(kind)
	if url == "" {
		return nil, fmt.Errorf("%w: %s: no url", ErrFetch, kind)
	}

	if m.FetchTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, m.FetchTimeout)
		defer cancel()
	}

	start := time.Now()
	data, err := m.Downloader.Get(ctx, url, m.Headers, downloader.GetOptions{
		Timeout: m.FetchTimeout,
		MaxSize: m.FetchMaxSize,
	})
	m.Metrics.ObserveFetch(kind.String(), time.Since(start), err)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrFetch, kind, err)
	}

	return data, nil
}

// Downloads and decodes a single feed.
func (m *Manager) FetchFeed(ctx context.Context, kind FeedKind) (*model.Feed, error) {
	data, err := m.fetch(ctx, kind)
	if err != nil {
		return nil, err
	}

	feed, err := parse.ParseFeed(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrDecode, kind, err)
	}

	return feed, nil
}

// Fetches both feeds concurrently. The first failure cancels the
// other fetch.
func (m *Manager) fetchFeeds(ctx context.Context) ([]byte, []byte, error) {
	var vehicleData, tripData []byte

	p := pool.New().WithContext(ctx).WithCancelOnError().WithFirstError()
	p.Go(func(ctx context.Context) error {
		data, err := m.fetch(ctx, FeedVehiclePositions)
		vehicleData = data
		return err
	})
	p.Go(func(ctx context.Context) error {
		data, err := m.fetch(ctx, FeedTripUpdates)
		tripData = data
		return err
	})

	err := p.Wait()
	if err != nil {
		return nil, nil, err
	}

	return vehicleData, tripData, nil
}

// Resolves next stops and computes feature records. Deterministic
// for identical feeds. Per vehicle failures are counted in Stats;
// only catalog backend errors fail the call.
func (m *Manager) BuildFeatures(vehicles *model.Feed, trips *model.Feed) ([]*model.FeatureRecord, Stats, error) {
	correlations, cstats := Correlate(vehicles, trips)
	stats := Stats{CorrelationStats: cstats}

	feedTime := int64(vehicles.Header.Timestamp)
	records := []*model.FeatureRecord{}

	for _, c := range correlations {
		stop, err := m.catalog.Stop(c.NextStop.StopID)
		if errors.Is(err, ErrUnknownStop) {
			stats.UnknownStop++
			log.Debug().Str("vehicle", c.VehicleID).Str("stop", c.NextStop.StopID).Msg("unknown stop")
			continue
		}
		if err != nil {
			return nil, stats, fmt.Errorf("resolving stop: %w", err)
		}

		record, err := ComputeFeatures(feedTime, c, stop)
		if errors.Is(err, ErrMissingArrivalTime) {
			stats.MissingArrival++
			log.Debug().Str("vehicle", c.VehicleID).Str("stop", c.NextStop.StopID).Msg("missing arrival time")
			continue
		}
		if err != nil {
			return nil, stats, fmt.Errorf("computing features: %w", err)
		}

		records = append(records, record)
	}

	stats.Records = len(records)
	return records, stats, nil
}

// Runs one fetch, decode, correlate, compute and predict cycle. A
// cycle where no vehicle survives filtering returns a ResultNoData
// result, not an error.
func (m *Manager) RunCycle(ctx context.Context) (*Result, error) {
	result := &Result{
		ID:        uuid.New(),
		StartedAt: time.Now(),
	}
	logger := log.With().Str("cycle", result.ID.String()).Logger()

	fail := func(err error) (*Result, error) {
		m.Metrics.ObserveCycle("error", time.Since(result.StartedAt))
		logger.Error().Err(err).Msg("cycle failed")
		return nil, err
	}

	vehicleData, tripData, err := m.fetchFeeds(ctx)
	if err != nil {
		return fail(err)
	}

	vehicles, err := parse.ParseFeed(vehicleData)
	if err != nil {
		return fail(fmt.Errorf("%w: %s: %w", ErrDecode, FeedVehiclePositions, err))
	}
	trips, err := parse.ParseFeed(tripData)
	if err != nil {
		return fail(fmt.Errorf("%w: %s: %w", ErrDecode, FeedTripUpdates, err))
	}
	m.Metrics.SetFeedTimestamp(vehicles.Header.Timestamp)

	records, stats, err := m.BuildFeatures(vehicles, trips)
	if err != nil {
		return fail(err)
	}
	result.FeedTime = int64(vehicles.Header.Timestamp)
	result.Records = records
	result.Stats = stats

	m.Metrics.AddDropped("unassigned", stats.Unassigned)
	m.Metrics.AddDropped("no_trip_update", stats.NoTripUpdate)
	m.Metrics.AddDropped("no_stop_time_updates", stats.NoStopTimeUpdates)
	m.Metrics.AddDropped("unknown_stop", stats.UnknownStop)
	m.Metrics.AddDropped("missing_arrival", stats.MissingArrival)

	if len(records) == 0 {
		result.Status = ResultNoData
		result.Predictions = model.Predictions{}
		result.Duration = time.Since(result.StartedAt)
		m.Metrics.ObserveCycle(string(ResultNoData), result.Duration)
		m.Metrics.SetPredictions(0, nil)
		logger.Info().Int("vehicles", stats.Vehicles).Msg("no data")
		return result, nil
	}

	predictions, err := m.predictor.Predict(records)
	if err != nil {
		return fail(fmt.Errorf("predicting: %w", err))
	}
	result.Status = ResultOK
	result.Predictions = predictions
	result.Duration = time.Since(result.StartedAt)

	byStatus := map[string]int{}
	for _, status := range predictions {
		byStatus[string(status)]++
	}
	m.Metrics.ObserveCycle(string(ResultOK), result.Duration)
	m.Metrics.SetPredictions(len(records), byStatus)

	logger.Info().
		Int64("feed_time", result.FeedTime).
		Int("vehicles", stats.Vehicles).
		Int("records", stats.Records).
		Int("predictions", len(predictions)).
		Dur("duration", result.Duration).
		Msg("cycle complete")

	return result, nil
}
