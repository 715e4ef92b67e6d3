package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/naimul214/busstatus"
	"github.com/naimul214/busstatus/downloader"
	"github.com/naimul214/busstatus/metrics"
	"github.com/naimul214/busstatus/model"
	"github.com/naimul214/busstatus/predict"
	"github.com/naimul214/busstatus/testutil"
)

type fakePipeline struct {
	result *busstatus.Result
	feed   *model.Feed
	err    error
}

func (f *fakePipeline) RunCycle(ctx context.Context) (*busstatus.Result, error) {
	return f.result, f.err
}

func (f *fakePipeline) FetchFeed(ctx context.Context, kind busstatus.FeedKind) (*model.Feed, error) {
	return f.feed, f.err
}

func get(t *testing.T, handler http.Handler, path string) (*httptest.ResponseRecorder, map[string]interface{}) {
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest("GET", path, nil))

	body := map[string]interface{}{}
	if rec.Header().Get("Content-Type") == "application/json" {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	}
	return rec, body
}

func TestTest(t *testing.T) {
	rec, body := get(t, New(&fakePipeline{}, Options{}).Router(), "/test")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.Equal(t, map[string]interface{}{"message": "Server is running"}, body)
}

func TestPredictions(t *testing.T) {
	id := uuid.New()
	p := &fakePipeline{result: &busstatus.Result{
		ID:     id,
		Status: busstatus.ResultOK,
		Predictions: model.Predictions{
			"8101": model.StatusLate,
			"8102": model.StatusOnTime,
		},
	}}

	rec, body := get(t, New(p, Options{}).Router(), "/get_predictions")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, id.String(), rec.Header().Get("X-Cycle-ID"))
	assert.Equal(t, map[string]interface{}{
		"bus_predictions": map[string]interface{}{
			"8101": "late",
			"8102": "on-time",
		},
	}, body)
}

func TestPredictionsNoData(t *testing.T) {
	p := &fakePipeline{result: &busstatus.Result{Status: busstatus.ResultNoData}}

	rec, _ := get(t, New(p, Options{}).Router(), "/get_predictions")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"bus_predictions": {}}`, rec.Body.String())
}

func TestPredictionsErrors(t *testing.T) {
	for _, tc := range []struct {
		err    error
		status int
	}{
		{fmt.Errorf("%w: trip_updates: boom", busstatus.ErrFetch), http.StatusBadGateway},
		{fmt.Errorf("%w: vehicle_positions: bad bytes", busstatus.ErrDecode), http.StatusBadGateway},
		{fmt.Errorf("predicting: %w", predict.ErrFeatureShapeMismatch), http.StatusInternalServerError},
		{errors.New("database on fire"), http.StatusInternalServerError},
	} {
		rec, body := get(t, New(&fakePipeline{err: tc.err}, Options{}).Router(), "/get_predictions")
		assert.Equal(t, tc.status, rec.Code, tc.err.Error())
		assert.Equal(t, map[string]interface{}{"error": "Failed to fetch or process real-time data."}, body)
	}
}

func TestFetchFeeds(t *testing.T) {
	p := &fakePipeline{feed: &model.Feed{
		Header: model.FeedHeader{Version: "2.0", Incrementality: model.IncrementalityFullDataset, Timestamp: 1000},
		Entities: []model.Entity{{
			ID:      "8101",
			Kind:    model.EntityVehicle,
			Vehicle: &model.VehiclePosition{TripID: "T1", Latitude: 43, Longitude: -79, Timestamp: 990},
		}},
	}}
	router := New(p, Options{}).Router()

	rec, body := get(t, router, "/fetch_vehicle_positions")
	assert.Equal(t, http.StatusOK, rec.Code)
	header := body["header"].(map[string]interface{})
	assert.Equal(t, "2.0", header["gtfs_realtime_version"])
	assert.Equal(t, "FULL_DATASET", header["incrementality"])
	assert.Equal(t, float64(1000), header["timestamp"])
	entities := body["entity"].([]interface{})
	require.Equal(t, 1, len(entities))
	vehicle := entities[0].(map[string]interface{})["vehicle"].(map[string]interface{})
	assert.Equal(t, "T1", vehicle["trip_id"])

	p.err = fmt.Errorf("%w: boom", busstatus.ErrFetch)
	rec, body = get(t, router, "/fetch_trip_updates")
	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.Equal(t, map[string]interface{}{"error": "Failed to fetch trip updates data."}, body)

	rec, body = get(t, router, "/fetch_vehicle_positions")
	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.Equal(t, map[string]interface{}{"error": "Failed to fetch vehicle positions data."}, body)
}

func TestCORS(t *testing.T) {
	router := New(&fakePipeline{}, Options{AllowedOrigins: []string{"http://localhost:5173"}}).Router()

	req := httptest.NewRequest("GET", "/test", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, "http://localhost:5173", rec.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest("GET", "/test", nil)
	req.Header.Set("Origin", "http://evil.example")
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, "", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestMetricsRoute(t *testing.T) {
	rec, body := get(t, New(&fakePipeline{}, Options{}).Router(), "/metrics")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, 0, len(body))

	c := metrics.NewCollector()
	c.ObserveCycle("ok", time.Millisecond)
	rec = httptest.NewRecorder()
	New(&fakePipeline{}, Options{Metrics: c}).Router().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), "busstatus_cycles_total"))
}

func TestEndToEnd(t *testing.T) {
	d := downloader.NewMemoryDownloader()
	d.Set("vp", testutil.VehicleFeed(t, 1000, testutil.Vehicle{ID: "8101", TripID: "T1", Lat: 43.0, Lon: -79.0, Timestamp: 1000}))
	d.Set("tu", testutil.TripFeed(t, 1000, testutil.Trip{
		TripID: "T1",
		Stops:  []testutil.StopTime{{StopID: "S1", Sequence: 1, Arrival: testutil.Unix(1040)}},
	}))

	catalog := testutil.BuildCatalog(t, "memory", []string{
		"stop_id,stop_name,stop_lat,stop_lon",
		"S1,Stop One,43.0,-79.0",
	})
	m := busstatus.NewManager(catalog, &testutil.StatusPredictor{})
	m.VehiclePositionsURL = "vp"
	m.TripUpdatesURL = "tu"
	m.Downloader = d

	server := httptest.NewServer(New(m, Options{}).Router())
	defer server.Close()

	resp, err := http.Get(server.URL + "/get_predictions")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	body := PredictionsResponse{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, model.Predictions{"8101": model.StatusOnTime}, body.BusPredictions)

	d.SetError("tu", errors.New("connection reset"))
	resp2, err := http.Get(server.URL + "/get_predictions")
	require.NoError(t, err)
	defer resp2.Body.Close()
	assert.Equal(t, http.StatusBadGateway, resp2.StatusCode)
}

func TestListenAndServeShutdown(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- New(&fakePipeline{}, Options{}).ListenAndServe(ctx, "127.0.0.1:0")
	}()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}
}
