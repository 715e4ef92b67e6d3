package busstatus

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/naimul214/busstatus/model"
)

func unix(ts int64) *int64 {
	return &ts
}

func TestStatusFor(t *testing.T) {
	for _, tc := range []struct {
		tta    int64
		status model.Status
	}{
		{-3600, model.StatusEarly},
		{-61, model.StatusEarly},
		{-60, model.StatusOnTime},
		{0, model.StatusOnTime},
		{60, model.StatusOnTime},
		{61, model.StatusLate},
		{3600, model.StatusLate},
	} {
		assert.Equal(t, tc.status, StatusFor(tc.tta), "tta %d", tc.tta)
	}
}

func TestSpeed(t *testing.T) {
	// Non-positive time to arrival divides by exactly 1
	for _, tta := range []int64{0, -1, -60, -100000} {
		assert.Equal(t, 250.0, Speed(250, tta), "tta %d", tta)
	}

	assert.Equal(t, 250.0, Speed(250, 1))
	assert.Equal(t, 5.0, Speed(250, 50))
	assert.Equal(t, 0.0, Speed(0, 40))
}

func TestComputeFeatures(t *testing.T) {
	c := Correlation{
		VehicleID: "8101",
		Vehicle: &model.VehiclePosition{
			TripID:    "T1",
			RouteID:   "900",
			Latitude:  43.0,
			Longitude: -79.0,
			Timestamp: 1000,
		},
		NextStop: model.StopTimeUpdate{
			StopSequence: 7,
			StopID:       "S1",
			Arrival:      unix(1040),
		},
	}
	stop := &model.Stop{ID: "S1", Name: "Stop One", Lat: 43.0, Lon: -79.0, WheelchairBoarding: 1}

	record, err := ComputeFeatures(1000, c, stop)
	require.NoError(t, err)
	assert.Equal(t, &model.FeatureRecord{
		VehicleID:           "8101",
		TripID:              "T1",
		RouteID:             "900",
		CurrentLat:          43.0,
		CurrentLon:          -79.0,
		NextStopID:          "S1",
		NextStopLat:         43.0,
		NextStopLon:         -79.0,
		NextStopName:        "Stop One",
		CurrentTime:         1000,
		PositionTimestamp:   1000,
		ExpectedArrivalTime: 1040,
		TimeToArrival:       40,
		DistanceToStop:      0,
		Speed:               0,
		Status:              model.StatusOnTime,
		StopSequence:        7,
		WheelchairBoarding:  1,
	}, record)
}

func TestComputeFeaturesMovingVehicle(t *testing.T) {
	c := Correlation{
		VehicleID: "8101",
		Vehicle: &model.VehiclePosition{
			TripID:    "T1",
			Latitude:  43.0,
			Longitude: -79.0,
			Timestamp: 990,
		},
		NextStop: model.StopTimeUpdate{StopID: "S2", Arrival: unix(1100)},
	}
	stop := &model.Stop{ID: "S2", Lat: 43.01, Lon: -79.0}

	// Current time is the feed time, not the position timestamp
	record, err := ComputeFeatures(1000, c, stop)
	require.NoError(t, err)
	assert.Equal(t, int64(1000), record.CurrentTime)
	assert.Equal(t, int64(990), record.PositionTimestamp)
	assert.Equal(t, int64(100), record.TimeToArrival)
	assert.InEpsilon(t, 1113.0, record.DistanceToStop, 0.01)
	assert.InEpsilon(t, record.DistanceToStop/100, record.Speed, 1e-9)
	assert.Equal(t, model.StatusLate, record.Status)
}

func TestComputeFeaturesPastDue(t *testing.T) {
	c := Correlation{
		VehicleID: "8101",
		Vehicle:   &model.VehiclePosition{Latitude: 43.0, Longitude: -79.0},
		NextStop:  model.StopTimeUpdate{StopID: "S2", Arrival: unix(900)},
	}
	stop := &model.Stop{ID: "S2", Lat: 43.01, Lon: -79.0}

	record, err := ComputeFeatures(1000, c, stop)
	require.NoError(t, err)
	assert.Equal(t, int64(-100), record.TimeToArrival)
	assert.Equal(t, record.DistanceToStop, record.Speed)
	assert.Equal(t, model.StatusEarly, record.Status)
}

func TestComputeFeaturesMissingArrival(t *testing.T) {
	c := Correlation{
		VehicleID: "8101",
		Vehicle:   &model.VehiclePosition{Latitude: 43.0, Longitude: -79.0},
		NextStop:  model.StopTimeUpdate{StopID: "S1", Departure: unix(1040)},
	}
	stop := &model.Stop{ID: "S1", Lat: 43.0, Lon: -79.0}

	record, err := ComputeFeatures(1000, c, stop)
	assert.Nil(t, record)
	assert.True(t, errors.Is(err, ErrMissingArrivalTime))
}
