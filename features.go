package busstatus

import (
	"fmt"

	"github.com/naimul214/busstatus/model"
	"github.com/naimul214/busstatus/storage"
)

// Time to arrival, in seconds, within which a vehicle counts as on
// time. Inclusive at both ends.
const OnTimeWindow = 60

func StatusFor(timeToArrival int64) model.Status {
	if timeToArrival < -OnTimeWindow {
		return model.StatusEarly
	}
	if timeToArrival > OnTimeWindow {
		return model.StatusLate
	}
	return model.StatusOnTime
}

// Meters per second needed to cover distance in timeToArrival
// seconds. The divisor is floored at 1, so vehicles at or past due
// get their distance as speed.
func Speed(distance float64, timeToArrival int64) float64 {
	divisor := timeToArrival
	if divisor < 1 {
		divisor = 1
	}
	return distance / float64(divisor)
}

// Builds the feature record of a correlated vehicle headed for stop.
// feedTime is the vehicle feed's header timestamp, which stands in
// for the current time.
func ComputeFeatures(feedTime int64, c Correlation, stop *model.Stop) (*model.FeatureRecord, error) {
	if c.NextStop.Arrival == nil {
		return nil, fmt.Errorf("%w: vehicle '%s' stop '%s'", ErrMissingArrivalTime, c.VehicleID, c.NextStop.StopID)
	}
	arrival := *c.NextStop.Arrival

	timeToArrival := arrival - feedTime
	distance := storage.HaversineDistance(c.Vehicle.Latitude, c.Vehicle.Longitude, stop.Lat, stop.Lon)

	return &model.FeatureRecord{
		VehicleID:           c.VehicleID,
		TripID:              c.Vehicle.TripID,
		RouteID:             c.Vehicle.RouteID,
		CurrentLat:          c.Vehicle.Latitude,
		CurrentLon:          c.Vehicle.Longitude,
		NextStopID:          c.NextStop.StopID,
		NextStopLat:         stop.Lat,
		NextStopLon:         stop.Lon,
		NextStopName:        stop.Name,
		CurrentTime:         feedTime,
		PositionTimestamp:   int64(c.Vehicle.Timestamp),
		ExpectedArrivalTime: arrival,
		TimeToArrival:       timeToArrival,
		DistanceToStop:      distance,
		Speed:               Speed(distance, timeToArrival),
		Status:              StatusFor(timeToArrival),
		StopSequence:        c.NextStop.StopSequence,
		WheelchairBoarding:  stop.WheelchairBoarding,
	}, nil
}
