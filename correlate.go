package busstatus

import (
	"github.com/naimul214/busstatus/model"
)

// A vehicle joined with its trip update, and the stop time update
// taken as its next stop.
type Correlation struct {
	VehicleID  string
	Vehicle    *model.VehiclePosition
	TripUpdate *model.TripUpdate
	NextStop   model.StopTimeUpdate
}

type CorrelationStats struct {
	Vehicles int `json:"vehicles"`
	Matched  int `json:"matched"`

	// Vehicles not serving any trip
	Unassigned int `json:"unassigned"`

	// Vehicles whose trip has no trip update
	NoTripUpdate int `json:"no_trip_update"`

	// Vehicles whose trip update has no stop time updates
	NoStopTimeUpdates int `json:"no_stop_time_updates"`
}

// Joins every vehicle in the vehicles feed to a trip update in the
// trips feed by trip ID. When several trip updates share a trip ID,
// the first one in feed order is used. The next stop is always the
// first stop time update, even if that stop has already been served.
func Correlate(vehicles *model.Feed, trips *model.Feed) ([]Correlation, CorrelationStats) {
	index := indexTripUpdates(trips)

	stats := CorrelationStats{}
	correlations := []Correlation{}

	for i := range vehicles.Entities {
		e := &vehicles.Entities[i]

		switch e.Kind {
		case model.EntityVehicle:
		case model.EntityTripUpdate, model.EntityAlert, model.EntityUnknown:
			continue
		}
		if e.Vehicle == nil {
			continue
		}
		stats.Vehicles++

		tripID := e.Vehicle.TripID
		if tripID == "" {
			stats.Unassigned++
			continue
		}

		tu, found := index[tripID]
		if !found {
			stats.NoTripUpdate++
			continue
		}

		if len(tu.StopTimeUpdates) == 0 {
			stats.NoStopTimeUpdates++
			continue
		}

		stats.Matched++
		correlations = append(correlations, Correlation{
			VehicleID:  e.ID,
			Vehicle:    e.Vehicle,
			TripUpdate: tu,
			NextStop:   tu.StopTimeUpdates[0],
		})
	}

	return correlations, stats
}

// First trip update per trip ID wins.
func indexTripUpdates(trips *model.Feed) map[string]*model.TripUpdate {
	index := map[string]*model.TripUpdate{}

	for i := range trips.Entities {
		e := &trips.Entities[i]

		switch e.Kind {
		case model.EntityTripUpdate:
		case model.EntityVehicle, model.EntityAlert, model.EntityUnknown:
			continue
		}
		if e.TripUpdate == nil || e.TripUpdate.TripID == "" {
			continue
		}

		if _, found := index[e.TripUpdate.TripID]; found {
			continue
		}
		index[e.TripUpdate.TripID] = e.TripUpdate
	}

	return index
}
