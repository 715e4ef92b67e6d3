package parse

import (
	"errors"
	"fmt"

	gtfsproto "github.com/MobilityData/gtfs-realtime-bindings/golang/gtfs"
	proto "google.golang.org/protobuf/proto"

	"github.com/naimul214/busstatus/model"
)

var ErrMalformedFeed = errors.New("malformed feed")

// Decodes a single GTFS Realtime FeedMessage. Timestamps are kept
// as raw integers. Entities carrying more than one payload are
// classified by the first of trip_update, vehicle and alert that is
// present.
func ParseFeed(data []byte) (*model.Feed, error) {
	f := &gtfsproto.FeedMessage{}
	err := proto.Unmarshal(data, f)
	if err != nil {
		return nil, fmt.Errorf("%w: unmarshaling protobuf: %v", ErrMalformedFeed, err)
	}

	header := f.GetHeader()
	feed := &model.Feed{
		Header: model.FeedHeader{
			Version:        header.GetGtfsRealtimeVersion(),
			Incrementality: model.Incrementality(header.GetIncrementality().String()),
			Timestamp:      header.GetTimestamp(),
		},
		Entities: make([]model.Entity, 0, len(f.GetEntity())),
	}

	for _, entity := range f.GetEntity() {
		feed.Entities = append(feed.Entities, parseEntity(entity))
	}

	return feed, nil
}

func parseEntity(entity *gtfsproto.FeedEntity) model.Entity {
	e := model.Entity{ID: entity.GetId()}

	switch {
	case entity.TripUpdate != nil:
		e.Kind = model.EntityTripUpdate
		e.TripUpdate = parseTripUpdate(entity.TripUpdate)
	case entity.Vehicle != nil:
		e.Kind = model.EntityVehicle
		e.Vehicle = parseVehicle(entity.Vehicle)
	case entity.Alert != nil:
		e.Kind = model.EntityAlert
		e.Alert = parseAlert(entity.Alert)
	default:
		e.Kind = model.EntityUnknown
	}

	return e
}

func parseTripUpdate(tu *gtfsproto.TripUpdate) *model.TripUpdate {
	trip := tu.GetTrip()
	update := &model.TripUpdate{
		TripID:          trip.GetTripId(),
		RouteID:         trip.GetRouteId(),
		StartTime:       trip.GetStartTime(),
		StartDate:       trip.GetStartDate(),
		StopTimeUpdates: make([]model.StopTimeUpdate, 0, len(tu.GetStopTimeUpdate())),
	}

	for _, stu := range tu.GetStopTimeUpdate() {
		update.StopTimeUpdates = append(update.StopTimeUpdates, model.StopTimeUpdate{
			StopSequence: stu.GetStopSequence(),
			StopID:       stu.GetStopId(),
			Arrival:      eventTime(stu.GetArrival()),
			Departure:    eventTime(stu.GetDeparture()),
		})
	}

	return update
}

// An event only carries a time when both the event and its time
// field are set upstream. A delay-only event has no time.
func eventTime(ev *gtfsproto.TripUpdate_StopTimeEvent) *int64 {
	if ev == nil || ev.Time == nil {
		return nil
	}
	t := ev.GetTime()
	return &t
}

func parseVehicle(v *gtfsproto.VehiclePosition) *model.VehiclePosition {
	return &model.VehiclePosition{
		TripID:    v.GetTrip().GetTripId(),
		RouteID:   v.GetTrip().GetRouteId(),
		Latitude:  float64(v.GetPosition().GetLatitude()),
		Longitude: float64(v.GetPosition().GetLongitude()),
		Timestamp: v.GetTimestamp(),
	}
}

func parseAlert(a *gtfsproto.Alert) *model.Alert {
	alert := &model.Alert{
		ActivePeriods:    []model.TimeRange{},
		InformedEntities: []model.InformedEntity{},
		Description:      []model.Translation{},
	}

	for _, period := range a.GetActivePeriod() {
		alert.ActivePeriods = append(alert.ActivePeriods, model.TimeRange{
			Start: period.GetStart(),
			End:   period.GetEnd(),
		})
	}

	for _, ie := range a.GetInformedEntity() {
		alert.InformedEntities = append(alert.InformedEntities, model.InformedEntity{
			RouteID: ie.GetRouteId(),
			StopID:  ie.GetStopId(),
		})
	}

	for _, tr := range a.GetDescriptionText().GetTranslation() {
		alert.Description = append(alert.Description, model.Translation{
			Text:     tr.GetText(),
			Language: tr.GetLanguage(),
		})
	}

	return alert
}
