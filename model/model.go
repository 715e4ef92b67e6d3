package model

// Holds all external facing types and constants.

type Incrementality string

const (
	IncrementalityFullDataset  Incrementality = "FULL_DATASET"
	IncrementalityDifferential Incrementality = "DIFFERENTIAL"
)

type FeedHeader struct {
	Version        string         `json:"gtfs_realtime_version"`
	Incrementality Incrementality `json:"incrementality"`

	// Seconds since epoch, as produced by the feed.
	Timestamp uint64 `json:"timestamp"`
}

// A decoded GTFS Realtime feed. Entities are kept in feed order.
type Feed struct {
	Header   FeedHeader `json:"header"`
	Entities []Entity   `json:"entity"`
}

type EntityKind int

const (
	EntityUnknown EntityKind = iota
	EntityTripUpdate
	EntityVehicle
	EntityAlert
)

func (k EntityKind) String() string {
	switch k {
	case EntityTripUpdate:
		return "trip_update"
	case EntityVehicle:
		return "vehicle"
	case EntityAlert:
		return "alert"
	case EntityUnknown:
		return "unknown"
	}
	return "unknown"
}

// A single feed entity. Only the payload matching Kind is set; an
// EntityUnknown carries nothing but its ID.
type Entity struct {
	ID         string           `json:"id"`
	Kind       EntityKind       `json:"-"`
	TripUpdate *TripUpdate      `json:"trip_update,omitempty"`
	Vehicle    *VehiclePosition `json:"vehicle,omitempty"`
	Alert      *Alert           `json:"alert,omitempty"`
}

type TripUpdate struct {
	TripID  string `json:"trip_id"`
	RouteID string `json:"route_id"`

	// Raw strings from the trip descriptor, "HH:MM:SS" and
	// "YYYYMMDD". Not reparsed.
	StartTime string `json:"start_time"`
	StartDate string `json:"start_date"`

	StopTimeUpdates []StopTimeUpdate `json:"stop_time_update"`
}

type StopTimeUpdate struct {
	StopSequence uint32 `json:"stop_sequence"`
	StopID       string `json:"stop_id"`

	// Unix seconds. Nil when the arrival/departure event is unset
	// upstream.
	Arrival   *int64 `json:"arrival_time"`
	Departure *int64 `json:"departure_time"`
}

type VehiclePosition struct {
	TripID    string  `json:"trip_id"`
	RouteID   string  `json:"route_id"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Timestamp uint64  `json:"timestamp"`
}

type TimeRange struct {
	Start uint64 `json:"start"`
	End   uint64 `json:"end"`
}

type InformedEntity struct {
	RouteID string `json:"route_id"`
	StopID  string `json:"stop_id"`
}

type Translation struct {
	Text     string `json:"text"`
	Language string `json:"language"`
}

type Alert struct {
	ActivePeriods    []TimeRange      `json:"active_period"`
	InformedEntities []InformedEntity `json:"informed_entity"`
	Description      []Translation    `json:"description_text"`
}

type Stop struct {
	ID                 string
	Name               string
	Lat                float64
	Lon                float64
	WheelchairBoarding int8
}

type Status string

const (
	StatusEarly  Status = "early"
	StatusOnTime Status = "on-time"
	StatusLate   Status = "late"
)

func (s Status) Valid() bool {
	switch s {
	case StatusEarly, StatusOnTime, StatusLate:
		return true
	}
	return false
}

// The per-vehicle row handed to the classifier. Column names match
// the dataset the model was trained on.
type FeatureRecord struct {
	VehicleID           string  `csv:"bus_id" json:"bus_id"`
	TripID              string  `csv:"trip_id" json:"trip_id"`
	RouteID             string  `csv:"route_id" json:"route_id"`
	CurrentLat          float64 `csv:"current_lat" json:"current_lat"`
	CurrentLon          float64 `csv:"current_lon" json:"current_lon"`
	NextStopID          string  `csv:"next_stop_id" json:"next_stop_id"`
	NextStopLat         float64 `csv:"next_stop_lat" json:"next_stop_lat"`
	NextStopLon         float64 `csv:"next_stop_lon" json:"next_stop_lon"`
	NextStopName        string  `csv:"next_stop_name" json:"next_stop_name"`
	CurrentTime         int64   `csv:"current_time" json:"current_time"`
	PositionTimestamp   int64   `csv:"position_timestamp" json:"position_timestamp"`
	ExpectedArrivalTime int64   `csv:"expected_arrival_time" json:"expected_arrival_time"`
	TimeToArrival       int64   `csv:"time_to_arrival_seconds" json:"time_to_arrival_seconds"`
	DistanceToStop      float64 `csv:"distance_to_stop_meters" json:"distance_to_stop_meters"`
	Speed               float64 `csv:"speed_m_s" json:"speed_m_s"`
	Status              Status  `csv:"status" json:"status"`
	StopSequence        uint32  `csv:"stop_sequence" json:"stop_sequence"`
	WheelchairBoarding  int8    `csv:"wheelchair_boarding" json:"wheelchair_boarding"`
}

// Predicted status by vehicle ID.
type Predictions map[string]Status
