// Package predict runs a fitted feature scaler and classifier over
// feature records.
//
// Both artifacts are JSON exports of the fitted scikit-learn
// objects. The scaler file holds StandardScaler's mean_ and scale_
// (and feature_names_in_ when fitted on a DataFrame):
//
//	{"feature_names_in": [...], "mean": [...], "scale": [...]}
//
// The classifier file holds DecisionTreeClassifier's classes_,
// n_features_in_ and the tree_ node arrays, with value flattened to
// one row of class weights per node:
//
//	{"classes": [...], "n_features_in": 11, "children_left": [...],
//	 "children_right": [...], "feature": [...], "threshold": [...],
//	 "value": [[...], ...]}
package predict

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/naimul214/busstatus/model"
)

var (
	ErrModelUnavailable     = errors.New("model unavailable")
	ErrFeatureShapeMismatch = errors.New("feature shape mismatch")
)

// Fitted numeric transform applied before classification.
type Scaler interface {
	Transform(x [][]float64) ([][]float64, error)

	// Number of input columns the scaler was fitted on.
	Width() int
}

type Classifier interface {
	Predict(x [][]float64) ([]string, error)
}

// Column order of the training frame, i.e. every record column
// except bus_id, trip_id, route_id, next_stop_name, stop_sequence,
// wheelchair_boarding and status.
var DefaultColumns = []string{
	"current_lat",
	"current_lon",
	"next_stop_id",
	"next_stop_lat",
	"next_stop_lon",
	"current_time",
	"position_timestamp",
	"expected_arrival_time",
	"time_to_arrival_seconds",
	"distance_to_stop_meters",
	"speed_m_s",
}

// Extracts the named numeric columns of r, in order.
func Vectorize(r *model.FeatureRecord, columns []string) ([]float64, error) {
	row := make([]float64, 0, len(columns))

	for _, col := range columns {
		var v float64

		switch col {
		case "current_lat":
			v = r.CurrentLat
		case "current_lon":
			v = r.CurrentLon
		case "next_stop_id":
			// Stop IDs were numeric in the training data and
			// went into the frame as numbers.
			id, err := strconv.ParseFloat(r.NextStopID, 64)
			if err != nil {
				return nil, fmt.Errorf("%w: non-numeric next_stop_id '%s'", ErrFeatureShapeMismatch, r.NextStopID)
			}
			v = id
		case "next_stop_lat":
			v = r.NextStopLat
		case "next_stop_lon":
			v = r.NextStopLon
		case "current_time":
			v = float64(r.CurrentTime)
		case "position_timestamp":
			v = float64(r.PositionTimestamp)
		case "expected_arrival_time":
			v = float64(r.ExpectedArrivalTime)
		case "time_to_arrival_seconds":
			v = float64(r.TimeToArrival)
		case "distance_to_stop_meters":
			v = r.DistanceToStop
		case "speed_m_s":
			v = r.Speed
		default:
			return nil, fmt.Errorf("%w: unknown column '%s'", ErrFeatureShapeMismatch, col)
		}

		row = append(row, v)
	}

	return row, nil
}

// Holds the loaded scaler and classifier. Immutable once built, so
// safe for concurrent use.
type Service struct {
	Scaler     Scaler
	Classifier Classifier

	// Defaults to DefaultColumns
	Columns []string
}

func NewService(scaler Scaler, classifier Classifier, columns []string) *Service {
	if len(columns) == 0 {
		columns = DefaultColumns
	}
	return &Service{
		Scaler:     scaler,
		Classifier: classifier,
		Columns:    columns,
	}
}

// Predicts one status per record, keyed by vehicle ID. Later records
// win if a vehicle ID repeats.
func (s *Service) Predict(records []*model.FeatureRecord) (model.Predictions, error) {
	if s == nil || s.Scaler == nil || s.Classifier == nil {
		return nil, ErrModelUnavailable
	}

	predictions := model.Predictions{}
	if len(records) == 0 {
		return predictions, nil
	}

	columns := s.Columns
	if len(columns) == 0 {
		columns = DefaultColumns
	}

	width := s.Scaler.Width()
	x := make([][]float64, 0, len(records))
	for _, r := range records {
		row, err := Vectorize(r, columns)
		if err != nil {
			return nil, fmt.Errorf("vehicle '%s': %w", r.VehicleID, err)
		}
		if len(row) != width {
			return nil, fmt.Errorf("%w: vehicle '%s' has %d features, scaler expects %d", ErrFeatureShapeMismatch, r.VehicleID, len(row), width)
		}
		x = append(x, row)
	}

	scaled, err := s.Scaler.Transform(x)
	if err != nil {
		return nil, fmt.Errorf("scaling: %w", err)
	}

	labels, err := s.Classifier.Predict(scaled)
	if err != nil {
		return nil, fmt.Errorf("classifying: %w", err)
	}
	if len(labels) != len(records) {
		return nil, fmt.Errorf("classifier returned %d labels for %d rows", len(labels), len(records))
	}

	for i, r := range records {
		status := model.Status(labels[i])
		if !status.Valid() {
			return nil, fmt.Errorf("unknown class label '%s'", labels[i])
		}
		predictions[r.VehicleID] = status
	}

	return predictions, nil
}
