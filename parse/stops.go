package parse

import (
	"fmt"
	"io"

	"github.com/gocarina/gocsv"
	"github.com/pkg/errors"

	"github.com/naimul214/busstatus/model"
	"github.com/naimul214/busstatus/storage"
)

type StopCSV struct {
	ID   string  `csv:"stop_id"`
	Code string  `csv:"stop_code"`
	Name string  `csv:"stop_name"`
	Lat  float64 `csv:"stop_lat"`
	Lon  float64 `csv:"stop_lon"`
	// LocationType  int8   `csv:"location_type"`
	// ParentStation string `csv:"parent_station"`
	WheelchairBoarding int8 `csv:"wheelchair_boarding"`
}

// Parses stops.txt into the writer. Returns the set of stop IDs
// seen. The writer is not closed.
func ParseStops(writer storage.CatalogWriter, data io.Reader) (map[string]bool, error) {
	stopCsv := []*StopCSV{}
	if err := gocsv.Unmarshal(data, &stopCsv); err != nil {
		return nil, errors.Wrap(err, "unmarshaling stops csv")
	}

	stopIDs := map[string]bool{}
	for i, st := range stopCsv {
		if st.ID == "" {
			return nil, fmt.Errorf("empty stop_id (row %d)", i+1)
		}

		if stopIDs[st.ID] {
			return nil, fmt.Errorf("repeated stop_id '%s'", st.ID)
		}
		stopIDs[st.ID] = true

		if st.Lat < -90 || st.Lat > 90 || st.Lon < -180 || st.Lon > 180 {
			return nil, fmt.Errorf("stop_lat/stop_lon out of range for stop_id '%s'", st.ID)
		}

		// 0 (or empty): no info, 1: some accessible boarding, 2:
		// not possible
		if st.WheelchairBoarding < 0 || st.WheelchairBoarding > 2 {
			return nil, fmt.Errorf("invalid wheelchair_boarding %d for stop_id '%s'", st.WheelchairBoarding, st.ID)
		}

		err := writer.WriteStop(&model.Stop{
			ID:                 st.ID,
			Name:               st.Name,
			Lat:                st.Lat,
			Lon:                st.Lon,
			WheelchairBoarding: st.WheelchairBoarding,
		})
		if err != nil {
			return nil, errors.Wrapf(err, "writing stop '%s' (row %d)", st.ID, i+1)
		}
	}

	return stopIDs, nil
}
