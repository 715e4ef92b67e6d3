package busstatus

import (
	"errors"
	"fmt"

	"github.com/naimul214/busstatus/model"
	"github.com/naimul214/busstatus/parse"
	"github.com/naimul214/busstatus/storage"
)

// Read only view of the stop reference data.
type Catalog struct {
	reader storage.CatalogReader
	size   int
}

// Parses stops.txt, or a GTFS zip holding it, into storage under
// name and returns a Catalog reading from it.
func LoadCatalog(s storage.Storage, name string, data []byte) (*Catalog, error) {
	writer, err := s.GetWriter(name)
	if err != nil {
		return nil, fmt.Errorf("getting writer: %w", err)
	}

	n, err := parse.ParseStatic(writer, data)
	if err != nil {
		return nil, fmt.Errorf("parsing stops: %w", err)
	}

	reader, err := s.GetReader(name)
	if err != nil {
		return nil, fmt.Errorf("getting reader: %w", err)
	}

	return &Catalog{reader: reader, size: n}, nil
}

// Wraps a catalog previously loaded into storage.
func OpenCatalog(s storage.Storage, name string) (*Catalog, error) {
	reader, err := s.GetReader(name)
	if err != nil {
		return nil, fmt.Errorf("getting reader: %w", err)
	}

	stops, err := reader.Stops()
	if err != nil {
		return nil, fmt.Errorf("listing stops: %w", err)
	}

	return &Catalog{reader: reader, size: len(stops)}, nil
}

func (c *Catalog) Size() int {
	return c.size
}

func (c *Catalog) Stop(id string) (*model.Stop, error) {
	stop, err := c.reader.Stop(id)
	if errors.Is(err, storage.ErrStopNotFound) {
		return nil, fmt.Errorf("%w: '%s'", ErrUnknownStop, id)
	}
	if err != nil {
		return nil, fmt.Errorf("getting stop: %w", err)
	}
	return stop, nil
}

func (c *Catalog) Stops() ([]*model.Stop, error) {
	return c.reader.Stops()
}

// Stops ordered by distance from (lat, lon). limit <= 0 returns all.
func (c *Catalog) NearbyStops(lat float64, lon float64, limit int) ([]model.Stop, error) {
	return c.reader.NearbyStops(lat, lon, limit)
}
