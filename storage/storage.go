package storage

import (
	"errors"

	"github.com/naimul214/busstatus/model"
)

var (
	ErrCatalogNotFound = errors.New("catalog not found")
	ErrStopNotFound    = errors.New("stop not found")
)

// Storage holds stop catalogs, keyed by name. A catalog is written
// once and then only read.
type Storage interface {
	// Gets a reader for the named catalog.
	GetReader(catalog string) (CatalogReader, error)

	// Gets a writer for the named catalog. Any existing catalog
	// with the same name is replaced.
	GetWriter(catalog string) (CatalogWriter, error)
}

// Writes stops for a single catalog. Nothing written is visible to
// readers until Close() returns.
type CatalogWriter interface {
	WriteStop(stop *model.Stop) error
	Close() error
}

// Readers must be safe for concurrent use.
type CatalogReader interface {
	// Retrieves a stop by ID. Returns ErrStopNotFound if there is
	// no such stop.
	Stop(id string) (*model.Stop, error)

	Stops() ([]*model.Stop, error)

	// List of stops near given lat/lng, ordered by distance. At
	// most limit results (pass 0 for no limit.)
	NearbyStops(lat float64, lng float64, limit int) ([]model.Stop, error)
}
