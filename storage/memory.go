package storage

import (
	"fmt"
	"sync"

	"github.com/naimul214/busstatus/model"
)

// In memory implementation of Storage below

type MemoryStorage struct {
	mutex    sync.RWMutex
	catalogs map[string]*MemoryCatalog
}

func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{
		catalogs: map[string]*MemoryCatalog{},
	}
}

func (s *MemoryStorage) GetReader(catalog string) (CatalogReader, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	c, ok := s.catalogs[catalog]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrCatalogNotFound, catalog)
	}
	return c, nil
}

func (s *MemoryStorage) GetWriter(catalog string) (CatalogWriter, error) {
	return &memoryCatalogWriter{
		storage: s,
		name:    catalog,
		catalog: &MemoryCatalog{
			stops: map[string]*model.Stop{},
		},
	}, nil
}

type memoryCatalogWriter struct {
	storage *MemoryStorage
	name    string
	catalog *MemoryCatalog
	closed  bool
}

func (w *memoryCatalogWriter) WriteStop(stop *model.Stop) error {
	if w.closed {
		return fmt.Errorf("writer closed")
	}
	if _, found := w.catalog.stops[stop.ID]; found {
		return fmt.Errorf("duplicate stop_id '%s'", stop.ID)
	}
	s := *stop
	w.catalog.stops[stop.ID] = &s
	w.catalog.order = append(w.catalog.order, stop.ID)
	return nil
}

func (w *memoryCatalogWriter) Close() error {
	if w.closed {
		return nil
	}
	w.closed = true

	w.storage.mutex.Lock()
	defer w.storage.mutex.Unlock()
	w.storage.catalogs[w.name] = w.catalog

	return nil
}

// Never mutated once published by the writer, so reads need no
// locking.
type MemoryCatalog struct {
	stops map[string]*model.Stop
	order []string
}

func (c *MemoryCatalog) Stop(id string) (*model.Stop, error) {
	stop, found := c.stops[id]
	if !found {
		return nil, fmt.Errorf("%w: %s", ErrStopNotFound, id)
	}
	s := *stop
	return &s, nil
}

func (c *MemoryCatalog) Stops() ([]*model.Stop, error) {
	stops := make([]*model.Stop, 0, len(c.order))
	for _, id := range c.order {
		s := *c.stops[id]
		stops = append(stops, &s)
	}
	return stops, nil
}

func (c *MemoryCatalog) NearbyStops(lat float64, lng float64, limit int) ([]model.Stop, error) {
	stops, err := c.Stops()
	if err != nil {
		return nil, err
	}
	return sortByDistance(stops, lat, lng, limit), nil
}
