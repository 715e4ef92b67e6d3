package storage

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"github.com/naimul214/busstatus/model"
)

type PSQLStorage struct {
	db *sql.DB
}

type PSQLCatalogWriter struct {
	id       string
	seq      int
	tx       *sql.Tx
	copyStmt *sql.Stmt
}

type PSQLCatalogReader struct {
	id string
	db *sql.DB
}

// Creates a new Postgres Storage using the provided connection string.
//
// If clearDB is true, the database will be cleared on startup. You
// probably only want this for testing.
func NewPSQLStorage(connStr string, clearDB bool) (*PSQLStorage, error) {
	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open db: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping db: %w", err)
	}

	if clearDB {
		_, err = db.Exec(`DROP TABLE IF EXISTS stops;`)
		if err != nil {
			db.Close()
			return nil, fmt.Errorf("clearing db: %w", err)
		}
	}

	_, err = db.Exec(`
CREATE TABLE IF NOT EXISTS stops (
    catalog TEXT NOT NULL,
    id TEXT NOT NULL,
    seq INTEGER NOT NULL,
    name TEXT NOT NULL,
    lat DOUBLE PRECISION NOT NULL,
    lon DOUBLE PRECISION NOT NULL,
    wheelchair_boarding SMALLINT NOT NULL,
    PRIMARY KEY(catalog, id)
);`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating stops table: %w", err)
	}

	return &PSQLStorage{db: db}, nil
}

func (s *PSQLStorage) Close() error {
	return s.db.Close()
}

func (s *PSQLStorage) GetReader(catalog string) (CatalogReader, error) {
	var exists bool
	err := s.db.QueryRow(`SELECT EXISTS (SELECT 1 FROM stops WHERE catalog = $1)`, catalog).Scan(&exists)
	if err != nil {
		return nil, fmt.Errorf("checking catalog: %w", err)
	}
	if !exists {
		return nil, fmt.Errorf("%w: %s", ErrCatalogNotFound, catalog)
	}

	return &PSQLCatalogReader{
		id: catalog,
		db: s.db,
	}, nil
}

func (s *PSQLStorage) GetWriter(catalog string) (CatalogWriter, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}

	// In case catalog already exists, delete all records
	_, err = tx.Exec(`DELETE FROM stops WHERE catalog = $1`, catalog)
	if err != nil {
		tx.Rollback()
		return nil, fmt.Errorf("deleting stops: %w", err)
	}

	stmt, err := tx.Prepare(pq.CopyIn(
		"stops",
		"catalog",
		"id",
		"seq",
		"name",
		"lat",
		"lon",
		"wheelchair_boarding",
	))
	if err != nil {
		tx.Rollback()
		return nil, fmt.Errorf("preparing copy: %w", err)
	}

	return &PSQLCatalogWriter{
		id:       catalog,
		tx:       tx,
		copyStmt: stmt,
	}, nil
}

func (w *PSQLCatalogWriter) WriteStop(stop *model.Stop) error {
	if w.tx == nil {
		return fmt.Errorf("writer closed")
	}
	_, err := w.copyStmt.Exec(
		w.id,
		stop.ID,
		w.seq,
		stop.Name,
		stop.Lat,
		stop.Lon,
		stop.WheelchairBoarding,
	)
	if err != nil {
		return fmt.Errorf("copying stop: %w", err)
	}
	w.seq++
	return nil
}

func (w *PSQLCatalogWriter) Close() error {
	if w.tx == nil {
		return nil
	}
	tx := w.tx
	w.tx = nil

	// Flush buffered rows
	if _, err := w.copyStmt.Exec(); err != nil {
		tx.Rollback()
		return fmt.Errorf("flushing copy: %w", err)
	}
	if err := w.copyStmt.Close(); err != nil {
		tx.Rollback()
		return fmt.Errorf("closing copy: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing stops: %w", err)
	}

	return nil
}

func (r *PSQLCatalogReader) Stop(id string) (*model.Stop, error) {
	s := &model.Stop{}
	err := r.db.QueryRow(`
SELECT id, name, lat, lon, wheelchair_boarding
FROM stops
WHERE catalog = $1 AND id = $2`, r.id, id).Scan(&s.ID, &s.Name, &s.Lat, &s.Lon, &s.WheelchairBoarding)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrStopNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("querying stop: %w", err)
	}
	return s, nil
}

func (r *PSQLCatalogReader) Stops() ([]*model.Stop, error) {
	rows, err := r.db.Query(`
SELECT id, name, lat, lon, wheelchair_boarding
FROM stops
WHERE catalog = $1
ORDER BY seq`, r.id)
	if err != nil {
		return nil, fmt.Errorf("querying stops: %w", err)
	}
	defer rows.Close()

	stops := []*model.Stop{}
	for rows.Next() {
		s := &model.Stop{}
		err := rows.Scan(&s.ID, &s.Name, &s.Lat, &s.Lon, &s.WheelchairBoarding)
		if err != nil {
			return nil, fmt.Errorf("scanning stop: %w", err)
		}
		stops = append(stops, s)
	}

	return stops, rows.Err()
}

func (r *PSQLCatalogReader) NearbyStops(lat float64, lng float64, limit int) ([]model.Stop, error) {
	stops, err := r.Stops()
	if err != nil {
		return nil, fmt.Errorf("getting all stops: %w", err)
	}
	return sortByDistance(stops, lat, lng, limit), nil
}
