package storage

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	_ "github.com/mattn/go-sqlite3"

	"github.com/naimul214/busstatus/model"
)

type SQLiteConfig struct {
	OnDisk    bool
	Directory string
}

// Each catalog lives in its own database. On disk, that's
// <Directory>/<catalog>.db.
type SQLiteStorage struct {
	SQLiteConfig

	mutex    sync.Mutex
	catalogs map[string]*sql.DB
}

type SQLiteCatalogWriter struct {
	db         *sql.DB
	tx         *sql.Tx
	insertStmt *sql.Stmt
}

type SQLiteCatalogReader struct {
	db *sql.DB
}

func NewSQLiteStorage(cfg ...SQLiteConfig) (*SQLiteStorage, error) {
	onDisk := false
	directory := ""
	if len(cfg) > 0 {
		onDisk = cfg[0].OnDisk
		directory = cfg[0].Directory
	}

	if onDisk {
		err := os.MkdirAll(directory, 0755)
		if err != nil {
			return nil, fmt.Errorf("creating directory: %w", err)
		}
	}

	return &SQLiteStorage{
		SQLiteConfig: SQLiteConfig{
			OnDisk:    onDisk,
			Directory: directory,
		},
		catalogs: map[string]*sql.DB{},
	}, nil
}

func (s *SQLiteStorage) sourceName(catalog string) string {
	if !s.OnDisk {
		return ":memory:"
	}
	return filepath.Join(s.Directory, catalog+".db")
}

func (s *SQLiteStorage) open(sourceName string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", sourceName)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// Every connection to :memory: is a separate database.
	if !s.OnDisk {
		db.SetMaxOpenConns(1)
	}

	return db, nil
}

func (s *SQLiteStorage) GetReader(catalog string) (CatalogReader, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	db, found := s.catalogs[catalog]
	if found {
		return &SQLiteCatalogReader{db: db}, nil
	}
	if !s.OnDisk {
		return nil, fmt.Errorf("%w: %s", ErrCatalogNotFound, catalog)
	}

	sourceName := s.sourceName(catalog)
	if _, err := os.Stat(sourceName); os.IsNotExist(err) {
		return nil, fmt.Errorf("%w: %s at %s", ErrCatalogNotFound, catalog, sourceName)
	}

	db, err := s.open(sourceName)
	if err != nil {
		return nil, err
	}

	s.catalogs[catalog] = db

	return &SQLiteCatalogReader{db: db}, nil
}

func (s *SQLiteStorage) GetWriter(catalog string) (CatalogWriter, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if db, found := s.catalogs[catalog]; found {
		db.Close()
		delete(s.catalogs, catalog)
	}

	sourceName := s.sourceName(catalog)
	if s.OnDisk {
		// delete file if it exists
		if _, err := os.Stat(sourceName); err == nil {
			err := os.Remove(sourceName)
			if err != nil {
				return nil, fmt.Errorf("removing existing database: %w", err)
			}
		}
	}

	db, err := s.open(sourceName)
	if err != nil {
		return nil, err
	}

	_, err = db.Exec(`
CREATE TABLE stops (
    id TEXT PRIMARY KEY,
    seq INTEGER NOT NULL,
    name TEXT NOT NULL,
    lat REAL NOT NULL,
    lon REAL NOT NULL,
    wheelchair_boarding INTEGER NOT NULL
);`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating stops table: %w", err)
	}

	tx, err := db.Begin()
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}

	stmt, err := tx.Prepare(`
INSERT INTO stops (id, seq, name, lat, lon, wheelchair_boarding)
VALUES (?, (SELECT COUNT(*) FROM stops), ?, ?, ?, ?)`)
	if err != nil {
		tx.Rollback()
		db.Close()
		return nil, fmt.Errorf("preparing insert: %w", err)
	}

	s.catalogs[catalog] = db

	return &SQLiteCatalogWriter{
		db:         db,
		tx:         tx,
		insertStmt: stmt,
	}, nil
}

func (w *SQLiteCatalogWriter) WriteStop(stop *model.Stop) error {
	if w.tx == nil {
		return fmt.Errorf("writer closed")
	}
	_, err := w.insertStmt.Exec(
		stop.ID,
		stop.Name,
		stop.Lat,
		stop.Lon,
		stop.WheelchairBoarding,
	)
	if err != nil {
		return fmt.Errorf("inserting stop: %w", err)
	}
	return nil
}

func (w *SQLiteCatalogWriter) Close() error {
	if w.tx == nil {
		return nil
	}

	w.insertStmt.Close()
	err := w.tx.Commit()
	w.tx = nil
	if err != nil {
		return fmt.Errorf("committing stops: %w", err)
	}

	return nil
}

func (r *SQLiteCatalogReader) Stop(id string) (*model.Stop, error) {
	s := &model.Stop{}
	err := r.db.QueryRow(`
SELECT id, name, lat, lon, wheelchair_boarding
FROM stops
WHERE id = ?`, id).Scan(&s.ID, &s.Name, &s.Lat, &s.Lon, &s.WheelchairBoarding)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrStopNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("querying stop: %w", err)
	}
	return s, nil
}

func (r *SQLiteCatalogReader) Stops() ([]*model.Stop, error) {
	rows, err := r.db.Query(`
SELECT id, name, lat, lon, wheelchair_boarding
FROM stops
ORDER BY seq`)
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

func (r *SQLiteCatalogReader) NearbyStops(lat float64, lng float64, limit int) ([]model.Stop, error) {
	stops, err := r.Stops()
	if err != nil {
		return nil, fmt.Errorf("getting all stops: %w", err)
	}
	return sortByDistance(stops, lat, lng, limit), nil
}
