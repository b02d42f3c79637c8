// Package store keeps a ledger of rendered overlays.
package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	_ "modernc.org/sqlite"
)

// Render is one ledger row.
type Render struct {
	ID          int64     `json:"id" db:"id"`
	Slide       string    `json:"slide" db:"slide"`
	Level       int       `json:"level" db:"level"`
	Width       int       `json:"width" db:"width"`
	Height      int       `json:"height" db:"height"`
	Cells       int       `json:"cells" db:"cells"`
	OverlayPath string    `json:"overlay_path" db:"overlay_path"`
	MaskPath    string    `json:"mask_path" db:"mask_path"`
	CellCSVPath string    `json:"cell_csv_path,omitempty" db:"cell_csv_path"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
}

// Store records renders.
type Store interface {
	CreateSchema() error
	RecordRender(r Render) (int64, error)
	ListRenders() ([]Render, error)
	RendersForSlide(slide string) ([]Render, error)
	Close() error
}

// New opens a store of the given type and ensures its schema exists.
func New(storeType, connectionString string) (Store, error) {
	var s Store
	var err error

	switch storeType {
	case "sqlite":
		s, err = NewSQLiteStore(connectionString)
		if err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("unsupported database driver: %s", storeType)
	}

	log.Debug().Str("type", storeType).Msg("ensuring render ledger schema")
	if err := s.CreateSchema(); err != nil {
		_ = s.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}
	return s, nil
}

// SQLiteStore is a Store backed by modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens the database without creating tables.
func NewSQLiteStore(connectionString string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", connectionString)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database: %w", err)
	}
	// In-memory databases exist per connection.
	db.SetMaxOpenConns(1)
	return &SQLiteStore{db: db}, nil
}

// CreateSchema creates the renders table if it does not exist.
func (s *SQLiteStore) CreateSchema() error {
	_, err := s.db.Exec(`CREATE TABLE IF NOT EXISTS renders (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		slide TEXT NOT NULL,
		level INTEGER NOT NULL,
		width INTEGER NOT NULL,
		height INTEGER NOT NULL,
		cells INTEGER NOT NULL,
		overlay_path TEXT NOT NULL,
		mask_path TEXT NOT NULL,
		cell_csv_path TEXT NOT NULL DEFAULT '',
		created_at INTEGER NOT NULL
	)`)
	if err != nil {
		return err
	}
	_, err = s.db.Exec(`CREATE INDEX IF NOT EXISTS renders_slide ON renders (slide)`)
	return err
}

// RecordRender inserts r and returns its id. A zero CreatedAt is set to now.
func (s *SQLiteStore) RecordRender(r Render) (int64, error) {
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now()
	}

	res, err := s.db.Exec(`INSERT INTO renders
		(slide, level, width, height, cells, overlay_path, mask_path, cell_csv_path, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.Slide, r.Level, r.Width, r.Height, r.Cells,
		r.OverlayPath, r.MaskPath, r.CellCSVPath, r.CreatedAt.UnixMilli())
	if err != nil {
		return 0, fmt.Errorf("failed to record render of %s: %w", r.Slide, err)
	}
	return res.LastInsertId()
}

// ListRenders returns every render, oldest first.
func (s *SQLiteStore) ListRenders() ([]Render, error) {
	return s.query(`SELECT id, slide, level, width, height, cells, overlay_path, mask_path, cell_csv_path, created_at
		FROM renders ORDER BY id`)
}

// RendersForSlide returns the renders of one slide, oldest first.
func (s *SQLiteStore) RendersForSlide(slide string) ([]Render, error) {
	return s.query(`SELECT id, slide, level, width, height, cells, overlay_path, mask_path, cell_csv_path, created_at
		FROM renders WHERE slide = ? ORDER BY id`, slide)
}

func (s *SQLiteStore) query(q string, args ...any) ([]Render, error) {
	rows, err := s.db.Query(q, args...)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = rows.Close()
	}()

	var renders []Render
	for rows.Next() {
		var r Render
		var created int64
		if err := rows.Scan(&r.ID, &r.Slide, &r.Level, &r.Width, &r.Height, &r.Cells,
			&r.OverlayPath, &r.MaskPath, &r.CellCSVPath, &created); err != nil {
			return nil, err
		}
		r.CreatedAt = time.UnixMilli(created)
		renders = append(renders, r)
	}
	return renders, rows.Err()
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}
