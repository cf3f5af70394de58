// Package core implements the persistent catalog store for a photo
// library: folders, images, non-destructive edit state and history,
// keywords, ordered collections and derived visual caches, all backed by a
// single embedded SQLite database.
package core

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	_ "modernc.org/sqlite" // SQLite driver
)

// Store is the SQLite-backed catalog store. One process opens a catalog
// with a single writer role; readers run concurrently under WAL.
type Store struct {
	db     *sql.DB
	config Config
	logger zerolog.Logger
	mu     sync.RWMutex
	closed bool
}

// Config controls how a catalog store is opened.
type Config struct {
	// Path is the catalog database file. Required.
	Path string
	// Logger receives store diagnostics. Defaults to a no-op logger.
	Logger zerolog.Logger
	// BusyTimeout bounds how long a statement waits on a locked database.
	BusyTimeout time.Duration
	// ImportChunkSize caps how many images a single batch-import
	// transaction writes, bounding writer lock hold time.
	ImportChunkSize int
}

// DefaultConfig returns the default store configuration for path.
func DefaultConfig(path string) Config {
	return Config{
		Path:            path,
		Logger:          zerolog.Nop(),
		BusyTimeout:     5 * time.Second,
		ImportChunkSize: 64,
	}
}

// New creates a catalog store for the given database path. Call Init to
// open the database and apply the schema.
func New(path string) (*Store, error) {
	return NewWithConfig(DefaultConfig(path))
}

// NewWithConfig creates a catalog store with custom configuration.
func NewWithConfig(config Config) (*Store, error) {
	if config.Path == "" {
		return nil, wrapError("init", fmt.Errorf("catalog path cannot be empty"))
	}
	if config.BusyTimeout <= 0 {
		config.BusyTimeout = 5 * time.Second
	}
	if config.ImportChunkSize <= 0 {
		config.ImportChunkSize = 64
	}
	return &Store{config: config, logger: config.Logger}, nil
}

// Init opens the database, applies pragmas and the base schema, ensures the
// singleton metadata row exists, runs pending migrations and records the
// open in last_opened.
func (s *Store) Init(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return wrapError("init", ErrStoreClosed)
	}

	// journal_mode=WAL: readers never block on the writer.
	// foreign_keys must be in the DSN so every pooled connection enforces
	// the cascade rules, not just the one a PRAGMA exec happens to hit.
	dsn := fmt.Sprintf(
		"%s?_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)&_pragma=busy_timeout(%d)&_pragma=foreign_keys(1)",
		s.config.Path, s.config.BusyTimeout.Milliseconds(),
	)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return wrapError("init", fmt.Errorf("failed to open database: %w", err))
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(4)
	db.SetConnMaxLifetime(2 * time.Hour)

	s.db = db

	if err := s.createSchema(ctx); err != nil {
		return wrapError("init", err)
	}
	if err := s.initializeMetadata(ctx); err != nil {
		return wrapError("init", err)
	}
	if err := s.migrate(ctx); err != nil {
		return wrapError("init", err)
	}
	if err := s.touchOpenedLocked(ctx); err != nil {
		return wrapError("init", err)
	}

	s.logger.Info().Str("path", s.config.Path).Msg("catalog opened")
	return nil
}

// createSchema applies the baseline catalog schema.
func (s *Store) createSchema(ctx context.Context) error {
	const schemaSQL = `
	CREATE TABLE IF NOT EXISTS catalog_metadata (
		id INTEGER PRIMARY KEY CHECK (id = 1),
		schema_version INTEGER NOT NULL,
		catalog_uuid TEXT NOT NULL,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL,
		last_opened TEXT
	);

	CREATE TABLE IF NOT EXISTS folders (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		path TEXT NOT NULL UNIQUE,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS images (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		folder_id INTEGER NOT NULL REFERENCES folders(id) ON DELETE CASCADE,
		filename TEXT NOT NULL,
		original_path TEXT NOT NULL UNIQUE,
		sidecar_path TEXT,
		sidecar_hash TEXT,
		filesize INTEGER,
		file_hash TEXT,
		file_modified_at TEXT,
		imported_at TEXT NOT NULL,
		captured_at TEXT,
		camera_make TEXT,
		camera_model TEXT,
		lens_model TEXT,
		focal_length REAL,
		aperture REAL,
		shutter_speed REAL,
		iso INTEGER,
		orientation INTEGER,
		gps_latitude REAL,
		gps_longitude REAL,
		gps_altitude REAL,
		rating INTEGER CHECK (rating BETWEEN 0 AND 5),
		flag TEXT CHECK (flag IN ('picked','rejected') OR flag IS NULL),
		color_label TEXT CHECK (
			color_label IN ('red','yellow','green','blue','purple','orange','teal')
			OR color_label IS NULL
		),
		metadata_json TEXT CHECK (metadata_json IS NULL OR json_valid(metadata_json)),
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_images_folder_id ON images(folder_id);
	CREATE INDEX IF NOT EXISTS idx_images_captured_at ON images(captured_at);
	CREATE INDEX IF NOT EXISTS idx_images_file_hash ON images(file_hash);

	CREATE TABLE IF NOT EXISTS edits (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		image_id INTEGER NOT NULL UNIQUE REFERENCES images(id) ON DELETE CASCADE,
		exposure REAL,
		contrast REAL,
		highlights REAL,
		shadows REAL,
		whites REAL,
		blacks REAL,
		vibrance REAL,
		saturation REAL,
		temperature REAL,
		tint REAL,
		texture REAL,
		clarity REAL,
		dehaze REAL,
		tone_curve_json TEXT CHECK (tone_curve_json IS NULL OR json_valid(tone_curve_json)),
		color_grading_json TEXT CHECK (color_grading_json IS NULL OR json_valid(color_grading_json)),
		crop_json TEXT CHECK (crop_json IS NULL OR json_valid(crop_json)),
		masking_json TEXT CHECK (masking_json IS NULL OR json_valid(masking_json)),
		updated_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS edit_history (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		image_id INTEGER NOT NULL REFERENCES images(id) ON DELETE CASCADE,
		edits_json TEXT NOT NULL CHECK (json_valid(edits_json)),
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_edit_history_image ON edit_history(image_id, created_at);

	CREATE TABLE IF NOT EXISTS keywords (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		keyword TEXT NOT NULL UNIQUE
	);

	CREATE TABLE IF NOT EXISTS image_keywords (
		image_id INTEGER NOT NULL REFERENCES images(id) ON DELETE CASCADE,
		keyword_id INTEGER NOT NULL REFERENCES keywords(id) ON DELETE CASCADE,
		assigned_at TEXT NOT NULL,
		PRIMARY KEY (image_id, keyword_id)
	);

	CREATE TABLE IF NOT EXISTS collections (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL,
		parent_id INTEGER REFERENCES collections(id) ON DELETE CASCADE,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS collection_images (
		collection_id INTEGER NOT NULL REFERENCES collections(id) ON DELETE CASCADE,
		image_id INTEGER NOT NULL REFERENCES images(id) ON DELETE CASCADE,
		position INTEGER NOT NULL,
		added_at TEXT NOT NULL,
		PRIMARY KEY (collection_id, image_id)
	);

	CREATE INDEX IF NOT EXISTS idx_collection_images_position
		ON collection_images(collection_id, position);

	CREATE TABLE IF NOT EXISTS thumbnails (
		image_id INTEGER PRIMARY KEY REFERENCES images(id) ON DELETE CASCADE,
		thumb_256 BLOB,
		thumb_1024 BLOB,
		updated_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS previews (
		image_id INTEGER PRIMARY KEY REFERENCES images(id) ON DELETE CASCADE,
		preview_blob BLOB,
		updated_at TEXT NOT NULL
	);
	`

	if _, err := s.db.ExecContext(ctx, schemaSQL); err != nil {
		return fmt.Errorf("failed to create tables: %w", err)
	}
	return nil
}

// Close closes the underlying database. Further calls on the store return
// ErrStoreClosed.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	if s.db == nil {
		return nil
	}
	if err := s.db.Close(); err != nil {
		return wrapError("close", err)
	}
	s.logger.Info().Str("path", s.config.Path).Msg("catalog closed")
	return nil
}

// beginTx starts a write transaction with rollback handled by the caller's
// defer; commit aborts the deferred rollback.
func (s *Store) beginTx(ctx context.Context) (*sql.Tx, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	return tx, nil
}

// rollback discards tx, logging any failure other than the transaction
// already being finished.
func (s *Store) rollback(tx *sql.Tx) {
	if err := tx.Rollback(); err != nil && err != sql.ErrTxDone {
		s.logger.Warn().Err(err).Msg("failed to rollback transaction")
	}
}
