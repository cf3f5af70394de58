package core

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// initializeMetadata inserts the singleton bootstrap row if absent. The row
// id is fixed to 1; repeated calls are no-ops, so exactly one row exists
// regardless of how often a catalog is opened.
func (s *Store) initializeMetadata(ctx context.Context) error {
	now := fmtTime(time.Now())
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO catalog_metadata (id, schema_version, catalog_uuid, created_at, updated_at, last_opened)
		VALUES (1, 1, ?, ?, ?, NULL)
		ON CONFLICT(id) DO NOTHING
	`, uuid.NewString(), now, now)
	if err != nil {
		return fmt.Errorf("failed to initialize catalog metadata: %w", err)
	}
	return nil
}

// TouchOpened records the current time as the catalog's last open.
func (s *Store) TouchOpened(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return wrapError("touch_opened", ErrStoreClosed)
	}
	if err := s.touchOpenedLocked(ctx); err != nil {
		return wrapError("touch_opened", err)
	}
	return nil
}

func (s *Store) touchOpenedLocked(ctx context.Context) error {
	now := fmtTime(time.Now())
	_, err := s.db.ExecContext(ctx, `
		UPDATE catalog_metadata SET last_opened = ?, updated_at = ? WHERE id = 1
	`, now, now)
	if err != nil {
		return fmt.Errorf("failed to touch last_opened: %w", err)
	}
	return nil
}

// Info returns the singleton catalog metadata record.
func (s *Store) Info(ctx context.Context) (*CatalogInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, wrapError("info", ErrStoreClosed)
	}

	var (
		info       CatalogInfo
		createdAt  string
		updatedAt  string
		lastOpened sql.NullString
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT schema_version, catalog_uuid, created_at, updated_at, last_opened
		FROM catalog_metadata WHERE id = 1
	`).Scan(&info.SchemaVersion, &info.CatalogUUID, &createdAt, &updatedAt, &lastOpened)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, wrapError("info", fmt.Errorf("%w: catalog metadata missing", ErrNotFound))
	}
	if err != nil {
		return nil, wrapError("info", fmt.Errorf("failed to load catalog metadata: %w", err))
	}

	if info.CreatedAt, err = parseTime(createdAt, "created_at"); err != nil {
		return nil, wrapError("info", err)
	}
	if info.UpdatedAt, err = parseTime(updatedAt, "updated_at"); err != nil {
		return nil, wrapError("info", err)
	}
	if lastOpened.Valid {
		t, err := parseTime(lastOpened.String, "last_opened")
		if err != nil {
			return nil, wrapError("info", err)
		}
		info.LastOpened = &t
	}
	return &info, nil
}

// SchemaVersion returns the catalog's current schema version.
func (s *Store) SchemaVersion(ctx context.Context) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return 0, wrapError("schema_version", ErrStoreClosed)
	}
	return s.schemaVersionLocked(ctx)
}

func (s *Store) schemaVersionLocked(ctx context.Context) (int64, error) {
	var version int64
	err := s.db.QueryRowContext(ctx,
		"SELECT schema_version FROM catalog_metadata WHERE id = 1",
	).Scan(&version)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to read schema version: %w", err)
	}
	return version, nil
}
