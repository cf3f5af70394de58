package core

import (
	"context"
	"database/sql"
	"errors"
	"time"
)

// Stats summarizes catalog contents.
type Stats struct {
	Folders     int64            `json:"folders"`
	Images      int64            `json:"images"`
	Keywords    int64            `json:"keywords"`
	Collections int64            `json:"collections"`
	Edited      int64            `json:"edited"`
	ByCamera    map[string]int64 `json:"by_camera,omitempty"`
	LastImport  *time.Time       `json:"last_import,omitempty"`
}

// GetStats computes catalog-wide counts in one pass.
func (s *Store) GetStats(ctx context.Context) (*Stats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, wrapError("get_stats", ErrStoreClosed)
	}

	var stats Stats
	err := s.db.QueryRowContext(ctx, `
		SELECT
			(SELECT COUNT(*) FROM folders),
			(SELECT COUNT(*) FROM images),
			(SELECT COUNT(*) FROM keywords),
			(SELECT COUNT(*) FROM collections),
			(SELECT COUNT(*) FROM edits)`,
	).Scan(&stats.Folders, &stats.Images, &stats.Keywords, &stats.Collections, &stats.Edited)
	if err != nil {
		return nil, wrapError("get_stats", err)
	}

	var lastImport sql.NullString
	err = s.db.QueryRowContext(ctx, "SELECT MAX(imported_at) FROM images").Scan(&lastImport)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, wrapError("get_stats", err)
	}
	if stats.LastImport, err = parseTimeOpt(nullStr(lastImport), "imported_at"); err != nil {
		return nil, wrapError("get_stats", err)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT camera_model, COUNT(*) FROM images
		WHERE camera_model IS NOT NULL
		GROUP BY camera_model`,
	)
	if err != nil {
		return nil, wrapError("get_stats", err)
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			s.logger.Warn().Err(closeErr).Msg("failed to close rows during stats query")
		}
	}()

	stats.ByCamera = make(map[string]int64)
	for rows.Next() {
		var (
			model string
			count int64
		)
		if err := rows.Scan(&model, &count); err != nil {
			return nil, wrapError("get_stats", err)
		}
		stats.ByCamera[model] = count
	}
	if err := rows.Err(); err != nil {
		return nil, wrapError("get_stats", err)
	}
	return &stats, nil
}

// CountByCamera returns image counts grouped by camera model. Images
// without camera metadata are excluded.
func (s *Store) CountByCamera(ctx context.Context) (map[string]int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, wrapError("count_by_camera", ErrStoreClosed)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT camera_model, COUNT(*) FROM images
		WHERE camera_model IS NOT NULL
		GROUP BY camera_model`,
	)
	if err != nil {
		return nil, wrapError("count_by_camera", err)
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			s.logger.Warn().Err(closeErr).Msg("failed to close rows during camera count")
		}
	}()

	counts := make(map[string]int64)
	for rows.Next() {
		var (
			model string
			count int64
		)
		if err := rows.Scan(&model, &count); err != nil {
			return nil, wrapError("count_by_camera", err)
		}
		counts[model] = count
	}
	if err := rows.Err(); err != nil {
		return nil, wrapError("count_by_camera", err)
	}
	return counts, nil
}

// LastImportTime returns the most recent import timestamp, or nil for an
// empty catalog.
func (s *Store) LastImportTime(ctx context.Context) (*time.Time, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, wrapError("last_import_time", ErrStoreClosed)
	}

	var last sql.NullString
	err := s.db.QueryRowContext(ctx, "SELECT MAX(imported_at) FROM images").Scan(&last)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, wrapError("last_import_time", err)
	}
	t, err := parseTimeOpt(nullStr(last), "imported_at")
	if err != nil {
		return nil, wrapError("last_import_time", err)
	}
	return t, nil
}

// CountImages returns the number of images in the catalog.
func (s *Store) CountImages(ctx context.Context) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return 0, wrapError("count_images", ErrStoreClosed)
	}

	var count int64
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM images").Scan(&count); err != nil {
		return 0, wrapError("count_images", err)
	}
	return count, nil
}
