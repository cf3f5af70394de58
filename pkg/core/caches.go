package core

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// PutThumbnail stores or replaces the derived thumbnail tiers for an
// image. Nil tiers store as NULL so the two sizes can be filled in
// independently by later calls.
func (s *Store) PutThumbnail(ctx context.Context, imageID int64, thumb256, thumb1024 []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return wrapError("put_thumbnail", ErrStoreClosed)
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO thumbnails (image_id, thumb_256, thumb_1024, updated_at) VALUES (?, ?, ?, ?)
		ON CONFLICT(image_id) DO UPDATE SET
			thumb_256 = COALESCE(excluded.thumb_256, thumb_256),
			thumb_1024 = COALESCE(excluded.thumb_1024, thumb_1024),
			updated_at = excluded.updated_at`,
		imageID, thumb256, thumb1024, fmtTime(time.Now()),
	)
	if err != nil {
		if isConstraintErr(err) {
			return wrapError("put_thumbnail", fmt.Errorf("%w: image id=%d", ErrNotFound, imageID))
		}
		return wrapError("put_thumbnail", err)
	}
	return nil
}

// GetThumbnail returns the cached thumbnail row for an image, or
// ErrNotFound when nothing has been rendered yet.
func (s *Store) GetThumbnail(ctx context.Context, imageID int64) (*Thumbnail, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, wrapError("get_thumbnail", ErrStoreClosed)
	}

	var (
		t         Thumbnail
		updatedAt string
	)
	err := s.db.QueryRowContext(ctx,
		"SELECT image_id, thumb_256, thumb_1024, updated_at FROM thumbnails WHERE image_id = ?",
		imageID,
	).Scan(&t.ImageID, &t.Thumb256, &t.Thumb1024, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, wrapError("get_thumbnail", fmt.Errorf("%w: no thumbnail for image id=%d", ErrNotFound, imageID))
	}
	if err != nil {
		return nil, wrapError("get_thumbnail", err)
	}
	if t.UpdatedAt, err = parseTime(updatedAt, "updated_at"); err != nil {
		return nil, wrapError("get_thumbnail", err)
	}
	return &t, nil
}

// DeleteThumbnail invalidates the cached thumbnails for an image.
// Deleting a missing row is a no-op.
func (s *Store) DeleteThumbnail(ctx context.Context, imageID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return wrapError("delete_thumbnail", ErrStoreClosed)
	}
	_, err := s.db.ExecContext(ctx, "DELETE FROM thumbnails WHERE image_id = ?", imageID)
	if err != nil {
		return wrapError("delete_thumbnail", err)
	}
	return nil
}

// PutPreview stores or replaces the full-size preview render for an image.
func (s *Store) PutPreview(ctx context.Context, imageID int64, blob []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return wrapError("put_preview", ErrStoreClosed)
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO previews (image_id, preview_blob, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(image_id) DO UPDATE SET
			preview_blob = excluded.preview_blob,
			updated_at = excluded.updated_at`,
		imageID, blob, fmtTime(time.Now()),
	)
	if err != nil {
		if isConstraintErr(err) {
			return wrapError("put_preview", fmt.Errorf("%w: image id=%d", ErrNotFound, imageID))
		}
		return wrapError("put_preview", err)
	}
	return nil
}

// GetPreview returns the cached preview for an image, or ErrNotFound.
func (s *Store) GetPreview(ctx context.Context, imageID int64) (*Preview, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, wrapError("get_preview", ErrStoreClosed)
	}

	var (
		p         Preview
		updatedAt string
	)
	err := s.db.QueryRowContext(ctx,
		"SELECT image_id, preview_blob, updated_at FROM previews WHERE image_id = ?",
		imageID,
	).Scan(&p.ImageID, &p.Blob, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, wrapError("get_preview", fmt.Errorf("%w: no preview for image id=%d", ErrNotFound, imageID))
	}
	if err != nil {
		return nil, wrapError("get_preview", err)
	}
	if p.UpdatedAt, err = parseTime(updatedAt, "updated_at"); err != nil {
		return nil, wrapError("get_preview", err)
	}
	return &p, nil
}

// DeletePreview invalidates the cached preview for an image. Deleting a
// missing row is a no-op.
func (s *Store) DeletePreview(ctx context.Context, imageID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return wrapError("delete_preview", ErrStoreClosed)
	}
	_, err := s.db.ExecContext(ctx, "DELETE FROM previews WHERE image_id = ?", imageID)
	if err != nil {
		return wrapError("delete_preview", err)
	}
	return nil
}
