package core

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/zenithphoto/catalog/internal/payload"
)

const imageColumns = `id, folder_id, filename, original_path, sidecar_path, sidecar_hash,
	filesize, file_hash, file_modified_at, imported_at, captured_at,
	camera_make, camera_model, lens_model, focal_length, aperture, shutter_speed,
	iso, orientation, gps_latitude, gps_longitude, gps_altitude,
	rating, flag, color_label, metadata_json, created_at, updated_at`

const insertImageSQL = `
	INSERT INTO images (
		folder_id, filename, original_path, sidecar_path, sidecar_hash,
		filesize, file_hash, file_modified_at, imported_at, captured_at,
		camera_make, camera_model, lens_model, focal_length, aperture, shutter_speed,
		iso, orientation, gps_latitude, gps_longitude, gps_altitude,
		rating, flag, color_label, metadata_json, created_at, updated_at
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

// ImportImage registers a single image under folderID. The original path
// must be unique across the catalog; re-importing an already registered
// path returns ErrConstraint and leaves the existing record unchanged.
func (s *Store) ImportImage(ctx context.Context, folderID int64, attrs ImportAttrs) (*Image, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, wrapError("import_image", ErrStoreClosed)
	}
	if err := validateImportAttrs(&attrs); err != nil {
		return nil, wrapError("import_image", err)
	}

	now := fmtTime(time.Now())
	res, err := s.db.ExecContext(ctx, insertImageSQL, importArgs(folderID, &attrs, now, now)...)
	if err != nil {
		return nil, wrapError("import_image", mapSQLiteError(err))
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, wrapError("import_image", fmt.Errorf("failed to get image ID: %w", err))
	}

	s.logger.Debug().Int64("image_id", id).Str("path", attrs.OriginalPath).Msg("image imported")
	return s.getImage(ctx, id, "import_image")
}

// ImportImages registers a batch of images under folderID in chunked
// transactions. Each chunk is atomic; a failure aborts the current chunk
// and is returned, leaving earlier chunks committed.
func (s *Store) ImportImages(ctx context.Context, folderID int64, batch []ImportAttrs) ([]int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, wrapError("import_images", ErrStoreClosed)
	}
	if len(batch) == 0 {
		return nil, nil
	}
	for i := range batch {
		if err := validateImportAttrs(&batch[i]); err != nil {
			return nil, wrapError("import_images", fmt.Errorf("image %d (%s): %w", i, batch[i].OriginalPath, err))
		}
	}

	ids := make([]int64, 0, len(batch))
	chunkSize := s.config.ImportChunkSize
	for start := 0; start < len(batch); start += chunkSize {
		end := start + chunkSize
		if end > len(batch) {
			end = len(batch)
		}
		chunkIDs, err := s.importChunk(ctx, folderID, batch[start:end])
		if err != nil {
			return ids, wrapError("import_images", err)
		}
		ids = append(ids, chunkIDs...)
	}

	s.logger.Info().Int64("folder_id", folderID).Int("count", len(ids)).Msg("batch import complete")
	return ids, nil
}

func (s *Store) importChunk(ctx context.Context, folderID int64, chunk []ImportAttrs) ([]int64, error) {
	tx, err := s.beginTx(ctx)
	if err != nil {
		return nil, err
	}
	defer s.rollback(tx)

	stmt, err := tx.PrepareContext(ctx, insertImageSQL)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer func() {
		if closeErr := stmt.Close(); closeErr != nil {
			s.logger.Warn().Err(closeErr).Msg("failed to close statement")
		}
	}()

	now := fmtTime(time.Now())
	ids := make([]int64, 0, len(chunk))
	for i := range chunk {
		res, err := stmt.ExecContext(ctx, importArgs(folderID, &chunk[i], now, now)...)
		if err != nil {
			return nil, fmt.Errorf("failed to import %s: %w", chunk[i].OriginalPath, mapSQLiteError(err))
		}
		id, err := res.LastInsertId()
		if err != nil {
			return nil, fmt.Errorf("failed to get image ID: %w", err)
		}
		ids = append(ids, id)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit import chunk: %w", err)
	}
	return ids, nil
}

func importArgs(folderID int64, attrs *ImportAttrs, importedAt, now string) []any {
	var metadata any
	if attrs.Metadata != nil {
		metadata = string(attrs.Metadata)
	}
	return []any{
		folderID, attrs.Filename, attrs.OriginalPath, attrs.SidecarPath, attrs.SidecarHash,
		attrs.Filesize, attrs.FileHash, fmtTimeOpt(attrs.FileModifiedAt), importedAt,
		fmtTimeOpt(attrs.CapturedAt),
		attrs.CameraMake, attrs.CameraModel, attrs.LensModel,
		attrs.FocalLength, attrs.Aperture, attrs.ShutterSpeed,
		attrs.ISO, attrs.Orientation,
		attrs.GPSLatitude, attrs.GPSLongitude, attrs.GPSAltitude,
		attrs.Rating, attrs.Flag, attrs.ColorLabel, metadata,
		now, now,
	}
}

func validateImportAttrs(attrs *ImportAttrs) error {
	if err := payload.Check(attrs); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			return fmt.Errorf("%w: %v", ErrConstraint, verrs)
		}
		return err
	}
	if attrs.Metadata != nil && !payload.ValidJSON(attrs.Metadata) {
		return fmt.Errorf("%w: metadata is not valid JSON", ErrInvalidPayload)
	}
	return nil
}

// GetImage returns an image by ID.
func (s *Store) GetImage(ctx context.Context, id int64) (*Image, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, wrapError("get_image", ErrStoreClosed)
	}
	return s.getImage(ctx, id, "get_image")
}

func (s *Store) getImage(ctx context.Context, id int64, op string) (*Image, error) {
	img, err := scanImage(s.db.QueryRowContext(ctx,
		"SELECT "+imageColumns+" FROM images WHERE id = ?", id,
	))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, wrapError(op, fmt.Errorf("%w: image id=%d", ErrNotFound, id))
	}
	if err != nil {
		return nil, wrapError(op, fmt.Errorf("failed to load image id=%d: %w", id, err))
	}
	return img, nil
}

// ImageByPath returns the image registered at originalPath.
func (s *Store) ImageByPath(ctx context.Context, originalPath string) (*Image, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, wrapError("image_by_path", ErrStoreClosed)
	}

	img, err := scanImage(s.db.QueryRowContext(ctx,
		"SELECT "+imageColumns+" FROM images WHERE original_path = ?", originalPath,
	))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, wrapError("image_by_path", fmt.Errorf("%w: image path=%s", ErrNotFound, originalPath))
	}
	if err != nil {
		return nil, wrapError("image_by_path", err)
	}
	return img, nil
}

// ImageByHash returns the first image whose file hash matches hash,
// used for duplicate detection at import time.
func (s *Store) ImageByHash(ctx context.Context, hash string) (*Image, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, wrapError("image_by_hash", ErrStoreClosed)
	}

	img, err := scanImage(s.db.QueryRowContext(ctx,
		"SELECT "+imageColumns+" FROM images WHERE file_hash = ? ORDER BY id LIMIT 1", hash,
	))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, wrapError("image_by_hash", fmt.Errorf("%w: image hash=%s", ErrNotFound, hash))
	}
	if err != nil {
		return nil, wrapError("image_by_hash", err)
	}
	return img, nil
}

// ListImages returns every image in folderID ordered by capture time,
// falling back to import time for images without capture metadata.
func (s *Store) ListImages(ctx context.Context, folderID int64) ([]*Image, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, wrapError("list_images", ErrStoreClosed)
	}
	return s.queryImages(ctx, "list_images",
		"SELECT "+imageColumns+" FROM images WHERE folder_id = ? ORDER BY COALESCE(captured_at, imported_at), id",
		folderID,
	)
}

// ListAllImages returns every image in the catalog in capture order.
func (s *Store) ListAllImages(ctx context.Context) ([]*Image, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, wrapError("list_all_images", ErrStoreClosed)
	}
	return s.queryImages(ctx, "list_all_images",
		"SELECT "+imageColumns+" FROM images ORDER BY COALESCE(captured_at, imported_at), id",
	)
}

// RecentlyImported returns the newest limit imports, newest first.
func (s *Store) RecentlyImported(ctx context.Context, limit int) ([]*Image, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, wrapError("recently_imported", ErrStoreClosed)
	}
	if limit <= 0 {
		limit = 50
	}
	return s.queryImages(ctx, "recently_imported",
		"SELECT "+imageColumns+" FROM images ORDER BY imported_at DESC, id DESC LIMIT ?",
		limit,
	)
}

// ListImagesUnder returns images in the folder at root and in every
// folder beneath it, by path prefix.
func (s *Store) ListImagesUnder(ctx context.Context, root string) ([]*Image, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, wrapError("list_images_under", ErrStoreClosed)
	}
	return s.queryImages(ctx, "list_images_under",
		`SELECT `+imageColumns+` FROM images
		 WHERE folder_id IN (SELECT id FROM folders WHERE path = ? OR path LIKE ? || '/%')
		 ORDER BY COALESCE(captured_at, imported_at), id`,
		root, root,
	)
}

// ImagesWithRating returns images rated at or above min, best first.
func (s *Store) ImagesWithRating(ctx context.Context, min int64) ([]*Image, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, wrapError("images_with_rating", ErrStoreClosed)
	}
	if min < 0 || min > 5 {
		return nil, wrapError("images_with_rating", fmt.Errorf("%w: rating %d out of range", ErrConstraint, min))
	}
	return s.queryImages(ctx, "images_with_rating",
		"SELECT "+imageColumns+" FROM images WHERE rating >= ? ORDER BY rating DESC, id",
		min,
	)
}

func (s *Store) queryImages(ctx context.Context, op, query string, args ...any) ([]*Image, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, wrapError(op, fmt.Errorf("failed to query images: %w", err))
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			s.logger.Warn().Err(closeErr).Msg("failed to close rows during image query")
		}
	}()

	var images []*Image
	for rows.Next() {
		img, err := scanImage(rows)
		if err != nil {
			return nil, wrapError(op, fmt.Errorf("failed to scan image: %w", err))
		}
		images = append(images, img)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapError(op, err)
	}
	return images, nil
}

// UpdateMetadata applies a partial update to an image. Nil patch fields
// leave their columns untouched; the update always bumps updated_at.
func (s *Store) UpdateMetadata(ctx context.Context, id int64, patch MetadataPatch) (*Image, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, wrapError("update_metadata", ErrStoreClosed)
	}
	if err := payload.Check(&patch); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			return nil, wrapError("update_metadata", fmt.Errorf("%w: %v", ErrConstraint, verrs))
		}
		return nil, wrapError("update_metadata", err)
	}
	if patch.Metadata != nil && !payload.ValidJSON(patch.Metadata) {
		return nil, wrapError("update_metadata", fmt.Errorf("%w: metadata is not valid JSON", ErrInvalidPayload))
	}

	set := make([]string, 0, 18)
	args := make([]any, 0, 20)
	add := func(col string, v any) {
		set = append(set, col+" = ?")
		args = append(args, v)
	}
	if patch.Filename != nil {
		add("filename", *patch.Filename)
	}
	if patch.SidecarPath != nil {
		add("sidecar_path", *patch.SidecarPath)
	}
	if patch.SidecarHash != nil {
		add("sidecar_hash", *patch.SidecarHash)
	}
	if patch.Filesize != nil {
		add("filesize", *patch.Filesize)
	}
	if patch.FileHash != nil {
		add("file_hash", *patch.FileHash)
	}
	if patch.FileModifiedAt != nil {
		add("file_modified_at", fmtTime(*patch.FileModifiedAt))
	}
	if patch.CapturedAt != nil {
		add("captured_at", fmtTime(*patch.CapturedAt))
	}
	if patch.CameraMake != nil {
		add("camera_make", *patch.CameraMake)
	}
	if patch.CameraModel != nil {
		add("camera_model", *patch.CameraModel)
	}
	if patch.LensModel != nil {
		add("lens_model", *patch.LensModel)
	}
	if patch.FocalLength != nil {
		add("focal_length", *patch.FocalLength)
	}
	if patch.Aperture != nil {
		add("aperture", *patch.Aperture)
	}
	if patch.ShutterSpeed != nil {
		add("shutter_speed", *patch.ShutterSpeed)
	}
	if patch.ISO != nil {
		add("iso", *patch.ISO)
	}
	if patch.Orientation != nil {
		add("orientation", *patch.Orientation)
	}
	if patch.GPSLatitude != nil {
		add("gps_latitude", *patch.GPSLatitude)
	}
	if patch.GPSLongitude != nil {
		add("gps_longitude", *patch.GPSLongitude)
	}
	if patch.GPSAltitude != nil {
		add("gps_altitude", *patch.GPSAltitude)
	}
	if patch.Metadata != nil {
		add("metadata_json", string(patch.Metadata))
	}
	add("updated_at", fmtTime(time.Now()))

	query := "UPDATE images SET "
	for i, clause := range set {
		if i > 0 {
			query += ", "
		}
		query += clause
	}
	query += " WHERE id = ?"
	args = append(args, id)

	if err := s.execImageUpdate(ctx, "update_metadata", id, query, args...); err != nil {
		return nil, err
	}
	return s.getImage(ctx, id, "update_metadata")
}

// SetRating sets the star rating of an image. A nil rating clears it.
func (s *Store) SetRating(ctx context.Context, id int64, rating *int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return wrapError("set_rating", ErrStoreClosed)
	}
	if rating != nil && (*rating < 0 || *rating > 5) {
		return wrapError("set_rating", fmt.Errorf("%w: rating %d out of range 0..5", ErrConstraint, *rating))
	}
	return s.execImageUpdate(ctx, "set_rating", id,
		"UPDATE images SET rating = ?, updated_at = ? WHERE id = ?",
		rating, fmtTime(time.Now()), id,
	)
}

// SetFlag sets the pick flag of an image. A nil flag clears it.
func (s *Store) SetFlag(ctx context.Context, id int64, flag *Flag) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return wrapError("set_flag", ErrStoreClosed)
	}
	if flag != nil && *flag != FlagPicked && *flag != FlagRejected {
		return wrapError("set_flag", fmt.Errorf("%w: invalid flag %q", ErrConstraint, *flag))
	}
	return s.execImageUpdate(ctx, "set_flag", id,
		"UPDATE images SET flag = ?, updated_at = ? WHERE id = ?",
		flag, fmtTime(time.Now()), id,
	)
}

// SetColorLabel sets the color label of an image. A nil label clears it.
func (s *Store) SetColorLabel(ctx context.Context, id int64, label *ColorLabel) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return wrapError("set_color_label", ErrStoreClosed)
	}
	if label != nil && !validColorLabel(*label) {
		return wrapError("set_color_label", fmt.Errorf("%w: invalid color label %q", ErrConstraint, *label))
	}
	return s.execImageUpdate(ctx, "set_color_label", id,
		"UPDATE images SET color_label = ?, updated_at = ? WHERE id = ?",
		label, fmtTime(time.Now()), id,
	)
}

// SetSidecar records the sidecar file path and content hash for an image.
// Nil values clear the corresponding columns.
func (s *Store) SetSidecar(ctx context.Context, id int64, path, hash *string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return wrapError("set_sidecar", ErrStoreClosed)
	}
	return s.execImageUpdate(ctx, "set_sidecar", id,
		"UPDATE images SET sidecar_path = ?, sidecar_hash = ?, updated_at = ? WHERE id = ?",
		path, hash, fmtTime(time.Now()), id,
	)
}

func (s *Store) execImageUpdate(ctx context.Context, op string, id int64, query string, args ...any) error {
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return wrapError(op, mapSQLiteError(err))
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return wrapError(op, fmt.Errorf("failed to get rows affected: %w", err))
	}
	if affected == 0 {
		return wrapError(op, fmt.Errorf("%w: image id=%d", ErrNotFound, id))
	}
	return nil
}

// DeleteImage removes an image and cascades to its edit state, edit
// history, keyword assignments, collection memberships and cached
// renders. The files on disk are untouched.
func (s *Store) DeleteImage(ctx context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return wrapError("delete_image", ErrStoreClosed)
	}

	res, err := s.db.ExecContext(ctx, "DELETE FROM images WHERE id = ?", id)
	if err != nil {
		return wrapError("delete_image", mapSQLiteError(err))
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return wrapError("delete_image", fmt.Errorf("failed to get rows affected: %w", err))
	}
	if affected == 0 {
		return wrapError("delete_image", fmt.Errorf("%w: image id=%d", ErrNotFound, id))
	}

	s.logger.Debug().Int64("image_id", id).Msg("image deleted")
	return nil
}

func validColorLabel(label ColorLabel) bool {
	switch label {
	case LabelRed, LabelYellow, LabelGreen, LabelBlue, LabelPurple, LabelOrange, LabelTeal:
		return true
	}
	return false
}

func scanImage(row rowScanner) (*Image, error) {
	var (
		img            Image
		sidecarPath    sql.NullString
		sidecarHash    sql.NullString
		filesize       sql.NullInt64
		fileHash       sql.NullString
		fileModifiedAt sql.NullString
		importedAt     string
		capturedAt     sql.NullString
		cameraMake     sql.NullString
		cameraModel    sql.NullString
		lensModel      sql.NullString
		focalLength    sql.NullFloat64
		aperture       sql.NullFloat64
		shutterSpeed   sql.NullFloat64
		iso            sql.NullInt64
		orientation    sql.NullInt64
		gpsLat         sql.NullFloat64
		gpsLon         sql.NullFloat64
		gpsAlt         sql.NullFloat64
		rating         sql.NullInt64
		flag           sql.NullString
		colorLabel     sql.NullString
		metadata       sql.NullString
		createdAt      string
		updatedAt      string
	)

	err := row.Scan(
		&img.ID, &img.FolderID, &img.Filename, &img.OriginalPath, &sidecarPath, &sidecarHash,
		&filesize, &fileHash, &fileModifiedAt, &importedAt, &capturedAt,
		&cameraMake, &cameraModel, &lensModel, &focalLength, &aperture, &shutterSpeed,
		&iso, &orientation, &gpsLat, &gpsLon, &gpsAlt,
		&rating, &flag, &colorLabel, &metadata, &createdAt, &updatedAt,
	)
	if err != nil {
		return nil, err
	}

	img.SidecarPath = nullStr(sidecarPath)
	img.SidecarHash = nullStr(sidecarHash)
	img.Filesize = nullInt(filesize)
	img.FileHash = nullStr(fileHash)
	img.CameraMake = nullStr(cameraMake)
	img.CameraModel = nullStr(cameraModel)
	img.LensModel = nullStr(lensModel)
	img.FocalLength = nullFloat(focalLength)
	img.Aperture = nullFloat(aperture)
	img.ShutterSpeed = nullFloat(shutterSpeed)
	img.ISO = nullInt(iso)
	img.Orientation = nullInt(orientation)
	img.GPSLatitude = nullFloat(gpsLat)
	img.GPSLongitude = nullFloat(gpsLon)
	img.GPSAltitude = nullFloat(gpsAlt)
	img.Rating = nullInt(rating)
	if flag.Valid {
		f := Flag(flag.String)
		img.Flag = &f
	}
	if colorLabel.Valid {
		c := ColorLabel(colorLabel.String)
		img.ColorLabel = &c
	}
	if metadata.Valid {
		img.Metadata = []byte(metadata.String)
	}

	if img.ImportedAt, err = parseTime(importedAt, "imported_at"); err != nil {
		return nil, err
	}
	if img.FileModifiedAt, err = parseTimeOpt(nullStr(fileModifiedAt), "file_modified_at"); err != nil {
		return nil, err
	}
	if img.CapturedAt, err = parseTimeOpt(nullStr(capturedAt), "captured_at"); err != nil {
		return nil, err
	}
	if img.CreatedAt, err = parseTime(createdAt, "created_at"); err != nil {
		return nil, err
	}
	if img.UpdatedAt, err = parseTime(updatedAt, "updated_at"); err != nil {
		return nil, err
	}
	return &img, nil
}

func nullStr(v sql.NullString) *string {
	if !v.Valid {
		return nil
	}
	return &v.String
}

func nullInt(v sql.NullInt64) *int64 {
	if !v.Valid {
		return nil
	}
	return &v.Int64
}

func nullFloat(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	return &v.Float64
}
