package core

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/zenithphoto/catalog/internal/payload"
)

// ApplyEdit replaces the current edit state of an image wholesale and
// appends an immutable snapshot of the new state to the edit history.
// Both writes happen in one transaction so the current state and the
// newest history entry never diverge.
func (s *Store) ApplyEdit(ctx context.Context, imageID int64, state EditState) (*EditState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, wrapError("apply_edit", ErrStoreClosed)
	}

	toneCurve, err := encodePayload(state.ToneCurve, "tone_curve")
	if err != nil {
		return nil, wrapError("apply_edit", err)
	}
	colorGrading, err := encodePayload(state.ColorGrading, "color_grading")
	if err != nil {
		return nil, wrapError("apply_edit", err)
	}
	crop, err := encodePayload(state.Crop, "crop")
	if err != nil {
		return nil, wrapError("apply_edit", err)
	}
	masking, err := encodePayload(state.Masking, "masking")
	if err != nil {
		return nil, wrapError("apply_edit", err)
	}

	now := time.Now()
	state.UpdatedAt = now.UTC()
	snapshot, err := payload.Encode(&state)
	if err != nil {
		return nil, wrapError("apply_edit", fmt.Errorf("failed to encode edit snapshot: %w", err))
	}

	tx, err := s.beginTx(ctx)
	if err != nil {
		return nil, wrapError("apply_edit", err)
	}
	defer s.rollback(tx)

	var exists int
	err = tx.QueryRowContext(ctx, "SELECT 1 FROM images WHERE id = ?", imageID).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, wrapError("apply_edit", fmt.Errorf("%w: image id=%d", ErrNotFound, imageID))
	}
	if err != nil {
		return nil, wrapError("apply_edit", err)
	}

	nowStr := fmtTime(now)
	_, err = tx.ExecContext(ctx, `
		INSERT INTO edits (
			image_id, exposure, contrast, highlights, shadows, whites, blacks,
			vibrance, saturation, temperature, tint, texture, clarity, dehaze,
			tone_curve_json, color_grading_json, crop_json, masking_json, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(image_id) DO UPDATE SET
			exposure = excluded.exposure,
			contrast = excluded.contrast,
			highlights = excluded.highlights,
			shadows = excluded.shadows,
			whites = excluded.whites,
			blacks = excluded.blacks,
			vibrance = excluded.vibrance,
			saturation = excluded.saturation,
			temperature = excluded.temperature,
			tint = excluded.tint,
			texture = excluded.texture,
			clarity = excluded.clarity,
			dehaze = excluded.dehaze,
			tone_curve_json = excluded.tone_curve_json,
			color_grading_json = excluded.color_grading_json,
			crop_json = excluded.crop_json,
			masking_json = excluded.masking_json,
			updated_at = excluded.updated_at`,
		imageID,
		state.Exposure, state.Contrast, state.Highlights, state.Shadows,
		state.Whites, state.Blacks, state.Vibrance, state.Saturation,
		state.Temperature, state.Tint, state.Texture, state.Clarity, state.Dehaze,
		toneCurve, colorGrading, crop, masking, nowStr,
	)
	if err != nil {
		return nil, wrapError("apply_edit", mapSQLiteError(err))
	}

	_, err = tx.ExecContext(ctx,
		"INSERT INTO edit_history (image_id, edits_json, created_at) VALUES (?, ?, ?)",
		imageID, string(snapshot), nowStr,
	)
	if err != nil {
		return nil, wrapError("apply_edit", mapSQLiteError(err))
	}

	_, err = tx.ExecContext(ctx,
		"UPDATE images SET updated_at = ? WHERE id = ?", nowStr, imageID,
	)
	if err != nil {
		return nil, wrapError("apply_edit", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, wrapError("apply_edit", fmt.Errorf("failed to commit edit: %w", err))
	}

	s.logger.Debug().Int64("image_id", imageID).Msg("edit applied")
	return &state, nil
}

func encodePayload[T any](p *T, field string) (any, error) {
	if p == nil {
		return nil, nil
	}
	data, err := payload.Encode(p)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrInvalidPayload, field, err)
	}
	return string(data), nil
}

// GetEditState returns the current edit state of an image, or ErrNotFound
// when the image has never been edited.
func (s *Store) GetEditState(ctx context.Context, imageID int64) (*EditState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, wrapError("get_edit_state", ErrStoreClosed)
	}

	var (
		state        EditState
		toneCurve    sql.NullString
		colorGrading sql.NullString
		crop         sql.NullString
		masking      sql.NullString
		updatedAt    string
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT exposure, contrast, highlights, shadows, whites, blacks,
		       vibrance, saturation, temperature, tint, texture, clarity, dehaze,
		       tone_curve_json, color_grading_json, crop_json, masking_json, updated_at
		FROM edits WHERE image_id = ?`, imageID,
	).Scan(
		&state.Exposure, &state.Contrast, &state.Highlights, &state.Shadows,
		&state.Whites, &state.Blacks, &state.Vibrance, &state.Saturation,
		&state.Temperature, &state.Tint, &state.Texture, &state.Clarity, &state.Dehaze,
		&toneCurve, &colorGrading, &crop, &masking, &updatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, wrapError("get_edit_state", fmt.Errorf("%w: no edits for image id=%d", ErrNotFound, imageID))
	}
	if err != nil {
		return nil, wrapError("get_edit_state", err)
	}

	if toneCurve.Valid {
		state.ToneCurve = &payload.ToneCurve{}
		if err := payload.Decode([]byte(toneCurve.String), state.ToneCurve); err != nil {
			return nil, wrapError("get_edit_state", fmt.Errorf("corrupt tone curve: %w", err))
		}
	}
	if colorGrading.Valid {
		state.ColorGrading = &payload.ColorGrading{}
		if err := payload.Decode([]byte(colorGrading.String), state.ColorGrading); err != nil {
			return nil, wrapError("get_edit_state", fmt.Errorf("corrupt color grading: %w", err))
		}
	}
	if crop.Valid {
		state.Crop = &payload.Crop{}
		if err := payload.Decode([]byte(crop.String), state.Crop); err != nil {
			return nil, wrapError("get_edit_state", fmt.Errorf("corrupt crop: %w", err))
		}
	}
	if masking.Valid {
		state.Masking = &payload.MaskStack{}
		if err := payload.Decode([]byte(masking.String), state.Masking); err != nil {
			return nil, wrapError("get_edit_state", fmt.Errorf("corrupt mask stack: %w", err))
		}
	}
	if state.UpdatedAt, err = parseTime(updatedAt, "updated_at"); err != nil {
		return nil, wrapError("get_edit_state", err)
	}
	return &state, nil
}

// EditHistory returns the full edit ledger for an image, oldest first.
// Entries are never mutated or pruned.
func (s *Store) EditHistory(ctx context.Context, imageID int64) ([]*EditHistoryEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, wrapError("edit_history", ErrStoreClosed)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, image_id, edits_json, created_at
		FROM edit_history WHERE image_id = ?
		ORDER BY created_at, id`, imageID,
	)
	if err != nil {
		return nil, wrapError("edit_history", err)
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			s.logger.Warn().Err(closeErr).Msg("failed to close rows during edit history query")
		}
	}()

	var entries []*EditHistoryEntry
	for rows.Next() {
		var (
			entry     EditHistoryEntry
			snapshot  string
			createdAt string
		)
		if err := rows.Scan(&entry.ID, &entry.ImageID, &snapshot, &createdAt); err != nil {
			return nil, wrapError("edit_history", fmt.Errorf("failed to scan history entry: %w", err))
		}
		entry.Snapshot = []byte(snapshot)
		if entry.CreatedAt, err = parseTime(createdAt, "created_at"); err != nil {
			return nil, wrapError("edit_history", err)
		}
		entries = append(entries, &entry)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapError("edit_history", err)
	}
	return entries, nil
}

// LatestEditSnapshot returns the newest history entry for an image, or
// ErrNotFound when no edit has ever been applied.
func (s *Store) LatestEditSnapshot(ctx context.Context, imageID int64) (*EditHistoryEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, wrapError("latest_edit_snapshot", ErrStoreClosed)
	}

	var (
		entry     EditHistoryEntry
		snapshot  string
		createdAt string
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT id, image_id, edits_json, created_at
		FROM edit_history WHERE image_id = ?
		ORDER BY created_at DESC, id DESC LIMIT 1`, imageID,
	).Scan(&entry.ID, &entry.ImageID, &snapshot, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, wrapError("latest_edit_snapshot", fmt.Errorf("%w: no edits for image id=%d", ErrNotFound, imageID))
	}
	if err != nil {
		return nil, wrapError("latest_edit_snapshot", err)
	}
	entry.Snapshot = []byte(snapshot)
	if entry.CreatedAt, err = parseTime(createdAt, "created_at"); err != nil {
		return nil, wrapError("latest_edit_snapshot", err)
	}
	return &entry, nil
}
