package core

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

// EnsureKeyword returns the vocabulary entry for word, creating it if
// needed. Keywords are case-sensitive and globally unique.
func (s *Store) EnsureKeyword(ctx context.Context, word string) (*Keyword, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, wrapError("ensure_keyword", ErrStoreClosed)
	}
	word = strings.TrimSpace(word)
	if word == "" {
		return nil, wrapError("ensure_keyword", fmt.Errorf("%w: keyword cannot be empty", ErrConstraint))
	}
	kw, err := s.ensureKeyword(ctx, word)
	if err != nil {
		return nil, wrapError("ensure_keyword", err)
	}
	return kw, nil
}

func (s *Store) ensureKeyword(ctx context.Context, word string) (*Keyword, error) {
	kw, err := s.keywordByName(ctx, word)
	if err != nil {
		return nil, err
	}
	if kw != nil {
		return kw, nil
	}

	res, err := s.db.ExecContext(ctx, "INSERT INTO keywords (keyword) VALUES (?)", word)
	if err != nil {
		if isConstraintErr(err) {
			if kw, selErr := s.keywordByName(ctx, word); selErr == nil && kw != nil {
				return kw, nil
			}
		}
		return nil, mapSQLiteError(err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("failed to get keyword ID: %w", err)
	}
	return &Keyword{ID: id, Keyword: word}, nil
}

func (s *Store) keywordByName(ctx context.Context, word string) (*Keyword, error) {
	var kw Keyword
	err := s.db.QueryRowContext(ctx,
		"SELECT id, keyword FROM keywords WHERE keyword = ?", word,
	).Scan(&kw.ID, &kw.Keyword)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find keyword %q: %w", word, err)
	}
	return &kw, nil
}

// TagImage assigns a keyword to an image. The keyword is created on first
// use. Tagging an already tagged image is a no-op.
func (s *Store) TagImage(ctx context.Context, imageID int64, word string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return wrapError("tag_image", ErrStoreClosed)
	}
	word = strings.TrimSpace(word)
	if word == "" {
		return wrapError("tag_image", fmt.Errorf("%w: keyword cannot be empty", ErrConstraint))
	}

	kw, err := s.ensureKeyword(ctx, word)
	if err != nil {
		return wrapError("tag_image", err)
	}
	if err := s.insertAssignment(ctx, imageID, kw.ID); err != nil {
		return wrapError("tag_image", err)
	}
	return nil
}

func (s *Store) insertAssignment(ctx context.Context, imageID, keywordID int64) error {
	_, err := s.db.ExecContext(ctx,
		"INSERT OR IGNORE INTO image_keywords (image_id, keyword_id, assigned_at) VALUES (?, ?, ?)",
		imageID, keywordID, fmtTime(time.Now()),
	)
	if err != nil {
		// FK failure means the image does not exist; keyword existence is
		// guaranteed by the caller.
		if isConstraintErr(err) {
			return fmt.Errorf("%w: image id=%d", ErrNotFound, imageID)
		}
		return err
	}
	return nil
}

// UntagImage removes a keyword assignment from an image. Removing an
// assignment that does not exist is a no-op; an unknown keyword is
// ErrNotFound.
func (s *Store) UntagImage(ctx context.Context, imageID int64, word string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return wrapError("untag_image", ErrStoreClosed)
	}

	kw, err := s.keywordByName(ctx, word)
	if err != nil {
		return wrapError("untag_image", err)
	}
	if kw == nil {
		return wrapError("untag_image", fmt.Errorf("%w: keyword %q", ErrNotFound, word))
	}

	_, err = s.db.ExecContext(ctx,
		"DELETE FROM image_keywords WHERE image_id = ? AND keyword_id = ?",
		imageID, kw.ID,
	)
	if err != nil {
		return wrapError("untag_image", err)
	}
	return nil
}

// ReplaceKeywords atomically replaces the full keyword set of an image,
// creating vocabulary entries as needed.
func (s *Store) ReplaceKeywords(ctx context.Context, imageID int64, words []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return wrapError("replace_keywords", ErrStoreClosed)
	}
	for _, w := range words {
		if strings.TrimSpace(w) == "" {
			return wrapError("replace_keywords", fmt.Errorf("%w: keyword cannot be empty", ErrConstraint))
		}
	}

	tx, err := s.beginTx(ctx)
	if err != nil {
		return wrapError("replace_keywords", err)
	}
	defer s.rollback(tx)

	var exists int
	err = tx.QueryRowContext(ctx, "SELECT 1 FROM images WHERE id = ?", imageID).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return wrapError("replace_keywords", fmt.Errorf("%w: image id=%d", ErrNotFound, imageID))
	}
	if err != nil {
		return wrapError("replace_keywords", err)
	}

	if _, err := tx.ExecContext(ctx, "DELETE FROM image_keywords WHERE image_id = ?", imageID); err != nil {
		return wrapError("replace_keywords", err)
	}

	now := fmtTime(time.Now())
	for _, w := range words {
		w = strings.TrimSpace(w)
		if _, err := tx.ExecContext(ctx, "INSERT OR IGNORE INTO keywords (keyword) VALUES (?)", w); err != nil {
			return wrapError("replace_keywords", mapSQLiteError(err))
		}
		_, err := tx.ExecContext(ctx, `
			INSERT OR IGNORE INTO image_keywords (image_id, keyword_id, assigned_at)
			SELECT ?, id, ? FROM keywords WHERE keyword = ?`,
			imageID, now, w,
		)
		if err != nil {
			return wrapError("replace_keywords", mapSQLiteError(err))
		}
	}

	if err := tx.Commit(); err != nil {
		return wrapError("replace_keywords", fmt.Errorf("failed to commit keyword replacement: %w", err))
	}
	return nil
}

// ImageKeywords returns the keywords assigned to an image, alphabetically.
func (s *Store) ImageKeywords(ctx context.Context, imageID int64) ([]*Keyword, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, wrapError("image_keywords", ErrStoreClosed)
	}
	return s.queryKeywords(ctx, "image_keywords", `
		SELECT k.id, k.keyword FROM keywords k
		JOIN image_keywords ik ON ik.keyword_id = k.id
		WHERE ik.image_id = ?
		ORDER BY k.keyword`, imageID,
	)
}

// ImagesByKeyword returns every image carrying the keyword.
func (s *Store) ImagesByKeyword(ctx context.Context, word string) ([]*Image, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, wrapError("images_by_keyword", ErrStoreClosed)
	}
	return s.queryImages(ctx, "images_by_keyword", `
		SELECT `+imageColumns+` FROM images
		WHERE id IN (
			SELECT ik.image_id FROM image_keywords ik
			JOIN keywords k ON k.id = ik.keyword_id
			WHERE k.keyword = ?
		)
		ORDER BY COALESCE(captured_at, imported_at), id`, word,
	)
}

// ListKeywords returns the whole keyword vocabulary, alphabetically.
// Entries persist even when no image currently carries them.
func (s *Store) ListKeywords(ctx context.Context) ([]*Keyword, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, wrapError("list_keywords", ErrStoreClosed)
	}
	return s.queryKeywords(ctx, "list_keywords",
		"SELECT id, keyword FROM keywords ORDER BY keyword",
	)
}

func (s *Store) queryKeywords(ctx context.Context, op, query string, args ...any) ([]*Keyword, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, wrapError(op, err)
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			s.logger.Warn().Err(closeErr).Msg("failed to close rows during keyword query")
		}
	}()

	var keywords []*Keyword
	for rows.Next() {
		var kw Keyword
		if err := rows.Scan(&kw.ID, &kw.Keyword); err != nil {
			return nil, wrapError(op, fmt.Errorf("failed to scan keyword: %w", err))
		}
		keywords = append(keywords, &kw)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapError(op, err)
	}
	return keywords, nil
}

// DeleteKeyword removes a keyword from the vocabulary along with every
// assignment of it.
func (s *Store) DeleteKeyword(ctx context.Context, word string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return wrapError("delete_keyword", ErrStoreClosed)
	}

	res, err := s.db.ExecContext(ctx, "DELETE FROM keywords WHERE keyword = ?", word)
	if err != nil {
		return wrapError("delete_keyword", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return wrapError("delete_keyword", fmt.Errorf("failed to get rows affected: %w", err))
	}
	if affected == 0 {
		return wrapError("delete_keyword", fmt.Errorf("%w: keyword %q", ErrNotFound, word))
	}
	return nil
}
