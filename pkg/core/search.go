package core

import (
	"context"
	"fmt"
	"strings"
)

// SearchImages runs a full-text query over filenames, original paths and
// metadata, ranked by relevance. Limit caps the result; zero or negative
// means no cap.
func (s *Store) SearchImages(ctx context.Context, query string, limit int) ([]*Image, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, wrapError("search_images", ErrStoreClosed)
	}
	match, err := ftsQuery(query)
	if err != nil {
		return nil, wrapError("search_images", err)
	}
	if limit <= 0 {
		limit = -1
	}
	return s.queryImages(ctx, "search_images", `
		SELECT `+imageColumns+` FROM images
		WHERE id IN (SELECT rowid FROM fts_images WHERE fts_images MATCH ? ORDER BY rank LIMIT ?)
		ORDER BY COALESCE(captured_at, imported_at), id`,
		match, limit,
	)
}

// SearchKeywords matches the keyword vocabulary by full-text query.
func (s *Store) SearchKeywords(ctx context.Context, query string) ([]*Keyword, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, wrapError("search_keywords", ErrStoreClosed)
	}
	match, err := ftsQuery(query)
	if err != nil {
		return nil, wrapError("search_keywords", err)
	}
	return s.queryKeywords(ctx, "search_keywords", `
		SELECT id, keyword FROM keywords
		WHERE id IN (SELECT rowid FROM fts_keywords WHERE fts_keywords MATCH ?)
		ORDER BY keyword`, match,
	)
}

// SearchFolders matches tracked folder paths by full-text query.
func (s *Store) SearchFolders(ctx context.Context, query string) ([]*Folder, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, wrapError("search_folders", ErrStoreClosed)
	}
	match, err := ftsQuery(query)
	if err != nil {
		return nil, wrapError("search_folders", err)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, path, created_at, updated_at FROM folders
		WHERE id IN (SELECT rowid FROM fts_folders WHERE fts_folders MATCH ?)
		ORDER BY path`, match,
	)
	if err != nil {
		return nil, wrapError("search_folders", err)
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			s.logger.Warn().Err(closeErr).Msg("failed to close rows during folder search")
		}
	}()

	var folders []*Folder
	for rows.Next() {
		folder, err := scanFolder(rows)
		if err != nil {
			return nil, wrapError("search_folders", fmt.Errorf("failed to scan folder: %w", err))
		}
		folders = append(folders, folder)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapError("search_folders", err)
	}
	return folders, nil
}

// RebuildSearchIndex drops and repopulates all full-text indexes from the
// content tables. Useful after bulk imports done with triggers disabled
// or after restoring a catalog file.
func (s *Store) RebuildSearchIndex(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return wrapError("rebuild_search_index", ErrStoreClosed)
	}

	for _, table := range []string{"fts_images", "fts_keywords", "fts_folders"} {
		stmt := fmt.Sprintf("INSERT INTO %s(%s) VALUES ('rebuild')", table, table)
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return wrapError("rebuild_search_index", fmt.Errorf("failed to rebuild %s: %w", table, err))
		}
	}
	s.logger.Info().Msg("search index rebuilt")
	return nil
}

// ftsQuery turns raw user input into a safe FTS5 match expression by
// quoting each whitespace-separated term. All terms must match.
func ftsQuery(raw string) (string, error) {
	terms := strings.Fields(raw)
	if len(terms) == 0 {
		return "", fmt.Errorf("%w: empty search query", ErrConstraint)
	}
	quoted := make([]string, len(terms))
	for i, t := range terms {
		quoted[i] = `"` + strings.ReplaceAll(t, `"`, `""`) + `"`
	}
	return strings.Join(quoted, " "), nil
}
