package core

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

// GetOrCreateFolder returns the folder tracking path, creating it on first
// use. A concurrent create racing on the unique path resolves to the
// existing row instead of failing.
func (s *Store) GetOrCreateFolder(ctx context.Context, path string) (*Folder, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, wrapError("get_or_create_folder", ErrStoreClosed)
	}
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, wrapError("get_or_create_folder", fmt.Errorf("%w: folder path cannot be empty", ErrConstraint))
	}

	if folder, err := s.folderByPath(ctx, path); err != nil {
		return nil, wrapError("get_or_create_folder", err)
	} else if folder != nil {
		return folder, nil
	}

	now := fmtTime(time.Now())
	res, err := s.db.ExecContext(ctx,
		"INSERT INTO folders (path, created_at, updated_at) VALUES (?, ?, ?)",
		path, now, now,
	)
	if err != nil {
		if isConstraintErr(err) {
			// Lost the unique-path race; the winner's row is the answer.
			folder, selErr := s.folderByPath(ctx, path)
			if selErr == nil && folder != nil {
				return folder, nil
			}
		}
		return nil, wrapError("get_or_create_folder", mapSQLiteError(err))
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, wrapError("get_or_create_folder", fmt.Errorf("failed to get folder ID: %w", err))
	}

	s.logger.Debug().Int64("folder_id", id).Str("path", path).Msg("folder created")
	return s.getFolder(ctx, id, "get_or_create_folder")
}

// GetFolder returns a folder by ID.
func (s *Store) GetFolder(ctx context.Context, id int64) (*Folder, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, wrapError("get_folder", ErrStoreClosed)
	}
	return s.getFolder(ctx, id, "get_folder")
}

func (s *Store) getFolder(ctx context.Context, id int64, op string) (*Folder, error) {
	folder, err := scanFolder(s.db.QueryRowContext(ctx,
		"SELECT id, path, created_at, updated_at FROM folders WHERE id = ?", id,
	))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, wrapError(op, fmt.Errorf("%w: folder id=%d", ErrNotFound, id))
	}
	if err != nil {
		return nil, wrapError(op, fmt.Errorf("failed to load folder id=%d: %w", id, err))
	}
	return folder, nil
}

// FolderByPath returns the folder for path, or ErrNotFound.
func (s *Store) FolderByPath(ctx context.Context, path string) (*Folder, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, wrapError("folder_by_path", ErrStoreClosed)
	}
	folder, err := s.folderByPath(ctx, path)
	if err != nil {
		return nil, wrapError("folder_by_path", err)
	}
	if folder == nil {
		return nil, wrapError("folder_by_path", fmt.Errorf("%w: folder path=%s", ErrNotFound, path))
	}
	return folder, nil
}

func (s *Store) folderByPath(ctx context.Context, path string) (*Folder, error) {
	folder, err := scanFolder(s.db.QueryRowContext(ctx,
		"SELECT id, path, created_at, updated_at FROM folders WHERE path = ?", path,
	))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find folder path=%s: %w", path, err)
	}
	return folder, nil
}

// ListFolders returns every tracked folder ordered by ID.
func (s *Store) ListFolders(ctx context.Context) ([]*Folder, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, wrapError("list_folders", ErrStoreClosed)
	}

	rows, err := s.db.QueryContext(ctx,
		"SELECT id, path, created_at, updated_at FROM folders ORDER BY id",
	)
	if err != nil {
		return nil, wrapError("list_folders", fmt.Errorf("failed to list folders: %w", err))
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			s.logger.Warn().Err(closeErr).Msg("failed to close rows during list folders")
		}
	}()

	var folders []*Folder
	for rows.Next() {
		folder, err := scanFolder(rows)
		if err != nil {
			return nil, wrapError("list_folders", fmt.Errorf("failed to scan folder: %w", err))
		}
		folders = append(folders, folder)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapError("list_folders", err)
	}
	return folders, nil
}

// DeleteFolder removes the folder and cascades to every contained image
// and, transitively, to each image's edit state, history, keyword
// assignments, collection memberships and cache rows.
func (s *Store) DeleteFolder(ctx context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return wrapError("delete_folder", ErrStoreClosed)
	}

	res, err := s.db.ExecContext(ctx, "DELETE FROM folders WHERE id = ?", id)
	if err != nil {
		return wrapError("delete_folder", mapSQLiteError(err))
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return wrapError("delete_folder", fmt.Errorf("failed to get rows affected: %w", err))
	}
	if affected == 0 {
		return wrapError("delete_folder", fmt.Errorf("%w: folder id=%d", ErrNotFound, id))
	}

	s.logger.Debug().Int64("folder_id", id).Msg("folder deleted")
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanFolder(row rowScanner) (*Folder, error) {
	var (
		folder    Folder
		createdAt string
		updatedAt string
	)
	if err := row.Scan(&folder.ID, &folder.Path, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	var err error
	if folder.CreatedAt, err = parseTime(createdAt, "created_at"); err != nil {
		return nil, err
	}
	if folder.UpdatedAt, err = parseTime(updatedAt, "updated_at"); err != nil {
		return nil, err
	}
	return &folder, nil
}
