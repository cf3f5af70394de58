package core

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

// CreateCollection creates a collection, optionally nested under parentID.
// Sibling names may repeat; identity is by ID.
func (s *Store) CreateCollection(ctx context.Context, name string, parentID *int64) (*Collection, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, wrapError("create_collection", ErrStoreClosed)
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, wrapError("create_collection", fmt.Errorf("%w: collection name cannot be empty", ErrConstraint))
	}

	now := fmtTime(time.Now())
	res, err := s.db.ExecContext(ctx,
		"INSERT INTO collections (name, parent_id, created_at, updated_at) VALUES (?, ?, ?, ?)",
		name, parentID, now, now,
	)
	if err != nil {
		if isConstraintErr(err) && parentID != nil {
			return nil, wrapError("create_collection", fmt.Errorf("%w: parent collection id=%d", ErrNotFound, *parentID))
		}
		return nil, wrapError("create_collection", mapSQLiteError(err))
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, wrapError("create_collection", fmt.Errorf("failed to get collection ID: %w", err))
	}

	s.logger.Debug().Int64("collection_id", id).Str("name", name).Msg("collection created")
	return s.getCollection(ctx, id, "create_collection")
}

// GetCollection returns a collection by ID.
func (s *Store) GetCollection(ctx context.Context, id int64) (*Collection, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, wrapError("get_collection", ErrStoreClosed)
	}
	return s.getCollection(ctx, id, "get_collection")
}

func (s *Store) getCollection(ctx context.Context, id int64, op string) (*Collection, error) {
	coll, err := scanCollection(s.db.QueryRowContext(ctx,
		"SELECT id, name, parent_id, created_at, updated_at FROM collections WHERE id = ?", id,
	))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, wrapError(op, fmt.Errorf("%w: collection id=%d", ErrNotFound, id))
	}
	if err != nil {
		return nil, wrapError(op, fmt.Errorf("failed to load collection id=%d: %w", id, err))
	}
	return coll, nil
}

// RenameCollection changes a collection's display name.
func (s *Store) RenameCollection(ctx context.Context, id int64, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return wrapError("rename_collection", ErrStoreClosed)
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return wrapError("rename_collection", fmt.Errorf("%w: collection name cannot be empty", ErrConstraint))
	}

	res, err := s.db.ExecContext(ctx,
		"UPDATE collections SET name = ?, updated_at = ? WHERE id = ?",
		name, fmtTime(time.Now()), id,
	)
	if err != nil {
		return wrapError("rename_collection", mapSQLiteError(err))
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return wrapError("rename_collection", fmt.Errorf("failed to get rows affected: %w", err))
	}
	if affected == 0 {
		return wrapError("rename_collection", fmt.Errorf("%w: collection id=%d", ErrNotFound, id))
	}
	return nil
}

// DeleteCollection removes a collection, its memberships, and every
// descendant collection. Member images are untouched.
func (s *Store) DeleteCollection(ctx context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return wrapError("delete_collection", ErrStoreClosed)
	}

	res, err := s.db.ExecContext(ctx, "DELETE FROM collections WHERE id = ?", id)
	if err != nil {
		return wrapError("delete_collection", mapSQLiteError(err))
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return wrapError("delete_collection", fmt.Errorf("failed to get rows affected: %w", err))
	}
	if affected == 0 {
		return wrapError("delete_collection", fmt.Errorf("%w: collection id=%d", ErrNotFound, id))
	}

	s.logger.Debug().Int64("collection_id", id).Msg("collection deleted")
	return nil
}

// ListCollections returns collections at one nesting level: the roots for
// a nil parentID, otherwise the children of parentID.
func (s *Store) ListCollections(ctx context.Context, parentID *int64) ([]*Collection, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, wrapError("list_collections", ErrStoreClosed)
	}

	var (
		rows *sql.Rows
		err  error
	)
	if parentID == nil {
		rows, err = s.db.QueryContext(ctx,
			"SELECT id, name, parent_id, created_at, updated_at FROM collections WHERE parent_id IS NULL ORDER BY name, id",
		)
	} else {
		rows, err = s.db.QueryContext(ctx,
			"SELECT id, name, parent_id, created_at, updated_at FROM collections WHERE parent_id = ? ORDER BY name, id",
			*parentID,
		)
	}
	if err != nil {
		return nil, wrapError("list_collections", err)
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			s.logger.Warn().Err(closeErr).Msg("failed to close rows during collection query")
		}
	}()

	var colls []*Collection
	for rows.Next() {
		coll, err := scanCollection(rows)
		if err != nil {
			return nil, wrapError("list_collections", fmt.Errorf("failed to scan collection: %w", err))
		}
		colls = append(colls, coll)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapError("list_collections", err)
	}
	return colls, nil
}

// AddToCollection inserts an image at an explicit position. Adding an
// image that is already a member returns ErrConstraint.
func (s *Store) AddToCollection(ctx context.Context, collectionID, imageID, position int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return wrapError("add_to_collection", ErrStoreClosed)
	}
	return s.insertMembership(ctx, "add_to_collection", collectionID, imageID, position)
}

// AppendToCollection inserts an image after the current last position.
func (s *Store) AppendToCollection(ctx context.Context, collectionID, imageID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return wrapError("append_to_collection", ErrStoreClosed)
	}

	tx, err := s.beginTx(ctx)
	if err != nil {
		return wrapError("append_to_collection", err)
	}
	defer s.rollback(tx)

	var next int64
	err = tx.QueryRowContext(ctx,
		"SELECT COALESCE(MAX(position) + 1, 0) FROM collection_images WHERE collection_id = ?",
		collectionID,
	).Scan(&next)
	if err != nil {
		return wrapError("append_to_collection", err)
	}

	if err := execMembershipInsert(ctx, tx, collectionID, imageID, next); err != nil {
		return wrapError("append_to_collection", err)
	}
	if err := touchCollection(ctx, tx, collectionID); err != nil {
		return wrapError("append_to_collection", err)
	}
	if err := tx.Commit(); err != nil {
		return wrapError("append_to_collection", fmt.Errorf("failed to commit append: %w", err))
	}
	return nil
}

func (s *Store) insertMembership(ctx context.Context, op string, collectionID, imageID, position int64) error {
	tx, err := s.beginTx(ctx)
	if err != nil {
		return wrapError(op, err)
	}
	defer s.rollback(tx)

	if err := execMembershipInsert(ctx, tx, collectionID, imageID, position); err != nil {
		return wrapError(op, err)
	}
	if err := touchCollection(ctx, tx, collectionID); err != nil {
		return wrapError(op, err)
	}
	if err := tx.Commit(); err != nil {
		return wrapError(op, fmt.Errorf("failed to commit membership: %w", err))
	}
	return nil
}

func execMembershipInsert(ctx context.Context, tx *sql.Tx, collectionID, imageID, position int64) error {
	_, err := tx.ExecContext(ctx,
		"INSERT INTO collection_images (collection_id, image_id, position, added_at) VALUES (?, ?, ?, ?)",
		collectionID, imageID, position, fmtTime(time.Now()),
	)
	return mapSQLiteError(err)
}

func touchCollection(ctx context.Context, tx *sql.Tx, collectionID int64) error {
	_, err := tx.ExecContext(ctx,
		"UPDATE collections SET updated_at = ? WHERE id = ?",
		fmtTime(time.Now()), collectionID,
	)
	return err
}

// RemoveFromCollection drops an image's membership. The image itself
// stays in the catalog.
func (s *Store) RemoveFromCollection(ctx context.Context, collectionID, imageID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return wrapError("remove_from_collection", ErrStoreClosed)
	}

	tx, err := s.beginTx(ctx)
	if err != nil {
		return wrapError("remove_from_collection", err)
	}
	defer s.rollback(tx)

	res, err := tx.ExecContext(ctx,
		"DELETE FROM collection_images WHERE collection_id = ? AND image_id = ?",
		collectionID, imageID,
	)
	if err != nil {
		return wrapError("remove_from_collection", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return wrapError("remove_from_collection", fmt.Errorf("failed to get rows affected: %w", err))
	}
	if affected == 0 {
		return wrapError("remove_from_collection",
			fmt.Errorf("%w: image id=%d in collection id=%d", ErrNotFound, imageID, collectionID))
	}
	if err := touchCollection(ctx, tx, collectionID); err != nil {
		return wrapError("remove_from_collection", err)
	}
	if err := tx.Commit(); err != nil {
		return wrapError("remove_from_collection", fmt.Errorf("failed to commit removal: %w", err))
	}
	return nil
}

// ReorderCollection atomically rewrites member positions to match the
// given ID order. The ID set must exactly equal the current membership.
func (s *Store) ReorderCollection(ctx context.Context, collectionID int64, imageIDs []int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return wrapError("reorder_collection", ErrStoreClosed)
	}

	seen := make(map[int64]struct{}, len(imageIDs))
	for _, id := range imageIDs {
		if _, dup := seen[id]; dup {
			return wrapError("reorder_collection", fmt.Errorf("%w: duplicate image id=%d in order", ErrConstraint, id))
		}
		seen[id] = struct{}{}
	}

	tx, err := s.beginTx(ctx)
	if err != nil {
		return wrapError("reorder_collection", err)
	}
	defer s.rollback(tx)

	rows, err := tx.QueryContext(ctx,
		"SELECT image_id FROM collection_images WHERE collection_id = ?", collectionID,
	)
	if err != nil {
		return wrapError("reorder_collection", err)
	}
	current := make(map[int64]struct{})
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return wrapError("reorder_collection", err)
		}
		current[id] = struct{}{}
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return wrapError("reorder_collection", err)
	}
	rows.Close()

	if len(current) != len(imageIDs) {
		return wrapError("reorder_collection",
			fmt.Errorf("%w: order lists %d images, collection has %d", ErrConstraint, len(imageIDs), len(current)))
	}
	for id := range seen {
		if _, ok := current[id]; !ok {
			return wrapError("reorder_collection",
				fmt.Errorf("%w: image id=%d is not in collection id=%d", ErrConstraint, id, collectionID))
		}
	}

	stmt, err := tx.PrepareContext(ctx,
		"UPDATE collection_images SET position = ? WHERE collection_id = ? AND image_id = ?",
	)
	if err != nil {
		return wrapError("reorder_collection", err)
	}
	defer func() {
		if closeErr := stmt.Close(); closeErr != nil {
			s.logger.Warn().Err(closeErr).Msg("failed to close statement")
		}
	}()

	for pos, id := range imageIDs {
		if _, err := stmt.ExecContext(ctx, pos, collectionID, id); err != nil {
			return wrapError("reorder_collection", err)
		}
	}
	if err := touchCollection(ctx, tx, collectionID); err != nil {
		return wrapError("reorder_collection", err)
	}
	if err := tx.Commit(); err != nil {
		return wrapError("reorder_collection", fmt.Errorf("failed to commit reorder: %w", err))
	}
	return nil
}

// CollectionImages returns the members of a collection in position order.
func (s *Store) CollectionImages(ctx context.Context, collectionID int64) ([]*Image, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, wrapError("collection_images", ErrStoreClosed)
	}
	return s.queryImages(ctx, "collection_images", `
		SELECT `+imageColumns+` FROM images
		JOIN collection_images ci ON ci.image_id = images.id
		WHERE ci.collection_id = ?
		ORDER BY ci.position`, collectionID,
	)
}

// CollectionMemberships returns the raw membership rows of a collection
// in position order.
func (s *Store) CollectionMemberships(ctx context.Context, collectionID int64) ([]*Membership, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, wrapError("collection_memberships", ErrStoreClosed)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT collection_id, image_id, position, added_at
		FROM collection_images WHERE collection_id = ?
		ORDER BY position`, collectionID,
	)
	if err != nil {
		return nil, wrapError("collection_memberships", err)
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			s.logger.Warn().Err(closeErr).Msg("failed to close rows during membership query")
		}
	}()

	var members []*Membership
	for rows.Next() {
		var (
			m       Membership
			addedAt string
		)
		if err := rows.Scan(&m.CollectionID, &m.ImageID, &m.Position, &addedAt); err != nil {
			return nil, wrapError("collection_memberships", fmt.Errorf("failed to scan membership: %w", err))
		}
		if m.AddedAt, err = parseTime(addedAt, "added_at"); err != nil {
			return nil, wrapError("collection_memberships", err)
		}
		members = append(members, &m)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapError("collection_memberships", err)
	}
	return members, nil
}

func scanCollection(row rowScanner) (*Collection, error) {
	var (
		coll      Collection
		parentID  sql.NullInt64
		createdAt string
		updatedAt string
	)
	if err := row.Scan(&coll.ID, &coll.Name, &parentID, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	coll.ParentID = nullInt(parentID)
	var err error
	if coll.CreatedAt, err = parseTime(createdAt, "created_at"); err != nil {
		return nil, err
	}
	if coll.UpdatedAt, err = parseTime(updatedAt, "updated_at"); err != nil {
		return nil, err
	}
	return &coll, nil
}
