package core

import (
	"context"
	"fmt"
	"time"
)

// Migration upgrades the schema from one version to the next. Each step
// runs in its own transaction and records the new version before commit.
type Migration struct {
	From int64
	To   int64
	SQL  string
}

// latestSchemaVersion is the schema version this build writes and reads.
const latestSchemaVersion int64 = 2

// migrations is the ordered upgrade path from the baseline schema.
var migrations = []Migration{
	// Full-text search over images, keywords and folders. External-content
	// tables stay in sync through triggers; RebuildSearchIndex repopulates
	// them wholesale.
	{
		From: 1,
		To:   2,
		SQL: `
		CREATE VIRTUAL TABLE IF NOT EXISTS fts_images
			USING fts5(filename, original_path, metadata_json, content='images', content_rowid='id');
		CREATE VIRTUAL TABLE IF NOT EXISTS fts_keywords
			USING fts5(keyword, content='keywords', content_rowid='id');
		CREATE VIRTUAL TABLE IF NOT EXISTS fts_folders
			USING fts5(path, content='folders', content_rowid='id');

		INSERT INTO fts_images(rowid, filename, original_path, metadata_json)
			SELECT id, filename, original_path, COALESCE(metadata_json, '') FROM images;
		INSERT INTO fts_keywords(rowid, keyword) SELECT id, keyword FROM keywords;
		INSERT INTO fts_folders(rowid, path) SELECT id, path FROM folders;

		CREATE TRIGGER IF NOT EXISTS images_fts_ai AFTER INSERT ON images BEGIN
			INSERT INTO fts_images(rowid, filename, original_path, metadata_json)
			VALUES (new.id, new.filename, new.original_path, COALESCE(new.metadata_json, ''));
		END;
		CREATE TRIGGER IF NOT EXISTS images_fts_ad AFTER DELETE ON images BEGIN
			INSERT INTO fts_images(fts_images, rowid, filename, original_path, metadata_json)
			VALUES ('delete', old.id, old.filename, old.original_path, COALESCE(old.metadata_json, ''));
		END;
		CREATE TRIGGER IF NOT EXISTS images_fts_au AFTER UPDATE ON images BEGIN
			INSERT INTO fts_images(fts_images, rowid, filename, original_path, metadata_json)
			VALUES ('delete', old.id, old.filename, old.original_path, COALESCE(old.metadata_json, ''));
			INSERT INTO fts_images(rowid, filename, original_path, metadata_json)
			VALUES (new.id, new.filename, new.original_path, COALESCE(new.metadata_json, ''));
		END;

		CREATE TRIGGER IF NOT EXISTS keywords_fts_ai AFTER INSERT ON keywords BEGIN
			INSERT INTO fts_keywords(rowid, keyword) VALUES (new.id, new.keyword);
		END;
		CREATE TRIGGER IF NOT EXISTS keywords_fts_ad AFTER DELETE ON keywords BEGIN
			INSERT INTO fts_keywords(fts_keywords, rowid, keyword) VALUES ('delete', old.id, old.keyword);
		END;

		CREATE TRIGGER IF NOT EXISTS folders_fts_ai AFTER INSERT ON folders BEGIN
			INSERT INTO fts_folders(rowid, path) VALUES (new.id, new.path);
		END;
		CREATE TRIGGER IF NOT EXISTS folders_fts_ad AFTER DELETE ON folders BEGIN
			INSERT INTO fts_folders(fts_folders, rowid, path) VALUES ('delete', old.id, old.path);
		END;
		`,
	},
}

// migrate walks the migration list from the catalog's current version to
// the latest. A catalog newer than this build is refused rather than
// modified.
func (s *Store) migrate(ctx context.Context) error {
	version, err := s.schemaVersionLocked(ctx)
	if err != nil {
		return err
	}
	if version > latestSchemaVersion {
		return fmt.Errorf("catalog schema version %d is newer than supported %d", version, latestSchemaVersion)
	}

	for version < latestSchemaVersion {
		step, ok := nextMigration(version)
		if !ok {
			return fmt.Errorf("missing migration path from %d to %d", version, latestSchemaVersion)
		}
		if err := s.applyMigration(ctx, step); err != nil {
			return err
		}
		s.logger.Info().Int64("from", step.From).Int64("to", step.To).Msg("schema migrated")
		version = step.To
	}
	return nil
}

func nextMigration(from int64) (Migration, bool) {
	for _, m := range migrations {
		if m.From == from {
			return m, true
		}
	}
	return Migration{}, false
}

// applyMigration runs one step atomically: either the schema change and the
// version bump both land, or neither does.
func (s *Store) applyMigration(ctx context.Context, step Migration) error {
	tx, err := s.beginTx(ctx)
	if err != nil {
		return err
	}
	defer s.rollback(tx)

	if _, err := tx.ExecContext(ctx, step.SQL); err != nil {
		return fmt.Errorf("failed to apply migration %d -> %d: %w", step.From, step.To, err)
	}
	if _, err := tx.ExecContext(ctx, `
		UPDATE catalog_metadata SET schema_version = ?, updated_at = ? WHERE id = 1
	`, step.To, fmtTime(time.Now())); err != nil {
		return fmt.Errorf("failed to record schema version %d: %w", step.To, err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit migration %d -> %d: %w", step.From, step.To, err)
	}

	// user_version mirrors the metadata row for external tooling.
	if _, err := s.db.ExecContext(ctx, fmt.Sprintf("PRAGMA user_version = %d", step.To)); err != nil {
		s.logger.Warn().Err(err).Msg("failed to sync user_version pragma")
	}
	return nil
}
