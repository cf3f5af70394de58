package core

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()

	path := filepath.Join(t.TempDir(), "test.catalog")
	store, err := New(path)
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	if err := store.Init(context.Background()); err != nil {
		t.Fatalf("Failed to initialize store: %v", err)
	}
	t.Cleanup(func() {
		if err := store.Close(); err != nil && !errors.Is(err, ErrStoreClosed) {
			t.Errorf("Failed to close store: %v", err)
		}
	})
	return store
}

func mustFolder(t *testing.T, store *Store, path string) *Folder {
	t.Helper()
	folder, err := store.GetOrCreateFolder(context.Background(), path)
	if err != nil {
		t.Fatalf("GetOrCreateFolder(%q) error = %v", path, err)
	}
	return folder
}

func mustImport(t *testing.T, store *Store, folderID int64, originalPath string) *Image {
	t.Helper()
	img, err := store.ImportImage(context.Background(), folderID, ImportAttrs{
		Filename:     filepath.Base(originalPath),
		OriginalPath: originalPath,
	})
	if err != nil {
		t.Fatalf("ImportImage(%q) error = %v", originalPath, err)
	}
	return img
}

func TestInitIdempotent(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "test.catalog")

	store, err := New(path)
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	if err := store.Init(ctx); err != nil {
		t.Fatalf("First Init error = %v", err)
	}

	info, err := store.Info(ctx)
	if err != nil {
		t.Fatalf("Info error = %v", err)
	}
	if info.CatalogUUID == "" {
		t.Error("Catalog UUID is empty after initialization")
	}
	if err := store.Close(); err != nil {
		t.Fatalf("Close error = %v", err)
	}

	// Reopening must not reset the singleton row.
	store2, err := New(path)
	if err != nil {
		t.Fatalf("Failed to recreate store: %v", err)
	}
	defer store2.Close()
	if err := store2.Init(ctx); err != nil {
		t.Fatalf("Second Init error = %v", err)
	}

	info2, err := store2.Info(ctx)
	if err != nil {
		t.Fatalf("Info after reopen error = %v", err)
	}
	if info2.CatalogUUID != info.CatalogUUID {
		t.Errorf("Catalog UUID changed on reopen: %s != %s", info2.CatalogUUID, info.CatalogUUID)
	}
	if !info2.CreatedAt.Equal(info.CreatedAt) {
		t.Errorf("created_at changed on reopen: %v != %v", info2.CreatedAt, info.CreatedAt)
	}
	if info2.LastOpened == nil {
		t.Error("last_opened not set on reopen")
	}
}

func TestSchemaVersionCurrent(t *testing.T) {
	store := newTestStore(t)

	version, err := store.SchemaVersion(context.Background())
	if err != nil {
		t.Fatalf("SchemaVersion error = %v", err)
	}
	if version != latestSchemaVersion {
		t.Errorf("SchemaVersion = %d, want %d", version, latestSchemaVersion)
	}
}

func TestClosedStoreRejectsOperations(t *testing.T) {
	store := newTestStore(t)
	if err := store.Close(); err != nil {
		t.Fatalf("Close error = %v", err)
	}

	ctx := context.Background()
	if _, err := store.GetOrCreateFolder(ctx, "/photos"); !errors.Is(err, ErrStoreClosed) {
		t.Errorf("GetOrCreateFolder on closed store error = %v, want ErrStoreClosed", err)
	}
	if _, err := store.ListAllImages(ctx); !errors.Is(err, ErrStoreClosed) {
		t.Errorf("ListAllImages on closed store error = %v, want ErrStoreClosed", err)
	}
	if err := store.SetRating(ctx, 1, nil); !errors.Is(err, ErrStoreClosed) {
		t.Errorf("SetRating on closed store error = %v, want ErrStoreClosed", err)
	}
}

func TestStoreErrorWrapping(t *testing.T) {
	store := newTestStore(t)

	_, err := store.GetImage(context.Background(), 9999)
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("GetImage error = %v, want ErrNotFound", err)
	}
	var se *StoreError
	if !errors.As(err, &se) {
		t.Fatalf("error %v is not a StoreError", err)
	}
	if se.Op != "get_image" {
		t.Errorf("StoreError.Op = %q, want %q", se.Op, "get_image")
	}
}
