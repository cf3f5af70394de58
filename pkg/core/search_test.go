package core

import (
	"context"
	"errors"
	"testing"
)

func TestSearchImages(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	folder := mustFolder(t, store, "/photos/iceland")

	mustImport(t, store, folder.ID, "/photos/iceland/glacier-lagoon.raf")
	mustImport(t, store, folder.ID, "/photos/iceland/reykjavik-harbor.raf")

	hits, err := store.SearchImages(ctx, "glacier", 10)
	if err != nil {
		t.Fatalf("SearchImages error = %v", err)
	}
	if len(hits) != 1 {
		t.Fatalf("SearchImages(glacier) = %d hits, want 1", len(hits))
	}
	if hits[0].Filename != "glacier-lagoon.raf" {
		t.Errorf("Hit = %q, want glacier-lagoon.raf", hits[0].Filename)
	}

	// Deleted images drop out of the index.
	if err := store.DeleteImage(ctx, hits[0].ID); err != nil {
		t.Fatalf("DeleteImage error = %v", err)
	}
	hits, err = store.SearchImages(ctx, "glacier", 10)
	if err != nil {
		t.Fatalf("SearchImages after delete error = %v", err)
	}
	if len(hits) != 0 {
		t.Errorf("SearchImages after delete = %d hits, want 0", len(hits))
	}

	if _, err := store.SearchImages(ctx, "   ", 10); !errors.Is(err, ErrConstraint) {
		t.Errorf("SearchImages(blank) error = %v, want ErrConstraint", err)
	}
}

func TestSearchKeywordsAndFolders(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	if _, err := store.EnsureKeyword(ctx, "architecture"); err != nil {
		t.Fatalf("EnsureKeyword error = %v", err)
	}
	mustFolder(t, store, "/photos/architecture/tokyo")

	keywords, err := store.SearchKeywords(ctx, "architecture")
	if err != nil {
		t.Fatalf("SearchKeywords error = %v", err)
	}
	if len(keywords) != 1 {
		t.Errorf("SearchKeywords = %d hits, want 1", len(keywords))
	}

	folders, err := store.SearchFolders(ctx, "tokyo")
	if err != nil {
		t.Fatalf("SearchFolders error = %v", err)
	}
	if len(folders) != 1 {
		t.Errorf("SearchFolders = %d hits, want 1", len(folders))
	}
}

func TestRebuildSearchIndex(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	folder := mustFolder(t, store, "/photos")
	mustImport(t, store, folder.ID, "/photos/mountain-ridge.raf")

	if err := store.RebuildSearchIndex(ctx); err != nil {
		t.Fatalf("RebuildSearchIndex error = %v", err)
	}

	hits, err := store.SearchImages(ctx, "mountain", 10)
	if err != nil {
		t.Fatalf("SearchImages after rebuild error = %v", err)
	}
	if len(hits) != 1 {
		t.Errorf("SearchImages after rebuild = %d hits, want 1", len(hits))
	}
}
