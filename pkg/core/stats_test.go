package core

import (
	"context"
	"testing"
)

func TestStats(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	empty, err := store.GetStats(ctx)
	if err != nil {
		t.Fatalf("GetStats error = %v", err)
	}
	if empty.Images != 0 || empty.LastImport != nil {
		t.Errorf("Empty catalog stats = %+v", empty)
	}

	folder := mustFolder(t, store, "/photos")
	xt5 := "X-T5"
	q2 := "Q2"
	for _, tc := range []struct {
		path  string
		model *string
	}{
		{"/photos/a.jpg", &xt5},
		{"/photos/b.jpg", &xt5},
		{"/photos/c.jpg", &q2},
		{"/photos/d.jpg", nil},
	} {
		_, err := store.ImportImage(ctx, folder.ID, ImportAttrs{
			Filename:     "img.jpg",
			OriginalPath: tc.path,
			CameraModel:  tc.model,
		})
		if err != nil {
			t.Fatalf("ImportImage(%s) error = %v", tc.path, err)
		}
	}

	stats, err := store.GetStats(ctx)
	if err != nil {
		t.Fatalf("GetStats error = %v", err)
	}
	if stats.Folders != 1 || stats.Images != 4 {
		t.Errorf("Stats folders/images = %d/%d, want 1/4", stats.Folders, stats.Images)
	}
	if stats.ByCamera["X-T5"] != 2 || stats.ByCamera["Q2"] != 1 {
		t.Errorf("ByCamera = %v", stats.ByCamera)
	}
	if stats.LastImport == nil {
		t.Error("LastImport is nil after imports")
	}

	byCamera, err := store.CountByCamera(ctx)
	if err != nil {
		t.Fatalf("CountByCamera error = %v", err)
	}
	if byCamera["X-T5"] != 2 {
		t.Errorf("CountByCamera[X-T5] = %d, want 2", byCamera["X-T5"])
	}

	last, err := store.LastImportTime(ctx)
	if err != nil {
		t.Fatalf("LastImportTime error = %v", err)
	}
	if last == nil {
		t.Error("LastImportTime is nil after imports")
	}

	count, err := store.CountImages(ctx)
	if err != nil {
		t.Fatalf("CountImages error = %v", err)
	}
	if count != 4 {
		t.Errorf("CountImages = %d, want 4", count)
	}
}
