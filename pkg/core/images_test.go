package core

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestImportAndGetImage(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	folder := mustFolder(t, store, "/photos/2026/01")

	size := int64(24_000_000)
	iso := int64(400)
	aperture := 2.8
	captured := time.Date(2026, 1, 15, 14, 30, 0, 0, time.UTC)
	model := "X-T5"

	img, err := store.ImportImage(ctx, folder.ID, ImportAttrs{
		Filename:     "DSCF0001.RAF",
		OriginalPath: "/photos/2026/01/DSCF0001.RAF",
		Filesize:     &size,
		ISO:          &iso,
		Aperture:     &aperture,
		CapturedAt:   &captured,
		CameraModel:  &model,
		Metadata:     []byte(`{"white_balance":"daylight"}`),
	})
	if err != nil {
		t.Fatalf("ImportImage error = %v", err)
	}

	got, err := store.GetImage(ctx, img.ID)
	if err != nil {
		t.Fatalf("GetImage error = %v", err)
	}
	if got.Filename != "DSCF0001.RAF" {
		t.Errorf("Filename = %q, want DSCF0001.RAF", got.Filename)
	}
	if got.Filesize == nil || *got.Filesize != size {
		t.Errorf("Filesize = %v, want %d", got.Filesize, size)
	}
	if got.CapturedAt == nil || !got.CapturedAt.Equal(captured) {
		t.Errorf("CapturedAt = %v, want %v", got.CapturedAt, captured)
	}
	if got.Rating != nil || got.Flag != nil || got.ColorLabel != nil {
		t.Error("New import carries rating/flag/label, want all unset")
	}
	if string(got.Metadata) != `{"white_balance":"daylight"}` {
		t.Errorf("Metadata = %s", got.Metadata)
	}
}

func TestImportDuplicatePathRejected(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	folder := mustFolder(t, store, "/photos")
	mustImport(t, store, folder.ID, "/photos/a.jpg")

	_, err := store.ImportImage(ctx, folder.ID, ImportAttrs{
		Filename:     "a.jpg",
		OriginalPath: "/photos/a.jpg",
	})
	if !errors.Is(err, ErrConstraint) {
		t.Fatalf("Duplicate import error = %v, want ErrConstraint", err)
	}

	count, err := store.CountImages(ctx)
	if err != nil {
		t.Fatalf("CountImages error = %v", err)
	}
	if count != 1 {
		t.Errorf("CountImages = %d after rejected duplicate, want 1", count)
	}
}

func TestImportImagesChunked(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	folder := mustFolder(t, store, "/photos/bulk")

	// More images than one chunk.
	batch := make([]ImportAttrs, 150)
	for i := range batch {
		batch[i] = ImportAttrs{
			Filename:     "img.jpg",
			OriginalPath: "/photos/bulk/" + string(rune('a'+i/26)) + string(rune('a'+i%26)) + ".jpg",
		}
	}

	ids, err := store.ImportImages(ctx, folder.ID, batch)
	if err != nil {
		t.Fatalf("ImportImages error = %v", err)
	}
	if len(ids) != len(batch) {
		t.Fatalf("ImportImages returned %d IDs, want %d", len(ids), len(batch))
	}

	images, err := store.ListImages(ctx, folder.ID)
	if err != nil {
		t.Fatalf("ListImages error = %v", err)
	}
	if len(images) != len(batch) {
		t.Errorf("ListImages = %d images, want %d", len(images), len(batch))
	}
}

func TestImportRejectsInvalidAttrs(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	folder := mustFolder(t, store, "/photos")

	bad := int64(9)
	tests := []struct {
		name  string
		attrs ImportAttrs
	}{
		{"rating out of range", ImportAttrs{Filename: "a.jpg", OriginalPath: "/p/a.jpg", Rating: &bad}},
		{"missing filename", ImportAttrs{OriginalPath: "/p/b.jpg"}},
		{"malformed metadata", ImportAttrs{Filename: "c.jpg", OriginalPath: "/p/c.jpg", Metadata: []byte(`{nope`)}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := store.ImportImage(ctx, folder.ID, tt.attrs); !errors.Is(err, ErrConstraint) {
				t.Errorf("ImportImage error = %v, want ErrConstraint", err)
			}
		})
	}

	count, err := store.CountImages(ctx)
	if err != nil {
		t.Fatalf("CountImages error = %v", err)
	}
	if count != 0 {
		t.Errorf("CountImages = %d after rejected imports, want 0", count)
	}
}

func TestSetRating(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	folder := mustFolder(t, store, "/photos")
	img := mustImport(t, store, folder.ID, "/photos/a.jpg")

	five := int64(5)
	if err := store.SetRating(ctx, img.ID, &five); err != nil {
		t.Fatalf("SetRating error = %v", err)
	}
	got, err := store.GetImage(ctx, img.ID)
	if err != nil {
		t.Fatalf("GetImage error = %v", err)
	}
	if got.Rating == nil || *got.Rating != 5 {
		t.Errorf("Rating = %v, want 5", got.Rating)
	}
	if !got.UpdatedAt.After(img.UpdatedAt) && !got.UpdatedAt.Equal(img.UpdatedAt) {
		t.Errorf("updated_at went backwards: %v < %v", got.UpdatedAt, img.UpdatedAt)
	}

	// Out-of-range ratings are rejected without touching the row.
	six := int64(6)
	if err := store.SetRating(ctx, img.ID, &six); !errors.Is(err, ErrConstraint) {
		t.Fatalf("SetRating(6) error = %v, want ErrConstraint", err)
	}
	got, _ = store.GetImage(ctx, img.ID)
	if got.Rating == nil || *got.Rating != 5 {
		t.Errorf("Rating after rejected set = %v, want 5", got.Rating)
	}

	if err := store.SetRating(ctx, img.ID, nil); err != nil {
		t.Fatalf("SetRating(nil) error = %v", err)
	}
	got, _ = store.GetImage(ctx, img.ID)
	if got.Rating != nil {
		t.Errorf("Rating after clear = %v, want nil", got.Rating)
	}

	if err := store.SetRating(ctx, 9999, &five); !errors.Is(err, ErrNotFound) {
		t.Errorf("SetRating on missing image error = %v, want ErrNotFound", err)
	}
}

func TestSetFlagAndColorLabel(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	folder := mustFolder(t, store, "/photos")
	img := mustImport(t, store, folder.ID, "/photos/a.jpg")

	picked := FlagPicked
	if err := store.SetFlag(ctx, img.ID, &picked); err != nil {
		t.Fatalf("SetFlag error = %v", err)
	}
	bogus := Flag("maybe")
	if err := store.SetFlag(ctx, img.ID, &bogus); !errors.Is(err, ErrConstraint) {
		t.Errorf("SetFlag(maybe) error = %v, want ErrConstraint", err)
	}

	teal := LabelTeal
	if err := store.SetColorLabel(ctx, img.ID, &teal); err != nil {
		t.Fatalf("SetColorLabel error = %v", err)
	}
	pink := ColorLabel("pink")
	if err := store.SetColorLabel(ctx, img.ID, &pink); !errors.Is(err, ErrConstraint) {
		t.Errorf("SetColorLabel(pink) error = %v, want ErrConstraint", err)
	}

	got, err := store.GetImage(ctx, img.ID)
	if err != nil {
		t.Fatalf("GetImage error = %v", err)
	}
	if got.Flag == nil || *got.Flag != FlagPicked {
		t.Errorf("Flag = %v, want picked", got.Flag)
	}
	if got.ColorLabel == nil || *got.ColorLabel != LabelTeal {
		t.Errorf("ColorLabel = %v, want teal", got.ColorLabel)
	}

	if err := store.SetFlag(ctx, img.ID, nil); err != nil {
		t.Fatalf("SetFlag(nil) error = %v", err)
	}
	got, _ = store.GetImage(ctx, img.ID)
	if got.Flag != nil {
		t.Errorf("Flag after clear = %v, want nil", got.Flag)
	}
}

func TestUpdateMetadataPartial(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	folder := mustFolder(t, store, "/photos")
	img := mustImport(t, store, folder.ID, "/photos/a.jpg")

	lens := "XF 35mm F1.4"
	iso := int64(800)
	updated, err := store.UpdateMetadata(ctx, img.ID, MetadataPatch{
		LensModel: &lens,
		ISO:       &iso,
	})
	if err != nil {
		t.Fatalf("UpdateMetadata error = %v", err)
	}
	if updated.LensModel == nil || *updated.LensModel != lens {
		t.Errorf("LensModel = %v, want %q", updated.LensModel, lens)
	}
	if updated.ISO == nil || *updated.ISO != iso {
		t.Errorf("ISO = %v, want %d", updated.ISO, iso)
	}
	if updated.Filename != img.Filename {
		t.Errorf("Filename changed by unrelated patch: %q", updated.Filename)
	}

	if _, err := store.UpdateMetadata(ctx, img.ID, MetadataPatch{Metadata: []byte(`nope`)}); !errors.Is(err, ErrConstraint) {
		t.Errorf("UpdateMetadata with bad JSON error = %v, want ErrConstraint", err)
	}
	if _, err := store.UpdateMetadata(ctx, 9999, MetadataPatch{ISO: &iso}); !errors.Is(err, ErrNotFound) {
		t.Errorf("UpdateMetadata on missing image error = %v, want ErrNotFound", err)
	}
}

func TestImageLookups(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	folder := mustFolder(t, store, "/photos")

	hash := "deadbeef01234567"
	img, err := store.ImportImage(ctx, folder.ID, ImportAttrs{
		Filename:     "a.jpg",
		OriginalPath: "/photos/a.jpg",
		FileHash:     &hash,
	})
	if err != nil {
		t.Fatalf("ImportImage error = %v", err)
	}

	byPath, err := store.ImageByPath(ctx, "/photos/a.jpg")
	if err != nil {
		t.Fatalf("ImageByPath error = %v", err)
	}
	if byPath.ID != img.ID {
		t.Errorf("ImageByPath ID = %d, want %d", byPath.ID, img.ID)
	}

	byHash, err := store.ImageByHash(ctx, hash)
	if err != nil {
		t.Fatalf("ImageByHash error = %v", err)
	}
	if byHash.ID != img.ID {
		t.Errorf("ImageByHash ID = %d, want %d", byHash.ID, img.ID)
	}

	if _, err := store.ImageByHash(ctx, "ffff"); !errors.Is(err, ErrNotFound) {
		t.Errorf("ImageByHash miss error = %v, want ErrNotFound", err)
	}
}

func TestImagesWithRating(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	folder := mustFolder(t, store, "/photos")

	ratings := []int64{1, 3, 5, 4}
	for i, r := range ratings {
		img := mustImport(t, store, folder.ID, "/photos/"+string(rune('a'+i))+".jpg")
		rating := r
		if err := store.SetRating(ctx, img.ID, &rating); err != nil {
			t.Fatalf("SetRating error = %v", err)
		}
	}
	mustImport(t, store, folder.ID, "/photos/unrated.jpg")

	picks, err := store.ImagesWithRating(ctx, 4)
	if err != nil {
		t.Fatalf("ImagesWithRating error = %v", err)
	}
	if len(picks) != 2 {
		t.Fatalf("ImagesWithRating(4) = %d images, want 2", len(picks))
	}
	if *picks[0].Rating != 5 || *picks[1].Rating != 4 {
		t.Errorf("ImagesWithRating order = %d, %d, want 5, 4", *picks[0].Rating, *picks[1].Rating)
	}
}

func TestDeleteImage(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	folder := mustFolder(t, store, "/photos")
	img := mustImport(t, store, folder.ID, "/photos/a.jpg")

	if err := store.DeleteImage(ctx, img.ID); err != nil {
		t.Fatalf("DeleteImage error = %v", err)
	}
	if _, err := store.GetImage(ctx, img.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetImage after delete error = %v, want ErrNotFound", err)
	}
	if err := store.DeleteImage(ctx, img.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("Second DeleteImage error = %v, want ErrNotFound", err)
	}
}

func TestListImagesUnder(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	top := mustFolder(t, store, "/photos/2026")
	nested := mustFolder(t, store, "/photos/2026/01")
	other := mustFolder(t, store, "/photos/2025")

	mustImport(t, store, top.ID, "/photos/2026/a.jpg")
	mustImport(t, store, nested.ID, "/photos/2026/01/b.jpg")
	mustImport(t, store, other.ID, "/photos/2025/c.jpg")

	images, err := store.ListImagesUnder(ctx, "/photos/2026")
	if err != nil {
		t.Fatalf("ListImagesUnder error = %v", err)
	}
	if len(images) != 2 {
		t.Errorf("ListImagesUnder = %d images, want 2", len(images))
	}
	for _, img := range images {
		if img.OriginalPath == "/photos/2025/c.jpg" {
			t.Error("ListImagesUnder leaked an image from a sibling tree")
		}
	}
}
