package core

import (
	"context"
	"errors"
	"testing"
)

func TestCreateAndNestCollections(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	parent, err := store.CreateCollection(ctx, "Travel", nil)
	if err != nil {
		t.Fatalf("CreateCollection error = %v", err)
	}
	child, err := store.CreateCollection(ctx, "Japan 2026", &parent.ID)
	if err != nil {
		t.Fatalf("Nested CreateCollection error = %v", err)
	}
	if child.ParentID == nil || *child.ParentID != parent.ID {
		t.Errorf("ParentID = %v, want %d", child.ParentID, parent.ID)
	}

	roots, err := store.ListCollections(ctx, nil)
	if err != nil {
		t.Fatalf("ListCollections(nil) error = %v", err)
	}
	if len(roots) != 1 || roots[0].ID != parent.ID {
		t.Errorf("Root collections = %v, want just %d", roots, parent.ID)
	}
	children, err := store.ListCollections(ctx, &parent.ID)
	if err != nil {
		t.Fatalf("ListCollections(parent) error = %v", err)
	}
	if len(children) != 1 || children[0].ID != child.ID {
		t.Errorf("Child collections = %v, want just %d", children, child.ID)
	}

	missing := int64(9999)
	if _, err := store.CreateCollection(ctx, "Orphan", &missing); !errors.Is(err, ErrNotFound) {
		t.Errorf("CreateCollection with missing parent error = %v, want ErrNotFound", err)
	}
}

func TestRenameCollection(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	coll, err := store.CreateCollection(ctx, "Drafts", nil)
	if err != nil {
		t.Fatalf("CreateCollection error = %v", err)
	}
	if err := store.RenameCollection(ctx, coll.ID, "Finals"); err != nil {
		t.Fatalf("RenameCollection error = %v", err)
	}

	got, err := store.GetCollection(ctx, coll.ID)
	if err != nil {
		t.Fatalf("GetCollection error = %v", err)
	}
	if got.Name != "Finals" {
		t.Errorf("Name = %q, want Finals", got.Name)
	}

	if err := store.RenameCollection(ctx, 9999, "x"); !errors.Is(err, ErrNotFound) {
		t.Errorf("RenameCollection on missing collection error = %v, want ErrNotFound", err)
	}
	if err := store.RenameCollection(ctx, coll.ID, " "); !errors.Is(err, ErrConstraint) {
		t.Errorf("RenameCollection(blank) error = %v, want ErrConstraint", err)
	}
}

func TestMembershipUniqueness(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	folder := mustFolder(t, store, "/photos")
	img := mustImport(t, store, folder.ID, "/photos/a.jpg")

	coll, err := store.CreateCollection(ctx, "Picks", nil)
	if err != nil {
		t.Fatalf("CreateCollection error = %v", err)
	}
	if err := store.AddToCollection(ctx, coll.ID, img.ID, 0); err != nil {
		t.Fatalf("AddToCollection error = %v", err)
	}
	if err := store.AddToCollection(ctx, coll.ID, img.ID, 5); !errors.Is(err, ErrConstraint) {
		t.Errorf("Duplicate AddToCollection error = %v, want ErrConstraint", err)
	}
	if err := store.AddToCollection(ctx, coll.ID, 9999, 1); !errors.Is(err, ErrConstraint) {
		t.Errorf("AddToCollection with missing image error = %v, want ErrConstraint", err)
	}
}

func TestAppendToCollectionPositions(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	folder := mustFolder(t, store, "/photos")

	coll, err := store.CreateCollection(ctx, "Sequence", nil)
	if err != nil {
		t.Fatalf("CreateCollection error = %v", err)
	}

	var imgs []*Image
	for _, name := range []string{"a", "b", "c"} {
		img := mustImport(t, store, folder.ID, "/photos/"+name+".jpg")
		imgs = append(imgs, img)
		if err := store.AppendToCollection(ctx, coll.ID, img.ID); err != nil {
			t.Fatalf("AppendToCollection(%s) error = %v", name, err)
		}
	}

	members, err := store.CollectionMemberships(ctx, coll.ID)
	if err != nil {
		t.Fatalf("CollectionMemberships error = %v", err)
	}
	if len(members) != 3 {
		t.Fatalf("Memberships = %d, want 3", len(members))
	}
	for i, m := range members {
		if m.Position != int64(i) {
			t.Errorf("Position[%d] = %d, want %d", i, m.Position, i)
		}
		if m.ImageID != imgs[i].ID {
			t.Errorf("ImageID[%d] = %d, want %d", i, m.ImageID, imgs[i].ID)
		}
	}
}

func TestReorderCollection(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	folder := mustFolder(t, store, "/photos")

	coll, err := store.CreateCollection(ctx, "Album", nil)
	if err != nil {
		t.Fatalf("CreateCollection error = %v", err)
	}
	var ids []int64
	for _, name := range []string{"a", "b", "c"} {
		img := mustImport(t, store, folder.ID, "/photos/"+name+".jpg")
		ids = append(ids, img.ID)
		if err := store.AppendToCollection(ctx, coll.ID, img.ID); err != nil {
			t.Fatalf("AppendToCollection error = %v", err)
		}
	}

	// The incomplete and mismatched orders are rejected.
	if err := store.ReorderCollection(ctx, coll.ID, ids[:2]); !errors.Is(err, ErrConstraint) {
		t.Errorf("Partial reorder error = %v, want ErrConstraint", err)
	}
	if err := store.ReorderCollection(ctx, coll.ID, []int64{ids[0], ids[1], 9999}); !errors.Is(err, ErrConstraint) {
		t.Errorf("Reorder with foreign ID error = %v, want ErrConstraint", err)
	}
	if err := store.ReorderCollection(ctx, coll.ID, []int64{ids[0], ids[0], ids[1]}); !errors.Is(err, ErrConstraint) {
		t.Errorf("Reorder with duplicate ID error = %v, want ErrConstraint", err)
	}

	reversed := []int64{ids[2], ids[1], ids[0]}
	if err := store.ReorderCollection(ctx, coll.ID, reversed); err != nil {
		t.Fatalf("ReorderCollection error = %v", err)
	}

	images, err := store.CollectionImages(ctx, coll.ID)
	if err != nil {
		t.Fatalf("CollectionImages error = %v", err)
	}
	for i, img := range images {
		if img.ID != reversed[i] {
			t.Errorf("CollectionImages[%d] = %d, want %d", i, img.ID, reversed[i])
		}
	}
}

func TestRemoveFromCollection(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	folder := mustFolder(t, store, "/photos")
	img := mustImport(t, store, folder.ID, "/photos/a.jpg")

	coll, err := store.CreateCollection(ctx, "Picks", nil)
	if err != nil {
		t.Fatalf("CreateCollection error = %v", err)
	}
	if err := store.AppendToCollection(ctx, coll.ID, img.ID); err != nil {
		t.Fatalf("AppendToCollection error = %v", err)
	}
	if err := store.RemoveFromCollection(ctx, coll.ID, img.ID); err != nil {
		t.Fatalf("RemoveFromCollection error = %v", err)
	}
	if err := store.RemoveFromCollection(ctx, coll.ID, img.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("Second RemoveFromCollection error = %v, want ErrNotFound", err)
	}

	// The image survives removal.
	if _, err := store.GetImage(ctx, img.ID); err != nil {
		t.Errorf("GetImage after removal error = %v", err)
	}
}

func TestDeleteCollectionSubtree(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	folder := mustFolder(t, store, "/photos")
	img := mustImport(t, store, folder.ID, "/photos/a.jpg")

	parent, err := store.CreateCollection(ctx, "Parent", nil)
	if err != nil {
		t.Fatalf("CreateCollection error = %v", err)
	}
	child, err := store.CreateCollection(ctx, "Child", &parent.ID)
	if err != nil {
		t.Fatalf("Child CreateCollection error = %v", err)
	}
	if err := store.AppendToCollection(ctx, child.ID, img.ID); err != nil {
		t.Fatalf("AppendToCollection error = %v", err)
	}

	if err := store.DeleteCollection(ctx, parent.ID); err != nil {
		t.Fatalf("DeleteCollection error = %v", err)
	}
	if _, err := store.GetCollection(ctx, child.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("Child collection survived subtree delete: err = %v", err)
	}
	// Member images always survive collection deletion.
	if _, err := store.GetImage(ctx, img.ID); err != nil {
		t.Errorf("GetImage after subtree delete error = %v", err)
	}
}
