package catalog

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
)

func TestCatalogPath(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"photos", "photos" + Extension},
		{"/library/photos", "/library/photos" + Extension},
		{"photos" + Extension, "photos" + Extension},
	}
	for _, tt := range tests {
		if got := CatalogPath(tt.in); got != tt.want {
			t.Errorf("CatalogPath(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestCreateOpenLifecycle(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "library")

	// Opening before creation fails.
	if _, err := Open(ctx, path); !errors.Is(err, ErrMissing) {
		t.Fatalf("Open before create error = %v, want ErrMissing", err)
	}

	store, err := Create(ctx, path)
	if err != nil {
		t.Fatalf("Create error = %v", err)
	}
	info, err := store.Info(ctx)
	if err != nil {
		t.Fatalf("Info error = %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("Close error = %v", err)
	}

	// Creating twice fails.
	if _, err := Create(ctx, path); !errors.Is(err, ErrExists) {
		t.Fatalf("Second Create error = %v, want ErrExists", err)
	}

	// Open finds the same catalog.
	reopened, err := Open(ctx, path)
	if err != nil {
		t.Fatalf("Open error = %v", err)
	}
	defer reopened.Close()

	info2, err := reopened.Info(ctx)
	if err != nil {
		t.Fatalf("Info after reopen error = %v", err)
	}
	if info2.CatalogUUID != info.CatalogUUID {
		t.Errorf("UUID changed across reopen: %s != %s", info2.CatalogUUID, info.CatalogUUID)
	}
}

func TestOpenOrCreate(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "library")

	store, err := OpenOrCreate(ctx, path)
	if err != nil {
		t.Fatalf("OpenOrCreate error = %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("Close error = %v", err)
	}

	store2, err := OpenOrCreate(ctx, path)
	if err != nil {
		t.Fatalf("Second OpenOrCreate error = %v", err)
	}
	defer store2.Close()
}
