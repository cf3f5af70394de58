// Package catalog opens and creates photo catalog files.
//
// A catalog is a single SQLite file with the .zenithphotocatalog
// extension. This package normalizes paths, distinguishes open from
// create, and hands back the initialized store from pkg/core.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/zenithphoto/catalog/pkg/core"
)

// Extension is the canonical catalog file extension.
const Extension = ".zenithphotocatalog"

// ErrExists is returned by Create when the catalog file is already present.
var ErrExists = errors.New("catalog already exists")

// ErrMissing is returned by Open when the catalog file does not exist.
var ErrMissing = errors.New("catalog does not exist")

// CatalogPath normalizes path to carry the canonical extension.
func CatalogPath(path string) string {
	if strings.HasSuffix(path, Extension) {
		return path
	}
	return path + Extension
}

// Open opens an existing catalog, running any pending schema migrations.
func Open(ctx context.Context, path string, config ...core.Config) (*core.Store, error) {
	path = CatalogPath(path)
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrMissing, path)
		}
		return nil, fmt.Errorf("failed to stat catalog: %w", err)
	}
	return open(ctx, path, config)
}

// Create creates and initializes a new catalog file.
func Create(ctx context.Context, path string, config ...core.Config) (*core.Store, error) {
	path = CatalogPath(path)
	if _, err := os.Stat(path); err == nil {
		return nil, fmt.Errorf("%w: %s", ErrExists, path)
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to stat catalog: %w", err)
	}
	return open(ctx, path, config)
}

// OpenOrCreate opens the catalog at path, creating it on first use.
func OpenOrCreate(ctx context.Context, path string, config ...core.Config) (*core.Store, error) {
	return open(ctx, CatalogPath(path), config)
}

func open(ctx context.Context, path string, configs []core.Config) (*core.Store, error) {
	config := core.DefaultConfig(path)
	if len(configs) > 0 {
		config = configs[0]
		config.Path = path
	}

	store, err := core.NewWithConfig(config)
	if err != nil {
		return nil, err
	}
	if err := store.Init(ctx); err != nil {
		return nil, err
	}
	return store, nil
}
