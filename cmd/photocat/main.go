package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/zenithphoto/catalog/internal/filehash"
	"github.com/zenithphoto/catalog/pkg/catalog"
	"github.com/zenithphoto/catalog/pkg/core"
	pclog "github.com/zenithphoto/catalog/pkg/log"
)

var (
	catalogPath string
	logLevel    string
)

var rootCmd = &cobra.Command{
	Use:   "photocat",
	Short: "CLI tool for photo catalog files",
	Long:  `A command-line interface for creating and managing photo catalogs backed by SQLite.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// Flags win over env over config file.
		if err := viper.BindPFlag("catalog", cmd.Root().PersistentFlags().Lookup("catalog")); err != nil {
			return err
		}
		if err := viper.BindPFlag("log-level", cmd.Root().PersistentFlags().Lookup("log-level")); err != nil {
			return err
		}
		catalogPath = viper.GetString("catalog")
		logLevel = viper.GetString("log-level")
		return nil
	},
}

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create a new catalog",
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := catalog.Create(context.Background(), catalogPath, storeConfig())
		if err != nil {
			return fmt.Errorf("failed to create catalog: %w", err)
		}
		defer store.Close()

		fmt.Printf("Catalog created at %s\n", catalog.CatalogPath(catalogPath))
		return nil
	},
}

var infoCmd = &cobra.Command{
	Use:   "info",
	Short: "Show catalog metadata",
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openStore()
		if err != nil {
			return err
		}
		defer store.Close()

		info, err := store.Info(context.Background())
		if err != nil {
			return fmt.Errorf("failed to read catalog info: %w", err)
		}

		fmt.Printf("UUID:           %s\n", info.CatalogUUID)
		fmt.Printf("Schema version: %d\n", info.SchemaVersion)
		fmt.Printf("Created:        %s\n", info.CreatedAt)
		if info.LastOpened != nil {
			fmt.Printf("Last opened:    %s\n", info.LastOpened)
		}
		return nil
	},
}

var importCmd = &cobra.Command{
	Use:   "import <dir>",
	Short: "Import image files from a directory",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		dir, err := filepath.Abs(args[0])
		if err != nil {
			return err
		}
		hashFiles, _ := cmd.Flags().GetBool("hash")

		store, err := openStore()
		if err != nil {
			return err
		}
		defer store.Close()

		ctx := context.Background()
		folder, err := store.GetOrCreateFolder(ctx, dir)
		if err != nil {
			return fmt.Errorf("failed to register folder: %w", err)
		}

		batch, err := collectImports(dir, hashFiles)
		if err != nil {
			return err
		}
		if len(batch) == 0 {
			fmt.Println("No image files found")
			return nil
		}

		ids, err := store.ImportImages(ctx, folder.ID, batch)
		if err != nil {
			return fmt.Errorf("import failed after %d images: %w", len(ids), err)
		}
		fmt.Printf("Imported %d images into %s\n", len(ids), dir)
		return nil
	},
}

var imageExtensions = map[string]bool{
	".jpg": true, ".jpeg": true, ".png": true, ".tif": true, ".tiff": true,
	".dng": true, ".cr2": true, ".cr3": true, ".nef": true, ".arw": true,
	".raf": true, ".orf": true, ".rw2": true, ".heic": true,
}

func collectImports(dir string, hashFiles bool) ([]core.ImportAttrs, error) {
	var batch []core.ImportAttrs
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !imageExtensions[strings.ToLower(filepath.Ext(path))] {
			return nil
		}
		attrs := core.ImportAttrs{
			Filename:     d.Name(),
			OriginalPath: path,
		}
		if info, err := d.Info(); err == nil {
			size := info.Size()
			mod := info.ModTime()
			attrs.Filesize = &size
			attrs.FileModifiedAt = &mod
		}
		if hashFiles {
			digest, err := filehash.SumFile(path)
			if err != nil {
				return fmt.Errorf("failed to hash %s: %w", path, err)
			}
			attrs.FileHash = &digest
		}
		batch = append(batch, attrs)
		return nil
	})
	return batch, err
}

var lsCmd = &cobra.Command{
	Use:   "ls",
	Short: "List images",
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openStore()
		if err != nil {
			return err
		}
		defer store.Close()

		ctx := context.Background()
		var images []*core.Image

		folderID, _ := cmd.Flags().GetInt64("folder")
		recent, _ := cmd.Flags().GetInt("recent")
		switch {
		case folderID > 0:
			images, err = store.ListImages(ctx, folderID)
		case recent > 0:
			images, err = store.RecentlyImported(ctx, recent)
		default:
			images, err = store.ListAllImages(ctx)
		}
		if err != nil {
			return fmt.Errorf("failed to list images: %w", err)
		}

		asJSON, _ := cmd.Flags().GetBool("json")
		if asJSON {
			data, err := json.MarshalIndent(images, "", "  ")
			if err != nil {
				return err
			}
			fmt.Println(string(data))
			return nil
		}
		for _, img := range images {
			rating := "-"
			if img.Rating != nil {
				rating = strconv.FormatInt(*img.Rating, 10)
			}
			fmt.Printf("%6d  %s  %s\n", img.ID, rating, img.OriginalPath)
		}
		return nil
	},
}

var rateCmd = &cobra.Command{
	Use:   "rate <image-id> <0-5|none>",
	Short: "Set or clear an image's star rating",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid image ID: %w", err)
		}
		var rating *int64
		if args[1] != "none" {
			v, err := strconv.ParseInt(args[1], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid rating: %w", err)
			}
			rating = &v
		}

		store, err := openStore()
		if err != nil {
			return err
		}
		defer store.Close()

		if err := store.SetRating(context.Background(), id, rating); err != nil {
			return fmt.Errorf("failed to set rating: %w", err)
		}
		return nil
	},
}

var tagCmd = &cobra.Command{
	Use:   "tag <image-id> <keyword>...",
	Short: "Assign keywords to an image",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid image ID: %w", err)
		}

		store, err := openStore()
		if err != nil {
			return err
		}
		defer store.Close()

		ctx := context.Background()
		for _, word := range args[1:] {
			if err := store.TagImage(ctx, id, word); err != nil {
				return fmt.Errorf("failed to tag %q: %w", word, err)
			}
		}
		fmt.Printf("Tagged image %d with %d keywords\n", id, len(args)-1)
		return nil
	},
}

var untagCmd = &cobra.Command{
	Use:   "untag <image-id> <keyword>",
	Short: "Remove a keyword from an image",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid image ID: %w", err)
		}

		store, err := openStore()
		if err != nil {
			return err
		}
		defer store.Close()

		if err := store.UntagImage(context.Background(), id, args[1]); err != nil {
			return fmt.Errorf("failed to untag: %w", err)
		}
		return nil
	},
}

var searchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Full-text search over images",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openStore()
		if err != nil {
			return err
		}
		defer store.Close()

		limit, _ := cmd.Flags().GetInt("limit")
		images, err := store.SearchImages(context.Background(), strings.Join(args, " "), limit)
		if err != nil {
			return fmt.Errorf("search failed: %w", err)
		}
		for _, img := range images {
			fmt.Printf("%6d  %s\n", img.ID, img.OriginalPath)
		}
		fmt.Printf("%d matches\n", len(images))
		return nil
	},
}

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show catalog statistics",
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openStore()
		if err != nil {
			return err
		}
		defer store.Close()

		stats, err := store.GetStats(context.Background())
		if err != nil {
			return fmt.Errorf("failed to compute stats: %w", err)
		}

		fmt.Printf("Folders:     %d\n", stats.Folders)
		fmt.Printf("Images:      %d\n", stats.Images)
		fmt.Printf("Keywords:    %d\n", stats.Keywords)
		fmt.Printf("Collections: %d\n", stats.Collections)
		fmt.Printf("Edited:      %d\n", stats.Edited)
		if stats.LastImport != nil {
			fmt.Printf("Last import: %s\n", stats.LastImport)
		}
		for model, count := range stats.ByCamera {
			fmt.Printf("  %s: %d\n", model, count)
		}
		return nil
	},
}

var reindexCmd = &cobra.Command{
	Use:   "reindex",
	Short: "Rebuild the full-text search index",
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openStore()
		if err != nil {
			return err
		}
		defer store.Close()

		if err := store.RebuildSearchIndex(context.Background()); err != nil {
			return fmt.Errorf("failed to rebuild index: %w", err)
		}
		fmt.Println("Search index rebuilt")
		return nil
	},
}

func storeConfig() core.Config {
	config := core.DefaultConfig(catalogPath)
	config.Logger = pclog.New(os.Stderr, logLevel)
	return config
}

func openStore() (*core.Store, error) {
	store, err := catalog.Open(context.Background(), catalogPath, storeConfig())
	if err != nil {
		return nil, fmt.Errorf("failed to open catalog: %w", err)
	}
	return store, nil
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&catalogPath, "catalog", "c", "photos", "Catalog file path")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "warn", "Log level (trace..error)")

	viper.SetEnvPrefix("PHOTOCAT")
	viper.AutomaticEnv()
	viper.SetConfigName("photocat")
	viper.AddConfigPath(".")
	if home, err := os.UserHomeDir(); err == nil {
		viper.AddConfigPath(home)
	}
	_ = viper.ReadInConfig()

	importCmd.Flags().Bool("hash", false, "Compute content hashes during import")
	lsCmd.Flags().Int64("folder", 0, "List a single folder by ID")
	lsCmd.Flags().Int("recent", 0, "List only the N most recent imports")
	lsCmd.Flags().Bool("json", false, "Output JSON")
	searchCmd.Flags().Int("limit", 50, "Maximum results")

	rootCmd.AddCommand(
		initCmd,
		infoCmd,
		importCmd,
		lsCmd,
		rateCmd,
		tagCmd,
		untagCmd,
		searchCmd,
		statsCmd,
		reindexCmd,
	)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
