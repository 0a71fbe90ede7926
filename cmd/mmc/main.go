package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/adamjohnlea/my-music-collection-sub000/internal/app"
	"github.com/adamjohnlea/my-music-collection-sub000/internal/config"
	"github.com/adamjohnlea/my-music-collection-sub000/internal/constants"
	"github.com/adamjohnlea/my-music-collection-sub000/internal/logger"
	"github.com/adamjohnlea/my-music-collection-sub000/internal/storage"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

// newApp loads and validates the config, prepares the data directories and
// builds the App. The caller must defer a.Close().
func newApp(ctx context.Context) (*app.App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration error: %w", err)
	}

	log := logger.New(logger.Config{
		Level:  cfg.LogLevel,
		Format: cfg.LogFormat,
	})

	if err := storage.EnsureDir(filepath.Dir(cfg.DBPath)); err != nil {
		return nil, err
	}
	if err := storage.EnsureDir(cfg.ImagesDir); err != nil {
		return nil, err
	}

	a, err := app.New(ctx, cfg, log)
	if err != nil {
		return nil, fmt.Errorf("initializing app: %w", err)
	}
	return a, nil
}

// username returns the --user flag, falling back to the configured account.
func username(cmd *cobra.Command, a *app.App) string {
	if u, _ := cmd.Flags().GetString("user"); u != "" {
		return u
	}
	return a.Config.Username
}

var rootCmd = &cobra.Command{
	Use:          "mmc",
	Short:        "Local mirror of a record collection",
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().String("user", "", "Account to sync (defaults to DISCOGS_USERNAME)")

	rootCmd.AddCommand(importCmd)
	importCmd.Flags().Int("per-page", 0, "Page size (defaults to PER_PAGE)")

	rootCmd.AddCommand(refreshCmd)
	refreshCmd.Flags().Int("max-pages", 0, "Maximum pages to walk (defaults to REFRESH_MAX_PAGES)")
	refreshCmd.Flags().String("since", "", "Override the stored date_added cursor")
	refreshCmd.Flags().Bool("full", false, "Ignore the stored cursor and scan up to the page cap")

	rootCmd.AddCommand(enrichCmd)
	enrichCmd.Flags().IntP("limit", "n", constants.DefaultEnrichLimit, "Maximum releases to enrich")
	enrichCmd.Flags().Int64("release", 0, "Enrich a single release id")

	rootCmd.AddCommand(imagesCmd)
	imagesCmd.Flags().IntP("limit", "n", 100, "Maximum images to fetch")

	rootCmd.AddCommand(pushCmd)
	pushCmd.AddCommand(pushRunCmd)
	pushCmd.AddCommand(pushListCmd)
	pushListCmd.Flags().String("status", "", "Filter by status (pending, running, done, failed)")
	pushListCmd.Flags().IntP("limit", "n", 50, "Maximum jobs to show")
	pushCmd.AddCommand(pushRetryCmd)
	pushCmd.AddCommand(pushClearCmd)

	rootCmd.AddCommand(queueCmd)
	queueCmd.AddCommand(queueAddCmd)
	queueAddCmd.Flags().String("action", "", "update_collection, add_want, remove_want, add_collection or want_to_collection")
	queueAddCmd.Flags().Int64("release", 0, "Release id")
	queueAddCmd.Flags().Int64("instance", 0, "Collection instance id (update_collection)")
	queueAddCmd.Flags().Int("rating", -1, "Rating 0-5")
	queueAddCmd.Flags().String("media", "", "Media condition")
	queueAddCmd.Flags().String("sleeve", "", "Sleeve condition")
	queueAddCmd.Flags().String("notes", "", "Free-text notes")
	_ = queueAddCmd.MarkFlagRequired("action")
	_ = queueAddCmd.MarkFlagRequired("release")

	rootCmd.AddCommand(breakerCmd)
	breakerCmd.AddCommand(breakerStatusCmd)
	breakerCmd.AddCommand(breakerResetCmd)

	rootCmd.AddCommand(cacheCmd)
	cacheCmd.AddCommand(cacheClearCmd)

	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().Bool("no-worker", false, "Serve routes without the background worker")
	serveCmd.Flags().IntP("images", "n", 25, "Images fetched per worker tick")
}
