package app

import (
	"context"
	"fmt"
	"net/http"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/adamjohnlea/my-music-collection-sub000/internal/constants"
	"github.com/adamjohnlea/my-music-collection-sub000/internal/domain"
	"github.com/adamjohnlea/my-music-collection-sub000/internal/logger"
	"github.com/adamjohnlea/my-music-collection-sub000/internal/metrics"
	"github.com/adamjohnlea/my-music-collection-sub000/internal/pipeline"
	"github.com/adamjohnlea/my-music-collection-sub000/internal/state"
	"github.com/adamjohnlea/my-music-collection-sub000/internal/storage"
	"github.com/adamjohnlea/my-music-collection-sub000/internal/store"
)

type ImageCacheOptions struct {
	ImagesDir string
	DailyCap  int
	// Interval paces FetchPending. Zero means one request per second.
	Interval time.Duration
}

type fetchOutcome int

const (
	fetchOK fetchOutcome = iota
	fetchQuota
	fetchFailed
)

// ImageCache downloads release images under a per-UTC-day quota.
type ImageCache struct {
	db        *store.DB
	transport pipeline.Handler
	state     state.Store
	clock     Clock
	opts      ImageCacheOptions
	limiter   *rate.Limiter
	logger    *logger.Logger
}

// NewImageCache builds the cache. transport should be the raw HTTP transport:
// image hosts sit outside the API rate limit.
func NewImageCache(db *store.DB, transport pipeline.Handler, st state.Store, clock Clock, opts ImageCacheOptions, log *logger.Logger) *ImageCache {
	if opts.DailyCap <= 0 {
		opts.DailyCap = constants.DefaultImageDailyCap
	}
	if opts.Interval <= 0 {
		opts.Interval = constants.ImageFetchInterval
	}
	if opts.ImagesDir == "" {
		opts.ImagesDir = constants.DefaultImagesDir
	}
	return &ImageCache{
		db:        db,
		transport: transport,
		state:     st,
		clock:     clock,
		opts:      opts,
		limiter:   rate.NewLimiter(rate.Every(opts.Interval), 1),
		logger:    log.WithComponent("images"),
	}
}

// Fetch downloads sourceURL to localPath. It returns false when today's quota
// is used up, without touching the network, and on any failed download.
func (c *ImageCache) Fetch(ctx context.Context, sourceURL, localPath string) bool {
	outcome, _, _ := c.fetch(ctx, sourceURL, localPath)
	return outcome == fetchOK
}

func (c *ImageCache) dailyKey() string {
	return constants.KeyImageDailyPrefix + c.clock.Now().UTC().Format(constants.ImageDailyDateLayout)
}

func (c *ImageCache) fetch(ctx context.Context, sourceURL, localPath string) (fetchOutcome, int, error) {
	key := c.dailyKey()
	used, _, err := state.GetInt(ctx, c.state, key)
	if err != nil {
		c.logger.Error("Failed to read image quota", "error", err)
		return fetchFailed, 0, err
	}
	if used >= int64(c.opts.DailyCap) {
		c.logger.Info("Daily image quota reached", "cap", c.opts.DailyCap)
		metrics.RecordImageFetch("quota", 0)
		return fetchQuota, 0, nil
	}

	defer func() {
		if err := state.SetInt(ctx, c.state, constants.KeyImageLastFetch, c.clock.Now().Unix()); err != nil {
			c.logger.Warn("Failed to stamp image fetch time", "error", err)
		}
	}()

	resp, err := c.transport(ctx, &pipeline.Request{
		Method:  http.MethodGet,
		Path:    sourceURL,
		Timeout: constants.ImageHTTPTimeout,
	})
	if err != nil {
		c.logger.Warn("Image download failed", "url", sourceURL, "error", err)
		metrics.RecordImageFetch("error", 0)
		return fetchFailed, 0, err
	}
	if !resp.OK() {
		c.logger.Warn("Image download failed", "url", sourceURL, "status", resp.StatusCode)
		metrics.RecordImageFetch("error", 0)
		return fetchFailed, 0, fmt.Errorf("HTTP %d", resp.StatusCode)
	}

	if err := storage.WriteFile(localPath, resp.Body); err != nil {
		c.logger.Error("Failed to write image", "path", localPath, "error", err)
		metrics.RecordImageFetch("error", 0)
		return fetchFailed, 0, err
	}

	if _, err := c.state.Increment(ctx, key); err != nil {
		c.logger.Warn("Failed to bump image quota", "error", err)
	}
	metrics.RecordImageFetch("ok", len(resp.Body))
	return fetchOK, len(resp.Body), nil
}

// FetchPending downloads up to limit images that have no local copy yet,
// paced by the configured interval. It stops at the daily quota and returns
// the number of images stored.
func (c *ImageCache) FetchPending(ctx context.Context, limit int) (int, error) {
	images, err := c.db.ListPendingImages(ctx, constants.ImageMaxAttempts, limit)
	if err != nil {
		return 0, fmt.Errorf("list pending images: %w", err)
	}
	if len(images) == 0 {
		return 0, nil
	}

	log := c.logger.WithRun(uuid.New().String(), "images")
	start := time.Now()
	log.Info("Image pass started", "pending", len(images))

	fetched := 0
	var runErr error
	for _, img := range images {
		if err := c.limiter.Wait(ctx); err != nil {
			runErr = err
			break
		}

		rel := img.LocalPath
		if rel == "" {
			rel = storage.ImagePath(img.SourceURL)
		}
		outcome, size, fetchErr := c.fetch(ctx, img.SourceURL, filepath.Join(c.opts.ImagesDir, rel))
		if outcome == fetchQuota {
			break
		}
		if outcome == fetchFailed {
			if ctx.Err() != nil {
				runErr = ctx.Err()
				break
			}
			msg := domain.Truncate(fetchErr.Error(), constants.LastErrorMaxLength)
			if err := c.db.MarkImageFailed(ctx, img.ID, msg); err != nil {
				runErr = fmt.Errorf("mark image %d failed: %w", img.ID, err)
				break
			}
			continue
		}

		if err := c.db.MarkImageFetched(ctx, img.ID, int64(size), c.clock.Now()); err != nil {
			runErr = fmt.Errorf("mark image %d fetched: %w", img.ID, err)
			break
		}
		fetched++
	}

	metrics.RecordSyncRun("images", time.Since(start), fetched, runErr)
	log.Info("Image pass finished", "fetched", fetched)
	return fetched, runErr
}
