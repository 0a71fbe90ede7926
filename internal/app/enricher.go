package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/adamjohnlea/my-music-collection-sub000/internal/logger"
	"github.com/adamjohnlea/my-music-collection-sub000/internal/metrics"
	"github.com/adamjohnlea/my-music-collection-sub000/internal/pipeline"
	"github.com/adamjohnlea/my-music-collection-sub000/internal/store"
)

// EnrichError records one release that failed during EnrichMissing.
type EnrichError struct {
	ReleaseID int64  `json:"release_id"`
	Message   string `json:"message"`
}

// ReleaseEnricher upgrades imported release stubs with full detail.
type ReleaseEnricher struct {
	db     *store.DB
	api    CatalogAPI
	clock  Clock
	logger *logger.Logger
	errors []EnrichError
}

func NewReleaseEnricher(db *store.DB, api CatalogAPI, clock Clock, log *logger.Logger) *ReleaseEnricher {
	return &ReleaseEnricher{db: db, api: api, clock: clock, logger: log.WithComponent("enricher")}
}

// EnrichOne fetches the release detail and stores it, along with any images
// it lists. Remote errors are returned as is.
func (e *ReleaseEnricher) EnrichOne(ctx context.Context, id int64) error {
	detail, err := e.api.GetRelease(ctx, id)
	if err != nil {
		return err
	}

	rel := detail.ToRelease()
	rel.ID = id
	images := detail.ToImages()

	err = e.db.RunInTx(ctx, func(tx *store.DB) error {
		if err := tx.ApplyReleaseDetail(ctx, rel, e.clock.Now().UTC()); err != nil {
			return err
		}
		for _, img := range images {
			img.ReleaseID = id
			if err := insertImageStub(ctx, tx, img); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("store release %d: %w", id, err)
	}

	e.logger.WithRelease(id).Debug("Release enriched", "images", len(images))
	return nil
}

// EnrichMissing enriches up to limit releases that have never been enriched,
// oldest import first. A failing release is recorded and skipped; see Errors.
// The batch stops early only when the context ends or sync is disabled.
func (e *ReleaseEnricher) EnrichMissing(ctx context.Context, limit int) (int, error) {
	e.errors = nil

	ids, err := e.db.ListUnenrichedReleaseIDs(ctx, limit)
	if err != nil {
		return 0, fmt.Errorf("list unenriched releases: %w", err)
	}

	log := e.logger.WithRun(uuid.New().String(), "enrich")
	start := time.Now()
	log.Info("Enrichment started", "candidates", len(ids))

	ok := 0
	var runErr error
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			runErr = err
			break
		}
		if err := e.EnrichOne(ctx, id); err != nil {
			e.errors = append(e.errors, EnrichError{ReleaseID: id, Message: err.Error()})
			log.WithRelease(id).Warn("Release enrichment failed", "error", err)
			if errors.Is(err, pipeline.ErrSyncDisabled) {
				runErr = err
				break
			}
			continue
		}
		ok++
	}

	metrics.RecordSyncRun("enrich", time.Since(start), ok, runErr)
	log.Info("Enrichment finished", "enriched", ok, "failed", len(e.errors))
	return ok, runErr
}

// Errors returns the failures collected by the last EnrichMissing call.
func (e *ReleaseEnricher) Errors() []EnrichError {
	out := make([]EnrichError, len(e.errors))
	copy(out, e.errors)
	return out
}
