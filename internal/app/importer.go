package app

import (
	"context"
	"fmt"
	"iter"
	"time"

	"github.com/google/uuid"

	"github.com/adamjohnlea/my-music-collection-sub000/internal/constants"
	"github.com/adamjohnlea/my-music-collection-sub000/internal/discogs"
	"github.com/adamjohnlea/my-music-collection-sub000/internal/logger"
	"github.com/adamjohnlea/my-music-collection-sub000/internal/metrics"
	"github.com/adamjohnlea/my-music-collection-sub000/internal/store"
)

// PageProgress reports one imported page. TotalPages is nil when the remote
// did not report a page count.
type PageProgress struct {
	Page       int
	Count      int
	TotalPages *int
}

// Importer performs the first full import of a user's collection.
type Importer struct {
	db     *store.DB
	api    CatalogAPI
	logger *logger.Logger
}

func NewImporter(db *store.DB, api CatalogAPI, log *logger.Logger) *Importer {
	return &Importer{db: db, api: api, logger: log.WithComponent("importer")}
}

// ImportAll walks every collection page, replacing item and release rows.
// It yields after each committed page; a non-nil error ends the sequence.
// Stopping the iteration early stops the import.
func (im *Importer) ImportAll(ctx context.Context, username string, perPage int) iter.Seq2[PageProgress, error] {
	if perPage <= 0 {
		perPage = constants.DefaultPerPage
	}

	return func(yield func(PageProgress, error) bool) {
		log := im.logger.WithRun(uuid.New().String(), "import")
		start := time.Now()
		items := 0
		var runErr error
		defer func() {
			metrics.RecordSyncRun("import", time.Since(start), items, runErr)
		}()

		log.Info("Import started", "username", username, "per_page", perPage)
		for page := 1; ; page++ {
			resp, err := im.api.ListCollection(ctx, username, discogs.ListOptions{Page: page, PerPage: perPage})
			if err != nil {
				runErr = fmt.Errorf("fetch collection page %d: %w", page, err)
				log.Error("Import failed", "page", page, "error", err)
				yield(PageProgress{Page: page}, runErr)
				return
			}

			if err := im.storePage(ctx, username, resp); err != nil {
				runErr = fmt.Errorf("store collection page %d: %w", page, err)
				log.Error("Import failed", "page", page, "error", err)
				yield(PageProgress{Page: page}, runErr)
				return
			}
			items += len(resp.Releases)

			progress := PageProgress{Page: page, Count: len(resp.Releases), TotalPages: resp.Pagination.Pages}
			log.Debug("Page imported", "page", page, "count", progress.Count)
			if !yield(progress, nil) {
				log.Info("Import stopped by caller", "page", page, "items", items)
				return
			}

			if resp.Pagination.Pages == nil || page >= *resp.Pagination.Pages {
				break
			}
		}
		log.Info("Import finished", "items", items)
	}
}

func (im *Importer) storePage(ctx context.Context, username string, page *discogs.CollectionPage) error {
	return im.db.RunInTx(ctx, func(tx *store.DB) error {
		for _, r := range page.Releases {
			if err := tx.ReplaceCollectionItem(ctx, r.ToCollectionItem(username)); err != nil {
				return err
			}
			rel := r.ToRelease()
			if err := tx.ReplaceRelease(ctx, rel); err != nil {
				return err
			}
			if err := insertCoverStub(ctx, tx, rel); err != nil {
				return err
			}
		}
		return nil
	})
}
