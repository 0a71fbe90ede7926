package app

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/adamjohnlea/my-music-collection-sub000/internal/constants"
	"github.com/adamjohnlea/my-music-collection-sub000/internal/discogs"
	"github.com/adamjohnlea/my-music-collection-sub000/internal/logger"
	"github.com/adamjohnlea/my-music-collection-sub000/internal/metrics"
	"github.com/adamjohnlea/my-music-collection-sub000/internal/state"
	"github.com/adamjohnlea/my-music-collection-sub000/internal/store"
)

type RefreshOptions struct {
	// MaxPages caps collection pages scanned per run.
	MaxPages int
	PerPage  int
	// Cursor overrides the stored cursor for this run.
	Cursor *string
}

type RefreshResult struct {
	// Touched counts collection items newer than the cursor or new locally.
	Touched int
	// Cursor is the cursor after the run.
	Cursor string
	Pages  int
	Wants  int
}

// RefreshEngine pulls collection changes newer than the stored cursor and
// then re-syncs the whole wantlist.
type RefreshEngine struct {
	db     *store.DB
	api    CatalogAPI
	state  state.Store
	clock  Clock
	logger *logger.Logger
}

func NewRefreshEngine(db *store.DB, api CatalogAPI, st state.Store, clock Clock, log *logger.Logger) *RefreshEngine {
	return &RefreshEngine{db: db, api: api, state: st, clock: clock, logger: log.WithComponent("refresh")}
}

func (e *RefreshEngine) Run(ctx context.Context, username string, opts RefreshOptions) (*RefreshResult, error) {
	if opts.MaxPages <= 0 {
		opts.MaxPages = constants.DefaultRefreshMaxPages
	}
	if opts.PerPage <= 0 {
		opts.PerPage = constants.DefaultPerPage
	}

	log := e.logger.WithRun(uuid.New().String(), "refresh")
	start := time.Now()

	result, err := e.run(ctx, log, username, opts)
	items := 0
	if result != nil {
		items = result.Touched + result.Wants
	}
	metrics.RecordSyncRun("refresh", time.Since(start), items, err)
	if err != nil {
		log.Error("Refresh failed", "error", err)
		return nil, err
	}
	log.Info("Refresh finished", "touched", result.Touched, "pages", result.Pages, "wants", result.Wants, "cursor", result.Cursor)
	return result, nil
}

func (e *RefreshEngine) run(ctx context.Context, log *logger.Logger, username string, opts RefreshOptions) (*RefreshResult, error) {
	cursor := ""
	if opts.Cursor != nil {
		cursor = *opts.Cursor
	} else {
		stored, _, err := e.state.Get(ctx, constants.KeyRefreshLastAdded)
		if err != nil {
			return nil, fmt.Errorf("read refresh cursor: %w", err)
		}
		cursor = stored
	}
	log.Info("Refresh started", "username", username, "cursor", cursor, "max_pages", opts.MaxPages)

	result := &RefreshResult{Cursor: cursor}
	newest := ""

	for page := 1; page <= opts.MaxPages; page++ {
		resp, err := e.api.ListCollection(ctx, username, discogs.ListOptions{
			Page:      page,
			PerPage:   opts.PerPage,
			Sort:      "added",
			SortOrder: "desc",
		})
		if err != nil {
			return nil, fmt.Errorf("fetch collection page %d: %w", page, err)
		}
		result.Pages++

		if page == 1 {
			for _, r := range resp.Releases {
				if addedAfter(r.DateAdded, newest) {
					newest = r.DateAdded
				}
			}
		}

		touched, reached, err := e.mergePage(ctx, username, cursor, resp)
		if err != nil {
			return nil, fmt.Errorf("store collection page %d: %w", page, err)
		}
		result.Touched += touched

		if reached {
			log.Debug("Reached cursor", "page", page)
			break
		}
		if len(resp.Releases) == 0 || resp.Pagination.Pages == nil || page >= *resp.Pagination.Pages {
			break
		}
		if page == opts.MaxPages {
			log.Warn("Page cap reached before cursor", "max_pages", opts.MaxPages)
		}
	}

	if newest != "" && addedAfter(newest, result.Cursor) {
		if err := e.state.Set(ctx, constants.KeyRefreshLastAdded, newest); err != nil {
			return nil, fmt.Errorf("store refresh cursor: %w", err)
		}
		result.Cursor = newest
	}

	wants, err := e.refreshWantlist(ctx, username, opts.PerPage)
	if err != nil {
		return nil, err
	}
	result.Wants = wants

	if err := state.SetTime(ctx, e.state, constants.KeyRefreshLastRunAt, e.clock.Now()); err != nil {
		return nil, fmt.Errorf("stamp refresh run: %w", err)
	}
	return result, nil
}

// mergePage upserts every item on the page. reached reports that the page
// contained an item at or before the cursor that already exists locally.
func (e *RefreshEngine) mergePage(ctx context.Context, username, cursor string, page *discogs.CollectionPage) (touched int, reached bool, err error) {
	err = e.db.RunInTx(ctx, func(tx *store.DB) error {
		for _, r := range page.Releases {
			known := false
			if cursor != "" && !addedAfter(r.DateAdded, cursor) {
				exists, err := tx.CollectionItemExists(ctx, r.InstanceID)
				if err != nil {
					return err
				}
				known = exists
			}
			if known {
				reached = true
			} else {
				touched++
			}

			if err := tx.MergeCollectionItem(ctx, r.ToCollectionItem(username)); err != nil {
				return err
			}
			rel := r.ToRelease()
			if err := tx.MergeRelease(ctx, rel); err != nil {
				return err
			}
			if err := insertCoverStub(ctx, tx, rel); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return 0, false, err
	}
	return touched, reached, nil
}

func (e *RefreshEngine) refreshWantlist(ctx context.Context, username string, perPage int) (int, error) {
	total := 0
	for page := 1; ; page++ {
		resp, err := e.api.ListWants(ctx, username, discogs.ListOptions{Page: page, PerPage: perPage})
		if err != nil {
			return total, fmt.Errorf("fetch wantlist page %d: %w", page, err)
		}

		err = e.db.RunInTx(ctx, func(tx *store.DB) error {
			for _, w := range resp.Wants {
				if err := tx.MergeWantlistItem(ctx, w.ToWantlistItem(username)); err != nil {
					return err
				}
				rel := w.ToRelease()
				if err := tx.MergeRelease(ctx, rel); err != nil {
					return err
				}
				if err := insertCoverStub(ctx, tx, rel); err != nil {
					return err
				}
			}
			return nil
		})
		if err != nil {
			return total, fmt.Errorf("store wantlist page %d: %w", page, err)
		}
		total += len(resp.Wants)

		if len(resp.Wants) == 0 || resp.Pagination.Pages == nil || page >= *resp.Pagination.Pages {
			break
		}
	}
	metrics.SyncItemsTotal.WithLabelValues("wantlist").Add(float64(total))
	return total, nil
}

// addedAfter reports whether added is strictly newer than cursor. An empty
// cursor is older than everything. Timestamps compare as instants when both
// parse as RFC 3339 and as strings otherwise.
func addedAfter(added, cursor string) bool {
	if cursor == "" {
		return added != ""
	}
	a, errA := time.Parse(time.RFC3339, added)
	c, errC := time.Parse(time.RFC3339, cursor)
	if errA == nil && errC == nil {
		return a.After(c)
	}
	return added > cursor
}
