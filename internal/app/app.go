package app

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/adamjohnlea/my-music-collection-sub000/internal/config"
	"github.com/adamjohnlea/my-music-collection-sub000/internal/discogs"
	"github.com/adamjohnlea/my-music-collection-sub000/internal/httpclient"
	"github.com/adamjohnlea/my-music-collection-sub000/internal/logger"
	"github.com/adamjohnlea/my-music-collection-sub000/internal/pipeline"
	"github.com/adamjohnlea/my-music-collection-sub000/internal/state"
	"github.com/adamjohnlea/my-music-collection-sub000/internal/store"
)

// App wires the store, state backend, request pipeline and sync engines
// for one process.
type App struct {
	Config   *config.Config
	DB       *store.DB
	State    state.Store
	API      *discogs.Client
	Importer *Importer
	Refresh  *RefreshEngine
	Enricher *ReleaseEnricher
	Push     *PushProcessor
	Queue    *PushService
	Images   *ImageCache
	Logger   *logger.Logger

	closers []io.Closer
}

// New opens the database and state backend and builds every component.
func New(ctx context.Context, cfg *config.Config, log *logger.Logger) (*App, error) {
	db, err := store.NewSQLiteDB(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	a := &App{Config: cfg, DB: db, Logger: log}
	a.closers = append(a.closers, db)

	st, err := openState(ctx, cfg, db)
	if err != nil {
		_ = a.Close()
		return nil, err
	}
	if c, ok := st.(io.Closer); ok {
		a.closers = append(a.closers, c)
	}
	a.State = st

	transport, err := httpclient.NewClient(nil, httpclient.Options{
		BaseURL:   cfg.BaseURL,
		Token:     cfg.Token,
		UserAgent: cfg.UserAgent,
		Timeout:   cfg.HTTPTimeout,
	})
	if err != nil {
		_ = a.Close()
		return nil, err
	}

	clock := pipeline.RealClock{}
	handler := pipeline.New(transport.Do, st, cfg.RetryMax, clock, log.WithComponent("pipeline"))
	a.API = discogs.NewClient(handler)

	a.Importer = NewImporter(db, a.API, log)
	a.Refresh = NewRefreshEngine(db, a.API, st, clock, log)
	a.Enricher = NewReleaseEnricher(db, a.API, clock, log)
	a.Push = NewPushProcessor(db, a.API, PushOptions{PushNotes: cfg.PushNotes}, log)
	a.Queue = NewPushService(db, log)
	a.Images = NewImageCache(db, transport.Do, st, clock, ImageCacheOptions{
		ImagesDir: cfg.ImagesDir,
		DailyCap:  cfg.ImageDailyCap,
	}, log)
	return a, nil
}

func openState(ctx context.Context, cfg *config.Config, db *store.DB) (state.Store, error) {
	switch cfg.StateBackend {
	case "", "sqlite":
		return store.NewStateRepo(db), nil
	case "redis":
		rs, err := state.NewRedisStore(cfg.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("open redis state store: %w", err)
		}
		if err := rs.Ping(ctx); err != nil {
			_ = rs.Close()
			return nil, fmt.Errorf("ping redis state store: %w", err)
		}
		return rs, nil
	default:
		return nil, fmt.Errorf("unknown state backend %q", cfg.StateBackend)
	}
}

// Close releases the state backend and the database.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i].Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
