package app

import (
	"context"

	"github.com/adamjohnlea/my-music-collection-sub000/internal/discogs"
	"github.com/adamjohnlea/my-music-collection-sub000/internal/domain"
	"github.com/adamjohnlea/my-music-collection-sub000/internal/pipeline"
	"github.com/adamjohnlea/my-music-collection-sub000/internal/storage"
	"github.com/adamjohnlea/my-music-collection-sub000/internal/store"
)

// CatalogAPI is the remote catalog as the sync engines see it. *discogs.Client
// satisfies it.
type CatalogAPI interface {
	ListCollection(ctx context.Context, username string, opts discogs.ListOptions) (*discogs.CollectionPage, error)
	ListWants(ctx context.Context, username string, opts discogs.ListOptions) (*discogs.WantsPage, error)
	GetRelease(ctx context.Context, id int64) (*discogs.APIRelease, error)
	ListCollectionFields(ctx context.Context, username string) ([]discogs.APIField, error)
	UpdateInstance(ctx context.Context, u discogs.InstanceUpdate) error
	AddWant(ctx context.Context, username string, releaseID int64, notes *string, rating *int) error
	RemoveWant(ctx context.Context, username string, releaseID int64) error
	AddToCollection(ctx context.Context, username string, folderID, releaseID int64) (int64, error)
}

var _ CatalogAPI = (*discogs.Client)(nil)

// insertCoverStub records the release's cover image for the image cache.
func insertCoverStub(ctx context.Context, db *store.DB, rel *domain.Release) error {
	if rel.CoverURL == nil || *rel.CoverURL == "" {
		return nil
	}
	return insertImageStub(ctx, db, &domain.Image{ReleaseID: rel.ID, SourceURL: *rel.CoverURL, Kind: "primary"})
}

func insertImageStub(ctx context.Context, db *store.DB, img *domain.Image) error {
	if img.LocalPath == "" {
		img.LocalPath = storage.ImagePath(img.SourceURL)
	}
	return db.InsertImageStub(ctx, img)
}

// Clock is the time source shared with the request pipeline.
type Clock = pipeline.Clock
