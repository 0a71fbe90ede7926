package app

import (
	"context"
	"path/filepath"
	"sync"
	"testing"

	"github.com/adamjohnlea/my-music-collection-sub000/internal/discogs"
	"github.com/adamjohnlea/my-music-collection-sub000/internal/domain"
	"github.com/adamjohnlea/my-music-collection-sub000/internal/store"
)

func setupTestDB(t *testing.T) *store.DB {
	t.Helper()
	db, err := store.NewSQLiteDB(filepath.Join(t.TempDir(), "test_app.db"))
	if err != nil {
		t.Fatalf("Failed to open db: %v", err)
	}
	t.Cleanup(func() {
		if cErr := db.Close(); cErr != nil {
			t.Logf("db.Close error: %v", cErr)
		}
	})
	return db
}

// fakeCatalog is an in-memory CatalogAPI that records every call.
type fakeCatalog struct {
	mu sync.Mutex

	collection map[int]*discogs.CollectionPage
	wants      map[int]*discogs.WantsPage
	releases   map[int64]*discogs.APIRelease
	releaseErr map[int64]error
	fields     []discogs.APIField
	fieldsErr  error

	updateErr        error
	addWantErr       error
	removeWantErr    error
	addCollectionErr error

	// called after the call is recorded, outside the lock
	onUpdate        func(u discogs.InstanceUpdate)
	onAddCollection func(releaseID int64)

	collectionCalls []discogs.ListOptions
	wantCalls       []discogs.ListOptions
	releaseCalls    []int64
	fieldCalls      int
	updates         []discogs.InstanceUpdate
	addedWants      []int64
	removedWants    []int64
	addedCollection []int64
}

func newFakeCatalog() *fakeCatalog {
	return &fakeCatalog{
		collection: map[int]*discogs.CollectionPage{},
		wants:      map[int]*discogs.WantsPage{},
		releases:   map[int64]*discogs.APIRelease{},
		releaseErr: map[int64]error{},
	}
}

func (f *fakeCatalog) ListCollection(ctx context.Context, username string, opts discogs.ListOptions) (*discogs.CollectionPage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.collectionCalls = append(f.collectionCalls, opts)
	if p, ok := f.collection[opts.Page]; ok {
		return p, nil
	}
	return &discogs.CollectionPage{Pagination: discogs.Pagination{Page: opts.Page}}, nil
}

func (f *fakeCatalog) ListWants(ctx context.Context, username string, opts discogs.ListOptions) (*discogs.WantsPage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.wantCalls = append(f.wantCalls, opts)
	if p, ok := f.wants[opts.Page]; ok {
		return p, nil
	}
	return &discogs.WantsPage{Pagination: discogs.Pagination{Page: opts.Page}}, nil
}

func (f *fakeCatalog) GetRelease(ctx context.Context, id int64) (*discogs.APIRelease, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.releaseCalls = append(f.releaseCalls, id)
	if err := f.releaseErr[id]; err != nil {
		return nil, err
	}
	if r, ok := f.releases[id]; ok {
		return r, nil
	}
	return &discogs.APIRelease{ID: id}, nil
}

func (f *fakeCatalog) ListCollectionFields(ctx context.Context, username string) ([]discogs.APIField, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fieldCalls++
	return f.fields, f.fieldsErr
}

func (f *fakeCatalog) UpdateInstance(ctx context.Context, u discogs.InstanceUpdate) error {
	f.mu.Lock()
	f.updates = append(f.updates, u)
	err, hook := f.updateErr, f.onUpdate
	f.mu.Unlock()
	if hook != nil {
		hook(u)
	}
	return err
}

func (f *fakeCatalog) AddWant(ctx context.Context, username string, releaseID int64, notes *string, rating *int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.addedWants = append(f.addedWants, releaseID)
	return f.addWantErr
}

func (f *fakeCatalog) RemoveWant(ctx context.Context, username string, releaseID int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.removedWants = append(f.removedWants, releaseID)
	return f.removeWantErr
}

func (f *fakeCatalog) AddToCollection(ctx context.Context, username string, folderID, releaseID int64) (int64, error) {
	f.mu.Lock()
	f.addedCollection = append(f.addedCollection, releaseID)
	err, hook := f.addCollectionErr, f.onAddCollection
	f.mu.Unlock()
	if hook != nil {
		hook(releaseID)
	}
	if err != nil {
		return 0, err
	}
	return 5000 + releaseID, nil
}

func collectionEntry(instanceID, releaseID int64, added string, artists ...string) discogs.APICollectionRelease {
	credits := make([]discogs.APIArtist, 0, len(artists))
	for _, a := range artists {
		credits = append(credits, discogs.APIArtist{Name: a})
	}
	return discogs.APICollectionRelease{
		ID:         releaseID,
		InstanceID: instanceID,
		FolderID:   1,
		DateAdded:  added,
		Rating:     3,
		BasicInformation: discogs.APIBasicInformation{
			ID:         releaseID,
			Title:      "Release " + added,
			Year:       1970,
			CoverImage: "https://img.example/cover/" + added + ".jpg",
			Artists:    credits,
		},
	}
}

func collectionPage(page int, pages *int, entries ...discogs.APICollectionRelease) *discogs.CollectionPage {
	return &discogs.CollectionPage{
		Pagination: discogs.Pagination{Page: page, Pages: pages, PerPage: 50, Items: len(entries)},
		Releases:   entries,
	}
}

func pagesOf(n int) *int {
	return domain.Ptr(n)
}
