package app

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/adamjohnlea/my-music-collection-sub000/internal/constants"
	"github.com/adamjohnlea/my-music-collection-sub000/internal/domain"
	"github.com/adamjohnlea/my-music-collection-sub000/internal/httpclient"
	"github.com/adamjohnlea/my-music-collection-sub000/internal/logger"
	"github.com/adamjohnlea/my-music-collection-sub000/internal/state"
	"github.com/adamjohnlea/my-music-collection-sub000/internal/storage"
	"github.com/adamjohnlea/my-music-collection-sub000/internal/store"
	"github.com/adamjohnlea/my-music-collection-sub000/internal/testutil"
)

type imageFixture struct {
	cache *ImageCache
	db    *store.DB
	st    *state.MemoryStore
	clock *testutil.StubClock
	srv   *httptest.Server
	hits  *atomic.Int32
	dir   string
}

func newImageFixture(t *testing.T, dailyCap int, h http.HandlerFunc) *imageFixture {
	t.Helper()
	hits := &atomic.Int32{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		h(w, r)
	}))
	t.Cleanup(srv.Close)

	transport, err := httpclient.NewClient(srv.Client(), httpclient.Options{BaseURL: "https://api.discogs.com"})
	require.NoError(t, err)

	f := &imageFixture{
		db:    setupTestDB(t),
		st:    state.NewMemoryStore(),
		clock: testutil.FixedClock(),
		srv:   srv,
		hits:  hits,
		dir:   t.TempDir(),
	}
	f.cache = NewImageCache(f.db, transport.Do, f.st, f.clock, ImageCacheOptions{
		ImagesDir: f.dir,
		DailyCap:  dailyCap,
		Interval:  time.Millisecond,
	}, logger.Discard())
	return f
}

func (f *imageFixture) dailyCount(t *testing.T) int64 {
	t.Helper()
	key := constants.KeyImageDailyPrefix + f.clock.Now().UTC().Format(constants.ImageDailyDateLayout)
	n, _, err := state.GetInt(context.Background(), f.st, key)
	require.NoError(t, err)
	return n
}

func serveBytes(body string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(body))
	}
}

func TestImageCache_Fetch(t *testing.T) {
	f := newImageFixture(t, 0, serveBytes("jpegdata"))
	ctx := context.Background()
	path := filepath.Join(f.dir, "nested", "a.jpg")

	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte("stale"), 0o644))

	assert.True(t, f.cache.Fetch(ctx, f.srv.URL+"/a.jpg", path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "jpegdata", string(data), "existing file is overwritten")
	assert.Equal(t, int64(1), f.dailyCount(t))

	last, ok, err := state.GetInt(ctx, f.st, constants.KeyImageLastFetch)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, f.clock.Now().Unix(), last)
}

func TestImageCache_FetchEmptyBody(t *testing.T) {
	f := newImageFixture(t, 0, serveBytes(""))
	path := filepath.Join(f.dir, "x", "empty.jpg")

	assert.True(t, f.cache.Fetch(context.Background(), f.srv.URL+"/empty.jpg", path))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, int64(0), info.Size())
}

func TestImageCache_FailureLeavesCounter(t *testing.T) {
	f := newImageFixture(t, 0, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})
	ctx := context.Background()
	path := filepath.Join(f.dir, "fail.jpg")

	assert.False(t, f.cache.Fetch(ctx, f.srv.URL+"/fail.jpg", path))
	assert.Equal(t, int64(0), f.dailyCount(t))

	_, err := os.Stat(path)
	assert.True(t, os.IsNotExist(err))

	_, ok, err := state.GetInt(ctx, f.st, constants.KeyImageLastFetch)
	require.NoError(t, err)
	assert.True(t, ok, "failed attempts are stamped too")
}

func TestImageCache_Quota(t *testing.T) {
	f := newImageFixture(t, 0, serveBytes("jpegdata"))
	ctx := context.Background()
	key := constants.KeyImageDailyPrefix + f.clock.Now().UTC().Format(constants.ImageDailyDateLayout)
	require.NoError(t, state.SetInt(ctx, f.st, key, constants.DefaultImageDailyCap))

	path := filepath.Join(f.dir, "quota.jpg")
	assert.False(t, f.cache.Fetch(ctx, f.srv.URL+"/q.jpg", path))
	assert.Equal(t, int32(0), f.hits.Load(), "no network call once the quota is used")
	_, err := os.Stat(path)
	assert.True(t, os.IsNotExist(err))

	_, stamped, err := state.GetInt(ctx, f.st, constants.KeyImageLastFetch)
	require.NoError(t, err)
	assert.False(t, stamped)

	// Next UTC day starts a fresh counter.
	f.clock.Advance(24 * time.Hour)
	assert.True(t, f.cache.Fetch(ctx, f.srv.URL+"/q.jpg", path))
	assert.Equal(t, int64(1), f.dailyCount(t))
}

func TestImageCache_FetchPending(t *testing.T) {
	f := newImageFixture(t, 2, serveBytes("img"))
	ctx := context.Background()

	for i, name := range []string{"a", "b", "c"} {
		url := f.srv.URL + "/" + name + ".jpg"
		require.NoError(t, f.db.InsertImageStub(ctx, &domain.Image{
			ReleaseID: int64(i + 1),
			SourceURL: url,
			LocalPath: storage.ImagePath(url),
		}))
	}

	n, err := f.cache.FetchPending(ctx, 10)
	require.NoError(t, err)
	assert.Equal(t, 2, n, "stops at the daily cap")
	assert.Equal(t, int32(2), f.hits.Load())

	images, err := f.db.ListReleaseImages(ctx, 1)
	require.NoError(t, err)
	require.Len(t, images, 1)
	require.NotNil(t, images[0].FetchedAt)
	assert.Equal(t, int64(3), *images[0].Bytes)

	data, err := os.ReadFile(filepath.Join(f.dir, images[0].LocalPath))
	require.NoError(t, err)
	assert.Equal(t, "img", string(data))

	pending, err := f.db.ListPendingImages(ctx, constants.ImageMaxAttempts, 10)
	require.NoError(t, err)
	assert.Len(t, pending, 1)
}

func TestImageCache_FailingImagesDoNotStarveTheRest(t *testing.T) {
	f := newImageFixture(t, 0, func(w http.ResponseWriter, r *http.Request) {
		if strings.HasPrefix(r.URL.Path, "/broken") {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write([]byte("img"))
	})
	ctx := context.Background()

	// Two broken covers queued ahead of a good one, with a batch of two.
	for i, name := range []string{"broken-1", "broken-2", "good"} {
		url := f.srv.URL + "/" + name + ".jpg"
		require.NoError(t, f.db.InsertImageStub(ctx, &domain.Image{
			ReleaseID: int64(i + 1),
			SourceURL: url,
			LocalPath: storage.ImagePath(url),
		}))
	}

	n, err := f.cache.FetchPending(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	broken, err := f.db.ListReleaseImages(ctx, 1)
	require.NoError(t, err)
	require.Len(t, broken, 1)
	assert.Equal(t, 1, broken[0].Attempts)
	require.NotNil(t, broken[0].LastError)
	assert.Contains(t, *broken[0].LastError, "404")

	n, err = f.cache.FetchPending(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, 1, n, "the good image is reached on the next pass")

	good, err := f.db.ListReleaseImages(ctx, 3)
	require.NoError(t, err)
	require.Len(t, good, 1)
	assert.NotNil(t, good[0].FetchedAt)
}
