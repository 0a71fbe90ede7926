package discogs

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/adamjohnlea/my-music-collection-sub000/internal/httpclient"
)

type recordedCall struct {
	Method string
	Path   string
	Query  string
	Body   string
}

type fakeAPI struct {
	mu    sync.Mutex
	calls []recordedCall
}

func (f *fakeAPI) record(r *http.Request) {
	body, _ := io.ReadAll(r.Body)
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, recordedCall{Method: r.Method, Path: r.URL.Path, Query: r.URL.RawQuery, Body: string(body)})
}

func newTestClient(t *testing.T, h http.HandlerFunc) (*Client, *fakeAPI) {
	t.Helper()
	api := &fakeAPI{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		api.record(r)
		h(w, r)
	}))
	t.Cleanup(srv.Close)

	hc, err := httpclient.NewClient(srv.Client(), httpclient.Options{BaseURL: srv.URL, Token: "t"})
	require.NoError(t, err)
	return NewClient(hc.Do), api
}

const collectionPage = `{
  "pagination": {"page": 1, "pages": 3, "per_page": 2, "items": 5},
  "releases": [
    {
      "id": 100, "instance_id": 9001, "folder_id": 1, "date_added": "2024-01-02T10:00:00-08:00", "rating": 4,
      "notes": [{"field_id": 1, "value": "Mint (M)"}, {"field_id": 3, "value": "signed"}],
      "basic_information": {
        "id": 100, "title": "Kind of Blue", "year": 1959,
        "thumb": "https://img.example/t100.jpg", "cover_image": "https://img.example/c100.jpg",
        "artists": [{"name": "A"}, {"name": "B"}],
        "labels": [{"id": 5, "name": "Columbia", "catno": "CL 1355"}],
        "formats": [{"name": "Vinyl", "qty": "1", "descriptions": ["LP"]}],
        "genres": ["Jazz"], "styles": ["Modal"]
      }
    }
  ]
}`

func TestClient_ListCollection(t *testing.T) {
	c, api := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(collectionPage))
	})

	page, err := c.ListCollection(context.Background(), "collector", ListOptions{
		Page: 1, PerPage: 2, Sort: "added", SortOrder: "desc",
	})
	require.NoError(t, err)

	require.Len(t, api.calls, 1)
	assert.Equal(t, "/users/collector/collection/folders/0/releases", api.calls[0].Path)
	assert.Equal(t, "page=1&per_page=2&sort=added&sort_order=desc", api.calls[0].Query)

	require.NotNil(t, page.Pagination.Pages)
	assert.Equal(t, 3, *page.Pagination.Pages)
	require.Len(t, page.Releases, 1)

	item := page.Releases[0].ToCollectionItem("collector")
	assert.Equal(t, int64(9001), item.InstanceID)
	assert.Equal(t, int64(100), item.ReleaseID)
	assert.Equal(t, 4, *item.Rating)
	assert.Equal(t, "Mint (M)", *item.MediaCondition)
	assert.Nil(t, item.SleeveCondition)
	assert.Equal(t, "signed", *item.Notes)
	require.NotNil(t, item.Raw)
	assert.Contains(t, *item.Raw, `"instance_id":9001`)

	rel := page.Releases[0].ToRelease()
	assert.Equal(t, int64(100), rel.ID)
	assert.Equal(t, "A, B", *rel.Artist)
	assert.Equal(t, 1959, *rel.Year)
	assert.Equal(t, "https://img.example/c100.jpg", *rel.CoverURL)
	assert.Equal(t, "CL 1355", rel.Labels[0].CatNo)
	assert.Equal(t, []string{"Jazz"}, []string(rel.Genres))
}

func TestClient_ListCollectionMissingPages(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"pagination": {"page": 1, "per_page": 50, "items": 0}, "releases": []}`))
	})

	page, err := c.ListCollection(context.Background(), "collector", ListOptions{})
	require.NoError(t, err)
	assert.Nil(t, page.Pagination.Pages)
}

func TestClient_UserNotFound(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"message": "User does not exist or may have been deleted."}`))
	})

	_, err := c.ListWants(context.Background(), "ghost", ListOptions{})
	assert.ErrorIs(t, err, ErrUserNotFound)
	assert.Contains(t, err.Error(), "ghost")
}

func TestClient_GenericNotFound(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"message": "Release not found."}`))
	})

	_, err := c.GetRelease(context.Background(), 42)
	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrUserNotFound))

	var se *StatusError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, http.StatusNotFound, se.StatusCode)
	assert.Equal(t, "Release not found.", se.Message)
}

func TestClient_MalformedResponse(t *testing.T) {
	c, api := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"id": 42, "title": `))
	})

	_, err := c.GetRelease(context.Background(), 42)
	assert.ErrorIs(t, err, ErrMalformedResponse)
	assert.Len(t, api.calls, 1)
}

func TestClient_GetRelease(t *testing.T) {
	body := `{
	  "id": 42, "title": "Blue Train", "year": 1957, "country": "US",
	  "artists": [{"name": "John Coltrane"}],
	  "genres": [],
	  "tracklist": [{"position": "A1", "type_": "track", "title": "Blue Train", "duration": "10:43"}],
	  "identifiers": [{"type": "Barcode", "value": "0724349"}],
	  "images": [
	    {"type": "secondary", "uri": "https://img.example/2.jpg"},
	    {"type": "primary", "uri": "https://img.example/1.jpg"}
	  ]
	}`
	c, api := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(body))
	})

	apiRel, err := c.GetRelease(context.Background(), 42)
	require.NoError(t, err)
	assert.Equal(t, "/releases/42", api.calls[0].Path)
	assert.Equal(t, body, string(apiRel.Raw))

	rel := apiRel.ToRelease()
	assert.Equal(t, "John Coltrane", *rel.Artist)
	assert.Equal(t, "US", *rel.Country)
	assert.Equal(t, "https://img.example/1.jpg", *rel.CoverURL)
	assert.NotNil(t, rel.Genres, "present but empty list must stay non-nil")
	assert.Empty(t, rel.Genres)
	assert.Nil(t, rel.Styles, "absent list must stay nil")
	assert.Equal(t, "track", rel.Tracklist[0].Type)
	assert.Equal(t, "Barcode", rel.Identifiers[0].Type)

	images := apiRel.ToImages()
	require.Len(t, images, 2)
	assert.Equal(t, "secondary", images[0].Kind)
	assert.Equal(t, "primary", images[1].Kind)
}

func TestClient_UpdateInstance(t *testing.T) {
	c, api := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	rating := 5
	err := c.UpdateInstance(context.Background(), InstanceUpdate{
		Username:   "collector",
		ReleaseID:  100,
		InstanceID: 9001,
		Rating:     &rating,
		Fields:     map[int]string{2: "VG+", 1: "NM"},
	})
	require.NoError(t, err)

	require.Len(t, api.calls, 3)
	base := "/users/collector/collection/folders/1/releases/100/instances/9001"
	assert.Equal(t, recordedCall{Method: http.MethodPost, Path: base, Body: `{"rating":5}`}, api.calls[0])
	assert.Equal(t, base+"/fields/1", api.calls[1].Path)
	assert.Equal(t, `{"value":"NM"}`, api.calls[1].Body)
	assert.Equal(t, base+"/fields/2", api.calls[2].Path)
}

func TestClient_UpdateInstanceStopsOnFailure(t *testing.T) {
	c, api := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
	})

	rating := 3
	err := c.UpdateInstance(context.Background(), InstanceUpdate{
		Username: "collector", FolderID: 4, ReleaseID: 1, InstanceID: 2,
		Rating: &rating, Fields: map[int]string{1: "NM"},
	})
	assert.True(t, IsStatus(err, http.StatusUnprocessableEntity))
	assert.Len(t, api.calls, 1)
}

func TestClient_Wantlist(t *testing.T) {
	c, api := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodDelete {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{}`))
	})
	ctx := context.Background()

	notes := "first press"
	require.NoError(t, c.AddWant(ctx, "collector", 77, &notes, nil))
	require.NoError(t, c.RemoveWant(ctx, "collector", 77), "removing an absent want is not an error")

	require.Len(t, api.calls, 2)
	assert.Equal(t, http.MethodPut, api.calls[0].Method)
	assert.Equal(t, "/users/collector/wants/77", api.calls[0].Path)
	assert.Equal(t, `{"notes":"first press"}`, api.calls[0].Body)
	assert.Equal(t, http.MethodDelete, api.calls[1].Method)
}

func TestClient_AddToCollection(t *testing.T) {
	c, api := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"instance_id": 123456, "resource_url": "x"}`))
	})

	id, err := c.AddToCollection(context.Background(), "collector", 0, 55)
	require.NoError(t, err)
	assert.Equal(t, int64(123456), id)
	assert.Equal(t, "/users/collector/collection/folders/1/releases/55", api.calls[0].Path)
	assert.Equal(t, http.MethodPost, api.calls[0].Method)
}

type memCache struct {
	data map[string][]byte
}

func (m *memCache) GetCache(ctx context.Context, key string) ([]byte, error) {
	return m.data[key], nil
}

func (m *memCache) SetCache(ctx context.Context, key string, data []byte, ttl time.Duration) error {
	m.data[key] = data
	return nil
}

func TestFieldResolver(t *testing.T) {
	c, api := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"fields": [
			{"id": 7, "name": "Media Condition", "type": "dropdown"},
			{"id": 8, "name": "Sleeve Condition", "type": "dropdown"},
			{"id": 9, "name": "Notes", "type": "textarea"}
		]}`))
	})
	resolver := NewFieldResolver(c, &memCache{data: map[string][]byte{}}, time.Hour)
	ctx := context.Background()

	fields, err := resolver.Fields(ctx, "collector")
	require.NoError(t, err)
	_, err = resolver.Fields(ctx, "collector")
	require.NoError(t, err)
	assert.Len(t, api.calls, 1, "second lookup must hit the cache")

	ids := ResolveFieldIDs(fields, FieldIDs{MediaCondition: 1, SleeveCondition: 2, Notes: 3})
	assert.Equal(t, FieldIDs{MediaCondition: 7, SleeveCondition: 8, Notes: 9}, ids)
}

func TestResolveFieldIDs_Fallback(t *testing.T) {
	ids := ResolveFieldIDs([]APIField{{ID: 12, Name: "notes "}}, FieldIDs{MediaCondition: 1, SleeveCondition: 2, Notes: 3})
	assert.Equal(t, FieldIDs{MediaCondition: 1, SleeveCondition: 2, Notes: 12}, ids)
}
