// Package discogs is a typed client for the Discogs REST API. Every call goes
// through a pipeline.Handler so rate limiting, retries and the auth breaker
// apply uniformly.
package discogs

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strconv"

	"github.com/adamjohnlea/my-music-collection-sub000/internal/constants"
	"github.com/adamjohnlea/my-music-collection-sub000/internal/pipeline"
)

// Client issues typed Discogs calls.
type Client struct {
	handler pipeline.Handler
}

func NewClient(handler pipeline.Handler) *Client {
	return &Client{handler: handler}
}

// ListOptions selects one page of a listing.
type ListOptions struct {
	Page      int
	PerPage   int
	Sort      string
	SortOrder string
}

func (o ListOptions) values() url.Values {
	q := url.Values{}
	page := o.Page
	if page < 1 {
		page = 1
	}
	perPage := o.PerPage
	if perPage < 1 {
		perPage = constants.DefaultPerPage
	}
	q.Set("page", strconv.Itoa(page))
	q.Set("per_page", strconv.Itoa(perPage))
	if o.Sort != "" {
		q.Set("sort", o.Sort)
	}
	if o.SortOrder != "" {
		q.Set("sort_order", o.SortOrder)
	}
	return q
}

// ListCollection fetches a page of the user's collection across all folders.
func (c *Client) ListCollection(ctx context.Context, username string, opts ListOptions) (*CollectionPage, error) {
	resp, err := c.handler(ctx, &pipeline.Request{
		Method: http.MethodGet,
		Path:   fmt.Sprintf("/users/%s/collection/folders/0/releases", url.PathEscape(username)),
		Query:  opts.values(),
	})
	if err != nil {
		return nil, err
	}
	if err := checkResponse("list collection", username, resp); err != nil {
		return nil, err
	}

	var page CollectionPage
	if err := decode("list collection", resp.Body, &page); err != nil {
		return nil, err
	}
	return &page, nil
}

// ListWants fetches a page of the user's wantlist.
func (c *Client) ListWants(ctx context.Context, username string, opts ListOptions) (*WantsPage, error) {
	resp, err := c.handler(ctx, &pipeline.Request{
		Method: http.MethodGet,
		Path:   fmt.Sprintf("/users/%s/wants", url.PathEscape(username)),
		Query:  opts.values(),
	})
	if err != nil {
		return nil, err
	}
	if err := checkResponse("list wants", username, resp); err != nil {
		return nil, err
	}

	var page WantsPage
	if err := decode("list wants", resp.Body, &page); err != nil {
		return nil, err
	}
	return &page, nil
}

// GetRelease fetches full release detail. The raw body is kept on the result.
func (c *Client) GetRelease(ctx context.Context, id int64) (*APIRelease, error) {
	resp, err := c.handler(ctx, &pipeline.Request{
		Method: http.MethodGet,
		Path:   fmt.Sprintf("/releases/%d", id),
	})
	if err != nil {
		return nil, err
	}
	if err := checkResponse("get release", "", resp); err != nil {
		return nil, err
	}

	var rel APIRelease
	if err := decode("get release", resp.Body, &rel); err != nil {
		return nil, err
	}
	rel.Raw = resp.Body
	return &rel, nil
}

// ListCollectionFields returns the user's collection field definitions.
func (c *Client) ListCollectionFields(ctx context.Context, username string) ([]APIField, error) {
	resp, err := c.handler(ctx, &pipeline.Request{
		Method: http.MethodGet,
		Path:   fmt.Sprintf("/users/%s/collection/fields", url.PathEscape(username)),
	})
	if err != nil {
		return nil, err
	}
	if err := checkResponse("list fields", username, resp); err != nil {
		return nil, err
	}

	var fr FieldsResponse
	if err := decode("list fields", resp.Body, &fr); err != nil {
		return nil, err
	}
	return fr.Fields, nil
}

// InstanceUpdate is a write against one collection instance. Rating nil leaves
// the rating untouched; Fields maps a field id to its new value.
type InstanceUpdate struct {
	Username   string
	FolderID   int64
	ReleaseID  int64
	InstanceID int64
	Rating     *int
	Fields     map[int]string
}

// UpdateInstance writes the rating and then each field value. It stops at the
// first failing call.
func (c *Client) UpdateInstance(ctx context.Context, u InstanceUpdate) error {
	folder := u.FolderID
	if folder <= 0 {
		folder = constants.DefaultFolderID
	}
	base := fmt.Sprintf("/users/%s/collection/folders/%d/releases/%d/instances/%d",
		url.PathEscape(u.Username), folder, u.ReleaseID, u.InstanceID)

	if u.Rating != nil {
		if err := c.write(ctx, "update rating", http.MethodPost, base, map[string]int{"rating": *u.Rating}); err != nil {
			return err
		}
	}

	ids := make([]int, 0, len(u.Fields))
	for id := range u.Fields {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	for _, id := range ids {
		path := fmt.Sprintf("%s/fields/%d", base, id)
		if err := c.write(ctx, "update field", http.MethodPost, path, map[string]string{"value": u.Fields[id]}); err != nil {
			return err
		}
	}
	return nil
}

// AddWant puts a release on the wantlist.
func (c *Client) AddWant(ctx context.Context, username string, releaseID int64, notes *string, rating *int) error {
	body := map[string]interface{}{}
	if notes != nil {
		body["notes"] = *notes
	}
	if rating != nil {
		body["rating"] = *rating
	}
	path := fmt.Sprintf("/users/%s/wants/%d", url.PathEscape(username), releaseID)
	return c.write(ctx, "add want", http.MethodPut, path, body)
}

// RemoveWant deletes a release from the wantlist. A missing entry is not an error.
func (c *Client) RemoveWant(ctx context.Context, username string, releaseID int64) error {
	path := fmt.Sprintf("/users/%s/wants/%d", url.PathEscape(username), releaseID)
	err := c.write(ctx, "remove want", http.MethodDelete, path, nil)
	if IsStatus(err, http.StatusNotFound) {
		return nil
	}
	return err
}

// AddToCollection adds a release to a folder and returns the new instance id.
func (c *Client) AddToCollection(ctx context.Context, username string, folderID, releaseID int64) (int64, error) {
	if folderID <= 0 {
		folderID = constants.DefaultFolderID
	}
	resp, err := c.handler(ctx, &pipeline.Request{
		Method: http.MethodPost,
		Path:   fmt.Sprintf("/users/%s/collection/folders/%d/releases/%d", url.PathEscape(username), folderID, releaseID),
	})
	if err != nil {
		return 0, err
	}
	if err := checkResponse("add to collection", "", resp); err != nil {
		return 0, err
	}

	var out addToCollectionResponse
	if err := decode("add to collection", resp.Body, &out); err != nil {
		return 0, err
	}
	return out.InstanceID, nil
}

func (c *Client) write(ctx context.Context, op, method, path string, body interface{}) error {
	req := &pipeline.Request{Method: method, Path: path}
	if body != nil {
		req.JSON = body
	}
	resp, err := c.handler(ctx, req)
	if err != nil {
		return err
	}
	return checkResponse(op, "", resp)
}
