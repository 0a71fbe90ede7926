package discogs

import (
	"context"
	"strings"
	"time"

	"github.com/goccy/go-json"
)

// Cache stores opaque bytes with a TTL. store.DB satisfies it.
type Cache interface {
	GetCache(ctx context.Context, key string) ([]byte, error)
	SetCache(ctx context.Context, key string, data []byte, ttl time.Duration) error
}

// FieldLister is the part of Client that FieldResolver needs.
type FieldLister interface {
	ListCollectionFields(ctx context.Context, username string) ([]APIField, error)
}

// FieldResolver caches a user's collection field definitions.
type FieldResolver struct {
	client FieldLister
	cache  Cache
	ttl    time.Duration
}

func NewFieldResolver(client FieldLister, cache Cache, ttl time.Duration) *FieldResolver {
	return &FieldResolver{client: client, cache: cache, ttl: ttl}
}

// Fields returns the field list, from cache when fresh.
func (r *FieldResolver) Fields(ctx context.Context, username string) ([]APIField, error) {
	cacheKey := "discogs:fields:" + username

	data, err := r.cache.GetCache(ctx, cacheKey)
	if err != nil {
		return nil, err
	}
	if data != nil {
		var cached []APIField
		if unmarshalErr := json.Unmarshal(data, &cached); unmarshalErr == nil {
			return cached, nil
		}
	}

	fields, err := r.client.ListCollectionFields(ctx, username)
	if err != nil {
		return nil, err
	}

	if data, marshalErr := json.Marshal(fields); marshalErr == nil {
		_ = r.cache.SetCache(ctx, cacheKey, data, r.ttl)
	}
	return fields, nil
}

// FieldIDs holds the resolved ids for the three fields the push queue writes.
type FieldIDs struct {
	MediaCondition  int
	SleeveCondition int
	Notes           int
}

// ResolveFieldIDs matches fields by name, keeping fallback for any that are missing.
func ResolveFieldIDs(fields []APIField, fallback FieldIDs) FieldIDs {
	ids := fallback
	for _, f := range fields {
		switch normalizeFieldName(f.Name) {
		case "media condition":
			ids.MediaCondition = f.ID
		case "sleeve condition":
			ids.SleeveCondition = f.ID
		case "notes":
			ids.Notes = f.ID
		}
	}
	return ids
}

func normalizeFieldName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}
