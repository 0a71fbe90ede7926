package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/adamjohnlea/my-music-collection-sub000/internal/domain"
)

const collectionColumns = `instance_id, username, folder_id, release_id, date_added, rating, notes,
	media_condition, sleeve_condition, raw_json, updated_at`

const collectionValues = `:instance_id, :username, :folder_id, :release_id, :date_added, :rating, :notes,
	:media_condition, :sleeve_condition, :raw_json, :updated_at`

func (db *DB) ReplaceCollectionItem(ctx context.Context, item *domain.CollectionItem) error {
	item.UpdatedAt = time.Now().UTC()

	query := `INSERT OR REPLACE INTO collection_items (` + collectionColumns + `) VALUES (` + collectionValues + `)`
	if _, err := db.NamedExecContext(ctx, query, item); err != nil {
		return fmt.Errorf("failed to replace collection item %d: %w", item.InstanceID, err)
	}
	return nil
}

// MergeCollectionItem upserts an item, keeping stored values where the
// incoming ones are NULL or blank.
func (db *DB) MergeCollectionItem(ctx context.Context, item *domain.CollectionItem) error {
	item.UpdatedAt = time.Now().UTC()

	query := `INSERT INTO collection_items (` + collectionColumns + `) VALUES (` + collectionValues + `)
		ON CONFLICT(instance_id) DO UPDATE SET
			username = excluded.username,
			folder_id = COALESCE(NULLIF(excluded.folder_id, 0), collection_items.folder_id),
			release_id = excluded.release_id,
			date_added = COALESCE(NULLIF(excluded.date_added, ''), collection_items.date_added),
			rating = COALESCE(excluded.rating, collection_items.rating),
			notes = COALESCE(excluded.notes, collection_items.notes),
			media_condition = COALESCE(excluded.media_condition, collection_items.media_condition),
			sleeve_condition = COALESCE(excluded.sleeve_condition, collection_items.sleeve_condition),
			raw_json = COALESCE(excluded.raw_json, collection_items.raw_json),
			updated_at = excluded.updated_at`

	if _, err := db.NamedExecContext(ctx, query, item); err != nil {
		return fmt.Errorf("failed to merge collection item %d: %w", item.InstanceID, err)
	}
	return nil
}

func (db *DB) CollectionItemExists(ctx context.Context, instanceID int64) (bool, error) {
	var count int
	err := db.GetContext(ctx, &count, `SELECT COUNT(*) FROM collection_items WHERE instance_id = ?`, instanceID)
	return count > 0, err
}

func (db *DB) GetCollectionItem(ctx context.Context, instanceID int64) (*domain.CollectionItem, error) {
	query := `SELECT ` + collectionColumns + ` FROM collection_items WHERE instance_id = ?`

	var item domain.CollectionItem
	err := db.GetContext(ctx, &item, query, instanceID)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func (db *DB) CountCollectionItems(ctx context.Context, username string) (int, error) {
	var count int
	err := db.GetContext(ctx, &count, `SELECT COUNT(*) FROM collection_items WHERE username = ?`, username)
	return count, err
}
