package store

import (
	"context"
	"fmt"
	"time"

	"github.com/adamjohnlea/my-music-collection-sub000/internal/domain"
)

func (db *DB) MergeWantlistItem(ctx context.Context, item *domain.WantlistItem) error {
	item.UpdatedAt = time.Now().UTC()

	query := `INSERT INTO wantlist_items (username, release_id, date_added, rating, notes, raw_json, updated_at)
		VALUES (:username, :release_id, :date_added, :rating, :notes, :raw_json, :updated_at)
		ON CONFLICT(username, release_id) DO UPDATE SET
			date_added = COALESCE(NULLIF(excluded.date_added, ''), wantlist_items.date_added),
			rating = COALESCE(excluded.rating, wantlist_items.rating),
			notes = COALESCE(excluded.notes, wantlist_items.notes),
			raw_json = COALESCE(excluded.raw_json, wantlist_items.raw_json),
			updated_at = excluded.updated_at`

	if _, err := db.NamedExecContext(ctx, query, item); err != nil {
		return fmt.Errorf("failed to merge wantlist item %d: %w", item.ReleaseID, err)
	}
	return nil
}

func (db *DB) ListWantlist(ctx context.Context, username string) ([]*domain.WantlistItem, error) {
	query := `SELECT username, release_id, date_added, rating, notes, raw_json, updated_at
		FROM wantlist_items WHERE username = ? ORDER BY date_added DESC, release_id ASC`

	var items []*domain.WantlistItem
	err := db.SelectContext(ctx, &items, query, username)
	return items, err
}

func (db *DB) CountWantlist(ctx context.Context, username string) (int, error) {
	var count int
	err := db.GetContext(ctx, &count, `SELECT COUNT(*) FROM wantlist_items WHERE username = ?`, username)
	return count, err
}
