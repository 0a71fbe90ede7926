package store

import (
	"context"
	"fmt"
	"time"

	"github.com/adamjohnlea/my-music-collection-sub000/internal/domain"
)

// InsertImageStub records a remote image for later download. Existing rows
// for the same (release id, source url) are left alone.
func (db *DB) InsertImageStub(ctx context.Context, img *domain.Image) error {
	if img.Kind == "" {
		img.Kind = "primary"
	}
	img.CreatedAt = time.Now().UTC()

	query := `INSERT OR IGNORE INTO images (release_id, source_url, local_path, kind, created_at)
		VALUES (:release_id, :source_url, :local_path, :kind, :created_at)`

	if _, err := db.NamedExecContext(ctx, query, img); err != nil {
		return fmt.Errorf("failed to insert image stub for release %d: %w", img.ReleaseID, err)
	}
	return nil
}

const imageColumns = `id, release_id, source_url, local_path, kind, bytes, fetched_at, attempts, last_error, created_at`

// ListPendingImages returns images that have not been downloaded yet and have
// failed fewer than maxAttempts times. Images that failed least come first, so
// a run of broken URLs cannot starve the rest.
func (db *DB) ListPendingImages(ctx context.Context, maxAttempts, limit int) ([]*domain.Image, error) {
	query := `SELECT ` + imageColumns + ` FROM images
		WHERE fetched_at IS NULL AND attempts < ?
		ORDER BY attempts ASC, id ASC LIMIT ?`

	var images []*domain.Image
	err := db.SelectContext(ctx, &images, query, maxAttempts, limit)
	return images, err
}

func (db *DB) ListReleaseImages(ctx context.Context, releaseID int64) ([]*domain.Image, error) {
	query := `SELECT ` + imageColumns + ` FROM images WHERE release_id = ? ORDER BY id ASC`

	var images []*domain.Image
	err := db.SelectContext(ctx, &images, query, releaseID)
	return images, err
}

func (db *DB) MarkImageFetched(ctx context.Context, id int64, bytes int64, fetchedAt time.Time) error {
	query := `UPDATE images SET bytes = ?, fetched_at = ? WHERE id = ?`
	_, err := db.ExecContext(ctx, query, bytes, fetchedAt.UTC(), id)
	return err
}

// MarkImageFailed records a failed download attempt.
func (db *DB) MarkImageFailed(ctx context.Context, id int64, msg string) error {
	query := `UPDATE images SET attempts = attempts + 1, last_error = ? WHERE id = ?`
	_, err := db.ExecContext(ctx, query, msg, id)
	return err
}

type ImageStats struct {
	Total   int `db:"total" json:"total"`
	Fetched int `db:"fetched" json:"fetched"`
}

func (db *DB) GetImageStats(ctx context.Context) (*ImageStats, error) {
	query := `SELECT
		COUNT(*) as total,
		COALESCE(SUM(CASE WHEN fetched_at IS NOT NULL THEN 1 ELSE 0 END), 0) as fetched
	FROM images`

	stats := &ImageStats{}
	err := db.GetContext(ctx, stats, query)
	return stats, err
}
