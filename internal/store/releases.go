package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/adamjohnlea/my-music-collection-sub000/internal/domain"
)

const releaseColumns = `id, title, artist, year, country, thumb_url, cover_url,
	labels, formats, genres, styles, tracklist, videos, extra_artists, companies, identifiers, notes,
	raw_json, imported_at, updated_at, enriched_at`

const releaseValues = `:id, :title, :artist, :year, :country, :thumb_url, :cover_url,
	:labels, :formats, :genres, :styles, :tracklist, :videos, :extra_artists, :companies, :identifiers, :notes,
	:raw_json, :imported_at, :updated_at, :enriched_at`

// ReplaceRelease writes the release row wholesale, discarding whatever was stored.
func (db *DB) ReplaceRelease(ctx context.Context, r *domain.Release) error {
	stampRelease(r)

	query := `INSERT OR REPLACE INTO releases (` + releaseColumns + `) VALUES (` + releaseValues + `)`
	if _, err := db.NamedExecContext(ctx, query, r); err != nil {
		return fmt.Errorf("failed to replace release %d: %w", r.ID, err)
	}
	return nil
}

// MergeRelease upserts a release without letting NULL incoming values
// overwrite stored ones. imported_at and enriched_at are kept on conflict.
func (db *DB) MergeRelease(ctx context.Context, r *domain.Release) error {
	stampRelease(r)

	query := `INSERT INTO releases (` + releaseColumns + `) VALUES (` + releaseValues + `)
		ON CONFLICT(id) DO UPDATE SET
			title = COALESCE(excluded.title, releases.title),
			artist = COALESCE(excluded.artist, releases.artist),
			year = COALESCE(excluded.year, releases.year),
			country = COALESCE(excluded.country, releases.country),
			thumb_url = COALESCE(excluded.thumb_url, releases.thumb_url),
			cover_url = COALESCE(excluded.cover_url, releases.cover_url),
			labels = COALESCE(excluded.labels, releases.labels),
			formats = COALESCE(excluded.formats, releases.formats),
			genres = COALESCE(excluded.genres, releases.genres),
			styles = COALESCE(excluded.styles, releases.styles),
			tracklist = COALESCE(excluded.tracklist, releases.tracklist),
			videos = COALESCE(excluded.videos, releases.videos),
			extra_artists = COALESCE(excluded.extra_artists, releases.extra_artists),
			companies = COALESCE(excluded.companies, releases.companies),
			identifiers = COALESCE(excluded.identifiers, releases.identifiers),
			notes = COALESCE(excluded.notes, releases.notes),
			raw_json = COALESCE(excluded.raw_json, releases.raw_json),
			updated_at = excluded.updated_at`

	if _, err := db.NamedExecContext(ctx, query, r); err != nil {
		return fmt.Errorf("failed to merge release %d: %w", r.ID, err)
	}
	return nil
}

// ApplyReleaseDetail stores a full release detail fetch. Scalars merge (blank
// or NULL keeps the stored value); rich metadata lists replace the stored
// value whenever present, even when empty. enriched_at is always stamped.
func (db *DB) ApplyReleaseDetail(ctx context.Context, r *domain.Release, enrichedAt time.Time) error {
	stampRelease(r)
	r.EnrichedAt = &enrichedAt

	query := `INSERT INTO releases (` + releaseColumns + `) VALUES (` + releaseValues + `)
		ON CONFLICT(id) DO UPDATE SET
			title = COALESCE(NULLIF(excluded.title, ''), releases.title),
			artist = COALESCE(NULLIF(excluded.artist, ''), releases.artist),
			year = COALESCE(NULLIF(excluded.year, 0), releases.year),
			country = COALESCE(NULLIF(excluded.country, ''), releases.country),
			thumb_url = COALESCE(NULLIF(excluded.thumb_url, ''), releases.thumb_url),
			cover_url = COALESCE(NULLIF(excluded.cover_url, ''), releases.cover_url),
			labels = CASE WHEN excluded.labels IS NULL THEN releases.labels ELSE excluded.labels END,
			formats = CASE WHEN excluded.formats IS NULL THEN releases.formats ELSE excluded.formats END,
			genres = CASE WHEN excluded.genres IS NULL THEN releases.genres ELSE excluded.genres END,
			styles = CASE WHEN excluded.styles IS NULL THEN releases.styles ELSE excluded.styles END,
			tracklist = CASE WHEN excluded.tracklist IS NULL THEN releases.tracklist ELSE excluded.tracklist END,
			videos = CASE WHEN excluded.videos IS NULL THEN releases.videos ELSE excluded.videos END,
			extra_artists = CASE WHEN excluded.extra_artists IS NULL THEN releases.extra_artists ELSE excluded.extra_artists END,
			companies = CASE WHEN excluded.companies IS NULL THEN releases.companies ELSE excluded.companies END,
			identifiers = CASE WHEN excluded.identifiers IS NULL THEN releases.identifiers ELSE excluded.identifiers END,
			notes = CASE WHEN excluded.notes IS NULL THEN releases.notes ELSE excluded.notes END,
			raw_json = COALESCE(excluded.raw_json, releases.raw_json),
			updated_at = excluded.updated_at,
			enriched_at = excluded.enriched_at`

	if _, err := db.NamedExecContext(ctx, query, r); err != nil {
		return fmt.Errorf("failed to apply release detail %d: %w", r.ID, err)
	}
	return nil
}

func (db *DB) GetRelease(ctx context.Context, id int64) (*domain.Release, error) {
	query := `SELECT ` + releaseColumns + ` FROM releases WHERE id = ?`

	var r domain.Release
	err := db.GetContext(ctx, &r, query, id)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &r, nil
}

// ListUnenrichedReleaseIDs returns up to limit release ids still awaiting a
// detail fetch, oldest import first.
func (db *DB) ListUnenrichedReleaseIDs(ctx context.Context, limit int) ([]int64, error) {
	query := `SELECT id FROM releases WHERE enriched_at IS NULL ORDER BY imported_at ASC, id ASC LIMIT ?`

	var ids []int64
	err := db.SelectContext(ctx, &ids, query, limit)
	return ids, err
}

type ReleaseStats struct {
	Total    int `db:"total" json:"total"`
	Enriched int `db:"enriched" json:"enriched"`
}

func (db *DB) GetReleaseStats(ctx context.Context) (*ReleaseStats, error) {
	query := `SELECT
		COUNT(*) as total,
		COALESCE(SUM(CASE WHEN enriched_at IS NOT NULL THEN 1 ELSE 0 END), 0) as enriched
	FROM releases`

	stats := &ReleaseStats{}
	err := db.GetContext(ctx, stats, query)
	return stats, err
}

func stampRelease(r *domain.Release) {
	now := time.Now().UTC()
	if r.ImportedAt.IsZero() {
		r.ImportedAt = now
	}
	r.UpdatedAt = now
}
