package domain

import (
	"strings"
	"time"
)

// CollectionItem is one physical copy a user owns, identified by the remote instance id.
type CollectionItem struct {
	InstanceID      int64     `json:"instance_id" db:"instance_id"`
	Username        string    `json:"username" db:"username"`
	FolderID        int64     `json:"folder_id" db:"folder_id"`
	ReleaseID       int64     `json:"release_id" db:"release_id"`
	DateAdded       string    `json:"date_added" db:"date_added"`
	Rating          *int      `json:"rating,omitempty" db:"rating"`
	Notes           *string   `json:"notes,omitempty" db:"notes"`
	MediaCondition  *string   `json:"media_condition,omitempty" db:"media_condition"`
	SleeveCondition *string   `json:"sleeve_condition,omitempty" db:"sleeve_condition"`
	Raw             *string   `json:"-" db:"raw_json"`
	UpdatedAt       time.Time `json:"updated_at" db:"updated_at"`
}

// WantlistItem is a release on a user's wantlist, unique per (username, release id).
type WantlistItem struct {
	Username  string    `json:"username" db:"username"`
	ReleaseID int64     `json:"release_id" db:"release_id"`
	DateAdded string    `json:"date_added" db:"date_added"`
	Rating    *int      `json:"rating,omitempty" db:"rating"`
	Notes     *string   `json:"notes,omitempty" db:"notes"`
	Raw       *string   `json:"-" db:"raw_json"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// Release is a catalog entry. A row starts as an imported stub and becomes
// fully enriched once EnrichedAt is set.
type Release struct { //nolint:govet // field ordering prioritizes readability over memory alignment
	ID           int64                  `json:"id" db:"id"`
	Title        *string                `json:"title,omitempty" db:"title"`
	Artist       *string                `json:"artist,omitempty" db:"artist"`
	Year         *int                   `json:"year,omitempty" db:"year"`
	Country      *string                `json:"country,omitempty" db:"country"`
	ThumbURL     *string                `json:"thumb_url,omitempty" db:"thumb_url"`
	CoverURL     *string                `json:"cover_url,omitempty" db:"cover_url"`
	Labels       JSONList[LabelRef]     `json:"labels,omitempty" db:"labels"`
	Formats      JSONList[FormatRef]    `json:"formats,omitempty" db:"formats"`
	Genres       StringSlice            `json:"genres,omitempty" db:"genres"`
	Styles       StringSlice            `json:"styles,omitempty" db:"styles"`
	Tracklist    JSONList[TrackEntry]   `json:"tracklist,omitempty" db:"tracklist"`
	Videos       JSONList[VideoRef]     `json:"videos,omitempty" db:"videos"`
	ExtraArtists JSONList[ArtistCredit] `json:"extra_artists,omitempty" db:"extra_artists"`
	Companies    JSONList[CompanyRef]   `json:"companies,omitempty" db:"companies"`
	Identifiers  JSONList[Identifier]   `json:"identifiers,omitempty" db:"identifiers"`
	Notes        *string                `json:"notes,omitempty" db:"notes"`
	Raw          *string                `json:"-" db:"raw_json"`
	ImportedAt   time.Time              `json:"imported_at" db:"imported_at"`
	UpdatedAt    time.Time              `json:"updated_at" db:"updated_at"`
	EnrichedAt   *time.Time             `json:"enriched_at,omitempty" db:"enriched_at"`
}

// IsEnriched reports whether the release has been through the detail fetch.
func (r *Release) IsEnriched() bool {
	return r.EnrichedAt != nil
}

// Image is a remote image tracked against a release, unique per (release id, source url).
type Image struct {
	ID        int64      `json:"id" db:"id"`
	ReleaseID int64      `json:"release_id" db:"release_id"`
	SourceURL string     `json:"source_url" db:"source_url"`
	LocalPath string     `json:"local_path" db:"local_path"`
	Kind      string     `json:"kind" db:"kind"`
	Bytes     *int64     `json:"bytes,omitempty" db:"bytes"`
	FetchedAt *time.Time `json:"fetched_at,omitempty" db:"fetched_at"`
	Attempts  int        `json:"attempts" db:"attempts"`
	LastError *string    `json:"last_error,omitempty" db:"last_error"`
	CreatedAt time.Time  `json:"created_at" db:"created_at"`
}

// PushAction is the kind of remote mutation a queued job performs.
type PushAction string

const (
	PushUpdateCollection PushAction = "update_collection"
	PushAddWant          PushAction = "add_want"
	PushRemoveWant       PushAction = "remove_want"
	PushAddCollection    PushAction = "add_collection"
	PushWantToCollection PushAction = "want_to_collection"
)

// Valid reports whether a is one of the known actions.
func (a PushAction) Valid() bool {
	switch a {
	case PushUpdateCollection, PushAddWant, PushRemoveWant, PushAddCollection, PushWantToCollection:
		return true
	}
	return false
}

// PushStatus is the lifecycle state of a queued job.
type PushStatus string

const (
	PushStatusPending PushStatus = "pending"
	PushStatusRunning PushStatus = "running"
	PushStatusDone    PushStatus = "done"
	PushStatusFailed  PushStatus = "failed"
)

// PushJob is a durable outbound mutation waiting to be reconciled with the remote service.
type PushJob struct {
	ID              int64      `json:"id" db:"id"`
	InstanceID      *int64     `json:"instance_id,omitempty" db:"instance_id"`
	ReleaseID       int64      `json:"release_id" db:"release_id"`
	Username        string     `json:"username" db:"username"`
	Action          PushAction `json:"action" db:"action"`
	Rating          *int       `json:"rating,omitempty" db:"rating"`
	Notes           *string    `json:"notes,omitempty" db:"notes"`
	MediaCondition  *string    `json:"media_condition,omitempty" db:"media_condition"`
	SleeveCondition *string    `json:"sleeve_condition,omitempty" db:"sleeve_condition"`
	Status          PushStatus `json:"status" db:"status"`
	Attempts        int        `json:"attempts" db:"attempts"`
	LastError       *string    `json:"last_error,omitempty" db:"last_error"`
	CreatedAt       time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at" db:"updated_at"`
}

// JoinArtists renders artist credits as the "A, B" summary stored on releases.
func JoinArtists(artists []ArtistCredit) string {
	names := make([]string, 0, len(artists))
	for _, a := range artists {
		name := strings.TrimSpace(a.Name)
		if name == "" {
			continue
		}
		names = append(names, name)
	}
	return strings.Join(names, ", ")
}

// Truncate shortens s to at most max bytes without splitting a UTF-8 sequence.
func Truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	cut := max
	for cut > 0 && !utf8Start(s[cut]) {
		cut--
	}
	return s[:cut]
}

func utf8Start(b byte) bool {
	return b&0xC0 != 0x80
}

// Ptr returns a pointer to v.
func Ptr[T any](v T) *T {
	return &v
}
