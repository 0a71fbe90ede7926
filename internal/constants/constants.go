// Package constants contains application-wide constants to avoid magic numbers and strings.
package constants

import "time"

// Application defaults
const (
	DefaultPort           = "8080"
	DefaultDBPath         = "collection.db"
	DefaultImagesDir      = "images"
	DefaultBaseURL        = "https://api.discogs.com"
	DefaultUserAgent      = "MyMusicCollection/1.0 +https://github.com/adamjohnlea/my-music-collection"
	DefaultPerPage        = 100
	DefaultHTTPTimeout    = 30 * time.Second
	ImageHTTPTimeout      = 30 * time.Second
	DefaultWorkerInterval = 1 * time.Minute
	DefaultStateBackend   = "sqlite"
	DefaultRedisURL       = "redis://localhost:6379/0"
)

// Request pipeline
const (
	DefaultRetryMax     = 5
	MaxBackoff          = 60 * time.Second
	DefaultRetryAfter   = 5 * time.Second
	MaxRetryAfterJitter = 500 * time.Millisecond
	RateWindow          = 60 * time.Second
	RateStaleAfter      = 120 * time.Second
	DefaultRateBucket   = 60
	MinThrottleSleep    = 1 * time.Second
	LastErrorMaxLength  = 500
	FatalErrorMaxLength = 1000
)

// Sync engines
const (
	DefaultRefreshMaxPages = 10
	PushBatchSize          = 50
	PushMaxAttempts        = 5
	DefaultFolderID        = 1
	DefaultEnrichLimit     = 50

	// PushClaimTimeout is how long a running push job may go untouched
	// before the next batch hands it back to the queue.
	PushClaimTimeout = 15 * time.Minute
)

// Collection field ids used when the remote field list cannot be resolved.
const (
	FieldMediaCondition  = 1
	FieldSleeveCondition = 2
	FieldNotes           = 3
)

// Image cache
const (
	DefaultImageDailyCap = 1000
	ImageFetchInterval   = 1 * time.Second
	ImageMaxAttempts     = 5
	ImageExt             = ".jpg"
)

// State store keys
const (
	KeyRateBucket        = "rate:core:bucket"
	KeyRateRemaining     = "rate:core:remaining"
	KeyRateLastSeenAt    = "rate:core:last_seen_at"
	KeyImageDailyPrefix  = "rate:images:daily_count:"
	KeyImageLastFetch    = "rate:images:last_fetch_epoch"
	KeyRefreshLastAdded  = "refresh:last_added"
	KeyRefreshLastRunAt  = "refresh:last_run_at"
	KeySyncDisabled      = "sync:global_disabled"
	KeySyncFatalError    = "sync:last_fatal_error"
	KeySyncConsecutive   = "sync:consecutive_failures"
	ImageDailyDateLayout = "20060102"
)

// File Permissions
const (
	DirPermissions  = 0755
	FilePermissions = 0644
)
