package store

const Schema = `
CREATE TABLE IF NOT EXISTS releases (
	id INTEGER PRIMARY KEY,
	title TEXT,
	artist TEXT,
	year INTEGER,
	country TEXT,
	thumb_url TEXT,
	cover_url TEXT,

	-- JSON arrays, NULL when unknown
	labels TEXT,
	formats TEXT,
	genres TEXT,
	styles TEXT,
	tracklist TEXT,
	videos TEXT,
	extra_artists TEXT,
	companies TEXT,
	identifiers TEXT,
	notes TEXT,

	raw_json TEXT,
	imported_at DATETIME NOT NULL,
	updated_at DATETIME NOT NULL,
	enriched_at DATETIME
);

CREATE INDEX IF NOT EXISTS idx_releases_unenriched ON releases(imported_at) WHERE enriched_at IS NULL;

CREATE TABLE IF NOT EXISTS collection_items (
	instance_id INTEGER PRIMARY KEY,
	username TEXT NOT NULL,
	folder_id INTEGER NOT NULL DEFAULT 1,
	release_id INTEGER NOT NULL,
	date_added TEXT,
	rating INTEGER,
	notes TEXT,
	media_condition TEXT,
	sleeve_condition TEXT,
	raw_json TEXT,
	updated_at DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_collection_items_username ON collection_items(username, date_added);
CREATE INDEX IF NOT EXISTS idx_collection_items_release_id ON collection_items(release_id);

CREATE TABLE IF NOT EXISTS wantlist_items (
	username TEXT NOT NULL,
	release_id INTEGER NOT NULL,
	date_added TEXT,
	rating INTEGER,
	notes TEXT,
	raw_json TEXT,
	updated_at DATETIME NOT NULL,
	PRIMARY KEY (username, release_id)
);

CREATE TABLE IF NOT EXISTS images (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	release_id INTEGER NOT NULL,
	source_url TEXT NOT NULL,
	local_path TEXT NOT NULL,
	kind TEXT NOT NULL DEFAULT 'primary',
	bytes INTEGER,
	fetched_at DATETIME,
	attempts INTEGER NOT NULL DEFAULT 0,
	last_error TEXT,
	created_at DATETIME NOT NULL,
	UNIQUE (release_id, source_url)
);

CREATE INDEX IF NOT EXISTS idx_images_pending ON images(attempts, id) WHERE fetched_at IS NULL;

CREATE TABLE IF NOT EXISTS push_queue (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	instance_id INTEGER,
	release_id INTEGER NOT NULL,
	username TEXT NOT NULL,
	action TEXT NOT NULL,
	rating INTEGER,
	notes TEXT,
	media_condition TEXT,
	sleeve_condition TEXT,
	status TEXT NOT NULL DEFAULT 'pending',
	attempts INTEGER NOT NULL DEFAULT 0,
	last_error TEXT,
	created_at DATETIME NOT NULL,
	updated_at DATETIME NOT NULL
);

-- At most one pending job per instance and action
CREATE UNIQUE INDEX IF NOT EXISTS idx_push_pending_instance ON push_queue(instance_id, action)
WHERE status = 'pending' AND instance_id IS NOT NULL;

-- Wantlist actions carry no instance id
CREATE UNIQUE INDEX IF NOT EXISTS idx_push_pending_release ON push_queue(username, release_id, action)
WHERE status = 'pending' AND instance_id IS NULL;

CREATE INDEX IF NOT EXISTS idx_push_queue_status ON push_queue(status, created_at, id);

CREATE TABLE IF NOT EXISTS kv_state (
	key TEXT PRIMARY KEY,
	value TEXT NOT NULL,
	updated_at DATETIME
);

CREATE TABLE IF NOT EXISTS cache (
	key TEXT PRIMARY KEY,
	data BLOB,
	expires_at DATETIME
);
`
