package library

// Booleans are INTEGER 0/1 on SQLite. The partial unique indexes keep one
// default audio track per video at the database level.
const sqliteSchema = `
CREATE TABLE IF NOT EXISTS languages (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	code TEXT NOT NULL UNIQUE COLLATE NOCASE,
	name TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS videos (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	status TEXT NOT NULL DEFAULT 'created' CHECK (status IN ('created', 'processing', 'completed', 'failed')),
	visibility TEXT NOT NULL DEFAULT 'protected' CHECK (visibility IN ('public', 'protected')),
	role TEXT NOT NULL CHECK (role IN ('movie', 'episode', 'trailer')),
	source_key TEXT NOT NULL,
	master_playlist_key TEXT NOT NULL DEFAULT '',
	decrypt_key_key TEXT NOT NULL DEFAULT '',
	original_language_id INTEGER REFERENCES languages(id) ON DELETE SET NULL,
	rebuild_needed INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS audio_tracks (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	video_id INTEGER NOT NULL REFERENCES videos(id) ON DELETE CASCADE,
	language_id INTEGER NOT NULL REFERENCES languages(id),
	is_default INTEGER NOT NULL DEFAULT 0,
	hls_playlist_key TEXT NOT NULL DEFAULT '',
	source_key TEXT NOT NULL DEFAULT '',
	UNIQUE (video_id, language_id)
);
CREATE UNIQUE INDEX IF NOT EXISTS idx_audio_tracks_default ON audio_tracks(video_id) WHERE is_default = 1;

CREATE TABLE IF NOT EXISTS video_renditions (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	video_id INTEGER NOT NULL REFERENCES videos(id) ON DELETE CASCADE,
	resolution INTEGER NOT NULL CHECK (resolution IN (1080, 720, 480, 360)),
	playlist_key TEXT NOT NULL,
	UNIQUE (video_id, resolution)
);

CREATE TABLE IF NOT EXISTS genres (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	name TEXT NOT NULL UNIQUE
);

CREATE TABLE IF NOT EXISTS titles (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	name TEXT NOT NULL,
	type TEXT NOT NULL CHECK (type IN ('movie', 'show')),
	status TEXT NOT NULL DEFAULT 'draft' CHECK (status IN ('published', 'draft')),
	watch_enabled INTEGER NOT NULL DEFAULT 1,
	movie_video_id INTEGER UNIQUE REFERENCES videos(id) ON DELETE SET NULL,
	trailer_video_id INTEGER UNIQUE REFERENCES videos(id) ON DELETE SET NULL
);

CREATE TABLE IF NOT EXISTS title_genres (
	title_id INTEGER NOT NULL REFERENCES titles(id) ON DELETE CASCADE,
	genre_id INTEGER NOT NULL REFERENCES genres(id) ON DELETE CASCADE,
	PRIMARY KEY (title_id, genre_id)
);

CREATE TABLE IF NOT EXISTS seasons (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	title_id INTEGER NOT NULL REFERENCES titles(id) ON DELETE CASCADE,
	watch_enabled INTEGER NOT NULL DEFAULT 1
);

CREATE TABLE IF NOT EXISTS episodes (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	season_id INTEGER NOT NULL REFERENCES seasons(id) ON DELETE CASCADE,
	watch_enabled INTEGER NOT NULL DEFAULT 1,
	video_id INTEGER UNIQUE REFERENCES videos(id) ON DELETE SET NULL
);

CREATE TABLE IF NOT EXISTS grants (
	principal_id TEXT NOT NULL,
	capability TEXT NOT NULL,
	object_kind TEXT NOT NULL DEFAULT '',
	object_id INTEGER NOT NULL DEFAULT 0,
	PRIMARY KEY (principal_id, capability, object_kind, object_id)
);
`

const postgresSchema = `
CREATE TABLE IF NOT EXISTS languages (
	id BIGSERIAL PRIMARY KEY,
	code TEXT NOT NULL,
	name TEXT NOT NULL DEFAULT ''
);
CREATE UNIQUE INDEX IF NOT EXISTS idx_languages_code ON languages (lower(code));

CREATE TABLE IF NOT EXISTS videos (
	id BIGSERIAL PRIMARY KEY,
	status TEXT NOT NULL DEFAULT 'created' CHECK (status IN ('created', 'processing', 'completed', 'failed')),
	visibility TEXT NOT NULL DEFAULT 'protected' CHECK (visibility IN ('public', 'protected')),
	role TEXT NOT NULL CHECK (role IN ('movie', 'episode', 'trailer')),
	source_key TEXT NOT NULL,
	master_playlist_key TEXT NOT NULL DEFAULT '',
	decrypt_key_key TEXT NOT NULL DEFAULT '',
	original_language_id BIGINT REFERENCES languages(id) ON DELETE SET NULL,
	rebuild_needed BOOLEAN NOT NULL DEFAULT FALSE
);

CREATE TABLE IF NOT EXISTS audio_tracks (
	id BIGSERIAL PRIMARY KEY,
	video_id BIGINT NOT NULL REFERENCES videos(id) ON DELETE CASCADE,
	language_id BIGINT NOT NULL REFERENCES languages(id),
	is_default BOOLEAN NOT NULL DEFAULT FALSE,
	hls_playlist_key TEXT NOT NULL DEFAULT '',
	source_key TEXT NOT NULL DEFAULT '',
	UNIQUE (video_id, language_id)
);
CREATE UNIQUE INDEX IF NOT EXISTS idx_audio_tracks_default ON audio_tracks(video_id) WHERE is_default;

CREATE TABLE IF NOT EXISTS video_renditions (
	id BIGSERIAL PRIMARY KEY,
	video_id BIGINT NOT NULL REFERENCES videos(id) ON DELETE CASCADE,
	resolution INTEGER NOT NULL CHECK (resolution IN (1080, 720, 480, 360)),
	playlist_key TEXT NOT NULL,
	UNIQUE (video_id, resolution)
);

CREATE TABLE IF NOT EXISTS genres (
	id BIGSERIAL PRIMARY KEY,
	name TEXT NOT NULL UNIQUE
);

CREATE TABLE IF NOT EXISTS titles (
	id BIGSERIAL PRIMARY KEY,
	name TEXT NOT NULL,
	type TEXT NOT NULL CHECK (type IN ('movie', 'show')),
	status TEXT NOT NULL DEFAULT 'draft' CHECK (status IN ('published', 'draft')),
	watch_enabled BOOLEAN NOT NULL DEFAULT TRUE,
	movie_video_id BIGINT UNIQUE REFERENCES videos(id) ON DELETE SET NULL,
	trailer_video_id BIGINT UNIQUE REFERENCES videos(id) ON DELETE SET NULL
);

CREATE TABLE IF NOT EXISTS title_genres (
	title_id BIGINT NOT NULL REFERENCES titles(id) ON DELETE CASCADE,
	genre_id BIGINT NOT NULL REFERENCES genres(id) ON DELETE CASCADE,
	PRIMARY KEY (title_id, genre_id)
);

CREATE TABLE IF NOT EXISTS seasons (
	id BIGSERIAL PRIMARY KEY,
	title_id BIGINT NOT NULL REFERENCES titles(id) ON DELETE CASCADE,
	watch_enabled BOOLEAN NOT NULL DEFAULT TRUE
);

CREATE TABLE IF NOT EXISTS episodes (
	id BIGSERIAL PRIMARY KEY,
	season_id BIGINT NOT NULL REFERENCES seasons(id) ON DELETE CASCADE,
	watch_enabled BOOLEAN NOT NULL DEFAULT TRUE,
	video_id BIGINT UNIQUE REFERENCES videos(id) ON DELETE SET NULL
);

CREATE TABLE IF NOT EXISTS grants (
	principal_id TEXT NOT NULL,
	capability TEXT NOT NULL,
	object_kind TEXT NOT NULL DEFAULT '',
	object_id BIGINT NOT NULL DEFAULT 0,
	PRIMARY KEY (principal_id, capability, object_kind, object_id)
);
`
