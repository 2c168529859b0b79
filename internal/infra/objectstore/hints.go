// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package objectstore adapts S3-compatible storage to the content store
// operations used for publication and playback.
package objectstore

import (
	"errors"
	"path"
	"strings"
)

// ErrNotFound is returned when a key does not exist.
var ErrNotFound = errors.New("object not found")

// Hints are per-object response headers set at upload time.
type Hints struct {
	ContentType  string
	CacheControl string
}

const (
	cacheImmutable = "public, max-age=31536000, immutable"
	cacheNone      = "no-cache"
)

// HintsFor returns the content hints for an artifact by file name.
// Playlists and segments are content-addressed by build prefix and cached
// forever; keys are never cached.
func HintsFor(name string) Hints {
	switch strings.ToLower(path.Ext(name)) {
	case ".m3u8":
		return Hints{ContentType: "application/vnd.apple.mpegurl", CacheControl: cacheImmutable}
	case ".ts":
		return Hints{ContentType: "video/mp2t", CacheControl: cacheImmutable}
	case ".key":
		return Hints{ContentType: "application/octet-stream", CacheControl: cacheNone}
	default:
		return Hints{ContentType: "application/octet-stream"}
	}
}

// Join builds a store key from POSIX path elements.
func Join(elem ...string) string {
	return strings.TrimPrefix(path.Join(elem...), "/")
}

// AsPrefix returns p with exactly one trailing slash so that deleting
// "videos/1/" never touches "videos/10/".
func AsPrefix(p string) string {
	return strings.TrimRight(p, "/") + "/"
}
