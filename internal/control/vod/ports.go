// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package vod runs the publication pipeline that turns an uploaded source
// into an encrypted multi-rendition HLS build.
package vod

import (
	"context"
	"fmt"
	"time"

	"github.com/ManuGH/cinegate/internal/domain/media"
	"github.com/ManuGH/cinegate/internal/infra/objectstore"
	"github.com/ManuGH/cinegate/internal/library"
	"github.com/ManuGH/cinegate/internal/pipeline/exec/ffmpeg"
)

// ContentStore is the object storage holding sources and builds.
type ContentStore interface {
	Upload(ctx context.Context, key, localPath string, hints objectstore.Hints) error
	DownloadTo(ctx context.Context, key, localPath string) error
	DeletePrefix(ctx context.Context, prefix string) error
	PresignedGetURL(ctx context.Context, key string, expiry time.Duration) (string, error)
}

// Prober inspects a local media file.
type Prober interface {
	Probe(ctx context.Context, path string) (ffmpeg.ProbeResult, error)
}

// Executor runs the transcoder with a prepared argument vector.
type Executor interface {
	Execute(ctx context.Context, args []string) error
}

// Catalog is the slice of the library the pipeline reads and writes.
type Catalog interface {
	GetVideo(ctx context.Context, id int64) (media.VideoAsset, error)
	TransitionStatus(ctx context.Context, id int64, to media.Status) (media.Status, error)
	LanguageByCode(ctx context.Context, code string) (media.Language, error)
	EnsureAudioTrack(ctx context.Context, videoID, languageID int64) (media.AudioTrack, error)
	ListExternalAudioTracks(ctx context.Context, videoID int64) ([]media.AudioTrack, error)
	WithTx(ctx context.Context, fn func(tx *library.Tx) error) error
}

// StoreError wraps a content store failure. Purge failures are logged and
// swallowed; download and upload failures abort the run.
type StoreError struct {
	Op  string
	Key string
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("content store %s %q: %v", e.Op, e.Key, e.Err)
}

func (e *StoreError) Unwrap() error { return e.Err }
