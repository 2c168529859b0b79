// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package library

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/ManuGH/cinegate/internal/domain/media"
)

// CreateLanguage registers a language code, stored in canonical BCP 47 form.
func (c conn) CreateLanguage(ctx context.Context, code, name string) (media.Language, error) {
	if strings.TrimSpace(code) == "" {
		return media.Language{}, &media.ValidationError{Field: "code", Msg: "language code is required"}
	}
	canonical := media.NormalizeLanguageCode(code)
	if canonical == media.UndeterminedLanguage && !strings.EqualFold(strings.TrimSpace(code), media.UndeterminedLanguage) {
		return media.Language{}, &media.ValidationError{Field: "code", Msg: fmt.Sprintf("%q is not a BCP 47 language code", code)}
	}
	if existing, err := c.LanguageByCode(ctx, canonical); err == nil {
		return media.Language{}, &media.ValidationError{Field: "code", Msg: fmt.Sprintf("language %q is already registered", existing.Code)}
	}
	id, err := c.insertID(ctx, `INSERT INTO languages (code, name) VALUES (?, ?)`, canonical, name)
	if err != nil {
		return media.Language{}, fmt.Errorf("library: insert language %q: %w", canonical, err)
	}
	return media.Language{ID: id, Code: canonical, Name: name}, nil
}

// LanguageByCode finds a language ignoring case. Unknown codes return
// *media.UnknownLanguageCodeError.
func (c conn) LanguageByCode(ctx context.Context, code string) (media.Language, error) {
	var l media.Language
	err := c.queryRow(ctx, `SELECT id, code, name FROM languages WHERE lower(code) = lower(?)`,
		strings.TrimSpace(code)).Scan(&l.ID, &l.Code, &l.Name)
	if errors.Is(err, sql.ErrNoRows) {
		return media.Language{}, &media.UnknownLanguageCodeError{Code: code}
	}
	if err != nil {
		return media.Language{}, fmt.Errorf("library: language %q: %w", code, err)
	}
	return l, nil
}

// optionalLanguageID resolves code to a nullable language id.
func (c conn) optionalLanguageID(ctx context.Context, code string) (*int64, error) {
	if strings.TrimSpace(code) == "" {
		return nil, nil
	}
	l, err := c.LanguageByCode(ctx, code)
	if err != nil {
		return nil, err
	}
	return &l.ID, nil
}

const audioSelect = `
	SELECT a.id, a.video_id, a.language_id, l.code, a.is_default, a.hls_playlist_key, a.source_key
	FROM audio_tracks a
	JOIN languages l ON l.id = a.language_id
`

func scanAudioTracks(rows *sql.Rows) ([]media.AudioTrack, error) {
	defer func() { _ = rows.Close() }()

	var out []media.AudioTrack
	for rows.Next() {
		var t media.AudioTrack
		if err := rows.Scan(&t.ID, &t.VideoID, &t.LanguageID, &t.LanguageCode,
			&t.IsDefault, &t.HLSPlaylistKey, &t.SourceKey); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// ListAudioTracks returns every track of a video, the default first.
func (c conn) ListAudioTracks(ctx context.Context, videoID int64) ([]media.AudioTrack, error) {
	rows, err := c.query(ctx, audioSelect+` WHERE a.video_id = ? ORDER BY a.is_default DESC, a.id ASC`, videoID)
	if err != nil {
		return nil, fmt.Errorf("library: list audio tracks %d: %w", videoID, err)
	}
	return scanAudioTracks(rows)
}

// ListExternalAudioTracks returns the tracks that carry their own audio
// file, the default first and then in creation order.
func (c conn) ListExternalAudioTracks(ctx context.Context, videoID int64) ([]media.AudioTrack, error) {
	rows, err := c.query(ctx, audioSelect+`
		WHERE a.video_id = ? AND a.source_key <> ''
		ORDER BY a.is_default DESC, a.id ASC`, videoID)
	if err != nil {
		return nil, fmt.Errorf("library: list external audio tracks %d: %w", videoID, err)
	}
	return scanAudioTracks(rows)
}

// GetAudioTrack loads one track.
func (c conn) GetAudioTrack(ctx context.Context, id int64) (media.AudioTrack, error) {
	rows, err := c.query(ctx, audioSelect+` WHERE a.id = ?`, id)
	if err != nil {
		return media.AudioTrack{}, fmt.Errorf("library: get audio track %d: %w", id, err)
	}
	tracks, err := scanAudioTracks(rows)
	if err != nil {
		return media.AudioTrack{}, err
	}
	if len(tracks) == 0 {
		return media.AudioTrack{}, fmt.Errorf("audio track %d: %w", id, media.ErrNotFound)
	}
	return tracks[0], nil
}

// SaveAudioTrack inserts t when t.ID is zero and updates it otherwise. The
// language and default rules are checked against the sibling tracks first.
func (c conn) SaveAudioTrack(ctx context.Context, t media.AudioTrack) (media.AudioTrack, error) {
	existing, err := c.ListAudioTracks(ctx, t.VideoID)
	if err != nil {
		return media.AudioTrack{}, err
	}
	if err := media.ValidateAudioTrack(existing, t); err != nil {
		return media.AudioTrack{}, err
	}

	if t.ID == 0 {
		id, err := c.insertID(ctx, `
			INSERT INTO audio_tracks (video_id, language_id, is_default, source_key)
			VALUES (?, ?, ?, ?)`,
			t.VideoID, t.LanguageID, t.IsDefault, t.SourceKey,
		)
		if err != nil {
			return media.AudioTrack{}, fmt.Errorf("library: insert audio track: %w", err)
		}
		return c.GetAudioTrack(ctx, id)
	}

	res, err := c.exec(ctx, `
		UPDATE audio_tracks SET language_id = ?, is_default = ?, source_key = ?
		WHERE id = ? AND video_id = ?`,
		t.LanguageID, t.IsDefault, t.SourceKey, t.ID, t.VideoID,
	)
	if err != nil {
		return media.AudioTrack{}, fmt.Errorf("library: update audio track %d: %w", t.ID, err)
	}
	n, err := rowsAffected(res)
	if err != nil {
		return media.AudioTrack{}, err
	}
	if n == 0 {
		return media.AudioTrack{}, fmt.Errorf("audio track %d: %w", t.ID, media.ErrNotFound)
	}
	return c.GetAudioTrack(ctx, t.ID)
}

// EnsureAudioTrack returns the track of videoID for languageID, creating it
// when missing. A created track becomes the default only when the video
// has none yet.
func (c conn) EnsureAudioTrack(ctx context.Context, videoID, languageID int64) (media.AudioTrack, error) {
	existing, err := c.ListAudioTracks(ctx, videoID)
	if err != nil {
		return media.AudioTrack{}, err
	}
	for _, t := range existing {
		if t.LanguageID == languageID {
			return t, nil
		}
	}
	return c.SaveAudioTrack(ctx, media.AudioTrack{
		VideoID:    videoID,
		LanguageID: languageID,
		IsDefault:  !media.HasDefault(existing),
	})
}
