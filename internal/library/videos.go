package library

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/ManuGH/cinegate/internal/domain/media"
)

const videoSelect = `
	SELECT v.id, v.status, v.visibility, v.role, v.source_key,
		v.master_playlist_key, v.decrypt_key_key, COALESCE(l.code, ''), v.rebuild_needed
	FROM videos v
	LEFT JOIN languages l ON l.id = v.original_language_id
`

type scanner interface {
	Scan(dest ...any) error
}

func scanVideo(row scanner) (media.VideoAsset, error) {
	var v media.VideoAsset
	var status, visibility, role string
	err := row.Scan(
		&v.ID,
		&status,
		&visibility,
		&role,
		&v.SourceKey,
		&v.MasterPlaylistKey,
		&v.DecryptKeyKey,
		&v.OriginalLanguage,
		&v.RebuildNeeded,
	)
	if err != nil {
		return media.VideoAsset{}, err
	}
	v.Status = media.Status(status)
	v.Visibility = media.Visibility(visibility)
	v.Role = media.Role(role)
	return v, nil
}

// GetVideo loads one video asset.
func (c conn) GetVideo(ctx context.Context, id int64) (media.VideoAsset, error) {
	v, err := scanVideo(c.queryRow(ctx, videoSelect+` WHERE v.id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return media.VideoAsset{}, fmt.Errorf("video %d: %w", id, media.ErrNotFound)
	}
	if err != nil {
		return media.VideoAsset{}, fmt.Errorf("library: get video %d: %w", id, err)
	}
	return v, nil
}

// CreateVideo inserts v in status created and returns its id. A non-empty
// OriginalLanguage must name a known language.
func (c conn) CreateVideo(ctx context.Context, v media.VideoAsset) (int64, error) {
	if !v.Role.Valid() {
		return 0, &media.ValidationError{Field: "role", Msg: "unknown role " + string(v.Role)}
	}
	if v.Visibility == "" {
		v.Visibility = media.VisibilityProtected
	}
	if !v.Visibility.Valid() {
		return 0, &media.ValidationError{Field: "visibility", Msg: "unknown visibility " + string(v.Visibility)}
	}
	if strings.TrimSpace(v.SourceKey) == "" {
		return 0, &media.ValidationError{Field: "source_key", Msg: "source file is required"}
	}
	langID, err := c.optionalLanguageID(ctx, v.OriginalLanguage)
	if err != nil {
		return 0, err
	}

	id, err := c.insertID(ctx, `
		INSERT INTO videos (status, visibility, role, source_key, original_language_id)
		VALUES (?, ?, ?, ?, ?)`,
		string(media.StatusCreated), string(v.Visibility), string(v.Role), v.SourceKey, langID,
	)
	if err != nil {
		return 0, fmt.Errorf("library: insert video: %w", err)
	}
	return id, nil
}

// VideoPatch lists the editable fields of a video. Nil fields are kept.
type VideoPatch struct {
	Visibility       *media.Visibility
	Role             *media.Role
	SourceKey        *string
	OriginalLanguage *string
}

// Empty reports whether the patch changes nothing.
func (p VideoPatch) Empty() bool {
	return p.Visibility == nil && p.Role == nil && p.SourceKey == nil && p.OriginalLanguage == nil
}

// UpdateVideo applies patch to video id.
func (c conn) UpdateVideo(ctx context.Context, id int64, patch VideoPatch) error {
	if patch.Empty() {
		return nil
	}
	var sets []string
	var args []any
	if patch.Visibility != nil {
		if !patch.Visibility.Valid() {
			return &media.ValidationError{Field: "visibility", Msg: "unknown visibility " + string(*patch.Visibility)}
		}
		sets = append(sets, "visibility = ?")
		args = append(args, string(*patch.Visibility))
	}
	if patch.Role != nil {
		if !patch.Role.Valid() {
			return &media.ValidationError{Field: "role", Msg: "unknown role " + string(*patch.Role)}
		}
		sets = append(sets, "role = ?")
		args = append(args, string(*patch.Role))
	}
	if patch.SourceKey != nil {
		if strings.TrimSpace(*patch.SourceKey) == "" {
			return &media.ValidationError{Field: "source_key", Msg: "source file is required"}
		}
		sets = append(sets, "source_key = ?")
		args = append(args, *patch.SourceKey)
	}
	if patch.OriginalLanguage != nil {
		langID, err := c.optionalLanguageID(ctx, *patch.OriginalLanguage)
		if err != nil {
			return err
		}
		sets = append(sets, "original_language_id = ?")
		args = append(args, langID)
	}

	args = append(args, id)
	res, err := c.exec(ctx, `UPDATE videos SET `+strings.Join(sets, ", ")+` WHERE id = ?`, args...)
	if err != nil {
		return fmt.Errorf("library: update video %d: %w", id, err)
	}
	n, err := rowsAffected(res)
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("video %d: %w", id, media.ErrNotFound)
	}
	return nil
}

// DeleteVideo removes the video row. Tracks and renditions cascade; title
// and episode references are cleared.
func (c conn) DeleteVideo(ctx context.Context, id int64) error {
	res, err := c.exec(ctx, `DELETE FROM videos WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("library: delete video %d: %w", id, err)
	}
	n, err := rowsAffected(res)
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("video %d: %w", id, media.ErrNotFound)
	}
	return nil
}

// TransitionStatus moves video id to status to and returns the previous
// status. The update is a compare-and-set on the status read, so a
// concurrent writer yields a ConflictError. Entering processing clears
// rebuild_needed, since the attempt reads its inputs after that point.
func (c conn) TransitionStatus(ctx context.Context, id int64, to media.Status) (media.Status, error) {
	var current string
	err := c.queryRow(ctx, `SELECT status FROM videos WHERE id = ?`, id).Scan(&current)
	if errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("video %d: %w", id, media.ErrNotFound)
	}
	if err != nil {
		return "", fmt.Errorf("library: read status %d: %w", id, err)
	}
	from := media.Status(current)
	if _, err := media.Transition(from, to); err != nil {
		return from, err
	}

	var res sql.Result
	if to == media.StatusProcessing {
		res, err = c.exec(ctx, `UPDATE videos SET status = ?, rebuild_needed = ? WHERE id = ? AND status = ?`,
			string(to), false, id, current)
	} else {
		res, err = c.exec(ctx, `UPDATE videos SET status = ? WHERE id = ? AND status = ?`,
			string(to), id, current)
	}
	if err != nil {
		return from, fmt.Errorf("library: set status %d: %w", id, err)
	}
	n, err := rowsAffected(res)
	if err != nil {
		return from, err
	}
	if n == 0 {
		return from, &media.ConflictError{Msg: fmt.Sprintf("video %d changed status concurrently", id)}
	}
	return from, nil
}

// BeginRebuild atomically moves video id into processing. It fails with a
// ConflictError when a build is already running and with a ValidationError
// when the video has no default audio track.
func (c conn) BeginRebuild(ctx context.Context, id int64) error {
	res, err := c.exec(ctx, `
		UPDATE videos SET status = ?
		WHERE id = ? AND status <> ?
		AND EXISTS (SELECT 1 FROM audio_tracks a WHERE a.video_id = videos.id AND a.is_default = ?)`,
		string(media.StatusProcessing), id, string(media.StatusProcessing), true,
	)
	if err != nil {
		return fmt.Errorf("library: begin rebuild %d: %w", id, err)
	}
	n, err := rowsAffected(res)
	if err != nil {
		return err
	}
	if n == 1 {
		return nil
	}

	v, err := c.GetVideo(ctx, id)
	if err != nil {
		return err
	}
	if v.Status == media.StatusProcessing {
		return &media.ConflictError{Msg: "video is being processed"}
	}
	return &media.ValidationError{Field: "audio_tracks", Msg: "video has no default audio track"}
}

// MarkRebuildNeeded flags a published video whose inputs changed.
func (c conn) MarkRebuildNeeded(ctx context.Context, id int64) error {
	_, err := c.exec(ctx, `UPDATE videos SET rebuild_needed = ? WHERE id = ?`, true, id)
	if err != nil {
		return fmt.Errorf("library: mark rebuild needed %d: %w", id, err)
	}
	return nil
}

// ListRenditions returns the published renditions of a video, highest
// resolution first.
func (c conn) ListRenditions(ctx context.Context, videoID int64) ([]media.VideoRendition, error) {
	rows, err := c.query(ctx, `
		SELECT id, video_id, resolution, playlist_key
		FROM video_renditions
		WHERE video_id = ?
		ORDER BY resolution DESC`, videoID)
	if err != nil {
		return nil, fmt.Errorf("library: list renditions %d: %w", videoID, err)
	}
	defer func() { _ = rows.Close() }()

	var out []media.VideoRendition
	for rows.Next() {
		var r media.VideoRendition
		var res int
		if err := rows.Scan(&r.ID, &r.VideoID, &res, &r.PlaylistKey); err != nil {
			return nil, err
		}
		r.Resolution = media.Resolution(res)
		out = append(out, r)
	}
	return out, rows.Err()
}

// Publication is the set of locators produced by one successful build.
type Publication struct {
	MasterPlaylistKey string
	DecryptKeyKey     string
	Renditions        []media.VideoRendition
	// AudioPlaylists maps language id to the uploaded sub-playlist key.
	AudioPlaylists map[int64]string
}

// Reconcile records a finished build: renditions are upserted per
// resolution, audio tracks per language, and the video gets its master
// playlist and key locators. Run it inside a transaction.
func (c conn) Reconcile(ctx context.Context, videoID int64, pub Publication) error {
	if pub.MasterPlaylistKey == "" {
		return &media.ValidationError{Field: "master_playlist", Msg: "publication without master playlist"}
	}
	for _, r := range pub.Renditions {
		if !r.Resolution.Valid() {
			return &media.ValidationError{Field: "resolution", Msg: fmt.Sprintf("unsupported resolution %d", r.Resolution)}
		}
		_, err := c.exec(ctx, `
			INSERT INTO video_renditions (video_id, resolution, playlist_key)
			VALUES (?, ?, ?)
			ON CONFLICT (video_id, resolution) DO UPDATE SET playlist_key = excluded.playlist_key`,
			videoID, int(r.Resolution), r.PlaylistKey,
		)
		if err != nil {
			return fmt.Errorf("library: upsert rendition %dp: %w", r.Resolution, err)
		}
	}
	for langID, key := range pub.AudioPlaylists {
		_, err := c.exec(ctx, `
			INSERT INTO audio_tracks (video_id, language_id, hls_playlist_key)
			VALUES (?, ?, ?)
			ON CONFLICT (video_id, language_id) DO UPDATE SET hls_playlist_key = excluded.hls_playlist_key`,
			videoID, langID, key,
		)
		if err != nil {
			return fmt.Errorf("library: upsert audio playlist (language %d): %w", langID, err)
		}
	}
	res, err := c.exec(ctx, `
		UPDATE videos SET master_playlist_key = ?, decrypt_key_key = ? WHERE id = ?`,
		pub.MasterPlaylistKey, pub.DecryptKeyKey, videoID,
	)
	if err != nil {
		return fmt.Errorf("library: set locators %d: %w", videoID, err)
	}
	n, err := rowsAffected(res)
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("video %d: %w", videoID, media.ErrNotFound)
	}
	return nil
}
