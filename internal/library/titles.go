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

// CreateGenre adds a genre.
func (c conn) CreateGenre(ctx context.Context, name string) (media.Genre, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return media.Genre{}, &media.ValidationError{Field: "name", Msg: "genre name is required"}
	}
	id, err := c.insertID(ctx, `INSERT INTO genres (name) VALUES (?)`, name)
	if err != nil {
		return media.Genre{}, fmt.Errorf("library: insert genre: %w", err)
	}
	return media.Genre{ID: id, Name: name}, nil
}

// CreateTitle inserts t with its genre links. Attached videos must carry
// the role matching the slot they fill.
func (c conn) CreateTitle(ctx context.Context, t media.Title) (media.Title, error) {
	if strings.TrimSpace(t.Name) == "" {
		return media.Title{}, &media.ValidationError{Field: "name", Msg: "title name is required"}
	}
	if t.Type != media.TitleMovie && t.Type != media.TitleShow {
		return media.Title{}, &media.ValidationError{Field: "type", Msg: "unknown title type " + string(t.Type)}
	}
	if t.Status == "" {
		t.Status = media.TitleDraft
	}
	if t.Status != media.TitleDraft && t.Status != media.TitlePublished {
		return media.Title{}, &media.ValidationError{Field: "status", Msg: "unknown title status " + string(t.Status)}
	}
	if t.MovieVideoID != nil && t.Type != media.TitleMovie {
		return media.Title{}, &media.ValidationError{Field: "movie_video", Msg: "only movie titles carry a movie video"}
	}
	if err := c.checkVideoRole(ctx, t.MovieVideoID, media.RoleMovie); err != nil {
		return media.Title{}, err
	}
	if err := c.checkVideoRole(ctx, t.TrailerVideoID, media.RoleTrailer); err != nil {
		return media.Title{}, err
	}

	id, err := c.insertID(ctx, `
		INSERT INTO titles (name, type, status, watch_enabled, movie_video_id, trailer_video_id)
		VALUES (?, ?, ?, ?, ?, ?)`,
		t.Name, string(t.Type), string(t.Status), t.WatchEnabled, t.MovieVideoID, t.TrailerVideoID,
	)
	if err != nil {
		return media.Title{}, fmt.Errorf("library: insert title: %w", err)
	}
	for _, g := range t.GenreIDs {
		if _, err := c.exec(ctx, `INSERT INTO title_genres (title_id, genre_id) VALUES (?, ?)`, id, g); err != nil {
			return media.Title{}, fmt.Errorf("library: link genre %d: %w", g, err)
		}
	}
	t.ID = id
	return t, nil
}

// CreateSeason adds a season to a show.
func (c conn) CreateSeason(ctx context.Context, s media.Season) (media.Season, error) {
	id, err := c.insertID(ctx, `INSERT INTO seasons (title_id, watch_enabled) VALUES (?, ?)`,
		s.TitleID, s.WatchEnabled)
	if err != nil {
		return media.Season{}, fmt.Errorf("library: insert season: %w", err)
	}
	s.ID = id
	return s, nil
}

// CreateEpisode adds an episode. An attached video must have the episode role.
func (c conn) CreateEpisode(ctx context.Context, e media.Episode) (media.Episode, error) {
	if err := c.checkVideoRole(ctx, e.VideoID, media.RoleEpisode); err != nil {
		return media.Episode{}, err
	}
	id, err := c.insertID(ctx, `INSERT INTO episodes (season_id, watch_enabled, video_id) VALUES (?, ?, ?)`,
		e.SeasonID, e.WatchEnabled, e.VideoID)
	if err != nil {
		return media.Episode{}, fmt.Errorf("library: insert episode: %w", err)
	}
	e.ID = id
	return e, nil
}

func (c conn) checkVideoRole(ctx context.Context, videoID *int64, role media.Role) error {
	if videoID == nil {
		return nil
	}
	v, err := c.GetVideo(ctx, *videoID)
	if err != nil {
		return err
	}
	if v.Role != role {
		return &media.ValidationError{Field: "role", Msg: fmt.Sprintf("video %d has role %s, want %s", v.ID, v.Role, role)}
	}
	return nil
}

const titleSelect = `
	SELECT t.id, t.name, t.type, t.status, t.watch_enabled, t.movie_video_id, t.trailer_video_id
	FROM titles t
`

func (c conn) scanTitle(ctx context.Context, row scanner) (media.Title, error) {
	var t media.Title
	var typ, status string
	var movie, trailer sql.NullInt64
	if err := row.Scan(&t.ID, &t.Name, &typ, &status, &t.WatchEnabled, &movie, &trailer); err != nil {
		return media.Title{}, err
	}
	t.Type = media.TitleType(typ)
	t.Status = media.TitleStatus(status)
	if movie.Valid {
		t.MovieVideoID = &movie.Int64
	}
	if trailer.Valid {
		t.TrailerVideoID = &trailer.Int64
	}
	genres, err := c.titleGenres(ctx, t.ID)
	if err != nil {
		return media.Title{}, err
	}
	t.GenreIDs = genres
	return t, nil
}

func (c conn) titleGenres(ctx context.Context, titleID int64) ([]int64, error) {
	rows, err := c.query(ctx, `SELECT genre_id FROM title_genres WHERE title_id = ? ORDER BY genre_id`, titleID)
	if err != nil {
		return nil, fmt.Errorf("library: title genres %d: %w", titleID, err)
	}
	defer func() { _ = rows.Close() }()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// GetTitle loads one title with its genres.
func (c conn) GetTitle(ctx context.Context, id int64) (media.Title, error) {
	t, err := c.scanTitle(ctx, c.queryRow(ctx, titleSelect+` WHERE t.id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return media.Title{}, fmt.Errorf("title %d: %w", id, media.ErrNotFound)
	}
	if err != nil {
		return media.Title{}, fmt.Errorf("library: get title %d: %w", id, err)
	}
	return t, nil
}

// ResolveBinding finds the entity that owns a video of the given role.
// A video nothing points at resolves to media.Unresolved.
func (c conn) ResolveBinding(ctx context.Context, videoID int64, role media.Role) (media.Binding, error) {
	switch role {
	case media.RoleMovie:
		t, found, err := c.titleBy(ctx, `t.movie_video_id = ?`, videoID)
		if err != nil || !found {
			return media.Unresolved{Reason: "no title references this movie"}, err
		}
		return media.MovieBinding{Title: t}, nil
	case media.RoleTrailer:
		t, found, err := c.titleBy(ctx, `t.trailer_video_id = ?`, videoID)
		if err != nil || !found {
			return media.Unresolved{Reason: "no title references this trailer"}, err
		}
		return media.TrailerBinding{Title: t}, nil
	case media.RoleEpisode:
		return c.resolveEpisode(ctx, videoID)
	}
	return media.Unresolved{Reason: "unknown role " + string(role)}, nil
}

// BindingOf resolves the binding of a video whatever its role, used to
// check a role change against where the video is attached.
func (c conn) BindingOf(ctx context.Context, videoID int64) (media.Binding, error) {
	for _, role := range []media.Role{media.RoleMovie, media.RoleTrailer, media.RoleEpisode} {
		b, err := c.ResolveBinding(ctx, videoID, role)
		if err != nil {
			return nil, err
		}
		if _, ok := b.(media.Unresolved); !ok {
			return b, nil
		}
	}
	return media.Unresolved{Reason: "video is not attached"}, nil
}

func (c conn) titleBy(ctx context.Context, where string, arg any) (media.Title, bool, error) {
	t, err := c.scanTitle(ctx, c.queryRow(ctx, titleSelect+` WHERE `+where, arg))
	if errors.Is(err, sql.ErrNoRows) {
		return media.Title{}, false, nil
	}
	if err != nil {
		return media.Title{}, false, fmt.Errorf("library: resolve title: %w", err)
	}
	return t, true, nil
}

func (c conn) resolveEpisode(ctx context.Context, videoID int64) (media.Binding, error) {
	var ep media.Episode
	var season media.Season
	err := c.queryRow(ctx, `
		SELECT e.id, e.season_id, e.watch_enabled, s.id, s.title_id, s.watch_enabled
		FROM episodes e
		JOIN seasons s ON s.id = e.season_id
		WHERE e.video_id = ?`, videoID,
	).Scan(&ep.ID, &ep.SeasonID, &ep.WatchEnabled, &season.ID, &season.TitleID, &season.WatchEnabled)
	if errors.Is(err, sql.ErrNoRows) {
		return media.Unresolved{Reason: "no episode references this video"}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("library: resolve episode: %w", err)
	}
	vid := videoID
	ep.VideoID = &vid

	title, err := c.GetTitle(ctx, season.TitleID)
	if err != nil {
		return nil, err
	}
	return media.EpisodeBinding{Episode: ep, Season: season, Title: title}, nil
}

// ToggleKind names a table carrying a watch toggle.
type ToggleKind string

const (
	ToggleTitle   ToggleKind = "title"
	ToggleSeason  ToggleKind = "season"
	ToggleEpisode ToggleKind = "episode"
)

func (k ToggleKind) table() (string, bool) {
	switch k {
	case ToggleTitle:
		return "titles", true
	case ToggleSeason:
		return "seasons", true
	case ToggleEpisode:
		return "episodes", true
	}
	return "", false
}

// SetWatchEnabled flips the watch toggle of one entity. Setting the value
// it already has is a ValidationError.
func (c conn) SetWatchEnabled(ctx context.Context, kind ToggleKind, id int64, enabled bool) error {
	table, ok := kind.table()
	if !ok {
		return &media.ValidationError{Field: "kind", Msg: "unknown toggle kind " + string(kind)}
	}

	var current bool
	err := c.queryRow(ctx, `SELECT watch_enabled FROM `+table+` WHERE id = ?`, id).Scan(&current)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%s %d: %w", kind, id, media.ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("library: read toggle %s %d: %w", kind, id, err)
	}
	if current == enabled {
		word := "disabled"
		if enabled {
			word = "enabled"
		}
		return &media.ValidationError{Field: "watch_enabled", Msg: "already " + word}
	}
	if _, err := c.exec(ctx, `UPDATE `+table+` SET watch_enabled = ? WHERE id = ?`, enabled, id); err != nil {
		return fmt.Errorf("library: set toggle %s %d: %w", kind, id, err)
	}
	return nil
}
