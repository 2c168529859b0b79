package library

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ManuGH/cinegate/internal/auth"
	"github.com/ManuGH/cinegate/internal/control/authz"
	"github.com/ManuGH/cinegate/internal/domain/media"
	"github.com/ManuGH/cinegate/internal/persistence/sqlite"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	db, err := sqlite.Open(filepath.Join(t.TempDir(), "catalog.sqlite"), sqlite.DefaultConfig())
	require.NoError(t, err)
	store, err := NewStore(db, DialectSQLite)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func seedVideo(t *testing.T, s *Store, role media.Role, lang string) int64 {
	t.Helper()
	id, err := s.CreateVideo(context.Background(), media.VideoAsset{
		Role:             role,
		Visibility:       media.VisibilityProtected,
		SourceKey:        "uploads/source.mp4",
		OriginalLanguage: lang,
	})
	require.NoError(t, err)
	return id
}

func TestDialect_Rebind(t *testing.T) {
	q := `SELECT a FROM t WHERE x = ? AND y IN (?, ?)`
	assert.Equal(t, q, DialectSQLite.rebind(q))
	assert.Equal(t, `SELECT a FROM t WHERE x = $1 AND y IN ($2, $3)`, DialectPostgres.rebind(q))
}

func TestNewStore_RejectsUnknownDialect(t *testing.T) {
	db, err := sqlite.Open(filepath.Join(t.TempDir(), "x.sqlite"), sqlite.DefaultConfig())
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	_, err = NewStore(db, Dialect("mysql"))
	assert.Error(t, err)
}

func TestNewStore_MigrationIsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.sqlite")
	for i := 0; i < 2; i++ {
		db, err := sqlite.Open(path, sqlite.DefaultConfig())
		require.NoError(t, err)
		s, err := NewStore(db, DialectSQLite)
		require.NoError(t, err)
		require.NoError(t, s.Close())
	}
}

func TestVideo_CreateGetUpdate(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	_, err := s.CreateLanguage(ctx, "EN", "English")
	require.NoError(t, err)

	id := seedVideo(t, s, media.RoleMovie, "en")
	v, err := s.GetVideo(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, media.StatusCreated, v.Status)
	assert.Equal(t, "en", v.OriginalLanguage)
	assert.False(t, v.Published())
	assert.False(t, v.Encrypted())

	public := media.VisibilityPublic
	require.NoError(t, s.UpdateVideo(ctx, id, VideoPatch{Visibility: &public}))
	v, err = s.GetVideo(ctx, id)
	require.NoError(t, err)
	assert.True(t, v.Public())

	_, err = s.GetVideo(ctx, id+100)
	assert.True(t, errors.Is(err, media.ErrNotFound))
}

func TestVideo_UnknownOriginalLanguage(t *testing.T) {
	s := newTestStore(t)
	_, err := s.CreateVideo(context.Background(), media.VideoAsset{
		Role: media.RoleMovie, SourceKey: "src.mp4", OriginalLanguage: "xx",
	})
	var unknown *media.UnknownLanguageCodeError
	require.ErrorAs(t, err, &unknown)
	assert.Equal(t, "xx", unknown.Code)
}

func TestLanguageByCode_IgnoresCase(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	created, err := s.CreateLanguage(ctx, "pt-br", "Portuguese (Brazil)")
	require.NoError(t, err)
	assert.Equal(t, "pt-BR", created.Code)

	got, err := s.LanguageByCode(ctx, "PT-br")
	require.NoError(t, err)
	assert.Equal(t, created.ID, got.ID)
}

func TestCreateLanguage_Rejections(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	for _, code := range []string{"", "english", "not a code", "x!"} {
		_, err := s.CreateLanguage(ctx, code, "Broken")
		assert.True(t, media.IsValidation(err), "code %q", code)
	}

	und, err := s.CreateLanguage(ctx, "und", "Undetermined")
	require.NoError(t, err)
	assert.Equal(t, media.UndeterminedLanguage, und.Code)

	_, err = s.CreateLanguage(ctx, "en", "English")
	require.NoError(t, err)
	_, err = s.CreateLanguage(ctx, "EN", "English again")
	assert.True(t, media.IsValidation(err), "duplicate code")
}

func TestWithTx_OnCommitHooks(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	var ran []string
	err := s.WithTx(ctx, func(tx *Tx) error {
		_, err := tx.CreateGenre(ctx, "Drama")
		tx.OnCommit(func() { ran = append(ran, "committed") })
		return err
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"committed"}, ran)

	boom := errors.New("boom")
	err = s.WithTx(ctx, func(tx *Tx) error {
		if _, err := tx.CreateGenre(ctx, "Comedy"); err != nil {
			return err
		}
		tx.OnCommit(func() { ran = append(ran, "rolled back") })
		return boom
	})
	require.ErrorIs(t, err, boom)
	assert.Equal(t, []string{"committed"}, ran)

	_, err = s.CreateGenre(ctx, "Comedy")
	assert.NoError(t, err, "rolled back insert must not persist")
}

func TestAudioTracks_Rules(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	en, err := s.CreateLanguage(ctx, "en", "English")
	require.NoError(t, err)
	es, err := s.CreateLanguage(ctx, "es", "Spanish")
	require.NoError(t, err)
	id := seedVideo(t, s, media.RoleMovie, "en")

	first, err := s.SaveAudioTrack(ctx, media.AudioTrack{VideoID: id, LanguageID: es.ID, IsDefault: true, SourceKey: "audio/es.aac"})
	require.NoError(t, err)
	assert.Equal(t, "es", first.LanguageCode)

	_, err = s.SaveAudioTrack(ctx, media.AudioTrack{VideoID: id, LanguageID: es.ID})
	assert.True(t, media.IsValidation(err), "duplicate language")

	_, err = s.SaveAudioTrack(ctx, media.AudioTrack{VideoID: id, LanguageID: en.ID, IsDefault: true})
	assert.True(t, media.IsValidation(err), "second default")

	builtin, err := s.EnsureAudioTrack(ctx, id, en.ID)
	require.NoError(t, err)
	assert.False(t, builtin.IsDefault)

	again, err := s.EnsureAudioTrack(ctx, id, en.ID)
	require.NoError(t, err)
	assert.Equal(t, builtin.ID, again.ID)

	external, err := s.ListExternalAudioTracks(ctx, id)
	require.NoError(t, err)
	require.Len(t, external, 1)
	assert.Equal(t, first.ID, external[0].ID)
}

func TestEnsureAudioTrack_BecomesDefaultWhenNone(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	en, err := s.CreateLanguage(ctx, "en", "English")
	require.NoError(t, err)
	id := seedVideo(t, s, media.RoleMovie, "en")

	tr, err := s.EnsureAudioTrack(ctx, id, en.ID)
	require.NoError(t, err)
	assert.True(t, tr.IsDefault)
}

func TestBeginRebuild(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	en, err := s.CreateLanguage(ctx, "en", "English")
	require.NoError(t, err)
	id := seedVideo(t, s, media.RoleMovie, "en")

	err = s.BeginRebuild(ctx, id)
	assert.True(t, media.IsValidation(err), "no default track: %v", err)

	_, err = s.SaveAudioTrack(ctx, media.AudioTrack{VideoID: id, LanguageID: en.ID, IsDefault: true})
	require.NoError(t, err)

	require.NoError(t, s.BeginRebuild(ctx, id))
	v, err := s.GetVideo(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, media.StatusProcessing, v.Status)

	err = s.BeginRebuild(ctx, id)
	assert.True(t, media.IsConflict(err), "already processing: %v", err)

	assert.True(t, errors.Is(s.BeginRebuild(ctx, id+50), media.ErrNotFound))
}

func TestTransitionStatus(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	id := seedVideo(t, s, media.RoleTrailer, "")

	_, err := s.TransitionStatus(ctx, id, media.StatusCompleted)
	assert.True(t, media.IsValidation(err))

	require.NoError(t, s.MarkRebuildNeeded(ctx, id))
	from, err := s.TransitionStatus(ctx, id, media.StatusProcessing)
	require.NoError(t, err)
	assert.Equal(t, media.StatusCreated, from)
	v, err := s.GetVideo(ctx, id)
	require.NoError(t, err)
	assert.False(t, v.RebuildNeeded, "processing starts from current inputs")

	require.NoError(t, s.MarkRebuildNeeded(ctx, id))
	_, err = s.TransitionStatus(ctx, id, media.StatusCompleted)
	require.NoError(t, err)
	v, err = s.GetVideo(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, media.StatusCompleted, v.Status)
	assert.True(t, v.RebuildNeeded, "edits made during the build survive completion")
}

func TestReconcile_UpsertsPerResolution(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	en, err := s.CreateLanguage(ctx, "en", "English")
	require.NoError(t, err)
	id := seedVideo(t, s, media.RoleMovie, "en")

	build := func(prefix string) Publication {
		pub := Publication{
			MasterPlaylistKey: prefix + "master.m3u8",
			DecryptKeyKey:     prefix + "hls.key",
			AudioPlaylists:    map[int64]string{en.ID: prefix + "language-en.m3u8"},
		}
		for _, r := range media.Resolutions {
			pub.Renditions = append(pub.Renditions, media.VideoRendition{Resolution: r, PlaylistKey: prefix + "v.m3u8"})
		}
		return pub
	}

	require.NoError(t, s.WithTx(ctx, func(tx *Tx) error { return tx.Reconcile(ctx, id, build("hls/videos/1/a/")) }))
	require.NoError(t, s.WithTx(ctx, func(tx *Tx) error { return tx.Reconcile(ctx, id, build("hls/videos/1/b/")) }))

	rends, err := s.ListRenditions(ctx, id)
	require.NoError(t, err)
	require.Len(t, rends, 4)
	assert.Equal(t, media.Resolution1080, rends[0].Resolution)
	assert.Equal(t, media.Resolution360, rends[3].Resolution)
	for _, r := range rends {
		assert.Equal(t, "hls/videos/1/b/v.m3u8", r.PlaylistKey)
	}

	tracks, err := s.ListAudioTracks(ctx, id)
	require.NoError(t, err)
	require.Len(t, tracks, 1)
	assert.Equal(t, "hls/videos/1/b/language-en.m3u8", tracks[0].HLSPlaylistKey)

	v, err := s.GetVideo(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "hls/videos/1/b/master.m3u8", v.MasterPlaylistKey)
	assert.True(t, v.Encrypted())
}

func TestResolveBinding(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	movieVideo := seedVideo(t, s, media.RoleMovie, "")
	trailerVideo := seedVideo(t, s, media.RoleTrailer, "")
	episodeVideo := seedVideo(t, s, media.RoleEpisode, "")
	orphan := seedVideo(t, s, media.RoleMovie, "")

	drama, err := s.CreateGenre(ctx, "Drama")
	require.NoError(t, err)
	movie, err := s.CreateTitle(ctx, media.Title{
		Name: "Heat", Type: media.TitleMovie, Status: media.TitlePublished, WatchEnabled: true,
		GenreIDs: []int64{drama.ID}, MovieVideoID: &movieVideo, TrailerVideoID: &trailerVideo,
	})
	require.NoError(t, err)
	show, err := s.CreateTitle(ctx, media.Title{Name: "Lost", Type: media.TitleShow, Status: media.TitlePublished, WatchEnabled: true})
	require.NoError(t, err)
	season, err := s.CreateSeason(ctx, media.Season{TitleID: show.ID, WatchEnabled: true})
	require.NoError(t, err)
	ep, err := s.CreateEpisode(ctx, media.Episode{SeasonID: season.ID, WatchEnabled: false, VideoID: &episodeVideo})
	require.NoError(t, err)

	b, err := s.ResolveBinding(ctx, movieVideo, media.RoleMovie)
	require.NoError(t, err)
	mb, ok := b.(media.MovieBinding)
	require.True(t, ok)
	assert.Equal(t, movie.ID, mb.Title.ID)
	assert.Equal(t, []int64{drama.ID}, mb.Title.GenreIDs)

	b, err = s.ResolveBinding(ctx, trailerVideo, media.RoleTrailer)
	require.NoError(t, err)
	assert.IsType(t, media.TrailerBinding{}, b)

	b, err = s.ResolveBinding(ctx, episodeVideo, media.RoleEpisode)
	require.NoError(t, err)
	eb, ok := b.(media.EpisodeBinding)
	require.True(t, ok)
	assert.Equal(t, ep.ID, eb.Episode.ID)
	assert.False(t, eb.Episode.WatchEnabled)
	assert.Equal(t, show.ID, eb.Title.ID)

	b, err = s.ResolveBinding(ctx, orphan, media.RoleMovie)
	require.NoError(t, err)
	assert.IsType(t, media.Unresolved{}, b)

	b, err = s.BindingOf(ctx, trailerVideo)
	require.NoError(t, err)
	assert.Equal(t, media.RoleTrailer, b.Role())
}

func TestCreateTitle_RejectsWrongRole(t *testing.T) {
	s := newTestStore(t)
	trailer := seedVideo(t, s, media.RoleTrailer, "")
	_, err := s.CreateTitle(context.Background(), media.Title{Name: "x", Type: media.TitleMovie, MovieVideoID: &trailer})
	assert.True(t, media.IsValidation(err))
}

func TestDeleteVideo_ClearsReferences(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	vid := seedVideo(t, s, media.RoleMovie, "")
	title, err := s.CreateTitle(ctx, media.Title{Name: "Alien", Type: media.TitleMovie, MovieVideoID: &vid})
	require.NoError(t, err)

	require.NoError(t, s.DeleteVideo(ctx, vid))
	got, err := s.GetTitle(ctx, title.ID)
	require.NoError(t, err)
	assert.Nil(t, got.MovieVideoID)

	assert.True(t, errors.Is(s.DeleteVideo(ctx, vid), media.ErrNotFound))
}

func TestSetWatchEnabled(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	title, err := s.CreateTitle(ctx, media.Title{Name: "Up", Type: media.TitleMovie, WatchEnabled: true})
	require.NoError(t, err)

	err = s.SetWatchEnabled(ctx, ToggleTitle, title.ID, true)
	require.True(t, media.IsValidation(err))
	assert.Contains(t, err.Error(), "already enabled")

	require.NoError(t, s.SetWatchEnabled(ctx, ToggleTitle, title.ID, false))
	got, err := s.GetTitle(ctx, title.ID)
	require.NoError(t, err)
	assert.False(t, got.WatchEnabled)

	assert.True(t, errors.Is(s.SetWatchEnabled(ctx, ToggleSeason, 999, true), media.ErrNotFound))
}

func TestGrants_RoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.AddGrant(ctx, "u1", authz.Grant{Capability: authz.CapWatchAllMovies}))
	require.NoError(t, s.AddGrant(ctx, "u1", authz.Grant{Capability: authz.CapWatchTitle, Scope: &authz.ObjectRef{Kind: authz.KindTitle, ID: 7}}))
	require.NoError(t, s.AddGrant(ctx, "u1", authz.Grant{Capability: authz.CapWatchAllMovies}))
	require.NoError(t, s.AddGrant(ctx, "u2", authz.Grant{Capability: authz.CapWatchAll}))

	set, err := s.LoadGrants(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 2, set.Len())

	p := auth.Principal{ID: "u1", Authenticated: true}
	assert.True(t, set.HasCapability(p, authz.CapWatchAllMovies, nil))
	assert.True(t, set.HasCapability(p, authz.CapWatchTitle, &authz.ObjectRef{Kind: authz.KindTitle, ID: 7}))
	assert.False(t, set.HasCapability(p, authz.CapWatchTitle, &authz.ObjectRef{Kind: authz.KindTitle, ID: 8}))
	assert.False(t, set.HasCapability(p, authz.CapWatchAll, nil))
}
