// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package authz

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/ManuGH/cinegate/internal/auth"
	"github.com/ManuGH/cinegate/internal/domain/media"
)

// fakeCaps records lookups and answers from a fixed grant list.
type fakeCaps struct {
	grants []Grant
	calls  int
}

func (f *fakeCaps) HasCapability(_ auth.Principal, name Capability, scope *ObjectRef) bool {
	f.calls++
	for _, g := range f.grants {
		if g.Capability != name {
			continue
		}
		if g.Scope == nil && scope == nil {
			return true
		}
		if g.Scope != nil && scope != nil && *g.Scope == *scope {
			return true
		}
	}
	return false
}

var (
	customer = auth.Principal{ID: "u1", Authenticated: true}
	staff    = auth.Principal{ID: "s1", Authenticated: true, Staff: true}
	super    = auth.Principal{ID: "r1", Authenticated: true, Superuser: true}
)

func publishedTitle() media.Title {
	return media.Title{ID: 1, Type: media.TitleMovie, Status: media.TitlePublished, WatchEnabled: true, GenreIDs: []int64{7, 8}}
}

func episodeBinding(epOn, seasonOn, titleOn bool) media.EpisodeBinding {
	t := publishedTitle()
	t.Type = media.TitleShow
	t.WatchEnabled = titleOn
	return media.EpisodeBinding{
		Episode: media.Episode{ID: 30, SeasonID: 20, WatchEnabled: epOn},
		Season:  media.Season{ID: 20, TitleID: t.ID, WatchEnabled: seasonOn},
		Title:   t,
	}
}

func protected(role media.Role) media.VideoAsset {
	return media.VideoAsset{ID: 100, Role: role, Visibility: media.VisibilityProtected}
}

func TestCanWatch(t *testing.T) {
	draft := publishedTitle()
	draft.Status = media.TitleDraft
	toggledOff := publishedTitle()
	toggledOff.WatchEnabled = false

	tests := []struct {
		name    string
		p       auth.Principal
		video   media.VideoAsset
		binding media.Binding
		grants  []Grant
		want    Decision
	}{
		{"superuser allowed on unresolved", super, protected(media.RoleMovie), media.Unresolved{}, nil, allow(ReasonElevated)},
		{"staff allowed on draft", staff, protected(media.RoleMovie), media.MovieBinding{Title: draft}, nil, allow(ReasonElevated)},
		{"unresolved denies", customer, protected(media.RoleMovie), media.Unresolved{Reason: "orphan"}, []Grant{{Capability: CapWatchAll}}, deny(ReasonBindingUnresolved)},
		{"nil binding denies", customer, protected(media.RoleMovie), nil, nil, deny(ReasonBindingUnresolved)},
		{"episode without season denies", customer, protected(media.RoleEpisode), media.EpisodeBinding{Episode: media.Episode{ID: 1}, Title: publishedTitle()}, nil, deny(ReasonBindingUnresolved)},
		{"draft dominates public", customer, media.VideoAsset{Visibility: media.VisibilityPublic}, media.MovieBinding{Title: draft}, nil, deny(ReasonDraftTitle)},
		{"draft dominates grants", customer, protected(media.RoleMovie), media.MovieBinding{Title: draft}, []Grant{{Capability: CapWatchAll}}, deny(ReasonDraftTitle)},
		{"public allows anonymous", auth.Anonymous, media.VideoAsset{Visibility: media.VisibilityPublic}, media.TrailerBinding{Title: publishedTitle()}, nil, allow(ReasonPublic)},
		{"public ignores toggles", auth.Anonymous, media.VideoAsset{Visibility: media.VisibilityPublic}, media.MovieBinding{Title: toggledOff}, nil, allow(ReasonPublic)},
		{"protected denies anonymous", auth.Anonymous, protected(media.RoleMovie), media.MovieBinding{Title: publishedTitle()}, []Grant{{Capability: CapWatchAll}}, deny(ReasonUnauthenticated)},
		{"title toggle off denies grant holder", customer, protected(media.RoleMovie), media.MovieBinding{Title: toggledOff}, []Grant{{Capability: CapWatchAll}}, deny(ReasonToggleDisabled)},
		{"trailer toggle off denies", customer, protected(media.RoleTrailer), media.TrailerBinding{Title: toggledOff}, []Grant{{Capability: CapWatchAll}}, deny(ReasonToggleDisabled)},
		{"watch all", customer, protected(media.RoleMovie), media.MovieBinding{Title: publishedTitle()}, []Grant{{Capability: CapWatchAll}}, allow(ReasonGlobalGrant)},
		{"watch all movies on movie", customer, protected(media.RoleMovie), media.MovieBinding{Title: publishedTitle()}, []Grant{{Capability: CapWatchAllMovies}}, allow(ReasonGlobalGrant)},
		{"watch all movies on trailer", customer, protected(media.RoleTrailer), media.TrailerBinding{Title: publishedTitle()}, []Grant{{Capability: CapWatchAllMovies}}, allow(ReasonGlobalGrant)},
		{"watch all movies not on episode", customer, protected(media.RoleEpisode), episodeBinding(true, true, true), []Grant{{Capability: CapWatchAllMovies}}, deny(ReasonNoGrant)},
		{"watch all shows on episode", customer, protected(media.RoleEpisode), episodeBinding(true, true, true), []Grant{{Capability: CapWatchAllShows}}, allow(ReasonGlobalGrant)},
		{"watch all shows not on movie", customer, protected(media.RoleMovie), media.MovieBinding{Title: publishedTitle()}, []Grant{{Capability: CapWatchAllShows}}, deny(ReasonNoGrant)},
		{"title grant", customer, protected(media.RoleMovie), media.MovieBinding{Title: publishedTitle()}, []Grant{{Capability: CapWatchTitle, Scope: &ObjectRef{Kind: KindTitle, ID: 1}}}, allow(ReasonObjectGrant)},
		{"title grant other title", customer, protected(media.RoleMovie), media.MovieBinding{Title: publishedTitle()}, []Grant{{Capability: CapWatchTitle, Scope: &ObjectRef{Kind: KindTitle, ID: 2}}}, deny(ReasonNoGrant)},
		{"title grant covers episode", customer, protected(media.RoleEpisode), episodeBinding(true, true, true), []Grant{{Capability: CapWatchTitle, Scope: &ObjectRef{Kind: KindTitle, ID: 1}}}, allow(ReasonObjectGrant)},
		{"episode grant", customer, protected(media.RoleEpisode), episodeBinding(true, true, true), []Grant{{Capability: CapWatchEpisode, Scope: &ObjectRef{Kind: KindEpisode, ID: 30}}}, allow(ReasonObjectGrant)},
		{"season grant", customer, protected(media.RoleEpisode), episodeBinding(true, true, true), []Grant{{Capability: CapWatchSeason, Scope: &ObjectRef{Kind: KindSeason, ID: 20}}}, allow(ReasonObjectGrant)},
		{"genre grant", customer, protected(media.RoleMovie), media.MovieBinding{Title: publishedTitle()}, []Grant{{Capability: CapWatchGenre, Scope: &ObjectRef{Kind: KindGenre, ID: 8}}}, allow(ReasonGenreGrant)},
		{"genre movies grant on movie", customer, protected(media.RoleMovie), media.MovieBinding{Title: publishedTitle()}, []Grant{{Capability: CapWatchGenreMovies, Scope: &ObjectRef{Kind: KindGenre, ID: 7}}}, allow(ReasonGenreGrant)},
		{"genre shows grant not on movie", customer, protected(media.RoleMovie), media.MovieBinding{Title: publishedTitle()}, []Grant{{Capability: CapWatchGenreShows, Scope: &ObjectRef{Kind: KindGenre, ID: 7}}}, deny(ReasonNoGrant)},
		{"genre shows grant on episode", customer, protected(media.RoleEpisode), episodeBinding(true, true, true), []Grant{{Capability: CapWatchGenreShows, Scope: &ObjectRef{Kind: KindGenre, ID: 7}}}, allow(ReasonGenreGrant)},
		{"genre grant unrelated genre", customer, protected(media.RoleMovie), media.MovieBinding{Title: publishedTitle()}, []Grant{{Capability: CapWatchGenre, Scope: &ObjectRef{Kind: KindGenre, ID: 99}}}, deny(ReasonNoGrant)},
		{"no grants", customer, protected(media.RoleMovie), media.MovieBinding{Title: publishedTitle()}, nil, deny(ReasonNoGrant)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			e := NewEngine(&fakeCaps{grants: tt.grants})
			assert.Equal(t, tt.want, e.CanWatch(tt.p, tt.video, tt.binding))
		})
	}
}

func TestCanWatch_ElevatedSkipsLookups(t *testing.T) {
	caps := &fakeCaps{}
	e := NewEngine(caps)
	e.CanWatch(staff, protected(media.RoleMovie), media.MovieBinding{Title: publishedTitle()})
	assert.Zero(t, caps.calls)
}

func TestCanWatch_DraftAlwaysDeniedForNonElevated(t *testing.T) {
	all := []Grant{
		{Capability: CapWatchAll},
		{Capability: CapWatchAllMovies},
		{Capability: CapWatchAllShows},
		{Capability: CapWatchTitle, Scope: &ObjectRef{Kind: KindTitle, ID: 1}},
	}
	e := NewEngine(&fakeCaps{grants: all})
	for _, p := range []auth.Principal{auth.Anonymous, customer} {
		for _, vis := range []media.Visibility{media.VisibilityPublic, media.VisibilityProtected} {
			for _, on := range []bool{true, false} {
				title := publishedTitle()
				title.Status = media.TitleDraft
				title.WatchEnabled = on
				d := e.CanWatch(p, media.VideoAsset{Visibility: vis}, media.MovieBinding{Title: title})
				assert.Equal(t, deny(ReasonDraftTitle), d)
			}
		}
	}
}

func TestCanWatch_EpisodeAnyToggleOffDenies(t *testing.T) {
	e := NewEngine(&fakeCaps{})
	for _, combo := range [][3]bool{{false, true, true}, {true, false, true}, {true, true, false}} {
		d := e.CanWatch(customer, protected(media.RoleEpisode), episodeBinding(combo[0], combo[1], combo[2]))
		assert.Equal(t, deny(ReasonToggleDisabled), d, "toggles %v", combo)
	}
	d := e.CanWatch(customer, protected(media.RoleEpisode), episodeBinding(true, true, true))
	assert.Equal(t, deny(ReasonNoGrant), d)
}

func TestCanRetrieveKey(t *testing.T) {
	e := NewEngine(&fakeCaps{grants: []Grant{{Capability: CapWatchAll}}})
	binding := media.MovieBinding{Title: publishedTitle()}

	plain := protected(media.RoleMovie)
	assert.Equal(t, deny(ReasonNotEncrypted), e.CanRetrieveKey(customer, plain, binding))
	assert.Equal(t, deny(ReasonNotEncrypted), e.CanRetrieveKey(staff, plain, binding))

	enc := plain
	enc.DecryptKeyKey = "hls/videos/100/b/hls.key"
	assert.Equal(t, allow(ReasonGlobalGrant), e.CanRetrieveKey(customer, enc, binding))
	assert.Equal(t, deny(ReasonUnauthenticated), e.CanRetrieveKey(auth.Anonymous, enc, binding))
}

func TestNilCapabilitiesGrantNothing(t *testing.T) {
	e := NewEngine(nil)
	assert.Equal(t, deny(ReasonNoGrant), e.CanWatch(customer, protected(media.RoleMovie), media.MovieBinding{Title: publishedTitle()}))
}
