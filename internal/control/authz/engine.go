// Package authz decides whether a principal may watch a video or fetch its
// decrypt key.
package authz

import (
	"github.com/ManuGH/cinegate/internal/auth"
	"github.com/ManuGH/cinegate/internal/domain/media"
)

// Operation names the request an access decision was made for.
type Operation string

const (
	OpWatch       Operation = "watch"
	OpRetrieveKey Operation = "retrieve_key"
)

// Reason explains which rule decided the outcome.
type Reason string

const (
	ReasonElevated          Reason = "elevated"
	ReasonBindingUnresolved Reason = "binding_unresolved"
	ReasonDraftTitle        Reason = "draft_title"
	ReasonPublic            Reason = "public"
	ReasonUnauthenticated   Reason = "unauthenticated"
	ReasonToggleDisabled    Reason = "toggle_disabled"
	ReasonGlobalGrant       Reason = "global_grant"
	ReasonObjectGrant       Reason = "object_grant"
	ReasonGenreGrant        Reason = "genre_grant"
	ReasonNoGrant           Reason = "no_grant"
	ReasonNotEncrypted      Reason = "not_encrypted"
)

// Decision is the outcome of one evaluation.
type Decision struct {
	Allowed bool
	Reason  Reason
}

func allow(r Reason) Decision { return Decision{Allowed: true, Reason: r} }
func deny(r Reason) Decision  { return Decision{Allowed: false, Reason: r} }

// Engine evaluates the watch rules against an injected capability lookup.
// It holds no mutable state and is safe for concurrent use.
type Engine struct {
	caps Capabilities
}

// NewEngine returns an Engine backed by caps. A nil caps grants nothing.
func NewEngine(caps Capabilities) *Engine {
	if caps == nil {
		caps = GrantSet{}
	}
	return &Engine{caps: caps}
}

// CanWatch decides whether p may play v, given the resolved binding b.
// Rules are evaluated in order and the first match wins.
func (e *Engine) CanWatch(p auth.Principal, v media.VideoAsset, b media.Binding) Decision {
	if p.Elevated() {
		return allow(ReasonElevated)
	}

	title, ok := resolvedTitle(b)
	if !ok {
		return deny(ReasonBindingUnresolved)
	}

	// Non-staff only from here on; the draft gate dominates visibility.
	if title.Draft() {
		return deny(ReasonDraftTitle)
	}

	if v.Public() {
		return allow(ReasonPublic)
	}

	if !p.Authenticated {
		return deny(ReasonUnauthenticated)
	}

	if !togglesEnabled(b) {
		return deny(ReasonToggleDisabled)
	}

	if e.hasGlobal(p, b) {
		return allow(ReasonGlobalGrant)
	}

	if e.hasObject(p, b) {
		return allow(ReasonObjectGrant)
	}

	if e.hasGenre(p, b, title) {
		return allow(ReasonGenreGrant)
	}

	return deny(ReasonNoGrant)
}

// CanRetrieveKey applies the watch rules and additionally requires a
// published decrypt key.
func (e *Engine) CanRetrieveKey(p auth.Principal, v media.VideoAsset, b media.Binding) Decision {
	d := e.CanWatch(p, v, b)
	if !d.Allowed {
		return d
	}
	if !v.Encrypted() {
		return deny(ReasonNotEncrypted)
	}
	return d
}

func resolvedTitle(b media.Binding) (media.Title, bool) {
	switch v := b.(type) {
	case media.MovieBinding:
		return v.Title, v.Title.ID != 0
	case media.TrailerBinding:
		return v.Title, v.Title.ID != 0
	case media.EpisodeBinding:
		if v.Episode.ID == 0 || v.Season.ID == 0 || v.Title.ID == 0 {
			return media.Title{}, false
		}
		return v.Title, true
	default:
		return media.Title{}, false
	}
}

func togglesEnabled(b media.Binding) bool {
	switch v := b.(type) {
	case media.MovieBinding:
		return v.Title.WatchEnabled
	case media.TrailerBinding:
		return v.Title.WatchEnabled
	case media.EpisodeBinding:
		return v.Episode.WatchEnabled && v.Season.WatchEnabled && v.Title.WatchEnabled
	}
	return false
}

func isShow(b media.Binding) bool {
	_, ok := b.(media.EpisodeBinding)
	return ok
}

func (e *Engine) hasGlobal(p auth.Principal, b media.Binding) bool {
	if e.caps.HasCapability(p, CapWatchAll, nil) {
		return true
	}
	if isShow(b) {
		return e.caps.HasCapability(p, CapWatchAllShows, nil)
	}
	return e.caps.HasCapability(p, CapWatchAllMovies, nil)
}

func (e *Engine) hasObject(p auth.Principal, b media.Binding) bool {
	title, _ := media.OwningTitle(b)
	if e.caps.HasCapability(p, CapWatchTitle, &ObjectRef{Kind: KindTitle, ID: title.ID}) {
		return true
	}
	ep, ok := b.(media.EpisodeBinding)
	if !ok {
		return false
	}
	if e.caps.HasCapability(p, CapWatchEpisode, &ObjectRef{Kind: KindEpisode, ID: ep.Episode.ID}) {
		return true
	}
	return e.caps.HasCapability(p, CapWatchSeason, &ObjectRef{Kind: KindSeason, ID: ep.Season.ID})
}

func (e *Engine) hasGenre(p auth.Principal, b media.Binding, title media.Title) bool {
	roleCap := CapWatchGenreMovies
	if isShow(b) {
		roleCap = CapWatchGenreShows
	}
	for _, gid := range title.GenreIDs {
		scope := &ObjectRef{Kind: KindGenre, ID: gid}
		if e.caps.HasCapability(p, CapWatchGenre, scope) || e.caps.HasCapability(p, roleCap, scope) {
			return true
		}
	}
	return false
}
