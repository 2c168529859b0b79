// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package authz

import "github.com/ManuGH/cinegate/internal/auth"

// Capability names a grant.
type Capability string

const (
	CapWatchAll         Capability = "can_watch_all"
	CapWatchAllMovies   Capability = "can_watch_all_movies"
	CapWatchAllShows    Capability = "can_watch_all_shows"
	CapWatchTitle       Capability = "can_watch_title"
	CapWatchSeason      Capability = "can_watch_season"
	CapWatchEpisode     Capability = "can_watch_episode"
	CapWatchGenre       Capability = "can_watch_genre"
	CapWatchGenreMovies Capability = "can_watch_genre_movies"
	CapWatchGenreShows  Capability = "can_watch_genre_shows"
)

// Valid reports whether c is a known capability.
func (c Capability) Valid() bool {
	switch c {
	case CapWatchAll, CapWatchAllMovies, CapWatchAllShows,
		CapWatchTitle, CapWatchSeason, CapWatchEpisode,
		CapWatchGenre, CapWatchGenreMovies, CapWatchGenreShows:
		return true
	}
	return false
}

// ObjectKind is the type of entity a scoped grant refers to.
type ObjectKind string

const (
	KindTitle   ObjectKind = "title"
	KindSeason  ObjectKind = "season"
	KindEpisode ObjectKind = "episode"
	KindGenre   ObjectKind = "genre"
)

// ObjectRef scopes a grant to one entity.
type ObjectRef struct {
	Kind ObjectKind
	ID   int64
}

// Capabilities answers grant lookups. A nil scope asks for a global grant.
type Capabilities interface {
	HasCapability(p auth.Principal, name Capability, scope *ObjectRef) bool
}

// Grant is one stored capability, global when Scope is nil.
type Grant struct {
	Capability Capability
	Scope      *ObjectRef
}

type grantKey struct {
	cap   Capability
	kind  ObjectKind
	id    int64
	scope bool
}

// GrantSet is a read-only snapshot of one principal's grants.
type GrantSet struct {
	principalID string
	grants      map[grantKey]struct{}
}

// NewGrantSet snapshots grants held by principalID.
func NewGrantSet(principalID string, grants []Grant) GrantSet {
	set := GrantSet{principalID: principalID, grants: make(map[grantKey]struct{}, len(grants))}
	for _, g := range grants {
		set.grants[keyFor(g.Capability, g.Scope)] = struct{}{}
	}
	return set
}

func keyFor(c Capability, scope *ObjectRef) grantKey {
	if scope == nil {
		return grantKey{cap: c}
	}
	return grantKey{cap: c, kind: scope.Kind, id: scope.ID, scope: true}
}

// Len returns the number of grants in the snapshot.
func (s GrantSet) Len() int { return len(s.grants) }

// HasCapability implements Capabilities. Grants are only honoured for the
// authenticated principal the snapshot was taken for.
func (s GrantSet) HasCapability(p auth.Principal, name Capability, scope *ObjectRef) bool {
	if !p.Authenticated || p.ID == "" || p.ID != s.principalID {
		return false
	}
	_, ok := s.grants[keyFor(name, scope)]
	return ok
}
