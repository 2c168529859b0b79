package media

// Binding is the resolved ownership chain of a video. It is one of
// MovieBinding, EpisodeBinding, TrailerBinding or Unresolved.
type Binding interface {
	// Role is the video role this binding implies. Unresolved returns "".
	Role() Role
	isBinding()
}

// MovieBinding attaches a video to a movie title.
type MovieBinding struct {
	Title Title
}

// EpisodeBinding attaches a video to an episode of a show.
type EpisodeBinding struct {
	Episode Episode
	Season  Season
	Title   Title
}

// TrailerBinding attaches a video to a title as its trailer.
type TrailerBinding struct {
	Title Title
}

// Unresolved marks a video with no (or a broken) ownership chain.
type Unresolved struct {
	Reason string
}

func (MovieBinding) Role() Role   { return RoleMovie }
func (EpisodeBinding) Role() Role { return RoleEpisode }
func (TrailerBinding) Role() Role { return RoleTrailer }
func (Unresolved) Role() Role     { return "" }

func (MovieBinding) isBinding()   {}
func (EpisodeBinding) isBinding() {}
func (TrailerBinding) isBinding() {}
func (Unresolved) isBinding()     {}

// OwningTitle returns the title at the root of the chain.
func OwningTitle(b Binding) (Title, bool) {
	switch v := b.(type) {
	case MovieBinding:
		return v.Title, true
	case EpisodeBinding:
		return v.Title, true
	case TrailerBinding:
		return v.Title, true
	}
	return Title{}, false
}

// CheckRole rejects a role that does not match the entity the video is
// attached to. An unresolved binding accepts any role.
func CheckRole(role Role, b Binding) error {
	if !role.Valid() {
		return &ValidationError{Field: "role", Msg: "unknown role " + string(role)}
	}
	if b == nil {
		return nil
	}
	if _, ok := b.(Unresolved); ok {
		return nil
	}
	if b.Role() != role {
		return &ValidationError{Field: "role", Msg: "role " + string(role) + " does not match binding " + string(b.Role())}
	}
	return nil
}
