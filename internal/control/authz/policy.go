package authz

import "github.com/ManuGH/cinegate/internal/auth"

// Standing is the minimum caller standing an HTTP operation requires.
type Standing int

const (
	// StandingAny admits anonymous callers; per-video rules still apply.
	StandingAny Standing = iota
	// StandingStaff admits staff and superusers only.
	StandingStaff
)

// Policy registry for HTTP operation IDs.
// This is the single source of truth for route-level standing.
var operationStanding = map[string]Standing{
	"GetPlayback":      StandingAny,
	"GetHLSKey":        StandingAny,
	"RequestRebuild":   StandingStaff,
	"CreateVideo":      StandingStaff,
	"UpdateVideo":      StandingStaff,
	"DeleteVideo":      StandingStaff,
	"CreateAudioTrack": StandingStaff,
	"UpdateAudioTrack": StandingStaff,
	"EnableWatch":      StandingStaff,
	"DisableWatch":     StandingStaff,
	"GetHealth":        StandingAny,
}

// RequiredStanding returns the standing an operation requires.
func RequiredStanding(operationID string) (Standing, bool) {
	s, ok := operationStanding[operationID]
	return s, ok
}

// Permits reports whether p satisfies the standing of operationID.
// Unknown operations are denied.
func Permits(operationID string, p auth.Principal) bool {
	s, ok := RequiredStanding(operationID)
	if !ok {
		return false
	}
	switch s {
	case StandingAny:
		return true
	case StandingStaff:
		return p.Elevated()
	default:
		return false
	}
}
