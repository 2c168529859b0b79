// Package media holds the catalog entities that video delivery and
// publication operate on.
package media

// Status is the publication state of a VideoAsset.
type Status string

const (
	StatusCreated    Status = "created"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

// Visibility controls whether a video requires a grant to be watched.
type Visibility string

const (
	VisibilityPublic    Visibility = "public"
	VisibilityProtected Visibility = "protected"
)

// Role is the kind of catalog entity a video is attached to.
type Role string

const (
	RoleMovie   Role = "movie"
	RoleEpisode Role = "episode"
	RoleTrailer Role = "trailer"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	switch r {
	case RoleMovie, RoleEpisode, RoleTrailer:
		return true
	}
	return false
}

// Valid reports whether v is a known visibility.
func (v Visibility) Valid() bool {
	return v == VisibilityPublic || v == VisibilityProtected
}

// VideoAsset is an uploaded source file and everything derived from it.
type VideoAsset struct {
	ID                int64
	Status            Status
	Visibility        Visibility
	Role              Role
	SourceKey         string // content store key of the uploaded source
	MasterPlaylistKey string // empty until published
	DecryptKeyKey     string // empty until published
	OriginalLanguage  string // language code, empty when unknown
	RebuildNeeded     bool
}

// Public reports whether the video bypasses grant checks.
func (v VideoAsset) Public() bool { return v.Visibility == VisibilityPublic }

// Encrypted reports whether a decrypt key has been published for the video.
func (v VideoAsset) Encrypted() bool { return v.DecryptKeyKey != "" }

// Published reports whether a master playlist exists.
func (v VideoAsset) Published() bool { return v.MasterPlaylistKey != "" }

// Language is a registered audio language.
type Language struct {
	ID   int64
	Code string
	Name string
}

// AudioTrack is one language variant of a video's audio.
type AudioTrack struct {
	ID             int64
	VideoID        int64
	LanguageID     int64
	LanguageCode   string
	IsDefault      bool
	HLSPlaylistKey string // derived sub-playlist, empty until published
	SourceKey      string // external audio file, empty for the builtin stream
}

// Resolution is a rendition tier.
type Resolution int

const (
	Resolution1080 Resolution = 1080
	Resolution720  Resolution = 720
	Resolution480  Resolution = 480
	Resolution360  Resolution = 360
)

// Resolutions lists every tier in display order.
var Resolutions = []Resolution{Resolution1080, Resolution720, Resolution480, Resolution360}

// Valid reports whether r is one of the closed set of tiers.
func (r Resolution) Valid() bool {
	switch r {
	case Resolution1080, Resolution720, Resolution480, Resolution360:
		return true
	}
	return false
}

// VideoRendition is a published variant playlist for one tier.
type VideoRendition struct {
	ID          int64
	VideoID     int64
	Resolution  Resolution
	PlaylistKey string
}

// TitleStatus gates customer visibility of a title.
type TitleStatus string

const (
	TitlePublished TitleStatus = "published"
	TitleDraft     TitleStatus = "draft"
)

// TitleType distinguishes movies from shows.
type TitleType string

const (
	TitleMovie TitleType = "movie"
	TitleShow  TitleType = "show"
)

// Title is a movie or show.
type Title struct {
	ID             int64
	Name           string
	Type           TitleType
	Status         TitleStatus
	WatchEnabled   bool
	GenreIDs       []int64
	MovieVideoID   *int64
	TrailerVideoID *int64
}

// Draft reports whether the title is hidden from customers.
func (t Title) Draft() bool { return t.Status == TitleDraft }

// Season groups episodes of a show.
type Season struct {
	ID           int64
	TitleID      int64
	WatchEnabled bool
}

// Episode is one installment of a show.
type Episode struct {
	ID           int64
	SeasonID     int64
	WatchEnabled bool
	VideoID      *int64
}

// Genre is a title classification usable as a grant scope.
type Genre struct {
	ID   int64
	Name string
}
