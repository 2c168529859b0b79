package vod

import (
	"path"
	"strconv"
	"strings"
	"time"

	"github.com/ManuGH/cinegate/internal/infra/objectstore"
	"github.com/ManuGH/cinegate/internal/pipeline/exec/ffmpeg"
	"github.com/ManuGH/cinegate/internal/pipeline/profiles"
)

const buildIDLayout = "20060102T150405.000"

// BuildID derives the sortable identifier of a build started at t.
func BuildID(t time.Time) string {
	return t.UTC().Format(buildIDLayout) + "Z"
}

// VideoPrefix is the content store prefix holding every build of a video.
func VideoPrefix(videoID int64) string {
	return objectstore.AsPrefix(objectstore.Join("hls", "videos", strconv.FormatInt(videoID, 10)))
}

// BuildPrefix scopes one build's artifacts.
func BuildPrefix(videoID int64, buildID string) string {
	return objectstore.AsPrefix(objectstore.Join(VideoPrefix(videoID), buildID))
}

// ArtifactKind classifies a file produced by the transcoder.
type ArtifactKind string

const (
	ArtifactSegment         ArtifactKind = "segment"
	ArtifactAudioPlaylist   ArtifactKind = "audio_playlist"
	ArtifactVariantPlaylist ArtifactKind = "variant_playlist"
	ArtifactMasterPlaylist  ArtifactKind = "master_playlist"
	ArtifactKey             ArtifactKind = "key"
	ArtifactOther           ArtifactKind = "other"
)

// Artifact is one local file to upload.
type Artifact struct {
	Kind      ArtifactKind
	Name      string // basename, also the key suffix under the build prefix
	LocalPath string
	Language  string              // audio playlists only
	Rendition *profiles.Rendition // variant playlists only
}

// Classify maps a produced file name to its artifact kind. Variant
// playlists are matched to the ladder by their variant name.
func Classify(name string, ladder []profiles.Rendition) Artifact {
	a := Artifact{Kind: ArtifactOther, Name: name}
	ext := path.Ext(name)
	stem := strings.TrimSuffix(name, ext)

	switch {
	case ext == ".ts":
		a.Kind = ArtifactSegment
	case name == profiles.MasterPlaylistName:
		a.Kind = ArtifactMasterPlaylist
	case ext == ".m3u8" && strings.HasPrefix(stem, ffmpeg.AudioPlaylistName("")):
		a.Kind = ArtifactAudioPlaylist
		a.Language = strings.TrimPrefix(stem, ffmpeg.AudioPlaylistName(""))
	case ext == ".m3u8":
		if r, ok := profiles.ByName(ladder, stem); ok {
			a.Kind = ArtifactVariantPlaylist
			a.Rendition = &r
		}
	}
	return a
}
