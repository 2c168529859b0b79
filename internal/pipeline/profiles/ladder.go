// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package profiles defines the fixed adaptive-bitrate ladder and the
// encoder settings shared by every rendition.
package profiles

import (
	"strings"

	"github.com/ManuGH/cinegate/internal/domain/media"
)

// Rendition is one rung of the ladder.
type Rendition struct {
	Name       string // variant name, also the variant playlist basename
	Width      int
	Height     int
	MaxrateK   int // max video bitrate in kbit/s
	BufsizeK   int // VBV buffer in kbit
	Resolution media.Resolution
}

// Ladder is ordered lowest to highest; the index of a rendition is its
// stream index in the transcoder graph.
var Ladder = []Rendition{
	{Name: "360p", Width: 640, Height: 360, MaxrateK: 856, BufsizeK: 1200, Resolution: media.Resolution360},
	{Name: "480p", Width: 842, Height: 480, MaxrateK: 1498, BufsizeK: 2100, Resolution: media.Resolution480},
	{Name: "720p", Width: 1280, Height: 720, MaxrateK: 2996, BufsizeK: 4200, Resolution: media.Resolution720},
	{Name: "1080p", Width: 1920, Height: 1080, MaxrateK: 5350, BufsizeK: 7500, Resolution: media.Resolution1080},
}

// ByName returns the rendition of ladder with the given variant name.
func ByName(ladder []Rendition, name string) (Rendition, bool) {
	for _, r := range ladder {
		if strings.EqualFold(r.Name, name) {
			return r, true
		}
	}
	return Rendition{}, false
}

// Encoder settings. GOP and keyint are fixed so every variant cuts
// segments on the same frames.
var (
	VideoCodecArgs = []string{
		"-c:v", "h264",
		"-profile:v", "main",
		"-crf", "20",
		"-preset", "veryfast",
		"-sc_threshold", "0",
		"-g", "48",
		"-keyint_min", "48",
	}

	AudioCodecArgs = []string{
		"-c:a", "aac",
		"-ar", "48000",
		"-ac", "2",
		"-b:a", "128k",
	}

	HLSArgs = []string{
		"-hls_time", "6",
		"-hls_flags", "independent_segments",
		"-hls_playlist_type", "vod",
	}

	CommonArgs = []string{
		"-nostdin",
		"-hide_banner",
		"-fflags", "+genpts",
	}
)

// MasterPlaylistName is the basename of the produced master playlist.
const MasterPlaylistName = "master.m3u8"

// AudioGroup is the shared audio group every video variant references.
const AudioGroup = "aud"
