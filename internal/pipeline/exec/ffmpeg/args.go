// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package ffmpeg plans, probes and runs the transcoder for HLS publication.
package ffmpeg

import (
	"errors"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/ManuGH/cinegate/internal/domain/media"
	"github.com/ManuGH/cinegate/internal/pipeline/profiles"
)

// AudioSource is one audio input of the transcode graph.
type AudioSource struct {
	Builtin  bool   // audio stream of the source file itself
	Language string // language code, "und" when unknown
	Default  bool
	Path     string // local file for external sources
}

// Plan holds everything needed to build one transcode command.
type Plan struct {
	Source      string  // local source file
	OutDir      string  // directory receiving playlists and segments
	KeyInfoPath string  // HLS key-info file
	Duration    float64 // probed source duration in seconds
	Renditions  []profiles.Rendition
	Audio       []AudioSource
}

// BuildVarStreamMap binds every video rendition to the shared audio group
// and every audio source to a language-tagged member of that group.
// Exactly one audio member carries default:yes; when none is flagged the
// first source is forced default. Without audio the video entries carry no
// group.
func BuildVarStreamMap(renditions []profiles.Rendition, audio []AudioSource) string {
	parts := make([]string, 0, len(renditions)+len(audio))
	for i, r := range renditions {
		if len(audio) == 0 {
			parts = append(parts, fmt.Sprintf("v:%d,name:%s", i, r.Name))
			continue
		}
		parts = append(parts, fmt.Sprintf("v:%d,agroup:%s,name:%s", i, profiles.AudioGroup, r.Name))
	}

	defaultIdx := -1
	for i, a := range audio {
		if a.Default {
			defaultIdx = i
			break
		}
	}
	if defaultIdx < 0 && len(audio) > 0 {
		defaultIdx = 0
	}

	for i, a := range audio {
		lang := languageOf(a)
		p := fmt.Sprintf("a:%d,agroup:%s,language:%s,name:%s", i, profiles.AudioGroup, lang, AudioPlaylistName(lang))
		if i == defaultIdx {
			p += ",default:yes"
		}
		parts = append(parts, p)
	}
	return strings.Join(parts, " ")
}

// AudioPlaylistName is the variant name (and playlist basename) used for an
// audio language.
func AudioPlaylistName(lang string) string {
	return "language-" + lang
}

func languageOf(a AudioSource) string {
	if a.Language == "" {
		return media.UndeterminedLanguage
	}
	return a.Language
}

// BuildAudioFilter returns the filter_complex graph that aligns every audio
// source to duration, and the output labels in source order. Builtin audio
// reads input 0; external sources read inputs 1..N in list order.
func BuildAudioFilter(audio []AudioSource, duration float64) (string, []string) {
	if len(audio) == 0 {
		return "", nil
	}
	d := formatSeconds(duration)
	chains := make([]string, 0, len(audio))
	labels := make([]string, 0, len(audio))
	nextInput := 1
	for i, a := range audio {
		in := "0:a"
		if !a.Builtin {
			in = strconv.Itoa(nextInput) + ":a"
			nextInput++
		}
		label := fmt.Sprintf("a%dp", i)
		if duration > 0 {
			chains = append(chains, fmt.Sprintf("[%s]apad=pad_dur=%s,atrim=end=%s,asetpts=PTS-STARTPTS[%s]", in, d, d, label))
		} else {
			// Unknown duration: trimming to zero would drop the audio entirely.
			chains = append(chains, fmt.Sprintf("[%s]asetpts=PTS-STARTPTS[%s]", in, label))
		}
		labels = append(labels, label)
	}
	return strings.Join(chains, ";"), labels
}

// ScaleFilter fits the source inside the rendition box, preserving aspect
// ratio. The min() bounds keep sources smaller than the box unscaled.
func ScaleFilter(r profiles.Rendition) string {
	return fmt.Sprintf("scale=w='min(%d,iw)':h='min(%d,ih)':force_original_aspect_ratio=decrease:force_divisible_by=2", r.Width, r.Height)
}

func formatSeconds(d float64) string {
	return strconv.FormatFloat(d, 'f', -1, 64)
}

// BuildCommand constructs the transcoder arguments (without the binary).
// Arguments are returned as a vector and never joined into a shell string.
func BuildCommand(p Plan) ([]string, error) {
	if p.Source == "" {
		return nil, errors.New("missing source path")
	}
	if p.OutDir == "" {
		return nil, errors.New("missing output directory")
	}
	if p.KeyInfoPath == "" {
		return nil, errors.New("missing key info path")
	}
	if len(p.Renditions) == 0 {
		return nil, errors.New("no renditions")
	}
	for _, a := range p.Audio {
		if !a.Builtin && a.Path == "" {
			return nil, fmt.Errorf("external audio %q has no local file", a.Language)
		}
	}

	args := append([]string{}, profiles.CommonArgs...)

	args = append(args, "-i", p.Source)
	for _, a := range p.Audio {
		if !a.Builtin {
			args = append(args, "-i", a.Path)
		}
	}

	for range p.Renditions {
		args = append(args, "-map", "0:v")
	}

	if graph, labels := BuildAudioFilter(p.Audio, p.Duration); graph != "" {
		args = append(args, "-filter_complex", graph)
		for _, l := range labels {
			args = append(args, "-map", "["+l+"]")
		}
	}

	args = append(args, profiles.VideoCodecArgs...)
	args = append(args, profiles.AudioCodecArgs...)

	for i, r := range p.Renditions {
		idx := strconv.Itoa(i)
		args = append(args,
			"-filter:v:"+idx, ScaleFilter(r),
			"-maxrate:v:"+idx, strconv.Itoa(r.MaxrateK)+"k",
			"-bufsize:v:"+idx, strconv.Itoa(r.BufsizeK)+"k",
		)
	}

	args = append(args, "-var_stream_map", BuildVarStreamMap(p.Renditions, p.Audio))
	args = append(args, "-hls_key_info_file", p.KeyInfoPath)
	args = append(args, profiles.HLSArgs...)
	args = append(args,
		"-master_pl_name", profiles.MasterPlaylistName,
		"-hls_segment_filename", filepath.Join(p.OutDir, "%v_%03d.ts"),
		filepath.Join(p.OutDir, "%v.m3u8"),
	)
	return args, nil
}
