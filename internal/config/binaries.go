// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package config

import (
	"os"
	"path/filepath"
	"strings"
)

const defaultFFprobeBin = "ffprobe"

// ResolveFFprobeBin picks the prober binary. An explicit value wins. An
// absolute-or-relative ffmpeg path whose directory also holds ffprobe yields
// that sibling. Otherwise the result is empty and the caller uses PATH.
func ResolveFFprobeBin(ffprobeBin, ffmpegBin string) string {
	if v := strings.TrimSpace(ffprobeBin); v != "" {
		return v
	}
	return siblingBinary(strings.TrimSpace(ffmpegBin), "ffmpeg", defaultFFprobeBin)
}

// siblingBinary returns dir(bin)/want when bin is a path to a binary named
// base and want exists there as a regular file.
func siblingBinary(bin, base, want string) string {
	if !strings.ContainsRune(bin, filepath.Separator) || filepath.Base(bin) != base {
		return ""
	}
	candidate := filepath.Join(filepath.Dir(bin), want)
	fi, err := os.Stat(candidate)
	if err != nil || !fi.Mode().IsRegular() {
		return ""
	}
	return candidate
}

// resolveTranscoderBins normalizes both transcoder binaries in place.
func resolveTranscoderBins(t *TranscoderConfig) {
	t.FFmpegBin = strings.TrimSpace(t.FFmpegBin)
	t.FFprobeBin = ResolveFFprobeBin(t.FFprobeBin, t.FFmpegBin)
	if t.FFprobeBin == "" {
		t.FFprobeBin = defaultFFprobeBin
	}
}
