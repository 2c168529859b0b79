package ffmpeg

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/exec"
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	xglog "github.com/ManuGH/cinegate/internal/log"
)

const maxStderrBytes = 4096

// ProbeResult is the subset of container metadata the pipeline needs.
type ProbeResult struct {
	DurationSeconds float64
	HasAudioStream  bool
}

// Prober inspects source files with ffprobe.
type Prober struct {
	BinPath string
	logger  zerolog.Logger
}

// NewProber returns a Prober for the given ffprobe binary.
func NewProber(binPath string) *Prober {
	if binPath == "" {
		binPath = "ffprobe"
	}
	return &Prober{BinPath: binPath, logger: xglog.WithComponent("ffprobe")}
}

// Probe runs ffprobe on path. A failed invocation is an error; output
// that cannot be parsed yields a zero result.
func (p *Prober) Probe(ctx context.Context, path string) (ProbeResult, error) {
	args := []string{
		"-v", "error",
		"-print_format", "json",
		"-show_format",
		"-show_streams",
		path,
	}

	// #nosec G204 - binary comes from config; args are fixed and path is opaque
	cmd := exec.CommandContext(ctx, p.BinPath, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	out, err := cmd.Output()
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) && len(bytes.TrimSpace(out)) > 0 {
			if res, ok := parseProbe(out); ok {
				p.logger.Warn().Err(err).Str(xglog.FieldPath, path).Str("stderr", truncate(stderr.String())).
					Msg("ffprobe non-zero exit but JSON accepted")
				return res, nil
			}
		}
		return ProbeResult{}, fmt.Errorf("ffprobe %s: %w: %s", path, err, truncate(stderr.String()))
	}

	res, ok := parseProbe(out)
	if !ok {
		p.logger.Warn().Str(xglog.FieldPath, path).Msg("ffprobe output not parseable, assuming zero duration and no audio")
	}
	return res, nil
}

// ParseProbeOutput converts ffprobe JSON into a ProbeResult. Unparseable
// input yields the zero result.
func ParseProbeOutput(out []byte) ProbeResult {
	res, _ := parseProbe(out)
	return res
}

type probeData struct {
	Format struct {
		Duration string `json:"duration"`
	} `json:"format"`
	Streams []struct {
		CodecType string `json:"codec_type"`
	} `json:"streams"`
}

func parseProbe(out []byte) (ProbeResult, bool) {
	var data probeData
	if err := json.Unmarshal(out, &data); err != nil {
		return ProbeResult{}, false
	}
	var res ProbeResult
	if d, err := strconv.ParseFloat(strings.TrimSpace(data.Format.Duration), 64); err == nil && d > 0 {
		res.DurationSeconds = d
	}
	for _, s := range data.Streams {
		if s.CodecType == "audio" {
			res.HasAudioStream = true
			break
		}
	}
	return res, true
}

func truncate(s string) string {
	if len(s) > maxStderrBytes {
		return s[:maxStderrBytes] + "..."
	}
	return s
}
