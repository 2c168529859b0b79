package ffmpeg

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/rs/zerolog"

	xglog "github.com/ManuGH/cinegate/internal/log"
	"github.com/ManuGH/cinegate/internal/metrics"
	"github.com/ManuGH/cinegate/internal/procgroup"
)

// TranscodeFailure is a non-zero exit (or failed start) of the transcoder.
// It is recoverable: the publication job retries on it.
type TranscodeFailure struct {
	ExitCode int // -1 when the process never started
	Stderr   string
	Err      error
}

func (f *TranscodeFailure) Error() string {
	return fmt.Sprintf("transcode failed (exit %d): %v", f.ExitCode, f.Err)
}

func (f *TranscodeFailure) Unwrap() error { return f.Err }

// stderrTail is how many captured lines a failure carries.
const stderrTail = 64

// Executor runs the transcoder binary.
type Executor struct {
	BinPath string
	logger  zerolog.Logger
}

// NewExecutor returns an Executor for binPath (default "ffmpeg").
func NewExecutor(binPath string) *Executor {
	if binPath == "" {
		binPath = "ffmpeg"
	}
	return &Executor{BinPath: binPath, logger: xglog.WithComponent("ffmpeg")}
}

// Execute runs the binary with args and blocks until it exits. ctx is only
// consulted before the process starts; a started transcode runs to completion.
func (e *Executor) Execute(ctx context.Context, args []string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	logger := xglog.WithContext(ctx, e.logger)

	ring := NewLineRing(256)
	// #nosec G204 - no shell; args are built as a vector by BuildCommand
	cmd := exec.Command(e.BinPath, args...)
	cmd.Stdout = ring
	cmd.Stderr = ring
	// A Ctrl-C on the daemon must not kill a transcode in flight.
	procgroup.Set(cmd)

	start := time.Now()
	logger.Debug().Str("bin", e.BinPath).Int("argc", len(args)).Msg("starting transcoder")

	if err := cmd.Start(); err != nil {
		metrics.RecordTranscode("start_failed", -1, time.Since(start))
		return &TranscodeFailure{ExitCode: -1, Err: err}
	}

	err := cmd.Wait()
	elapsed := time.Since(start)
	if err == nil {
		metrics.RecordTranscode("ok", 0, elapsed)
		logger.Info().Dur("elapsed", elapsed).Msg("transcoder finished")
		return nil
	}

	code := -1
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		code = exitErr.ExitCode()
	}
	stderr := strings.Join(ring.LastN(stderrTail), "\n")
	metrics.RecordTranscode("failed", code, elapsed)
	logger.Warn().
		Int(xglog.FieldExitCode, code).
		Dur("elapsed", elapsed).
		Str("stderr", truncate(stderr)).
		Msg("transcoder exited with error")
	return &TranscodeFailure{ExitCode: code, Stderr: stderr, Err: err}
}
