// Package vodtest provides transcoder and prober doubles that behave like
// the real binaries at the file level.
package vodtest

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/ManuGH/cinegate/internal/pipeline/exec/ffmpeg"
)

// Prober returns a fixed result.
type Prober struct {
	Result ffmpeg.ProbeResult
	Err    error
}

func (p Prober) Probe(_ context.Context, path string) (ffmpeg.ProbeResult, error) {
	if _, err := os.Stat(path); err != nil {
		return ffmpeg.ProbeResult{}, fmt.Errorf("probe %s: %w", path, err)
	}
	return p.Result, p.Err
}

// Transcoder writes one playlist and one segment per variant named in the
// -var_stream_map argument, plus the master playlist. The first Failures
// calls fail with ExitCode.
type Transcoder struct {
	Failures int
	ExitCode int
	// Extra file names written next to the regular outputs.
	Extra []string
	// NoOutput makes successful calls write nothing.
	NoOutput bool

	mu    sync.Mutex
	calls [][]string
}

// Execute implements the pipeline executor contract.
func (t *Transcoder) Execute(_ context.Context, args []string) error {
	t.mu.Lock()
	n := len(t.calls)
	t.calls = append(t.calls, append([]string(nil), args...))
	fail := n < t.Failures
	t.mu.Unlock()

	if fail {
		code := t.ExitCode
		if code == 0 {
			code = 1
		}
		return &ffmpeg.TranscodeFailure{
			ExitCode: code,
			Stderr:   "simulated transcoder failure",
			Err:      fmt.Errorf("exit status %d", code),
		}
	}
	if t.NoOutput {
		return nil
	}
	return WriteOutputs(args, t.Extra...)
}

// Calls returns a copy of every argument vector received.
func (t *Transcoder) Calls() [][]string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([][]string(nil), t.calls...)
}

// Flag returns the value following name in args.
func Flag(args []string, name string) (string, bool) {
	for i := 0; i < len(args)-1; i++ {
		if args[i] == name {
			return args[i+1], true
		}
	}
	return "", false
}

// VariantNames extracts the name: fields of a var_stream_map value.
func VariantNames(varStreamMap string) []string {
	var names []string
	for _, entry := range strings.Fields(varStreamMap) {
		for _, kv := range strings.Split(entry, ",") {
			if v, ok := strings.CutPrefix(kv, "name:"); ok {
				names = append(names, v)
			}
		}
	}
	return names
}

// WriteOutputs materializes the files a transcoder run would leave behind.
func WriteOutputs(args []string, extra ...string) error {
	if len(args) == 0 {
		return fmt.Errorf("no arguments")
	}
	playlistPattern := args[len(args)-1]
	segmentPattern, ok := Flag(args, "-hls_segment_filename")
	if !ok {
		return fmt.Errorf("missing -hls_segment_filename")
	}
	vsm, ok := Flag(args, "-var_stream_map")
	if !ok {
		return fmt.Errorf("missing -var_stream_map")
	}
	master, ok := Flag(args, "-master_pl_name")
	if !ok {
		return fmt.Errorf("missing -master_pl_name")
	}
	outDir := filepath.Dir(playlistPattern)

	var masterBody strings.Builder
	masterBody.WriteString("#EXTM3U\n")
	for _, name := range VariantNames(vsm) {
		playlist := strings.ReplaceAll(playlistPattern, "%v", name)
		segment := strings.ReplaceAll(strings.ReplaceAll(segmentPattern, "%v", name), "%03d", "000")
		body := fmt.Sprintf("#EXTM3U\n#EXT-X-KEY:METHOD=AES-128\n#EXTINF:6.0,\n%s\n#EXT-X-ENDLIST\n", filepath.Base(segment))
		if err := os.WriteFile(playlist, []byte(body), 0o644); err != nil {
			return err
		}
		if err := os.WriteFile(segment, []byte("segment "+name), 0o644); err != nil {
			return err
		}
		masterBody.WriteString(filepath.Base(playlist) + "\n")
	}
	for _, name := range extra {
		if err := os.WriteFile(filepath.Join(outDir, name), []byte("#EXTM3U\n"), 0o644); err != nil {
			return err
		}
	}
	return os.WriteFile(filepath.Join(outDir, master), []byte(masterBody.String()), 0o644)
}
