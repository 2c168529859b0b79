package ffmpeg

import (
	"strings"
	"sync"
)

// LineRing is a thread-safe ring buffer for capturing the last N lines of
// process output.
type LineRing struct {
	mu      sync.RWMutex
	lines   []string
	head    int
	size    int
	partial string
}

// NewLineRing creates a LineRing with the specified capacity.
func NewLineRing(capacity int) *LineRing {
	if capacity < 1 {
		capacity = 50
	}
	return &LineRing{
		lines: make([]string, capacity),
		size:  capacity,
	}
}

// Write implements io.Writer. Lines split across writes are joined; a
// trailing fragment without newline is kept until the next write or LastN.
func (r *LineRing) Write(p []byte) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	parts := strings.Split(r.partial+string(p), "\n")
	r.partial = parts[len(parts)-1]
	for _, line := range parts[:len(parts)-1] {
		r.push(strings.TrimRight(line, "\r"))
	}
	return len(p), nil
}

func (r *LineRing) push(line string) {
	if line == "" {
		return
	}
	r.lines[r.head] = line
	r.head = (r.head + 1) % r.size
}

// LastN returns the last n lines in chronological order, including a
// pending partial line.
func (r *LineRing) LastN(n int) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	// r.head is the next write position, so it is also the oldest entry.
	ordered := make([]string, 0, r.size+1)
	for i := 0; i < r.size; i++ {
		if l := r.lines[(r.head+i)%r.size]; l != "" {
			ordered = append(ordered, l)
		}
	}
	if r.partial != "" {
		ordered = append(ordered, r.partial)
	}
	if len(ordered) <= n {
		return ordered
	}
	return ordered[len(ordered)-n:]
}
