// Package buildlock serializes rebuild triggers for the same video across
// replicas.
package buildlock

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ErrHeld is returned when another holder owns the lock.
var ErrHeld = errors.New("buildlock: lock held")

// DefaultTTL bounds how long a crashed holder blocks new triggers.
const DefaultTTL = 30 * time.Second

// Lease is an acquired lock.
type Lease interface {
	Release(ctx context.Context) error
}

// Locker acquires per-video locks.
type Locker interface {
	Acquire(ctx context.Context, videoID int64) (Lease, error)
}

// Key is the lock name of a video.
func Key(videoID int64) string {
	return "cinegate:rebuild:" + strconv.FormatInt(videoID, 10)
}

type memoryEntry struct {
	token   string
	expires time.Time
}

// MemoryLocker is the single-process fallback.
type MemoryLocker struct {
	ttl time.Duration
	now func() time.Time

	mu    sync.Mutex
	locks map[string]memoryEntry
}

// NewMemoryLocker creates a locker whose leases expire after ttl.
func NewMemoryLocker(ttl time.Duration) *MemoryLocker {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &MemoryLocker{ttl: ttl, now: time.Now, locks: make(map[string]memoryEntry)}
}

// Acquire implements Locker.
func (m *MemoryLocker) Acquire(_ context.Context, videoID int64) (Lease, error) {
	key := Key(videoID)
	now := m.now()

	m.mu.Lock()
	defer m.mu.Unlock()
	if e, ok := m.locks[key]; ok && now.Before(e.expires) {
		return nil, ErrHeld
	}
	token := uuid.NewString()
	m.locks[key] = memoryEntry{token: token, expires: now.Add(m.ttl)}
	return &memoryLease{owner: m, key: key, token: token}, nil
}

type memoryLease struct {
	owner *MemoryLocker
	key   string
	token string
}

func (l *memoryLease) Release(context.Context) error {
	l.owner.mu.Lock()
	defer l.owner.mu.Unlock()
	if e, ok := l.owner.locks[l.key]; ok && e.token == l.token {
		delete(l.owner.locks, l.key)
	}
	return nil
}
