// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package objectstore

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"
)

// Object is a stored blob with the hints it was uploaded with.
type Object struct {
	Data  []byte
	Hints Hints
}

// MemoryStore is an in-process content store for local runs and tests.
type MemoryStore struct {
	mu      sync.RWMutex
	bucket  string
	objects map[string]Object

	// Failure hooks consulted before each operation; nil means succeed.
	UploadHook func(key string) error
	PurgeHook  func(prefix string) error
}

// NewMemoryStore returns an empty store.
func NewMemoryStore(bucket string) *MemoryStore {
	if bucket == "" {
		bucket = "memory"
	}
	return &MemoryStore{bucket: bucket, objects: map[string]Object{}}
}

// Upload implements the content store contract.
func (m *MemoryStore) Upload(_ context.Context, key, localPath string, hints Hints) error {
	if m.UploadHook != nil {
		if err := m.UploadHook(key); err != nil {
			return fmt.Errorf("upload %s: %w", key, err)
		}
	}
	data, err := os.ReadFile(localPath)
	if err != nil {
		return fmt.Errorf("upload %s: %w", key, err)
	}
	m.Put(key, data, hints)
	return nil
}

// Put stores data directly.
func (m *MemoryStore) Put(key string, data []byte, hints Hints) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[key] = Object{Data: append([]byte(nil), data...), Hints: hints}
}

// DownloadTo implements the content store contract.
func (m *MemoryStore) DownloadTo(_ context.Context, key, localPath string) error {
	m.mu.RLock()
	obj, ok := m.objects[key]
	m.mu.RUnlock()
	if !ok {
		return fmt.Errorf("download %s: %w", key, ErrNotFound)
	}
	if err := os.MkdirAll(filepath.Dir(localPath), 0o755); err != nil {
		return err
	}
	return os.WriteFile(localPath, obj.Data, 0o600)
}

// DeletePrefix implements the content store contract.
func (m *MemoryStore) DeletePrefix(_ context.Context, prefix string) error {
	prefix = AsPrefix(prefix)
	if m.PurgeHook != nil {
		if err := m.PurgeHook(prefix); err != nil {
			return err
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for k := range m.objects {
		if strings.HasPrefix(k, prefix) {
			delete(m.objects, k)
		}
	}
	return nil
}

// PresignedGetURL returns a memory:// URL carrying the expiry.
func (m *MemoryStore) PresignedGetURL(_ context.Context, key string, expiry time.Duration) (string, error) {
	m.mu.RLock()
	_, ok := m.objects[key]
	m.mu.RUnlock()
	if !ok {
		return "", fmt.Errorf("presign %s: %w", key, ErrNotFound)
	}
	u := url.URL{Scheme: "memory", Host: m.bucket, Path: "/" + key}
	q := u.Query()
	q.Set("X-Expires", fmt.Sprintf("%d", int(expiry.Seconds())))
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// Get returns the object stored under key.
func (m *MemoryStore) Get(key string) (Object, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	obj, ok := m.objects[key]
	return obj, ok
}

// Keys lists stored keys under prefix in lexical order.
func (m *MemoryStore) Keys(prefix string) []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []string
	for k := range m.objects {
		if strings.HasPrefix(k, prefix) {
			out = append(out, k)
		}
	}
	sort.Strings(out)
	return out
}
