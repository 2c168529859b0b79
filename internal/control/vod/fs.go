// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package vod

import "os"

// FS abstracts the scratch filesystem of a run.
type FS interface {
	// MkdirTemp creates a fresh directory under dir ("" means os.TempDir).
	MkdirTemp(dir, pattern string) (string, error)
	// MkdirAll creates a directory and any necessary parents.
	MkdirAll(path string, perm os.FileMode) error
	// ReadDir lists a directory sorted by name.
	ReadDir(name string) ([]os.DirEntry, error)
	// RemoveAll removes path and any children it contains.
	RemoveAll(path string) error
}

// RealFS uses actual os operations.
type RealFS struct{}

func (RealFS) MkdirTemp(dir, pattern string) (string, error) {
	return os.MkdirTemp(dir, pattern)
}

func (RealFS) MkdirAll(path string, perm os.FileMode) error {
	return os.MkdirAll(path, perm)
}

func (RealFS) ReadDir(name string) ([]os.DirEntry, error) {
	return os.ReadDir(name)
}

func (RealFS) RemoveAll(path string) error {
	return os.RemoveAll(path)
}
