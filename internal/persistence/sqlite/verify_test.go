// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package sqlite

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpen_AppliesPragmas(t *testing.T) {
	db, err := Open(filepath.Join(t.TempDir(), "catalog.sqlite"), DefaultConfig())
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	var mode string
	require.NoError(t, db.QueryRow("PRAGMA journal_mode;").Scan(&mode))
	assert.Equal(t, "wal", mode)

	var fk int
	require.NoError(t, db.QueryRow("PRAGMA foreign_keys;").Scan(&fk))
	assert.Equal(t, 1, fk)
}

func TestVerify_HealthyDatabase(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "healthy.sqlite")
	db, err := Open(dbPath, DefaultConfig())
	require.NoError(t, err)
	_, err = db.Exec("CREATE TABLE pages (id INTEGER PRIMARY KEY, data TEXT);")
	require.NoError(t, err)
	require.NoError(t, db.Close())

	assert.NoError(t, Verify(context.Background(), dbPath, QuickCheck))
	assert.NoError(t, Verify(context.Background(), dbPath, FullCheck))
}

func TestVerify_MissingFilePasses(t *testing.T) {
	assert.NoError(t, Verify(context.Background(), filepath.Join(t.TempDir(), "absent.sqlite"), QuickCheck))
}

func TestVerify_DetectsCorruption(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "corruptible.sqlite")

	db, err := Open(dbPath, DefaultConfig())
	require.NoError(t, err)
	_, err = db.Exec("CREATE TABLE pages (id INTEGER PRIMARY KEY, data TEXT);")
	require.NoError(t, err)
	for i := 0; i < 100; i++ {
		_, _ = db.Exec("INSERT INTO pages (data) VALUES (printf('%0100d', ?));", i)
	}
	_, err = db.Exec("PRAGMA wal_checkpoint(TRUNCATE);")
	require.NoError(t, err)
	require.NoError(t, db.Close())

	f, err := os.OpenFile(dbPath, os.O_RDWR, 0o644)
	require.NoError(t, err)
	junk := bytes.Repeat([]byte{0xFF}, 100)
	_, err = f.WriteAt(junk, 4096)
	require.NoError(t, f.Close())
	require.NoError(t, err)

	err = Verify(context.Background(), dbPath, FullCheck)
	require.Error(t, err)
	var integrity *IntegrityError
	if errors.As(err, &integrity) {
		assert.NotEmpty(t, integrity.Issues)
		assert.Equal(t, dbPath, integrity.Path)
	}
	// otherwise the mangled page surfaced as a driver error
}
