// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
)

// CheckMode selects the SQLite integrity pragma.
type CheckMode string

const (
	// QuickCheck skips index consistency and runs in O(N).
	QuickCheck CheckMode = "quick_check"
	// FullCheck also verifies every index.
	FullCheck CheckMode = "integrity_check"
)

// IntegrityError lists the problems SQLite reported for a catalog file.
type IntegrityError struct {
	Path   string
	Issues []string
}

func (e *IntegrityError) Error() string {
	return fmt.Sprintf("sqlite: %s failed integrity check: %s", e.Path, strings.Join(e.Issues, "; "))
}

// Verify opens path read-only and runs the check. A file that does not
// exist yet passes.
func Verify(ctx context.Context, path string, mode CheckMode) error {
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if mode != FullCheck {
		mode = QuickCheck
	}

	db, err := sql.Open("sqlite", fmt.Sprintf("file:%s?mode=ro&_pragma=busy_timeout(2000)", path))
	if err != nil {
		return fmt.Errorf("sqlite: open for verification: %w", err)
	}
	defer func() { _ = db.Close() }()

	rows, err := db.QueryContext(ctx, "PRAGMA "+string(mode)+";")
	if err != nil {
		return fmt.Errorf("sqlite: %s: %w", mode, err)
	}
	defer func() { _ = rows.Close() }()

	var issues []string
	for rows.Next() {
		var line string
		if err := rows.Scan(&line); err != nil {
			return fmt.Errorf("sqlite: scan %s row: %w", mode, err)
		}
		if !strings.EqualFold(line, "ok") {
			issues = append(issues, line)
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("sqlite: %s rows: %w", mode, err)
	}
	if len(issues) > 0 {
		return &IntegrityError{Path: path, Issues: issues}
	}
	return nil
}
