package media

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when a referenced record does not exist.
	ErrNotFound = errors.New("not found")
	// ErrBindingIntegrity marks a video whose ownership chain cannot be resolved.
	ErrBindingIntegrity = errors.New("video binding cannot be resolved")
	// ErrNotEncrypted is returned for key requests on videos without a key.
	ErrNotEncrypted = errors.New("video is not encrypted")
	// ErrNoPlaylist is returned for playback requests on unpublished videos.
	ErrNoPlaylist = errors.New("video has no published playlist")
)

// ValidationError rejects a request before any work begins.
type ValidationError struct {
	Field string
	Msg   string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "validation failed: " + e.Msg
	}
	return fmt.Sprintf("validation failed: %s: %s", e.Field, e.Msg)
}

// ConflictError rejects a request that clashes with current state.
type ConflictError struct {
	Msg string
}

func (e *ConflictError) Error() string { return "conflict: " + e.Msg }

// UnknownLanguageCodeError reports a produced audio playlist whose language
// matches no registered Language.
type UnknownLanguageCodeError struct {
	Code string
}

func (e *UnknownLanguageCodeError) Error() string {
	return fmt.Sprintf("unknown language code %q", e.Code)
}

// IsValidation reports whether err is or wraps a ValidationError.
func IsValidation(err error) bool {
	var v *ValidationError
	return errors.As(err, &v)
}

// IsConflict reports whether err is or wraps a ConflictError.
func IsConflict(err error) bool {
	var c *ConflictError
	return errors.As(err, &c)
}
