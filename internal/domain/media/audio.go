package media

import (
	"strings"

	"golang.org/x/text/language"
)

// UndeterminedLanguage is used for audio sources without a language.
const UndeterminedLanguage = "und"

// NormalizeLanguageCode returns the canonical BCP 47 form of code, or "und"
// when code is empty or unparseable.
func NormalizeLanguageCode(code string) string {
	code = strings.TrimSpace(code)
	if code == "" {
		return UndeterminedLanguage
	}
	tag, err := language.Parse(code)
	if err != nil {
		return UndeterminedLanguage
	}
	return tag.String()
}

// ValidateAudioTrack checks candidate against the tracks already attached to
// the same video. candidate.ID is ignored when comparing against itself.
func ValidateAudioTrack(existing []AudioTrack, candidate AudioTrack) error {
	if candidate.VideoID == 0 {
		return &ValidationError{Field: "video", Msg: "audio track must belong to a video"}
	}
	if candidate.LanguageID == 0 {
		return &ValidationError{Field: "language", Msg: "audio track must have a language"}
	}
	for _, t := range existing {
		if t.ID == candidate.ID && candidate.ID != 0 {
			continue
		}
		if t.VideoID != candidate.VideoID {
			continue
		}
		if t.LanguageID == candidate.LanguageID {
			return &ValidationError{Field: "language", Msg: "video already has an audio track for this language"}
		}
		if candidate.IsDefault && t.IsDefault {
			return &ValidationError{Field: "is_default", Msg: "video already has a default audio track"}
		}
	}
	return nil
}

// HasDefault reports whether any track is marked default.
func HasDefault(tracks []AudioTrack) bool {
	for _, t := range tracks {
		if t.IsDefault {
			return true
		}
	}
	return false
}
