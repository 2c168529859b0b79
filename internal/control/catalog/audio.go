package catalog

import (
	"context"
	"errors"

	"github.com/ManuGH/cinegate/internal/auth"
	"github.com/ManuGH/cinegate/internal/domain/media"
	"github.com/ManuGH/cinegate/internal/library"
)

// AudioTrackInput describes a new audio track.
type AudioTrackInput struct {
	LanguageCode string
	IsDefault    bool
	SourceKey    string
}

// AudioTrackPatch changes an existing audio track.
type AudioTrackPatch struct {
	LanguageCode *string
	IsDefault    *bool
	SourceKey    *string
}

func (s *Service) languageID(ctx context.Context, tx *library.Tx, code string) (int64, error) {
	lang, err := tx.LanguageByCode(ctx, code)
	var unknown *media.UnknownLanguageCodeError
	if errors.As(err, &unknown) {
		return 0, &media.ValidationError{Field: "language", Msg: unknown.Error()}
	}
	if err != nil {
		return 0, err
	}
	return lang.ID, nil
}

// markChanged flags a published video for rebuild.
func markChanged(ctx context.Context, tx *library.Tx, videoID int64) error {
	v, err := tx.GetVideo(ctx, videoID)
	if err != nil {
		return err
	}
	if !v.Published() {
		return nil
	}
	return tx.MarkRebuildNeeded(ctx, videoID)
}

// CreateAudioTrack attaches an audio track to a video.
func (s *Service) CreateAudioTrack(ctx context.Context, p auth.Principal, videoID int64, in AudioTrackInput) (media.AudioTrack, error) {
	if err := requireStaff("CreateAudioTrack", p); err != nil {
		return media.AudioTrack{}, err
	}
	var out media.AudioTrack
	err := s.store.WithTx(ctx, func(tx *library.Tx) error {
		if _, err := tx.GetVideo(ctx, videoID); err != nil {
			return err
		}
		langID, err := s.languageID(ctx, tx, in.LanguageCode)
		if err != nil {
			return err
		}
		out, err = tx.SaveAudioTrack(ctx, media.AudioTrack{
			VideoID:    videoID,
			LanguageID: langID,
			IsDefault:  in.IsDefault,
			SourceKey:  in.SourceKey,
		})
		if err != nil {
			return err
		}
		return markChanged(ctx, tx, videoID)
	})
	return out, err
}

// UpdateAudioTrack applies patch to track id.
func (s *Service) UpdateAudioTrack(ctx context.Context, p auth.Principal, id int64, patch AudioTrackPatch) (media.AudioTrack, error) {
	if err := requireStaff("UpdateAudioTrack", p); err != nil {
		return media.AudioTrack{}, err
	}
	var out media.AudioTrack
	err := s.store.WithTx(ctx, func(tx *library.Tx) error {
		t, err := tx.GetAudioTrack(ctx, id)
		if err != nil {
			return err
		}
		if patch.LanguageCode != nil {
			if t.LanguageID, err = s.languageID(ctx, tx, *patch.LanguageCode); err != nil {
				return err
			}
		}
		if patch.IsDefault != nil {
			t.IsDefault = *patch.IsDefault
		}
		if patch.SourceKey != nil {
			t.SourceKey = *patch.SourceKey
		}
		if out, err = tx.SaveAudioTrack(ctx, t); err != nil {
			return err
		}
		return markChanged(ctx, tx, t.VideoID)
	})
	return out, err
}
