// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/ManuGH/cinegate/internal/auth"
	"github.com/ManuGH/cinegate/internal/control/catalog"
	"github.com/ManuGH/cinegate/internal/control/http/problem"
	"github.com/ManuGH/cinegate/internal/domain/media"
	"github.com/ManuGH/cinegate/internal/library"
)

type videoRequest struct {
	Visibility       media.Visibility `json:"visibility"`
	Role             media.Role       `json:"role"`
	SourceKey        string           `json:"source_key"`
	OriginalLanguage string           `json:"original_language,omitempty"`
}

type videoPatchRequest struct {
	Visibility       *media.Visibility `json:"visibility,omitempty"`
	Role             *media.Role       `json:"role,omitempty"`
	SourceKey        *string           `json:"source_key,omitempty"`
	OriginalLanguage *string           `json:"original_language,omitempty"`
}

type videoResponse struct {
	ID               int64            `json:"id"`
	Status           media.Status     `json:"status"`
	Visibility       media.Visibility `json:"visibility"`
	Role             media.Role       `json:"role"`
	SourceKey        string           `json:"source_key"`
	OriginalLanguage string           `json:"original_language,omitempty"`
	Published        bool             `json:"published"`
	Encrypted        bool             `json:"encrypted"`
	RebuildNeeded    bool             `json:"rebuild_needed"`
}

func toVideoResponse(v media.VideoAsset) videoResponse {
	return videoResponse{
		ID:               v.ID,
		Status:           v.Status,
		Visibility:       v.Visibility,
		Role:             v.Role,
		SourceKey:        v.SourceKey,
		OriginalLanguage: v.OriginalLanguage,
		Published:        v.Published(),
		Encrypted:        v.Encrypted(),
		RebuildNeeded:    v.RebuildNeeded,
	}
}

type audioTrackRequest struct {
	Language  string `json:"language"`
	IsDefault bool   `json:"is_default"`
	SourceKey string `json:"source_key,omitempty"`
}

type audioTrackPatchRequest struct {
	Language  *string `json:"language,omitempty"`
	IsDefault *bool   `json:"is_default,omitempty"`
	SourceKey *string `json:"source_key,omitempty"`
}

type audioTrackResponse struct {
	ID        int64  `json:"id"`
	VideoID   int64  `json:"video_id"`
	Language  string `json:"language"`
	IsDefault bool   `json:"is_default"`
	SourceKey string `json:"source_key,omitempty"`
}

func toAudioTrackResponse(t media.AudioTrack) audioTrackResponse {
	return audioTrackResponse{
		ID:        t.ID,
		VideoID:   t.VideoID,
		Language:  t.LanguageCode,
		IsDefault: t.IsDefault,
		SourceKey: t.SourceKey,
	}
}

var toggleKinds = map[string]library.ToggleKind{
	"titles":   library.ToggleTitle,
	"seasons":  library.ToggleSeason,
	"episodes": library.ToggleEpisode,
}

func principal(r *http.Request) auth.Principal {
	return auth.PrincipalFromContext(r.Context())
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	for _, h := range s.health {
		if err := h.Ping(ctx); err != nil {
			problem.Write(w, r, http.StatusServiceUnavailable, "system/unavailable", "Service Unavailable",
				problem.CodeUnavailable, err.Error(), nil)
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleCreateVideo(w http.ResponseWriter, r *http.Request) {
	var req videoRequest
	if err := decodeBody(w, r, &req); err != nil {
		badRequest(w, r, err.Error())
		return
	}
	v, err := s.catalog.CreateVideo(r.Context(), principal(r), catalog.VideoInput{
		Visibility:       req.Visibility,
		Role:             req.Role,
		SourceKey:        req.SourceKey,
		OriginalLanguage: req.OriginalLanguage,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toVideoResponse(v))
}

func (s *Server) handleUpdateVideo(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		badRequest(w, r, err.Error())
		return
	}
	var req videoPatchRequest
	if err := decodeBody(w, r, &req); err != nil {
		badRequest(w, r, err.Error())
		return
	}
	v, err := s.catalog.UpdateVideo(r.Context(), principal(r), id, library.VideoPatch{
		Visibility:       req.Visibility,
		Role:             req.Role,
		SourceKey:        req.SourceKey,
		OriginalLanguage: req.OriginalLanguage,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toVideoResponse(v))
}

func (s *Server) handleDeleteVideo(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		badRequest(w, r, err.Error())
		return
	}
	if err := s.catalog.DeleteVideo(r.Context(), principal(r), id); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handlePlayback(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		badRequest(w, r, err.Error())
		return
	}
	pb, err := s.delivery.Playback(r.Context(), principal(r), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	w.Header().Set("Cache-Control", "private, no-store")
	writeJSON(w, http.StatusOK, pb)
}

// handleKey redirects to a short-lived presigned URL of the decrypt key.
func (s *Server) handleKey(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		badRequest(w, r, err.Error())
		return
	}
	url, err := s.delivery.KeyURL(r.Context(), principal(r), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	w.Header().Set("Cache-Control", "no-store")
	http.Redirect(w, r, url, http.StatusFound)
}

func (s *Server) handleRebuild(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		badRequest(w, r, err.Error())
		return
	}
	if err := s.catalog.RequestRebuild(r.Context(), principal(r), id); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]media.Status{"status": media.StatusProcessing})
}

func (s *Server) handleCreateAudioTrack(w http.ResponseWriter, r *http.Request) {
	videoID, err := pathID(r)
	if err != nil {
		badRequest(w, r, err.Error())
		return
	}
	var req audioTrackRequest
	if err := decodeBody(w, r, &req); err != nil {
		badRequest(w, r, err.Error())
		return
	}
	t, err := s.catalog.CreateAudioTrack(r.Context(), principal(r), videoID, catalog.AudioTrackInput{
		LanguageCode: req.Language,
		IsDefault:    req.IsDefault,
		SourceKey:    req.SourceKey,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toAudioTrackResponse(t))
}

func (s *Server) handleUpdateAudioTrack(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		badRequest(w, r, err.Error())
		return
	}
	var req audioTrackPatchRequest
	if err := decodeBody(w, r, &req); err != nil {
		badRequest(w, r, err.Error())
		return
	}
	t, err := s.catalog.UpdateAudioTrack(r.Context(), principal(r), id, catalog.AudioTrackPatch{
		LanguageCode: req.Language,
		IsDefault:    req.IsDefault,
		SourceKey:    req.SourceKey,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toAudioTrackResponse(t))
}

func (s *Server) handleWatch(enable bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		kind, ok := toggleKinds[chi.URLParam(r, "kind")]
		if !ok {
			problem.Write(w, r, http.StatusNotFound, "system/not_found", "Not Found", problem.CodeNotFound,
				"unknown resource kind", nil)
			return
		}
		id, err := pathID(r)
		if err != nil {
			badRequest(w, r, err.Error())
			return
		}
		if enable {
			err = s.catalog.EnableWatch(r.Context(), principal(r), kind, id)
		} else {
			err = s.catalog.DisableWatch(r.Context(), principal(r), kind, id)
		}
		if err != nil {
			writeError(w, r, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}
