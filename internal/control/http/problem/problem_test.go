// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package problem

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ManuGH/cinegate/internal/log"
)

func TestWrite(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/api/v1/videos/7/playback", nil)
	req = req.WithContext(log.ContextWithRequestID(req.Context(), "req-1"))
	rec := httptest.NewRecorder()

	Write(rec, req, http.StatusNotFound, "video/no_playlist", "Not Found", CodeNoPlaylist, "video 7 has no published playlist",
		map[string]any{"video_id": 7, "status": 200})

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, ContentType, rec.Header().Get("Content-Type"))
	assert.Equal(t, "req-1", rec.Header().Get(HeaderRequestID))

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "video/no_playlist", body["type"])
	assert.Equal(t, "Not Found", body["title"])
	assert.Equal(t, float64(404), body["status"], "reserved keys cannot be overridden")
	assert.Equal(t, CodeNoPlaylist, body["code"])
	assert.Equal(t, "/api/v1/videos/7/playback", body["instance"])
	assert.Equal(t, "req-1", body[JSONKeyRequestID])
	assert.Equal(t, float64(7), body["video_id"])
}

func TestWrite_FallsBackToResponseHeader(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/x", nil)
	rec := httptest.NewRecorder()
	rec.Header().Set(HeaderRequestID, "hdr-1")

	Write(rec, req, http.StatusConflict, "video/conflict", "Conflict", CodeConflict, "", nil)

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "hdr-1", body[JSONKeyRequestID])
	_, hasDetail := body["detail"]
	assert.False(t, hasDetail)
}
