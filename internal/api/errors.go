// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/ManuGH/cinegate/internal/auth"
	"github.com/ManuGH/cinegate/internal/control/catalog"
	"github.com/ManuGH/cinegate/internal/control/delivery"
	"github.com/ManuGH/cinegate/internal/control/http/problem"
	"github.com/ManuGH/cinegate/internal/domain/media"
	xglog "github.com/ManuGH/cinegate/internal/log"
)

const maxBodyBytes = 1 << 20

// writeJSON writes a JSON response with the given status code
func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func badRequest(w http.ResponseWriter, r *http.Request, detail string) {
	problem.Write(w, r, http.StatusBadRequest, "request/invalid", "Bad Request", problem.CodeValidation, detail, nil)
}

// writeError maps a service error onto a problem response.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		validation *media.ValidationError
		unknown    *media.UnknownLanguageCodeError
		conflict   *media.ConflictError
		denied     *delivery.DeniedError
	)
	switch {
	case errors.As(err, &validation):
		problem.Write(w, r, http.StatusBadRequest, "video/validation", "Bad Request", problem.CodeValidation,
			validation.Error(), map[string]any{"field": validation.Field})
	case errors.As(err, &unknown):
		problem.Write(w, r, http.StatusBadRequest, "video/validation", "Bad Request", problem.CodeValidation,
			unknown.Error(), map[string]any{"field": "language"})
	case errors.As(err, &conflict):
		problem.Write(w, r, http.StatusConflict, "video/conflict", "Conflict", problem.CodeConflict, conflict.Error(), nil)
	case errors.As(err, &denied), errors.Is(err, catalog.ErrForbidden):
		writeDenied(w, r, denied)
	case errors.Is(err, media.ErrNoPlaylist):
		problem.Write(w, r, http.StatusNotFound, "video/no_playlist", "Not Found", problem.CodeNoPlaylist,
			"The video has no published playlist.", nil)
	case errors.Is(err, media.ErrNotEncrypted):
		problem.Write(w, r, http.StatusNotFound, "video/not_encrypted", "Not Found", problem.CodeNotEncrypted,
			"The video has no decrypt key.", nil)
	case errors.Is(err, media.ErrNotFound):
		problem.Write(w, r, http.StatusNotFound, "system/not_found", "Not Found", problem.CodeNotFound, err.Error(), nil)
	default:
		logger := xglog.WithComponentFromContext(r.Context(), "api")
		logger.Error().Err(err).
			Str(xglog.FieldEvent, "http.internal_error").
			Str(xglog.FieldPath, r.URL.Path).
			Msg("request failed")
		problem.Write(w, r, http.StatusInternalServerError, "system/internal", "Internal Server Error",
			problem.CodeInternal, "An unexpected error occurred.", nil)
	}
}

// writeDenied answers 401 to anonymous callers and 403 to everyone else.
func writeDenied(w http.ResponseWriter, r *http.Request, denied *delivery.DeniedError) {
	var extra map[string]any
	if denied != nil {
		extra = map[string]any{"reason": string(denied.Reason)}
	}
	if !auth.PrincipalFromContext(r.Context()).Authenticated {
		w.Header().Set("WWW-Authenticate", `Bearer realm="cinegate"`)
		problem.Write(w, r, http.StatusUnauthorized, "auth/unauthenticated", "Unauthorized", problem.CodeUnauthorized,
			"Authentication is required.", extra)
		return
	}
	problem.Write(w, r, http.StatusForbidden, "auth/forbidden", "Forbidden", problem.CodeForbidden,
		"The caller may not perform this operation.", extra)
}

func pathID(r *http.Request) (int64, error) {
	raw := chi.URLParam(r, "id")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid id %q", raw)
	}
	return id, nil
}

// decodeBody reads a strict JSON body into v.
func decodeBody(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("invalid request body: %w", err)
	}
	return nil
}
