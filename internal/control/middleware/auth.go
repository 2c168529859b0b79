// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package middleware

import (
	"net/http"

	"github.com/ManuGH/cinegate/internal/auth"
	"github.com/ManuGH/cinegate/internal/control/http/problem"
	"github.com/ManuGH/cinegate/internal/log"
)

// TokenVerifier validates a raw bearer token.
type TokenVerifier interface {
	Verify(raw string) (auth.Principal, error)
}

// Authenticate attaches the caller principal to the request context.
// Requests without a token continue as anonymous; a token that fails
// verification is rejected with 401.
func Authenticate(v TokenVerifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw := auth.ExtractToken(r)
			if raw == "" {
				next.ServeHTTP(w, r.WithContext(auth.WithPrincipal(r.Context(), auth.Anonymous)))
				return
			}
			p, err := v.Verify(raw)
			if err != nil {
				logger := log.WithComponentFromContext(r.Context(), "auth")
				logger.Debug().Err(err).Msg("token rejected")
				w.Header().Set("WWW-Authenticate", `Bearer realm="cinegate", error="invalid_token"`)
				problem.Write(w, r, http.StatusUnauthorized, "auth/invalid_token", "Unauthorized",
					problem.CodeUnauthorized, "The bearer token is malformed, expired or not signed by this service.", nil)
				return
			}
			next.ServeHTTP(w, r.WithContext(auth.WithPrincipal(r.Context(), p)))
		})
	}
}
