// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package auth resolves the identity of a caller.
package auth

import "context"

// Principal represents the identity of a caller. The zero value is an
// anonymous caller.
type Principal struct {
	// ID is the stable, unique identifier for the user. Empty for anonymous callers.
	ID string

	// Authenticated is true once a token has been verified.
	Authenticated bool

	// Staff callers may see drafts and manage the catalog.
	Staff bool

	// Superuser callers bypass every check.
	Superuser bool
}

// Anonymous is the principal for requests without credentials.
var Anonymous = Principal{}

// Elevated reports whether the principal has staff or superuser standing.
func (p Principal) Elevated() bool {
	return p.Staff || p.Superuser
}

type contextKey struct{}

// WithPrincipal adds the principal to the context.
func WithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, contextKey{}, p)
}

// PrincipalFromContext retrieves the principal from the context, or
// Anonymous when none was attached.
func PrincipalFromContext(ctx context.Context) Principal {
	if p, ok := ctx.Value(contextKey{}).(Principal); ok {
		return p
	}
	return Anonymous
}
