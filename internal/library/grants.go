// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package library

import (
	"context"
	"fmt"

	"github.com/ManuGH/cinegate/internal/control/authz"
)

// AddGrant stores a capability for principalID. Adding an existing grant
// is a no-op.
func (c conn) AddGrant(ctx context.Context, principalID string, g authz.Grant) error {
	if principalID == "" {
		return fmt.Errorf("library: grant without principal")
	}
	if !g.Capability.Valid() {
		return fmt.Errorf("library: unknown capability %q", g.Capability)
	}
	kind, id := "", int64(0)
	if g.Scope != nil {
		kind, id = string(g.Scope.Kind), g.Scope.ID
	}
	_, err := c.exec(ctx, `
		INSERT INTO grants (principal_id, capability, object_kind, object_id)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (principal_id, capability, object_kind, object_id) DO NOTHING`,
		principalID, string(g.Capability), kind, id,
	)
	if err != nil {
		return fmt.Errorf("library: insert grant: %w", err)
	}
	return nil
}

// LoadGrants snapshots every grant held by principalID.
func (c conn) LoadGrants(ctx context.Context, principalID string) (authz.GrantSet, error) {
	rows, err := c.query(ctx, `
		SELECT capability, object_kind, object_id
		FROM grants
		WHERE principal_id = ?`, principalID)
	if err != nil {
		return authz.GrantSet{}, fmt.Errorf("library: load grants: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var grants []authz.Grant
	for rows.Next() {
		var capability, kind string
		var id int64
		if err := rows.Scan(&capability, &kind, &id); err != nil {
			return authz.GrantSet{}, err
		}
		g := authz.Grant{Capability: authz.Capability(capability)}
		if kind != "" {
			g.Scope = &authz.ObjectRef{Kind: authz.ObjectKind(kind), ID: id}
		}
		grants = append(grants, g)
	}
	if err := rows.Err(); err != nil {
		return authz.GrantSet{}, err
	}
	return authz.NewGrantSet(principalID, grants), nil
}
