// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Genos Contributors

package tenant

import "context"

// Identity is the authenticated caller of one request.
type Identity struct {
	OrgID  string
	UserID string
}

type identityKey struct{}

// WithIdentity returns a context carrying id.
func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, identityKey{}, id)
}

// IdentityFrom returns the caller identity stored in ctx.
func IdentityFrom(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(identityKey{}).(Identity)
	return id, ok
}

// Resolver resolves the caller's organization.
type Resolver interface {
	ResolveOrg(ctx context.Context) (Identity, error)
}

// ContextResolver reads the identity installed by the HTTP identity
// middleware.
type ContextResolver struct{}

func (ContextResolver) ResolveOrg(ctx context.Context) (Identity, error) {
	id, ok := IdentityFrom(ctx)
	if !ok || id.OrgID == "" {
		return Identity{}, errUnidentified
	}
	return id, nil
}
