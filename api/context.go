// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package api

import (
	"context"

	"github.com/heyqbnk/mini-apps-backend-template/launchparams"
)

type identityKey struct{}

// WithIdentity returns ctx carrying identity.
func WithIdentity(ctx context.Context, identity launchparams.Identity) context.Context {
	return context.WithValue(ctx, identityKey{}, identity)
}

// IdentityFrom returns the verified caller stored by the launch
// parameter middleware. ok is false outside an authenticated request.
func IdentityFrom(ctx context.Context) (identity launchparams.Identity, ok bool) {
	identity, ok = ctx.Value(identityKey{}).(launchparams.Identity)
	return identity, ok && identity.Valid()
}
