// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package launchparams verifies the signed launch parameters a mini-app
// host attaches to every request.
//
// The host signs the vk_-prefixed query parameters of the mini-app URL
// with the tenant's secret and appends the result as "sign". A request
// is authenticated in three steps:
//
//  1. [Canonicalize] reduces the untrusted input ([FromString] for a
//     header or URL, [FromValues] for an already parsed query) to the
//     vk_ parameters, sorted by key, and the sign value.
//  2. [Verifier.Verify] checks shape, expiry, required fields, and
//     finally the HMAC-SHA256 signature against every tenant credential
//     registered for the claimed application id.
//  3. On success it returns an [Identity]. Identity has no exported
//     fields and no constructor, so a valid one exists only as the
//     result of a verified signature.
//
// [Authenticator] composes the steps behind one call and optionally
// reports failures. Every failure is one of four [AuthenticationError]
// sentinels, checked in a fixed order: [ErrMalformed], [ErrExpired],
// [ErrMissingFields], [ErrInvalidSignature].
//
// The digest is computed over "k1=enc(v1)&k2=enc(v2)..." where enc is
// ECMAScript encodeURIComponent, base64-encoded with + and / replaced by
// - and _ and one trailing = removed. [Signature] and [SignedQuery]
// expose the same computation for tooling and tests.
package launchparams
