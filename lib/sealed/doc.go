// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package sealed keeps tenant credential lists encrypted at rest with
// filippo.io/age.
//
// A sealed credentials file is the base64 encoding of an age x25519
// ciphertext whose plaintext is an "appId:secret,..." list. The server
// opens it with [OpenFile] at startup using an identity file; the
// launch-params CLI produces it with [Seal]. Identities and plaintext
// never touch the Go heap for longer than an API boundary requires:
// both live in [secret.Buffer] values.
package sealed
