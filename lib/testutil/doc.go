// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package testutil provides the channel helpers every concurrent test in
// this module uses.
//
// [RequireReceive], [RequireSend], and [RequireClosed] wrap the select
// with a time.After safety valve so individual tests never call
// time.After themselves. [RequireNoReceive] asserts that nothing
// arrives within a short window, which is how relay tests check that a
// worker did not deliver a message locally.
//
// All helpers call t.Fatalf on failure.
package testutil
