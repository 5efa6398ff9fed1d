// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package netutil holds small I/O helpers shared by the HTTP API and the
// process relay.
//
// [DecodeBody] bounds JSON request body reads at [MaxBodySize].
// [IsExpectedCloseError] classifies the errors a relay or WebSocket
// connection produces when its peer goes away, so callers can log them
// at debug instead of error.
package netutil
