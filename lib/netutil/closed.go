// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package netutil

import (
	"errors"
	"io"
	"net"
	"syscall"
)

var closeErrors = []error{
	io.EOF,
	io.ErrUnexpectedEOF,
	io.ErrClosedPipe,
	net.ErrClosed,
	syscall.EPIPE,
	syscall.ECONNRESET,
}

// IsExpectedCloseError reports whether err only says the other side
// went away. A worker killed mid-frame shows up at the coordinator as
// EPIPE, ECONNRESET or a truncated item rather than a clean EOF, and a
// browser closing its tab does the same to a WebSocket session.
func IsExpectedCloseError(err error) bool {
	if err == nil {
		return false
	}
	for _, target := range closeErrors {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
