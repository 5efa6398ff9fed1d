// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package secret holds key material outside the Go heap.
//
// A [Buffer] is an anonymous mmap region that is locked into RAM
// (mlock), excluded from core dumps (MADV_DONTDUMP), and zeroed and
// unmapped on Close. The garbage collector never sees the region, so it
// cannot leave copies behind when it moves objects.
//
// The server uses buffers for the age identity that unseals the tenant
// credential file and for the decrypted credential list while it is
// being parsed; the launch-params CLI uses them for secrets typed at
// the terminal.
//
//   - [New] allocates a zero-filled buffer
//   - [NewFromBytes] copies into a buffer and zeros the source
//   - [ReadFromPath] and [ReadFrom] load a trimmed secret from a file,
//     stdin, or any reader
//
// Depends on golang.org/x/sys/unix. No internal dependencies.
package secret
