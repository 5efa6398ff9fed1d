// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package secret

import (
	"bytes"
	"fmt"
	"io"
	"os"
)

// MaxReadSize bounds how much ReadFrom accepts. Age identities and
// credential lists are a few hundred bytes.
const MaxReadSize = 64 * 1024

// ReadFromPath reads a secret from a file, or from stdin if path is
// "-". See ReadFrom for trimming rules.
func ReadFromPath(path string) (*Buffer, error) {
	if path == "-" {
		return ReadFrom(os.Stdin)
	}
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()
	return ReadFrom(file)
}

// ReadFrom reads up to MaxReadSize bytes from r, trims leading and
// trailing whitespace, and moves the result into a Buffer. Every heap
// copy is zeroed before returning. Fails if nothing remains after
// trimming.
func ReadFrom(r io.Reader) (*Buffer, error) {
	data, err := io.ReadAll(io.LimitReader(r, MaxReadSize+1))
	if err != nil {
		Zero(data)
		return nil, fmt.Errorf("reading secret: %w", err)
	}
	defer Zero(data)

	if len(data) > MaxReadSize {
		return nil, fmt.Errorf("secret exceeds %d bytes", MaxReadSize)
	}
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, fmt.Errorf("secret is empty")
	}
	return NewFromBytes(trimmed)
}
