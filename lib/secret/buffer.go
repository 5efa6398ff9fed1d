// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package secret

import (
	"errors"
	"fmt"
	"sync"

	"golang.org/x/sys/unix"
)

// Buffer is a secret held in an anonymous mapping that is locked in RAM
// and excluded from core dumps. Do not copy a Buffer. Bytes and String
// panic once it is closed.
type Buffer struct {
	mu     sync.Mutex
	region []byte
	closed bool
}

// New maps size zeroed bytes. Close releases them.
func New(size int) (*Buffer, error) {
	if size <= 0 {
		return nil, fmt.Errorf("secret: size %d is not positive", size)
	}
	region, err := lockedRegion(size)
	if err != nil {
		return nil, err
	}
	return &Buffer{region: region}, nil
}

func lockedRegion(size int) ([]byte, error) {
	region, err := unix.Mmap(-1, 0, size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_PRIVATE|unix.MAP_ANONYMOUS)
	if err != nil {
		return nil, fmt.Errorf("secret: mmap: %w", err)
	}
	if err := unix.Mlock(region); err != nil {
		_ = unix.Munmap(region)
		return nil, fmt.Errorf("secret: mlock: %w", err)
	}
	if err := unix.Madvise(region, unix.MADV_DONTDUMP); err != nil {
		_ = unix.Munlock(region)
		_ = unix.Munmap(region)
		return nil, fmt.Errorf("secret: madvise: %w", err)
	}
	return region, nil
}

// NewFromBytes moves source into a new Buffer; source is zeroed.
func NewFromBytes(source []byte) (*Buffer, error) {
	if len(source) == 0 {
		return nil, errors.New("secret: empty source")
	}
	buffer, err := New(len(source))
	if err != nil {
		Zero(source)
		return nil, err
	}
	copy(buffer.region, source)
	Zero(source)
	return buffer, nil
}

// Bytes aliases the locked region. The slice is invalid after Close.
func (b *Buffer) Bytes() []byte {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.mustBeOpen()
	return b.region
}

// String copies the secret onto the heap, for APIs that only take a
// string such as age.ParseX25519Identity or tenant.ParseList.
func (b *Buffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.mustBeOpen()
	return string(b.region)
}

// Len is 0 after Close.
func (b *Buffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.region)
}

// Close zeroes and unmaps the region. Calling it again is a no-op.
func (b *Buffer) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil
	}
	b.closed = true
	region := b.region
	b.region = nil

	Zero(region)
	var errs []error
	if err := unix.Munlock(region); err != nil {
		errs = append(errs, fmt.Errorf("secret: munlock: %w", err))
	}
	if err := unix.Munmap(region); err != nil {
		errs = append(errs, fmt.Errorf("secret: munmap: %w", err))
	}
	return errors.Join(errs...)
}

func (b *Buffer) mustBeOpen() {
	if b.closed {
		panic("secret: use of closed Buffer")
	}
}

// Zero overwrites data in place.
func Zero(data []byte) { clear(data) }
