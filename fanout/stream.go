// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package fanout

import (
	"context"
	"fmt"
	"net"
	"os"
	"sync"
	"time"

	"golang.org/x/sys/unix"

	"github.com/heyqbnk/mini-apps-backend-template/lib/codec"
)

// writeTimeout bounds a single frame write. A worker that stops reading
// for this long is treated as gone.
const writeTimeout = 5 * time.Second

// StreamConn is a Conn over a byte stream: each Message is one CBOR
// value on the wire.
type StreamConn struct {
	conn net.Conn

	sendMu  sync.Mutex
	encoder *codec.Encoder
	decoder *codec.Decoder
}

// NewStreamConn takes ownership of conn.
func NewStreamConn(conn net.Conn) *StreamConn {
	return &StreamConn{
		conn:    conn,
		encoder: codec.NewEncoder(conn),
		decoder: codec.NewDecoder(conn),
	}
}

// FileConn wraps an inherited socket descriptor, such as the relay
// socket a worker finds at fd 3. file is closed; the StreamConn holds
// its own duplicate.
func FileConn(file *os.File) (*StreamConn, error) {
	defer file.Close()
	conn, err := net.FileConn(file)
	if err != nil {
		return nil, fmt.Errorf("fanout: wrapping %s: %w", file.Name(), err)
	}
	return NewStreamConn(conn), nil
}

// Send writes one frame. The write deadline is the earlier of ctx's
// deadline and writeTimeout from now.
func (s *StreamConn) Send(ctx context.Context, message Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.sendMu.Lock()
	defer s.sendMu.Unlock()

	deadline := time.Now().Add(writeTimeout)
	if ctxDeadline, ok := ctx.Deadline(); ok && ctxDeadline.Before(deadline) {
		deadline = ctxDeadline
	}
	s.conn.SetWriteDeadline(deadline)
	if err := s.encoder.Encode(message); err != nil {
		return fmt.Errorf("fanout stream send: %w", err)
	}
	return nil
}

// Receive blocks until a frame arrives or the stream ends.
func (s *StreamConn) Receive() (Message, error) {
	var message Message
	if err := s.decoder.Decode(&message); err != nil {
		return Message{}, fmt.Errorf("fanout stream receive: %w", err)
	}
	return message, nil
}

func (s *StreamConn) Close() error {
	return s.conn.Close()
}

// SocketPair returns the two ends of a connected Unix stream socket.
// Both are close-on-exec; exec.Cmd.ExtraFiles clears the flag on the
// copy it passes to the child.
func SocketPair() (coordinatorEnd, workerEnd *os.File, err error) {
	fds, err := unix.Socketpair(unix.AF_UNIX, unix.SOCK_STREAM|unix.SOCK_CLOEXEC, 0)
	if err != nil {
		return nil, nil, fmt.Errorf("fanout: socketpair: %w", err)
	}
	return os.NewFile(uintptr(fds[0]), "fanout-coordinator"),
		os.NewFile(uintptr(fds[1]), "fanout-worker"),
		nil
}
