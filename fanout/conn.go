// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package fanout

import (
	"context"
	"fmt"
	"io"
	"net"
	"sync"
)

// Conn is a message-oriented, bidirectional link between a worker and
// the coordinator. Send is safe for concurrent use; Receive is called
// from one goroutine at a time. Close unblocks both.
type Conn interface {
	Send(ctx context.Context, message Message) error
	Receive() (Message, error)
	Close() error
}

// PipeBuffer is how many messages a Pipe end holds before Send blocks,
// standing in for a socket buffer.
const PipeBuffer = 64

// Pipe returns two connected in-memory Conns. Receive returns io.EOF
// once the other end is closed and everything it sent has been read;
// operations on a closed end fail with net.ErrClosed.
func Pipe() (Conn, Conn) {
	aToB := make(chan Message, PipeBuffer)
	bToA := make(chan Message, PipeBuffer)
	a := &pipeEnd{inbound: bToA, outbound: aToB, closed: make(chan struct{})}
	b := &pipeEnd{inbound: aToB, outbound: bToA, closed: make(chan struct{})}
	a.peer, b.peer = b, a
	return a, b
}

type pipeEnd struct {
	inbound  <-chan Message
	outbound chan<- Message
	peer     *pipeEnd

	closeOnce sync.Once
	closed    chan struct{}
}

func (p *pipeEnd) Send(ctx context.Context, message Message) error {
	if err := p.sendable(); err != nil {
		return err
	}
	select {
	case p.outbound <- message:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-p.closed:
	case <-p.peer.closed:
	}
	return p.sendable()
}

// sendable checks the local end before the peer so a closed end always
// reports net.ErrClosed.
func (p *pipeEnd) sendable() error {
	if isClosed(p.closed) {
		return fmt.Errorf("fanout pipe send: %w", net.ErrClosed)
	}
	if isClosed(p.peer.closed) {
		return fmt.Errorf("fanout pipe send: %w", io.ErrClosedPipe)
	}
	return nil
}

func (p *pipeEnd) Receive() (Message, error) {
	if isClosed(p.closed) {
		return Message{}, fmt.Errorf("fanout pipe receive: %w", net.ErrClosed)
	}
	select {
	case message := <-p.inbound:
		return message, nil
	case <-p.closed:
		return Message{}, fmt.Errorf("fanout pipe receive: %w", net.ErrClosed)
	case <-p.peer.closed:
		// Drain what the peer sent before it closed.
		select {
		case message := <-p.inbound:
			return message, nil
		default:
			return Message{}, io.EOF
		}
	}
}

func isClosed(ch <-chan struct{}) bool {
	select {
	case <-ch:
		return true
	default:
		return false
	}
}

func (p *pipeEnd) Close() error {
	p.closeOnce.Do(func() { close(p.closed) })
	return nil
}
