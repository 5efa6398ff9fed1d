// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package fanout

import (
	"context"
	"errors"
	"io"
	"net"
	"testing"
	"time"
)

func TestPipeDrainsBeforeEOF(t *testing.T) {
	a, b := Pipe()
	for _, trigger := range []string{"first", "second"} {
		if err := a.Send(context.Background(), Message{Trigger: trigger}); err != nil {
			t.Fatalf("Send %s: %v", trigger, err)
		}
	}
	a.Close()

	for _, want := range []string{"first", "second"} {
		message, err := b.Receive()
		if err != nil {
			t.Fatalf("Receive: %v", err)
		}
		if message.Trigger != want {
			t.Errorf("trigger = %q, want %q", message.Trigger, want)
		}
	}
	if _, err := b.Receive(); !errors.Is(err, io.EOF) {
		t.Errorf("Receive after drain = %v, want io.EOF", err)
	}
}

func TestPipeSendErrors(t *testing.T) {
	a, b := Pipe()
	b.Close()
	if err := a.Send(context.Background(), Message{Trigger: "evt"}); !errors.Is(err, io.ErrClosedPipe) {
		t.Errorf("Send to closed peer = %v, want io.ErrClosedPipe", err)
	}
	a.Close()
	if err := a.Send(context.Background(), Message{Trigger: "evt"}); !errors.Is(err, net.ErrClosed) {
		t.Errorf("Send on closed end = %v, want net.ErrClosed", err)
	}
	if _, err := a.Receive(); !errors.Is(err, net.ErrClosed) {
		t.Errorf("Receive on closed end = %v, want net.ErrClosed", err)
	}
}

func TestPipeSendBlocksWhenFull(t *testing.T) {
	a, _ := Pipe()
	for range PipeBuffer {
		if err := a.Send(context.Background(), Message{Trigger: "evt"}); err != nil {
			t.Fatalf("Send: %v", err)
		}
	}
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := a.Send(ctx, Message{Trigger: "evt"}); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Send on full pipe = %v, want context.DeadlineExceeded", err)
	}
}
