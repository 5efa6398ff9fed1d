// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package fanout

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/heyqbnk/mini-apps-backend-template/lib/report"
	"github.com/heyqbnk/mini-apps-backend-template/lib/testutil"
)

const (
	waitTimeout = 5 * time.Second
	quietWindow = 50 * time.Millisecond
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// startBus runs a bus until the test ends. relay may be nil.
func startBus(t *testing.T, relay Conn) *Bus {
	t.Helper()
	bus := NewBus(BusConfig{Relay: relay, Logger: discardLogger()})
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- bus.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		testutil.RequireReceive(t, done, waitTimeout, "bus Run returns")
	})
	return bus
}

// collect subscribes to trigger and forwards every decoded payload.
func collect(bus *Bus, trigger string) <-chan map[string]any {
	delivered := make(chan map[string]any, 256)
	bus.Subscribe(trigger, func(_ context.Context, payload Payload) error {
		var value map[string]any
		if err := payload.Decode(&value); err != nil {
			return err
		}
		delivered <- value
		return nil
	})
	return delivered
}

// recordingReporter is a concurrency-safe report.Reporter.
type recordingReporter struct {
	mu         sync.Mutex
	errors     []error
	severities []report.Severity
}

func (r *recordingReporter) Report(err error, severity report.Severity) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.errors = append(r.errors, err)
	r.severities = append(r.severities, severity)
}

func (r *recordingReporter) snapshot() ([]error, []report.Severity) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]error(nil), r.errors...), append([]report.Severity(nil), r.severities...)
}

func newCoordinator(t *testing.T, peerQueue int) *Coordinator {
	t.Helper()
	coordinator := NewCoordinator(CoordinatorConfig{PeerQueue: peerQueue, Logger: discardLogger()})
	t.Cleanup(coordinator.Close)
	return coordinator
}
