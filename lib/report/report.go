// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package report

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
)

// Severity ranks a reported error.
type Severity int

const (
	Warning Severity = iota
	Error
	Fatal
)

func (s Severity) String() string {
	switch s {
	case Warning:
		return "warning"
	case Error:
		return "error"
	case Fatal:
		return "fatal"
	default:
		return fmt.Sprintf("severity(%d)", int(s))
	}
}

func (s Severity) level() slog.Level {
	switch s {
	case Warning:
		return slog.LevelWarn
	default:
		return slog.LevelError
	}
}

// Reporter accepts errors for out-of-band observation. Implementations
// must return immediately.
type Reporter interface {
	Report(err error, severity Severity)
}

// Discard drops every report.
var Discard Reporter = discard{}

type discard struct{}

func (discard) Report(error, Severity) {}

// Func adapts a function to Reporter.
type Func func(err error, severity Severity)

func (f Func) Report(err error, severity Severity) { f(err, severity) }

type entry struct {
	err      error
	severity Severity
}

// DefaultCapacity is the queue depth NewQueue uses for capacity <= 0.
const DefaultCapacity = 256

// Queue is a bounded asynchronous Reporter. Report is safe for
// concurrent use and is a no-op on a nil receiver.
type Queue struct {
	entries chan entry
	logger  *slog.Logger
	dropped atomic.Uint64
	done    chan struct{}
}

// NewQueue builds a queue that logs through logger once Run starts.
func NewQueue(logger *slog.Logger, capacity int) *Queue {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Queue{
		entries: make(chan entry, capacity),
		logger:  logger,
		done:    make(chan struct{}),
	}
}

// Report enqueues err, or drops it when the queue is full.
func (q *Queue) Report(err error, severity Severity) {
	if q == nil || err == nil {
		return
	}
	select {
	case q.entries <- entry{err: err, severity: severity}:
	default:
		q.dropped.Add(1)
	}
}

// Dropped returns how many reports were discarded because the queue
// was full.
func (q *Queue) Dropped() uint64 {
	return q.dropped.Load()
}

// Run logs queued reports until ctx is cancelled, then drains what is
// already queued and closes Done. Call it exactly once.
func (q *Queue) Run(ctx context.Context) {
	defer close(q.done)
	var reportedDrops uint64
	for {
		select {
		case item := <-q.entries:
			reportedDrops = q.write(item, reportedDrops)
		case <-ctx.Done():
			for {
				select {
				case item := <-q.entries:
					reportedDrops = q.write(item, reportedDrops)
				default:
					return
				}
			}
		}
	}
}

// Done is closed after Run returns.
func (q *Queue) Done() <-chan struct{} {
	return q.done
}

func (q *Queue) write(item entry, reportedDrops uint64) uint64 {
	attrs := []any{"error", item.err, "severity", item.severity.String()}
	if dropped := q.dropped.Load(); dropped > reportedDrops {
		attrs = append(attrs, "dropped_reports", dropped-reportedDrops)
		reportedDrops = dropped
	}
	q.logger.Log(context.Background(), item.severity.level(), "reported error", attrs...)
	return reportedDrops
}
