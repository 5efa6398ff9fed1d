// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package report

import (
	"errors"
	"fmt"
	"time"

	"github.com/getsentry/sentry-go"
)

// SentryOptions configures NewSentry.
type SentryOptions struct {
	// DSN is required.
	DSN         string
	Environment string
	Release     string

	// Tags are attached to every event.
	Tags map[string]string

	// FlushTimeout bounds Close. Defaults to 2 seconds.
	FlushTimeout time.Duration

	// BeforeSend may inspect or drop events before they leave the
	// process.
	BeforeSend func(event *sentry.Event, hint *sentry.EventHint) *sentry.Event
}

// Sentry reports errors to a Sentry project. Events are queued by the
// client's HTTP transport, which drops rather than blocks when its
// buffer is full, so Report returns immediately.
type Sentry struct {
	client       *sentry.Client
	scope        *sentry.Scope
	flushTimeout time.Duration
}

// NewSentry builds a Sentry reporter. It does not contact the server.
func NewSentry(options SentryOptions) (*Sentry, error) {
	if options.DSN == "" {
		return nil, errors.New("report: sentry DSN is required")
	}
	client, err := sentry.NewClient(sentry.ClientOptions{
		Dsn:              options.DSN,
		Environment:      options.Environment,
		Release:          options.Release,
		AttachStacktrace: true,
		BeforeSend:       options.BeforeSend,
	})
	if err != nil {
		return nil, fmt.Errorf("report: sentry client: %w", err)
	}

	scope := sentry.NewScope()
	for key, value := range options.Tags {
		scope.SetTag(key, value)
	}
	flushTimeout := options.FlushTimeout
	if flushTimeout <= 0 {
		flushTimeout = 2 * time.Second
	}
	return &Sentry{client: client, scope: scope, flushTimeout: flushTimeout}, nil
}

// Report captures err at the Sentry level matching severity.
func (s *Sentry) Report(err error, severity Severity) {
	if s == nil || err == nil {
		return
	}
	scope := s.scope.Clone()
	scope.SetLevel(severity.sentryLevel())
	scope.SetTag("severity", severity.String())
	s.client.CaptureException(err, nil, scope)
}

// Close waits up to the flush timeout for queued events to be sent and
// reports whether the queue emptied.
func (s *Sentry) Close() bool {
	return s.client.Flush(s.flushTimeout)
}

func (s Severity) sentryLevel() sentry.Level {
	switch s {
	case Warning:
		return sentry.LevelWarning
	case Fatal:
		return sentry.LevelFatal
	default:
		return sentry.LevelError
	}
}

// Tee sends every report to each reporter in order.
func Tee(reporters ...Reporter) Reporter {
	return tee{reporters: reporters}
}

type tee struct {
	reporters []Reporter
}

func (t tee) Report(err error, severity Severity) {
	for _, reporter := range t.reporters {
		reporter.Report(err, severity)
	}
}
