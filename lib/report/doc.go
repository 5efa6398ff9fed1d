// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package report is the error-reporting collaborator of the server.
//
// Authentication failures are reported at [Warning], handler panics and
// errors at [Error], and startup failures at [Fatal]. A [Reporter] must
// never block its caller: the launch-params middleware and the fan-out
// dispatcher both report from hot paths.
//
// [Queue] is the production Reporter. Report enqueues into a bounded
// channel; Run drains it to a *slog.Logger on its own goroutine. When
// the channel is full the report is dropped and counted, and the count
// is logged with the next report that gets through.
//
// [Sentry] forwards reports to a Sentry project through sentry-go, with
// Warning, Error and Fatal mapped to the matching Sentry levels. The
// server [Tee]s it with the Queue when a DSN is configured, so reports
// reach the log either way.
package report
