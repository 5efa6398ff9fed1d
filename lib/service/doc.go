// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package service provides the HTTP listener lifecycle shared by the
// single-process server and every worker.
//
// [HTTPServer] binds a TCP listener, signals readiness, serves until
// its context is cancelled, and then drains in-flight requests for up
// to a shutdown timeout. With ReusePort set, the listener is opened
// with SO_REUSEPORT so that every worker process can bind the same
// address and the kernel balances accepted connections across them.
package service
