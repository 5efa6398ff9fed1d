// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package process holds the entrypoint helpers shared by the server and
// the launch-params CLI: reporting a fatal error to stderr before (or
// after) the structured logger exists, and choosing the exit code.
package process
