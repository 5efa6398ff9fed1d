// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package version reports build information for the mini-app binaries.
//
// Values are injected with -ldflags -X:
//
//	go build -ldflags "-X github.com/heyqbnk/mini-apps-backend-template/lib/version.GitCommit=$(git rev-parse --short HEAD)"
//
// Without injection they read "unknown" and "0.1.0-dev".
package version
