// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package launchparams

import "log/slog"

// Identity is the caller a verified signature vouches for. Only
// Verifier.Verify produces a valid one; the zero value reports
// Valid() == false.
type Identity struct {
	userID int64
	appID  int64
	lang   Language
	valid  bool
}

// UserID is the VK user who opened the mini app.
func (i Identity) UserID() int64 { return i.userID }

// AppID is the mini app the launch parameters were signed for.
func (i Identity) AppID() int64 { return i.appID }

// Lang is the client language from vk_language.
func (i Identity) Lang() Language { return i.lang }

// Valid reports whether the identity came from a verified launch.
func (i Identity) Valid() bool { return i.valid }

// LogValue groups the identity for structured logs.
func (i Identity) LogValue() slog.Value {
	if !i.valid {
		return slog.StringValue("anonymous")
	}
	return slog.GroupValue(
		slog.Int64("user_id", i.userID),
		slog.Int64("app_id", i.appID),
		slog.String("lang", string(i.lang)),
	)
}
