// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package launchparams

// AuthenticationError is a rejected set of launch parameters. Only the
// four sentinels below are ever returned; compare with errors.Is.
type AuthenticationError struct {
	Reason string
}

func (e *AuthenticationError) Error() string {
	return "launch params: " + e.Reason
}

var (
	ErrMalformed        = &AuthenticationError{Reason: "malformed parameters"}
	ErrExpired          = &AuthenticationError{Reason: "expired"}
	ErrMissingFields    = &AuthenticationError{Reason: "missing required fields"}
	ErrInvalidSignature = &AuthenticationError{Reason: "invalid signature"}
)
