// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package launchparams

import (
	"fmt"

	"github.com/heyqbnk/mini-apps-backend-template/lib/report"
)

// Authenticator is the single entry point transports call.
type Authenticator struct {
	verifier *Verifier
	reporter report.Reporter
}

// NewAuthenticator wraps verifier. A non-nil reporter receives every
// rejection at warning severity.
func NewAuthenticator(verifier *Verifier, reporter report.Reporter) *Authenticator {
	if reporter == nil {
		reporter = report.Discard
	}
	return &Authenticator{verifier: verifier, reporter: reporter}
}

// Authenticate canonicalizes raw and verifies it. The returned error is
// always an *AuthenticationError.
func (a *Authenticator) Authenticate(raw Raw) (Identity, error) {
	canonical := Canonicalize(raw)
	identity, err := a.verifier.Verify(canonical)
	if err != nil {
		claimed, _ := canonical.Get("vk_app_id")
		a.reporter.Report(rejection{err: err, claimedApp: claimed}, report.Warning)
		return Identity{}, err
	}
	return identity, nil
}

// rejection carries the claimed app id into the report without the
// rest of the untrusted input.
type rejection struct {
	err        error
	claimedApp string
}

func (r rejection) Error() string {
	if r.claimedApp == "" {
		return r.err.Error()
	}
	return fmt.Sprintf("%v (vk_app_id=%q)", r.err, r.claimedApp)
}

func (r rejection) Unwrap() error { return r.err }
