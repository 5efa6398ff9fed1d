// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package launchparams

import (
	"crypto/hmac"
	"math"
	"strconv"
	"time"

	"github.com/heyqbnk/mini-apps-backend-template/lib/clock"
	"github.com/heyqbnk/mini-apps-backend-template/lib/config"
	"github.com/heyqbnk/mini-apps-backend-template/tenant"
)

// Policy controls the expiry check.
type Policy struct {
	ExpirationEnabled bool
	MaxAge            time.Duration
}

// PolicyFromConfig reads the expiry settings of a loaded configuration.
func PolicyFromConfig(cfg config.LaunchParamsConfig) Policy {
	return Policy{ExpirationEnabled: cfg.ExpirationEnabled, MaxAge: cfg.MaxAge}
}

// Verifier checks canonical launch parameters against a credential
// store. It holds no mutable state and is safe for concurrent use.
type Verifier struct {
	store  *tenant.Store
	policy Policy
	clock  clock.Clock
}

// NewVerifier panics on a nil store or clock.
func NewVerifier(store *tenant.Store, policy Policy, clk clock.Clock) *Verifier {
	if store == nil {
		panic("launchparams.NewVerifier: store is required")
	}
	if clk == nil {
		panic("launchparams.NewVerifier: clock is required")
	}
	return &Verifier{store: store, policy: policy, clock: clk}
}

// Verify returns the identity canonical vouches for. Checks run in
// order and the first failure is returned:
//
//   - no sign, or no vk_ parameters: ErrMalformed
//   - expiry enabled and vk_ts missing, not an integer, or older than
//     MaxAge: ErrExpired
//   - vk_app_id or vk_user_id not an integer, or vk_language unknown:
//     ErrMissingFields
//   - no credential for vk_app_id produces sign: ErrInvalidSignature
func (v *Verifier) Verify(canonical Canonical) (Identity, error) {
	if !canonical.HasSign || len(canonical.Params) == 0 {
		return Identity{}, ErrMalformed
	}

	if v.policy.ExpirationEnabled && v.expired(canonical) {
		return Identity{}, ErrExpired
	}

	appID, appOK := intParam(canonical, "vk_app_id")
	userID, userOK := intParam(canonical, "vk_user_id")
	rawLanguage, _ := canonical.Get("vk_language")
	language, languageOK := ParseLanguage(rawLanguage)
	if !appOK || !userOK || !languageOK {
		return Identity{}, ErrMissingFields
	}

	message := signingString(canonical.Params)
	presented := []byte(canonical.Sign)
	for credential := range v.store.ForApp(appID) {
		if hmac.Equal([]byte(digest(message, credential.SecretKey)), presented) {
			return Identity{userID: userID, appID: appID, lang: language, valid: true}, nil
		}
	}
	return Identity{}, ErrInvalidSignature
}

// expired reports whether vk_ts is unusable or older than MaxAge. A
// timestamp whose millisecond value overflows int64 is unusable.
func (v *Verifier) expired(canonical Canonical) bool {
	seconds, ok := intParam(canonical, "vk_ts")
	if !ok || seconds > math.MaxInt64/1000 || seconds < math.MinInt64/1000 {
		return true
	}
	age := v.clock.Now().UnixMilli() - seconds*1000
	return age > v.policy.MaxAge.Milliseconds()
}

func intParam(canonical Canonical, key string) (int64, bool) {
	raw, ok := canonical.Get(key)
	if !ok {
		return 0, false
	}
	value, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, false
	}
	return value, true
}
