// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package launchparams

import (
	"errors"
	"net/url"
	"strconv"
	"testing"
	"time"

	"github.com/heyqbnk/mini-apps-backend-template/lib/clock"
	"github.com/heyqbnk/mini-apps-backend-template/tenant"
)

var epoch = time.Unix(1_700_000_000, 0)

func testStore(t *testing.T, list string) *tenant.Store {
	t.Helper()
	store, err := tenant.ParseList(list)
	if err != nil {
		t.Fatalf("ParseList(%q): %v", list, err)
	}
	return store
}

func baseParams() map[string]string {
	return map[string]string{
		"vk_app_id":   "1",
		"vk_user_id":  "42",
		"vk_language": "ru",
		"vk_ts":       strconv.FormatInt(epoch.Unix(), 10),
	}
}

func dayPolicy() Policy {
	return Policy{ExpirationEnabled: true, MaxAge: 24 * time.Hour}
}

func verifyQuery(t *testing.T, verifier *Verifier, query string) (Identity, error) {
	t.Helper()
	return verifier.Verify(Canonicalize(FromString(query)))
}

func TestVerifyAppOneScenario(t *testing.T) {
	verifier := NewVerifier(testStore(t, "1:s1"), dayPolicy(), clock.Fake(epoch))

	identity, err := verifyQuery(t, verifier, SignedQuery(baseParams(), []byte("s1")))
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if !identity.Valid() || identity.UserID() != 42 || identity.AppID() != 1 || identity.Lang() != Russian {
		t.Errorf("identity = user %d app %d lang %q valid %v",
			identity.UserID(), identity.AppID(), identity.Lang(), identity.Valid())
	}
}

func TestVerifySignedRoundTripAllForms(t *testing.T) {
	verifier := NewVerifier(testStore(t, "51234567:tenant-secret"), dayPolicy(), clock.Fake(epoch))

	params := baseParams()
	params["vk_app_id"] = "51234567"
	params["vk_language"] = "en"
	params["vk_ref"] = "catalog recommendation/top"
	params["vk_platform"] = "mobile_web"
	query := SignedQuery(params, []byte("tenant-secret"))

	values, err := url.ParseQuery(query + "&utm_source=ad")
	if err != nil {
		t.Fatalf("ParseQuery: %v", err)
	}
	inputs := map[string]Raw{
		"bare query": FromString(query),
		"header url": FromString("https://vk.com/app51234567?" + query + "&utm_source=ad"),
		"values":     FromValues(values),
	}
	for name, raw := range inputs {
		identity, err := verifier.Verify(Canonicalize(raw))
		if err != nil {
			t.Errorf("%s: Verify: %v", name, err)
			continue
		}
		if identity.UserID() != 42 || identity.AppID() != 51234567 || identity.Lang() != English {
			t.Errorf("%s: wrong identity %v", name, identity.LogValue())
		}
	}
}

func TestVerifyStringFormSignsRawText(t *testing.T) {
	verifier := NewVerifier(testStore(t, "1:s1"), dayPolicy(), clock.Fake(epoch))

	for _, ref := range []string{"a+b", "100%", "friends%2Cphotos"} {
		params := []Param{
			{Key: "vk_app_id", Value: "1"},
			{Key: "vk_language", Value: "ru"},
			{Key: "vk_ref", Value: ref},
			{Key: "vk_ts", Value: strconv.FormatInt(epoch.Unix(), 10)},
			{Key: "vk_user_id", Value: "42"},
		}
		header := "vk_app_id=1&vk_language=ru&vk_ref=" + ref +
			"&vk_ts=" + strconv.FormatInt(epoch.Unix(), 10) +
			"&vk_user_id=42&sign=" + Signature(params, []byte("s1"))

		canonical := Canonicalize(FromString(header))
		if got, _ := canonical.Get("vk_ref"); got != ref {
			t.Errorf("vk_ref = %q, want %q", got, ref)
		}
		if _, err := verifier.Verify(canonical); err != nil {
			t.Errorf("Verify with vk_ref=%q: %v", ref, err)
		}
	}
}

func TestVerifyTamperedValuesFail(t *testing.T) {
	verifier := NewVerifier(testStore(t, "1:s1,2:s2"), dayPolicy(), clock.Fake(epoch))

	params := baseParams()
	params["vk_ref"] = "feed"
	canonical := Canonicalize(FromString(SignedQuery(params, []byte("s1"))))

	replacements := map[string]string{
		"vk_app_id":   "2",
		"vk_user_id":  "43",
		"vk_language": "en",
		"vk_ts":       strconv.FormatInt(epoch.Unix()+1, 10),
		"vk_ref":      "feed2",
	}
	for index, param := range canonical.Params {
		tampered := canonical
		tampered.Params = append([]Param(nil), canonical.Params...)
		tampered.Params[index].Value = replacements[param.Key]

		if _, err := verifier.Verify(tampered); !errors.Is(err, ErrInvalidSignature) {
			t.Errorf("tampered %s: err = %v, want ErrInvalidSignature", param.Key, err)
		}
	}

	tamperedSign := canonical
	tamperedSign.Sign = canonical.Sign[:len(canonical.Sign)-1] + "A"
	if canonical.Sign[len(canonical.Sign)-1] == 'A' {
		tamperedSign.Sign = canonical.Sign[:len(canonical.Sign)-1] + "B"
	}
	if _, err := verifier.Verify(tamperedSign); !errors.Is(err, ErrInvalidSignature) {
		t.Errorf("tampered sign: err = %v", err)
	}
}

func TestVerifyExpiryBoundary(t *testing.T) {
	maxAge := 24 * time.Hour
	fake := clock.Fake(epoch)
	verifier := NewVerifier(testStore(t, "1:s1"), Policy{ExpirationEnabled: true, MaxAge: maxAge}, fake)
	query := SignedQuery(baseParams(), []byte("s1"))

	tests := []struct {
		name    string
		offset  time.Duration
		wantErr error
	}{
		{"fresh", 0, nil},
		{"one millisecond under", maxAge - time.Millisecond, nil},
		{"exactly max age", maxAge, nil},
		{"one millisecond over", maxAge + time.Millisecond, ErrExpired},
		{"issued in the future", -time.Hour, nil},
	}
	for _, test := range tests {
		fake.Set(epoch.Add(test.offset))
		_, err := verifyQuery(t, verifier, query)
		if !errors.Is(err, test.wantErr) {
			t.Errorf("%s: err = %v, want %v", test.name, err, test.wantErr)
		}
	}
}

func TestVerifyUnusableTimestamp(t *testing.T) {
	verifier := NewVerifier(testStore(t, "1:s1"), dayPolicy(), clock.Fake(epoch))

	for name, ts := range map[string]string{
		"missing":   "",
		"text":      "yesterday",
		"fraction":  "1700000000.5",
		"overflows": "9223372036854775807",
	} {
		params := baseParams()
		if ts == "" {
			delete(params, "vk_ts")
		} else {
			params["vk_ts"] = ts
		}
		_, err := verifyQuery(t, verifier, SignedQuery(params, []byte("s1")))
		if !errors.Is(err, ErrExpired) {
			t.Errorf("%s: err = %v, want ErrExpired", name, err)
		}
	}
}

func TestVerifyExpiryDisabled(t *testing.T) {
	fake := clock.Fake(epoch.Add(365 * 24 * time.Hour))
	verifier := NewVerifier(testStore(t, "1:s1"), Policy{}, fake)

	if _, err := verifyQuery(t, verifier, SignedQuery(baseParams(), []byte("s1"))); err != nil {
		t.Errorf("stale params with expiry disabled: %v", err)
	}

	params := baseParams()
	delete(params, "vk_ts")
	if _, err := verifyQuery(t, verifier, SignedQuery(params, []byte("s1"))); err != nil {
		t.Errorf("missing vk_ts with expiry disabled: %v", err)
	}
}

func TestVerifyMissingFields(t *testing.T) {
	verifier := NewVerifier(testStore(t, "1:s1"), dayPolicy(), clock.Fake(epoch))

	tests := map[string]func(map[string]string){
		"unknown language":   func(p map[string]string) { p["vk_language"] = "xx" },
		"uppercase language": func(p map[string]string) { p["vk_language"] = "RU" },
		"no language":        func(p map[string]string) { delete(p, "vk_language") },
		"no app id":          func(p map[string]string) { delete(p, "vk_app_id") },
		"text user id":       func(p map[string]string) { p["vk_user_id"] = "forty-two" },
		"empty user id":      func(p map[string]string) { p["vk_user_id"] = "" },
	}
	for name, mutate := range tests {
		params := baseParams()
		mutate(params)
		_, err := verifyQuery(t, verifier, SignedQuery(params, []byte("s1")))
		if !errors.Is(err, ErrMissingFields) {
			t.Errorf("%s: err = %v, want ErrMissingFields", name, err)
		}
	}
}

func TestVerifyMalformed(t *testing.T) {
	verifier := NewVerifier(testStore(t, "1:s1"), dayPolicy(), clock.Fake(epoch))

	for name, query := range map[string]string{
		"empty":        "",
		"no sign":      "vk_app_id=1&vk_user_id=42&vk_language=ru",
		"sign only":    "sign=abc",
		"no vk params": "app_id=1&sign=abc",
		"garbage":      "%%%&&&===",
	} {
		if _, err := verifyQuery(t, verifier, query); !errors.Is(err, ErrMalformed) {
			t.Errorf("%s: err = %v, want ErrMalformed", name, err)
		}
	}
}

func TestVerifyCheckOrder(t *testing.T) {
	fake := clock.Fake(epoch.Add(48 * time.Hour))
	verifier := NewVerifier(testStore(t, "1:s1"), dayPolicy(), fake)

	params := baseParams()
	params["vk_language"] = "xx"
	query := SignedQuery(params, []byte("wrong"))

	if _, err := verifyQuery(t, verifier, query); !errors.Is(err, ErrExpired) {
		t.Errorf("expired and unknown language: err = %v, want ErrExpired", err)
	}
	fake.Set(epoch)
	if _, err := verifyQuery(t, verifier, query); !errors.Is(err, ErrMissingFields) {
		t.Errorf("unknown language and bad signature: err = %v, want ErrMissingFields", err)
	}
}

func TestVerifyCredentialMatching(t *testing.T) {
	query := SignedQuery(baseParams(), []byte("s1"))

	tests := []struct {
		name    string
		list    string
		wantErr error
	}{
		{"second secret for the app", "1:old,1:s1", nil},
		{"right secret under another app", "2:s1", ErrInvalidSignature},
		{"no credential for the app", "3:x", ErrInvalidSignature},
	}
	for _, test := range tests {
		verifier := NewVerifier(testStore(t, test.list), dayPolicy(), clock.Fake(epoch))
		_, err := verifyQuery(t, verifier, query)
		if !errors.Is(err, test.wantErr) {
			t.Errorf("%s: err = %v, want %v", test.name, err, test.wantErr)
		}
	}
}

func TestZeroIdentityIsInvalid(t *testing.T) {
	var identity Identity
	if identity.Valid() {
		t.Fatal("zero Identity reports Valid")
	}
	if identity.LogValue().String() != "anonymous" {
		t.Errorf("LogValue = %v", identity.LogValue())
	}
}

func TestErrorsAreAuthenticationErrors(t *testing.T) {
	for _, sentinel := range []error{ErrMalformed, ErrExpired, ErrMissingFields, ErrInvalidSignature} {
		var authErr *AuthenticationError
		if !errors.As(sentinel, &authErr) || authErr.Reason == "" {
			t.Errorf("%v is not an AuthenticationError with a reason", sentinel)
		}
	}
	if ErrExpired.Error() != "launch params: expired" {
		t.Errorf("ErrExpired.Error() = %q", ErrExpired.Error())
	}
}
