// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package tenant holds the mini-app credentials the server accepts
// launch parameters for.
//
// A tenant is an application id with a signing secret issued by the
// host platform. The list is parsed once at startup from the
// "appId:secret[,appId:secret...]" form, either inline in the
// configuration or from an age-sealed file, and never changes
// afterward. A malformed entry fails startup; no tenant is ever
// silently dropped.
//
// Several secrets may share one application id (during a secret
// rotation, for example). [Store.ForApp] yields them in list order and
// verification stops at the first one that matches.
package tenant

import (
	"bytes"
	"errors"
	"fmt"
	"iter"
	"strconv"
	"strings"

	"github.com/heyqbnk/mini-apps-backend-template/lib/config"
	"github.com/heyqbnk/mini-apps-backend-template/lib/sealed"
)

// ErrNoCredentials is returned for a list without any entry.
var ErrNoCredentials = errors.New("tenant: credential list is empty")

// Credential pairs an application id with its signing secret.
type Credential struct {
	AppID     int64
	SecretKey []byte
}

// Store is an immutable, ordered set of credentials. It is safe for
// concurrent use without locking.
type Store struct {
	credentials []Credential
}

// NewStore copies credentials, including each secret, so later
// changes to the argument cannot reach the store.
func NewStore(credentials []Credential) *Store {
	copied := make([]Credential, len(credentials))
	for index, credential := range credentials {
		copied[index] = Credential{
			AppID:     credential.AppID,
			SecretKey: bytes.Clone(credential.SecretKey),
		}
	}
	return &Store{credentials: copied}
}

// ForApp yields the credentials registered for appID in list order.
// The yielded secret must not be modified.
func (s *Store) ForApp(appID int64) iter.Seq[Credential] {
	return func(yield func(Credential) bool) {
		for _, credential := range s.credentials {
			if credential.AppID != appID {
				continue
			}
			if !yield(credential) {
				return
			}
		}
	}
}

// Len returns the number of credentials.
func (s *Store) Len() int {
	return len(s.credentials)
}

// AppIDs returns the distinct application ids in first-seen order.
func (s *Store) AppIDs() []int64 {
	seen := make(map[int64]bool, len(s.credentials))
	ids := make([]int64, 0, len(s.credentials))
	for _, credential := range s.credentials {
		if !seen[credential.AppID] {
			seen[credential.AppID] = true
			ids = append(ids, credential.AppID)
		}
	}
	return ids
}

// ParseList parses "appId:secret[,appId:secret...]". Whitespace around
// entries, ids, and secrets is ignored. The id must be a base-10
// integer and the secret non-empty; everything after the first colon
// belongs to the secret.
func ParseList(list string) (*Store, error) {
	if strings.TrimSpace(list) == "" {
		return nil, ErrNoCredentials
	}

	var credentials []Credential
	var errs []error
	for index, entry := range strings.Split(list, ",") {
		credential, err := parseEntry(entry)
		if err != nil {
			errs = append(errs, fmt.Errorf("tenant: entry %d: %w", index+1, err))
			continue
		}
		credentials = append(credentials, credential)
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return &Store{credentials: credentials}, nil
}

func parseEntry(entry string) (Credential, error) {
	rawID, secret, found := strings.Cut(strings.TrimSpace(entry), ":")
	if !found {
		return Credential{}, fmt.Errorf("expected appId:secret")
	}
	rawID = strings.TrimSpace(rawID)
	appID, err := strconv.ParseInt(rawID, 10, 64)
	if err != nil {
		return Credential{}, fmt.Errorf("app id %q is not an integer", rawID)
	}
	secret = strings.TrimSpace(secret)
	if secret == "" {
		return Credential{}, fmt.Errorf("app %d has an empty secret", appID)
	}
	return Credential{AppID: appID, SecretKey: []byte(secret)}, nil
}

// Load builds the store from the launch-params configuration. A sealed
// credentials file wins over the inline list.
func Load(cfg config.LaunchParamsConfig) (*Store, error) {
	if cfg.SealedCredentialsFile == "" {
		return ParseList(cfg.Credentials)
	}

	plaintext, err := sealed.OpenFile(cfg.SealedCredentialsFile, cfg.IdentityFile)
	if err != nil {
		return nil, fmt.Errorf("tenant: %w", err)
	}
	defer plaintext.Close()
	return ParseList(string(plaintext.Bytes()))
}
