// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package launchparams

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"slices"
	"strings"
)

// signingString joins sorted params as k=enc(v)&... Keys are written
// as they are.
func signingString(params []Param) string {
	var builder strings.Builder
	for index, param := range params {
		if index > 0 {
			builder.WriteByte('&')
		}
		builder.WriteString(param.Key)
		builder.WriteByte('=')
		builder.WriteString(encodeURIComponent(param.Value))
	}
	return builder.String()
}

func digest(message string, secret []byte) string {
	mac := hmac.New(sha256.New, secret)
	mac.Write([]byte(message))
	encoded := base64.StdEncoding.EncodeToString(mac.Sum(nil))
	encoded = strings.NewReplacer("+", "-", "/", "_").Replace(encoded)
	return strings.TrimSuffix(encoded, "=")
}

// Signature returns the sign value for params under secret. params may
// be in any order.
func Signature(params []Param, secret []byte) string {
	sorted := slices.Clone(params)
	sortParams(sorted)
	return digest(signingString(sorted), secret)
}

// SignedQuery keeps the vk_ entries of params, signs them with secret,
// and returns them in string form, as they travel in the launch
// parameters header. Values are written as given.
func SignedQuery(params map[string]string, secret []byte) string {
	canonical := Canonical{HasSign: true}
	for key, value := range params {
		if strings.HasPrefix(key, Prefix) {
			canonical.Params = append(canonical.Params, Param{Key: key, Value: value})
		}
	}
	sortParams(canonical.Params)
	canonical.Sign = digest(signingString(canonical.Params), secret)
	return canonical.String()
}

const upperhex = "0123456789ABCDEF"

// encodeURIComponent escapes every byte except A-Z a-z 0-9 and
// - _ . ! ~ * ' ( ), matching the ECMAScript function the host signs
// with.
func encodeURIComponent(value string) string {
	unescaped := 0
	for index := 0; index < len(value); index++ {
		if isUnreserved(value[index]) {
			unescaped++
		}
	}
	if unescaped == len(value) {
		return value
	}

	var builder strings.Builder
	builder.Grow(len(value) + 2*(len(value)-unescaped))
	for index := 0; index < len(value); index++ {
		character := value[index]
		if isUnreserved(character) {
			builder.WriteByte(character)
			continue
		}
		builder.WriteByte('%')
		builder.WriteByte(upperhex[character>>4])
		builder.WriteByte(upperhex[character&0x0f])
	}
	return builder.String()
}

func isUnreserved(character byte) bool {
	switch {
	case 'a' <= character && character <= 'z',
		'A' <= character && character <= 'Z',
		'0' <= character && character <= '9':
		return true
	}
	switch character {
	case '-', '_', '.', '!', '~', '*', '\'', '(', ')':
		return true
	}
	return false
}
