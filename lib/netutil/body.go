// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package netutil

import (
	"encoding/json"
	"fmt"
	"io"
)

// MaxBodySize bounds JSON request bodies. API payloads are a handful of
// fields.
const MaxBodySize int64 = 1 << 20

// DecodeBody JSON-decodes at most MaxBodySize bytes of body into v.
// Trailing data after the first value is an error.
func DecodeBody(body io.Reader, v any) error {
	decoder := json.NewDecoder(io.LimitReader(body, MaxBodySize))
	if err := decoder.Decode(v); err != nil {
		return fmt.Errorf("decoding request body: %w", err)
	}
	if decoder.More() {
		return fmt.Errorf("decoding request body: unexpected data after JSON value")
	}
	return nil
}
