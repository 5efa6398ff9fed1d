// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package codec

import (
	"io"
	"reflect"

	"github.com/fxamacker/cbor/v2"
)

// Limits on what a relay peer may send. Event payloads are small JSON
// documents, so anything deeper or wider than this is a broken or
// hostile worker.
const (
	MaxNestingDepth = 16
	MaxContainerLen = 4096
)

var (
	encMode = mustEncMode()
	decMode = mustDecMode()
)

func mustEncMode() cbor.EncMode {
	mode, err := cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic("codec: building encoder: " + err.Error())
	}
	return mode
}

func mustDecMode() cbor.DecMode {
	mode, err := cbor.DecOptions{
		// Payloads decoded into any come back as map[string]any, ready
		// for encoding/json on the WebSocket side.
		DefaultMapType:   reflect.TypeOf(map[string]any(nil)),
		DupMapKey:        cbor.DupMapKeyEnforcedAPF,
		IndefLength:      cbor.IndefLengthForbidden,
		MaxNestedLevels:  MaxNestingDepth,
		MaxArrayElements: MaxContainerLen,
		MaxMapPairs:      MaxContainerLen,
	}.DecMode()
	if err != nil {
		panic("codec: building decoder: " + err.Error())
	}
	return mode
}

// Marshal encodes v with Core Deterministic Encoding.
func Marshal(v any) ([]byte, error) { return encMode.Marshal(v) }

// Unmarshal decodes one CBOR item from data into v. Unknown struct
// fields are ignored; duplicate map keys and indefinite-length items
// are rejected.
func Unmarshal(data []byte, v any) error { return decMode.Unmarshal(data, v) }

type (
	Encoder = cbor.Encoder
	Decoder = cbor.Decoder

	// RawMessage carries an already-encoded payload through a relay
	// frame untouched.
	RawMessage = cbor.RawMessage
)

// NewEncoder writes a stream of deterministic CBOR items to w.
func NewEncoder(w io.Writer) *Encoder { return encMode.NewEncoder(w) }

// NewDecoder reads a stream of CBOR items from r under the same limits
// as Unmarshal.
func NewDecoder(r io.Reader) *Decoder { return decMode.NewDecoder(r) }
