// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package fanout

import (
	"fmt"

	"github.com/heyqbnk/mini-apps-backend-template/lib/codec"
)

// Message is one published event in flight. The payload stays encoded
// from Publish until a handler decodes it, so the coordinator relays it
// byte for byte.
type Message struct {
	Trigger string           `cbor:"trigger"`
	Payload codec.RawMessage `cbor:"payload,omitempty"`
}

// NewMessage encodes payload for trigger.
func NewMessage(trigger string, payload any) (Message, error) {
	if trigger == "" {
		return Message{}, fmt.Errorf("fanout: trigger is required")
	}
	raw, err := codec.Marshal(payload)
	if err != nil {
		return Message{}, fmt.Errorf("fanout: encoding payload for %q: %w", trigger, err)
	}
	return Message{Trigger: trigger, Payload: raw}, nil
}

// Payload is the encoded body of a delivered message.
type Payload struct {
	raw codec.RawMessage
}

// Decode unmarshals the payload into v. Into an any, maps decode as
// map[string]any and non-negative integers as uint64.
func (p Payload) Decode(v any) error {
	if len(p.raw) == 0 {
		return fmt.Errorf("fanout: empty payload")
	}
	return codec.Unmarshal(p.raw, v)
}

// Raw returns the CBOR bytes. Do not modify them; every handler of the
// message shares the slice.
func (p Payload) Raw() []byte {
	return p.raw
}
