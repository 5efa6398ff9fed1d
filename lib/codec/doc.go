// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package codec provides the standard CBOR encoding configuration for
// internal protocols.
//
// Two serialization formats are used, with a clear boundary:
//
//   - JSON for external interfaces: HTTP responses, WebSocket frames,
//     and CLI output.
//   - CBOR for internal protocols: the coordinator↔worker relay stream
//     and the opaque payloads carried by fan-out messages.
//
// The encoder uses Core Deterministic Encoding (RFC 8949 §4.2): sorted
// map keys, smallest integer encoding, no indefinite-length items. The
// same logical payload always produces identical bytes, so a message
// rebroadcast by the coordinator is byte-for-byte the message the
// originating worker sent.
//
// For buffer-oriented operations (payload encoding):
//
//	data, err := codec.Marshal(value)
//	err = codec.Unmarshal(data, &value)
//
// For stream-oriented operations (relay connections):
//
//	encoder := codec.NewEncoder(conn)
//	decoder := codec.NewDecoder(conn)
//
// # Struct Tag Rules
//
//   - `cbor` tag: the type is only ever serialized as CBOR (relay
//     frames).
//   - `json` tag: the type may be serialized as both JSON and CBOR.
//     fxamacker/cbor v2 reads `json` tags when `cbor` tags are absent,
//     which is how event payloads published by HTTP handlers reach
//     WebSocket subscribers with the same field names.
//
// Never use both tags on the same field.
package codec
