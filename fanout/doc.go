// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package fanout delivers published events to subscribers in every
// worker process of the server.
//
// A [Bus] is the per-process registry of subscriptions. In a single
// process it is constructed without a relay and Publish hands the
// message straight to its own dispatcher. In a worker it is constructed
// with the [Conn] to the coordinator: Publish only sends the message to
// the coordinator, and local subscribers see it when the coordinator
// sends it back. The publishing worker therefore observes its own
// events in the same order as every other worker.
//
// The [Coordinator] runs in the parent process and has no subscribers
// of its own. Every message a [Peer] sends is rebroadcast, under one
// lock, to every attached peer including the sender. Each peer has a
// bounded outbound queue drained by its own writer goroutine; when the
// queue is full the message is dropped for that peer alone. A peer
// whose connection fails or whose process exits is closed and removed.
// Delivery is best effort: there is no acknowledgment and no retry.
//
// Transports implement [Conn]. [Pipe] connects two in-memory ends;
// [StreamConn] carries CBOR frames over a net.Conn, in production one
// end of a Unix socketpair created by [SocketPair] and inherited by the
// worker as a file descriptor.
package fanout
