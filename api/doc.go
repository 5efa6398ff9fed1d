// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package api is the mini-app's HTTP and WebSocket surface.
//
// Every endpoint except /up requires VK launch parameters, sent in the
// X-Launch-Params header or, when the header is absent, as the request
// query. The public tree serves the calling user; the admin tree
// additionally requires the caller to be an administrator in the
// [UserDirectory]. Errors are JSON objects with a name and a message:
//
//	{"name":"AuthorizationError","message":"launch params: invalid signature"}
//
// The subscriptions endpoint speaks a small JSON frame protocol over
// WebSocket. The client opens with connection_init carrying its
// launch parameters, then sends subscribe frames naming bus triggers;
// every event published on a subscribed trigger arrives as a next
// frame. Events published by any worker reach subscribers on every
// worker; see package fanout.
package api
