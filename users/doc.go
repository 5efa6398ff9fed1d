// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package users is the mini-app's user directory: who a VK user is in
// this application and whether they administer it.
//
// [Memory] is a seeded in-memory directory. A deployment that needs
// persistence supplies its own implementation of the api package's
// UserDirectory interface.
package users
