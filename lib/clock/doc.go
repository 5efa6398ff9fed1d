// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package clock abstracts wall-clock reads for testability.
//
// Production code injects [Real]; tests inject [Fake] and move time
// explicitly with [FakeClock.Advance] or [FakeClock.Set]. Launch
// parameter expiry and user age computation read time only through a
// [Clock], so boundary tests can place "now" exactly one millisecond
// before or after a deadline.
//
// This package has no internal dependencies.
package clock
