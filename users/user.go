// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package users

import (
	"errors"
	"time"
)

var (
	// ErrNotFound is returned for an unknown VK user id.
	ErrNotFound = errors.New("users: user not found")

	// ErrExists is returned by Create when the id is already taken.
	ErrExists = errors.New("users: user already exists")
)

// User is one application user keyed by VK user id.
type User struct {
	VKUserID  int64
	FirstName string
	LastName  string
	BirthDate time.Time
	IsAdmin   bool
}

// Name is the full display name.
func (u User) Name() string {
	return u.FirstName + " " + u.LastName
}

// year is the divisor Age uses. Leap days are ignored.
const year = 365 * 24 * time.Hour

// Age is the number of whole 365-day years between BirthDate and now.
// A birth date in the future yields zero.
func (u User) Age(now time.Time) int {
	elapsed := now.Sub(u.BirthDate)
	if elapsed < 0 {
		return 0
	}
	return int(elapsed / year)
}

// Patch lists the fields Update may change. Nil pointers and empty
// names leave the stored value alone.
type Patch struct {
	FirstName *string
	LastName  *string
	BirthDate *time.Time
}

func (p Patch) apply(user *User) {
	if p.FirstName != nil && *p.FirstName != "" {
		user.FirstName = *p.FirstName
	}
	if p.LastName != nil && *p.LastName != "" {
		user.LastName = *p.LastName
	}
	if p.BirthDate != nil && !p.BirthDate.IsZero() {
		user.BirthDate = *p.BirthDate
	}
}
