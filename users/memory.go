// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package users

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// Memory is a User directory held in process memory. Workers each hold
// their own copy, so changes made through one worker are not visible
// to another; the user.updated event is how other workers learn about
// them. Safe for concurrent use.
type Memory struct {
	mu    sync.RWMutex
	users map[int64]*User
	order []int64
}

// NewMemory builds a directory holding seed, in order. A duplicate id
// in seed panics.
func NewMemory(seed ...User) *Memory {
	memory := &Memory{users: make(map[int64]*User, len(seed))}
	for _, user := range seed {
		if _, err := memory.Create(context.Background(), user); err != nil {
			panic(fmt.Sprintf("users.NewMemory: %v", err))
		}
	}
	return memory
}

// Seed is the sample directory the server starts with.
func Seed() []User {
	return []User{
		{VKUserID: 4, FirstName: "Pavel", LastName: "Durov", BirthDate: date(1980, time.July, 30), IsAdmin: true},
		{VKUserID: 10, FirstName: "Nikolai", LastName: "Durov", BirthDate: date(1975, time.February, 22)},
		{VKUserID: 1233, FirstName: "Andrey", LastName: "Rogozov", BirthDate: date(1990, time.January, 15)},
	}
}

func date(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

// Create stores user. It fails with ErrExists when the id is taken.
func (m *Memory) Create(_ context.Context, user User) (User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.users[user.VKUserID]; exists {
		return User{}, fmt.Errorf("%w: %d", ErrExists, user.VKUserID)
	}
	stored := user
	m.users[user.VKUserID] = &stored
	m.order = append(m.order, user.VKUserID)
	return user, nil
}

// FindByID returns ErrNotFound for an unknown id.
func (m *Memory) FindByID(_ context.Context, vkUserID int64) (User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	user, ok := m.users[vkUserID]
	if !ok {
		return User{}, fmt.Errorf("%w: %d", ErrNotFound, vkUserID)
	}
	return *user, nil
}

// FindAdmins returns every administrator in creation order.
func (m *Memory) FindAdmins(_ context.Context) ([]User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	admins := []User{}
	for _, id := range m.order {
		if user := m.users[id]; user.IsAdmin {
			admins = append(admins, *user)
		}
	}
	return admins, nil
}

// IsAdmin reports false for unknown ids.
func (m *Memory) IsAdmin(_ context.Context, vkUserID int64) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	user, ok := m.users[vkUserID]
	return ok && user.IsAdmin, nil
}

// SetRole grants or revokes administrator rights.
func (m *Memory) SetRole(_ context.Context, vkUserID int64, isAdmin bool) (User, error) {
	return m.modify(vkUserID, func(user *User) { user.IsAdmin = isAdmin })
}

// Update applies patch to the stored user.
func (m *Memory) Update(_ context.Context, vkUserID int64, patch Patch) (User, error) {
	return m.modify(vkUserID, patch.apply)
}

func (m *Memory) modify(vkUserID int64, change func(*User)) (User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	user, ok := m.users[vkUserID]
	if !ok {
		return User{}, fmt.Errorf("%w: %d", ErrNotFound, vkUserID)
	}
	change(user)
	return *user, nil
}
