// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package api

import (
	"errors"
	"net/http"

	"github.com/heyqbnk/mini-apps-backend-template/launchparams"
	"github.com/heyqbnk/mini-apps-backend-template/users"
)

// ErrorName is the machine-readable error kind clients switch on.
type ErrorName string

const (
	AuthorizationError ErrorName = "AuthorizationError"
	ForbiddenError     ErrorName = "ForbiddenError"
	BadParametersError ErrorName = "BadParametersError"
	NotFoundError      ErrorName = "NotFoundError"
	UnknownError       ErrorName = "UnknownError"
)

// Error is an API failure with the HTTP status it is served with.
type Error struct {
	Status  int       `json:"-"`
	Name    ErrorName `json:"name"`
	Message string    `json:"message"`
}

func (e *Error) Error() string {
	return string(e.Name) + ": " + e.Message
}

func badParameters(message string) *Error {
	return &Error{Status: http.StatusBadRequest, Name: BadParametersError, Message: message}
}

func forbidden() *Error {
	return &Error{Status: http.StatusForbidden, Name: ForbiddenError, Message: "access denied"}
}

var errUnknown = &Error{Status: http.StatusInternalServerError, Name: UnknownError, Message: "unknown error"}

// classify maps err to the error served to the client. Unrecognized
// errors become UnknownError so internal detail never leaks; the
// second result reports whether that happened.
func classify(err error) (apiErr *Error, unexpected bool) {
	if errors.As(err, &apiErr) {
		return apiErr, false
	}
	var authErr *launchparams.AuthenticationError
	switch {
	case errors.As(err, &authErr):
		return &Error{Status: http.StatusUnauthorized, Name: AuthorizationError, Message: authErr.Error()}, false
	case errors.Is(err, users.ErrNotFound):
		return &Error{Status: http.StatusNotFound, Name: NotFoundError, Message: "user not found"}, false
	case errors.Is(err, users.ErrExists):
		return badParameters("user already exists"), false
	default:
		return errUnknown, true
	}
}
