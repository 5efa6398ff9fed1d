// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package api

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/heyqbnk/mini-apps-backend-template/lib/netutil"
	"github.com/heyqbnk/mini-apps-backend-template/lib/report"
	"github.com/heyqbnk/mini-apps-backend-template/users"
)

// User is the wire form of users.User.
type User struct {
	VKUserID  int64  `json:"vkUserId"`
	Name      string `json:"name"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	BirthDate string `json:"birthDate"`
	Age       int    `json:"age"`
	IsAdmin   bool   `json:"isAdmin"`
}

func (s *Server) view(user users.User) User {
	return User{
		VKUserID:  user.VKUserID,
		Name:      user.Name(),
		FirstName: user.FirstName,
		LastName:  user.LastName,
		BirthDate: user.BirthDate.Format(time.DateOnly),
		Age:       user.Age(s.clock.Now()),
		IsAdmin:   user.IsAdmin,
	}
}

// handleCurrentUser serves the caller, or null when the directory does
// not know them.
func (s *Server) handleCurrentUser(w http.ResponseWriter, r *http.Request) {
	identity, _ := IdentityFrom(r.Context())
	s.serveUser(w, r, identity.UserID())
}

func (s *Server) handleUserByID(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathUserID(w, r)
	if !ok {
		return
	}
	s.serveUser(w, r, id)
}

func (s *Server) serveUser(w http.ResponseWriter, r *http.Request, id int64) {
	user, err := s.users.FindByID(r.Context(), id)
	switch {
	case errors.Is(err, users.ErrNotFound):
		s.writeJSON(w, http.StatusOK, nil)
	case err != nil:
		s.sendError(w, err)
	default:
		s.writeJSON(w, http.StatusOK, s.view(user))
	}
}

func (s *Server) handleAdmins(w http.ResponseWriter, r *http.Request) {
	admins, err := s.users.FindAdmins(r.Context())
	if err != nil {
		s.sendError(w, err)
		return
	}
	views := make([]User, 0, len(admins))
	for _, admin := range admins {
		views = append(views, s.view(admin))
	}
	s.writeJSON(w, http.StatusOK, views)
}

func (s *Server) handleIsAdmin(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathUserID(w, r)
	if !ok {
		return
	}
	isAdmin, err := s.users.IsAdmin(r.Context(), id)
	if err != nil {
		s.sendError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, isAdmin)
}

type setRoleRequest struct {
	IsAdmin *bool `json:"isAdmin"`
}

func (s *Server) handleSetRole(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathUserID(w, r)
	if !ok {
		return
	}
	var request setRoleRequest
	if err := netutil.DecodeBody(r.Body, &request); err != nil {
		s.sendError(w, badParameters(err.Error()))
		return
	}
	if request.IsAdmin == nil {
		s.sendError(w, badParameters("isAdmin is required"))
		return
	}
	user, err := s.users.SetRole(r.Context(), id, *request.IsAdmin)
	s.finishMutation(w, r, user, err)
}

type updateUserRequest struct {
	FirstName *string `json:"firstName"`
	LastName  *string `json:"lastName"`
	BirthDate *string `json:"birthDate"`
}

func (s *Server) handleUpdateUser(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathUserID(w, r)
	if !ok {
		return
	}
	var request updateUserRequest
	if err := netutil.DecodeBody(r.Body, &request); err != nil {
		s.sendError(w, badParameters(err.Error()))
		return
	}
	patch := users.Patch{FirstName: request.FirstName, LastName: request.LastName}
	if request.BirthDate != nil && *request.BirthDate != "" {
		born, err := parseDate(*request.BirthDate)
		if err != nil {
			s.sendError(w, badParameters("birthDate must be YYYY-MM-DD or RFC 3339"))
			return
		}
		patch.BirthDate = &born
	}
	user, err := s.users.Update(r.Context(), id, patch)
	s.finishMutation(w, r, user, err)
}

func parseDate(text string) (time.Time, error) {
	if date, err := time.Parse(time.DateOnly, text); err == nil {
		return date, nil
	}
	return time.Parse(time.RFC3339, text)
}

// finishMutation serves the mutated user and announces it on the bus.
// A failed publish is reported but does not fail the request: the
// change has already been made.
func (s *Server) finishMutation(w http.ResponseWriter, r *http.Request, user users.User, err error) {
	if err != nil {
		s.sendError(w, err)
		return
	}
	view := s.view(user)
	if err := s.bus.Publish(r.Context(), TriggerUserUpdated, view); err != nil {
		s.logger.Error("publishing user update", "vk_user_id", user.VKUserID, "error", err)
		s.reporter.Report(err, report.Error)
	}
	s.writeJSON(w, http.StatusOK, view)
}

func (s *Server) pathUserID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		s.sendError(w, badParameters("user id must be an integer"))
		return 0, false
	}
	return id, true
}
