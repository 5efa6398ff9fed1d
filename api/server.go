// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/klauspost/compress/gzhttp"

	"github.com/heyqbnk/mini-apps-backend-template/fanout"
	"github.com/heyqbnk/mini-apps-backend-template/launchparams"
	"github.com/heyqbnk/mini-apps-backend-template/lib/clock"
	"github.com/heyqbnk/mini-apps-backend-template/lib/config"
	"github.com/heyqbnk/mini-apps-backend-template/lib/report"
	"github.com/heyqbnk/mini-apps-backend-template/users"
)

// UserDirectory looks users up and changes their role and profile.
// Implementations return errors wrapping users.ErrNotFound and
// users.ErrExists.
type UserDirectory interface {
	FindByID(ctx context.Context, vkUserID int64) (users.User, error)
	FindAdmins(ctx context.Context) ([]users.User, error)
	IsAdmin(ctx context.Context, vkUserID int64) (bool, error)
	SetRole(ctx context.Context, vkUserID int64, isAdmin bool) (users.User, error)
	Update(ctx context.Context, vkUserID int64, patch users.Patch) (users.User, error)
}

// EventBus is the subset of *fanout.Bus the API uses.
type EventBus interface {
	Subscribe(trigger string, handler fanout.Handler) fanout.SubscriptionID
	Unsubscribe(id fanout.SubscriptionID) bool
	Publish(ctx context.Context, trigger string, payload any) error
}

// TriggerUserUpdated is published with a User view after every
// successful admin mutation.
const TriggerUserUpdated = "user.updated"

// Config wires a Server. Every field except Clock and Reporter is
// required.
type Config struct {
	Server        config.ServerConfig
	Authenticator *launchparams.Authenticator
	Users         UserDirectory
	Bus           EventBus
	Clock         clock.Clock
	Reporter      report.Reporter
	Logger        *slog.Logger
}

// Server holds the handlers. Build with New.
type Server struct {
	config        config.ServerConfig
	authenticator *launchparams.Authenticator
	users         UserDirectory
	bus           EventBus
	clock         clock.Clock
	reporter      report.Reporter
	logger        *slog.Logger

	subscriptions      *subscriptionHub
	adminSubscriptions *subscriptionHub
	handler            http.Handler
}

// New builds the server and its route table. It panics on a missing
// collaborator.
func New(cfg Config) *Server {
	switch {
	case cfg.Authenticator == nil:
		panic("api.New: Authenticator is required")
	case cfg.Users == nil:
		panic("api.New: Users is required")
	case cfg.Bus == nil:
		panic("api.New: Bus is required")
	case cfg.Logger == nil:
		panic("api.New: Logger is required")
	}
	if cfg.Clock == nil {
		cfg.Clock = clock.Real()
	}
	if cfg.Reporter == nil {
		cfg.Reporter = report.Discard
	}

	s := &Server{
		config:        cfg.Server,
		authenticator: cfg.Authenticator,
		users:         cfg.Users,
		bus:           cfg.Bus,
		clock:         cfg.Clock,
		reporter:      cfg.Reporter,
		logger:        cfg.Logger.With("component", "api"),
	}
	s.subscriptions = newSubscriptionHub(s, false)
	s.adminSubscriptions = newSubscriptionHub(s, true)
	s.handler = s.routes()
	return s
}

func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /up", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})

	public := s.config.PublicPath
	current := gzhttp.GzipHandler(s.authenticated(http.HandlerFunc(s.handleCurrentUser)))
	mux.Handle("GET "+public+"/user/current", current)
	mux.Handle("POST "+public+"/user/current", current)

	admin := s.config.AdminPath
	adminRoutes := map[string]http.HandlerFunc{
		"GET " + admin + "/users/admins":        s.handleAdmins,
		"GET " + admin + "/users/{id}":          s.handleUserByID,
		"GET " + admin + "/users/{id}/is-admin": s.handleIsAdmin,
		"POST " + admin + "/users/{id}/role":    s.handleSetRole,
		"PATCH " + admin + "/users/{id}":        s.handleUpdateUser,
	}
	for pattern, handler := range adminRoutes {
		mux.Handle(pattern, gzhttp.GzipHandler(s.authenticated(s.adminOnly(handler))))
	}

	// The WebSocket route stays unwrapped: the upgrade needs the
	// server's own Hijacker.
	if path := s.config.SubscriptionsPath; path != "" {
		mux.Handle("GET "+path, s.subscriptions)
	}
	if path := s.config.AdminSubscriptionsPath; path != "" {
		mux.Handle("GET "+path, s.adminSubscriptions)
	}

	if s.config.EnableCORS {
		return permissiveCORS(mux)
	}
	return mux
}

// Handler serves every route.
func (s *Server) Handler() http.Handler { return s.handler }

// Close ends every WebSocket session and refuses new ones. The HTTP
// server's graceful shutdown does not track hijacked connections, so
// register Close as a shutdown hook.
func (s *Server) Close() {
	s.subscriptions.close()
	s.adminSubscriptions.close()
}

// writeJSON encodes value as JSON into w. An encoding failure means the
// client is gone; it is logged and nothing else can be done.
func (s *Server) writeJSON(w http.ResponseWriter, status int, value any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(value); err != nil {
		s.logger.Warn("writing JSON response", "error", err, "status", status)
	}
}

// sendError serves err classified as an API error. Unexpected errors are
// reported and served as UnknownError.
func (s *Server) sendError(w http.ResponseWriter, err error) {
	apiErr, unexpected := classify(err)
	if unexpected {
		s.logger.Error("request failed", "error", err)
		s.reporter.Report(err, report.Error)
	}
	s.writeJSON(w, apiErr.Status, apiErr)
}
