// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package api

import (
	"net/http"

	"github.com/heyqbnk/mini-apps-backend-template/launchparams"
)

// HeaderName carries launch parameters in their query-string form.
const HeaderName = "X-Launch-Params"

// rawLaunchParams prefers the header and falls back to the query.
func rawLaunchParams(r *http.Request) launchparams.Raw {
	if header := r.Header.Get(HeaderName); header != "" {
		return launchparams.FromString(header)
	}
	return launchparams.FromValues(r.URL.Query())
}

// authenticated rejects requests without valid launch parameters and
// stores the verified identity in the request context.
func (s *Server) authenticated(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		identity, err := s.authenticator.Authenticate(rawLaunchParams(r))
		if err != nil {
			s.logger.Debug("launch params rejected", "path", r.URL.Path, "error", err)
			s.sendError(w, err)
			return
		}
		next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), identity)))
	})
}

// adminOnly must run inside authenticated.
func (s *Server) adminOnly(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		identity, _ := IdentityFrom(r.Context())
		isAdmin, err := s.users.IsAdmin(r.Context(), identity.UserID())
		if err != nil {
			s.sendError(w, err)
			return
		}
		if !isAdmin {
			s.logger.Info("admin access denied", "identity", identity, "path", r.URL.Path)
			s.sendError(w, forbidden())
			return
		}
		next.ServeHTTP(w, r)
	})
}

// permissiveCORS allows any origin, answering preflight requests
// itself.
func permissiveCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := w.Header()
		header.Set("Access-Control-Allow-Origin", "*")
		header.Add("Vary", "Origin")
		if r.Method == http.MethodOptions && r.Header.Get("Access-Control-Request-Method") != "" {
			header.Set("Access-Control-Allow-Methods", "GET, POST, PATCH, OPTIONS")
			header.Set("Access-Control-Allow-Headers", "Content-Type, "+HeaderName)
			header.Set("Access-Control-Max-Age", "600")
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}
