// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package graphqlapi

import (
	"net/http"

	"github.com/ManuGH/restreamer/internal/auth"
	"github.com/ManuGH/restreamer/internal/state"
)

// requireAuth guards a surface with HTTP basic auth against the first set
// password hash of kinds, in order. Without any hash the surface is open.
// The username is ignored; only the password counts.
func (h *Handler) requireAuth(kinds ...state.PasswordKind) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			settings := h.deps.Store.Settings.Get()
			var hash *string
			for _, kind := range kinds {
				if p := *settings.Hash(kind); p != nil {
					hash = p
					break
				}
			}
			if hash == nil {
				next.ServeHTTP(w, r)
				return
			}
			if _, password, ok := r.BasicAuth(); ok {
				if match, err := auth.VerifyPassword(password, *hash); err == nil && match {
					next.ServeHTTP(w, r)
					return
				}
			}
			w.Header().Set("WWW-Authenticate", `Basic realm="restreamer"`)
			http.Error(w, "unauthorized", http.StatusUnauthorized)
		})
	}
}
