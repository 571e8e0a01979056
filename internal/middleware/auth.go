package middleware

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/dukerupert/zooz/internal/auth"
	"github.com/dukerupert/zooz/internal/model"
	"github.com/dukerupert/zooz/internal/store"
)

const SessionCookieName = "zooz_session"

// SessionToken returns the session token from the cookie or, for API
// clients, from an "Authorization: Bearer" header.
func SessionToken(r *http.Request) string {
	if cookie, err := r.Cookie(SessionCookieName); err == nil && cookie.Value != "" {
		return cookie.Value
	}
	if token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer "); ok {
		return strings.TrimSpace(token)
	}
	return ""
}

// RequireAuth resolves the session token to a user and populates AuthContext.
// Requests without a live session get 401.
func RequireAuth(sessions *store.SessionStore, users *store.UserStore) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := SessionToken(r)
			if token == "" {
				deny(w, http.StatusUnauthorized, "authentication required")
				return
			}

			sess, err := sessions.GetByToken(r.Context(), token)
			if err != nil || sess == nil {
				deny(w, http.StatusUnauthorized, "session expired")
				return
			}

			u, err := users.GetByID(r.Context(), sess.UserID)
			if err != nil || u == nil {
				deny(w, http.StatusUnauthorized, "session expired")
				return
			}

			ctx := auth.WithAuth(r.Context(), auth.AuthContext{User: *u, SessionID: sess.ID})
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireRole rejects authenticated users whose role is not listed.
func RequireRole(roles ...model.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			actor, ok := auth.Actor(r.Context())
			if !ok {
				deny(w, http.StatusUnauthorized, "authentication required")
				return
			}
			for _, role := range roles {
				if actor.Role == role {
					next.ServeHTTP(w, r)
					return
				}
			}
			deny(w, http.StatusForbidden, "forbidden")
		})
	}
}

func deny(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
