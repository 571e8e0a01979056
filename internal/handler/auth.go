package handler

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/dukerupert/zooz/internal/auth"
	"github.com/dukerupert/zooz/internal/middleware"
	"github.com/dukerupert/zooz/internal/model"
	"github.com/dukerupert/zooz/internal/store"
)

type AuthHandler struct {
	userStore    *store.UserStore
	sessionStore *store.SessionStore
	ttl          time.Duration
	logger       *slog.Logger
}

func NewAuthHandler(us *store.UserStore, ss *store.SessionStore, ttl time.Duration, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{userStore: us, sessionStore: ss, ttl: ttl, logger: logger}
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginResponse struct {
	User      model.User `json:"user"`
	Token     string     `json:"token"`
	ExpiresAt time.Time  `json:"expires_at"`
}

// Login checks email and password and starts a session. The token is set
// as a cookie and also returned for API clients.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, h.logger, "decode login", err)
		return
	}
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if req.Email == "" || req.Password == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "email and password are required"})
		return
	}

	u, err := h.userStore.Authenticate(r.Context(), req.Email, req.Password)
	if err != nil {
		writeError(w, h.logger, "login lookup", err)
		return
	}
	if u == nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "invalid email or password"})
		return
	}

	sess, err := h.sessionStore.Create(r.Context(), u.ID, h.ttl)
	if err != nil {
		writeError(w, h.logger, "create session", err)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     middleware.SessionCookieName,
		Value:    sess.Token,
		Path:     "/",
		MaxAge:   int(h.ttl / time.Second),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Secure:   r.TLS != nil,
	})
	h.logger.Info("login", "user_id", u.ID, "role", u.Role)
	writeJSON(w, http.StatusOK, loginResponse{User: *u, Token: sess.Token, ExpiresAt: sess.ExpiresAt})
}

func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if token := middleware.SessionToken(r); token != "" {
		if err := h.sessionStore.Delete(r.Context(), token); err != nil {
			h.logger.Error("delete session", "error", err)
		}
	}

	http.SetCookie(w, &http.Cookie{
		Name:     middleware.SessionCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
	})
	w.WriteHeader(http.StatusNoContent)
}

// Me returns the authenticated user, with the balance for children.
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	ac, ok := auth.FromContext(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "authentication required"})
		return
	}
	switch {
	case ac.User.IsChild():
		c, err := h.userStore.GetChild(r.Context(), ac.User.ID)
		if err != nil {
			writeError(w, h.logger, "get child", err)
			return
		}
		writeJSON(w, http.StatusOK, c)
	case ac.User.IsParent():
		p, err := h.userStore.GetParent(r.Context(), ac.User.ID)
		if err != nil {
			writeError(w, h.logger, "get parent", err)
			return
		}
		writeJSON(w, http.StatusOK, p)
	default:
		writeJSON(w, http.StatusOK, ac.User)
	}
}
