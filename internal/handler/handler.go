// Package handler is the JSON HTTP adapter over the workflow services.
package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/dukerupert/zooz/internal/apperr"
	"github.com/dukerupert/zooz/internal/auth"
	"github.com/dukerupert/zooz/internal/model"
	"github.com/dukerupert/zooz/internal/review"
	"github.com/dukerupert/zooz/internal/store"
	"github.com/dukerupert/zooz/internal/websocket"
)

// Broadcaster pushes sync messages to a family's connected clients.
type Broadcaster interface {
	BroadcastFamily(familyID string, msg websocket.Message)
}

func broadcast(b Broadcaster, familyID string, msg websocket.Message) {
	if b != nil && familyID != "" {
		b.BroadcastFamily(familyID, msg)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError maps domain errors to their status and hides everything else
// behind a 500.
func writeError(w http.ResponseWriter, logger *slog.Logger, msg string, err error) {
	status := apperr.HTTPStatus(err)
	if status == http.StatusInternalServerError {
		logger.Error(msg, "error", err)
		writeJSON(w, status, map[string]string{"error": "internal error"})
		return
	}
	writeJSON(w, status, map[string]string{"error": err.Error(), "kind": string(apperr.KindOf(err))})
}

func decodeJSON(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return apperr.Validation("invalid JSON: %v", err)
	}
	return nil
}

// actor returns the authenticated user or writes a 401.
func actor(w http.ResponseWriter, r *http.Request) (model.User, bool) {
	u, ok := auth.Actor(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "authentication required"})
	}
	return u, ok
}

func statusParam(r *http.Request) model.Status {
	return model.Status(strings.ToLower(strings.TrimSpace(r.URL.Query().Get("status"))))
}

// parseTime accepts RFC 3339 or a bare date. A bare "to" date covers the
// whole day.
func parseTime(s string, endOfDay bool) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.UTC(), nil
	}
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return time.Time{}, apperr.Validation("bad time %q, want RFC 3339 or YYYY-MM-DD", s)
	}
	if endOfDay {
		t = t.Add(24*time.Hour - time.Nanosecond)
	}
	return t, nil
}

func parseLimit(s string) (int, error) {
	if s == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return 0, apperr.Validation("limit must be a non-negative integer")
	}
	return n, nil
}

type reviewRequest struct {
	Decision string `json:"decision"`
	Feedback string `json:"feedback"`
}

func (req reviewRequest) decision() (review.Decision, error) {
	return review.ParseDecision(req.Decision)
}

// childFor loads a child and checks actor may read its records.
func childFor(r *http.Request, users *store.UserStore, u model.User, childID string) (*model.Child, error) {
	c, err := users.GetChild(r.Context(), childID)
	if err != nil {
		return nil, err
	}
	if c == nil {
		return nil, apperr.NotFound("child %s not found", childID)
	}
	if err := review.AuthorizeView(u, c.ID, c.ParentID); err != nil {
		return nil, err
	}
	return c, nil
}

// childFromQuery resolves the child a listing is about: the actor itself
// for children, or the child_id query parameter for parents and admins.
func childFromQuery(r *http.Request, users *store.UserStore, u model.User) (*model.User, error) {
	if u.IsChild() {
		return &u, nil
	}
	id := r.URL.Query().Get("child_id")
	if id == "" {
		return nil, nil
	}
	c, err := childFor(r, users, u, id)
	if err != nil {
		return nil, err
	}
	return &c.User, nil
}
