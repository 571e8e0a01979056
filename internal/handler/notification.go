package handler

import (
	"log/slog"
	"net/http"

	"github.com/dukerupert/zooz/internal/notify"
)

type NotificationHandler struct {
	emitter *notify.Emitter
	logger  *slog.Logger
}

func NewNotificationHandler(e *notify.Emitter, logger *slog.Logger) *NotificationHandler {
	return &NotificationHandler{emitter: e, logger: logger}
}

func (h *NotificationHandler) List(w http.ResponseWriter, r *http.Request) {
	u, ok := actor(w, r)
	if !ok {
		return
	}
	ns, err := h.emitter.List(r.Context(), u.ID)
	if err != nil {
		writeError(w, h.logger, "list notifications", err)
		return
	}
	writeJSON(w, http.StatusOK, ns)
}

func (h *NotificationHandler) ListUnread(w http.ResponseWriter, r *http.Request) {
	u, ok := actor(w, r)
	if !ok {
		return
	}
	ns, err := h.emitter.ListUnread(r.Context(), u.ID)
	if err != nil {
		writeError(w, h.logger, "list unread notifications", err)
		return
	}
	writeJSON(w, http.StatusOK, ns)
}

func (h *NotificationHandler) MarkRead(w http.ResponseWriter, r *http.Request) {
	u, ok := actor(w, r)
	if !ok {
		return
	}
	n, err := h.emitter.MarkRead(r.Context(), u, r.PathValue("id"))
	if err != nil {
		writeError(w, h.logger, "mark notification read", err)
		return
	}
	writeJSON(w, http.StatusOK, n)
}

func (h *NotificationHandler) MarkAllRead(w http.ResponseWriter, r *http.Request) {
	u, ok := actor(w, r)
	if !ok {
		return
	}
	n, err := h.emitter.MarkAllRead(r.Context(), u)
	if err != nil {
		writeError(w, h.logger, "mark all notifications read", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int64{"updated": n})
}
