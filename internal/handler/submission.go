package handler

import (
	"log/slog"
	"net/http"

	"github.com/dukerupert/zooz/internal/model"
	"github.com/dukerupert/zooz/internal/store"
	"github.com/dukerupert/zooz/internal/submission"
	"github.com/dukerupert/zooz/internal/websocket"
)

type SubmissionHandler struct {
	submissions *submission.Service
	users       *store.UserStore
	hub         Broadcaster
	logger      *slog.Logger
}

func NewSubmissionHandler(ss *submission.Service, us *store.UserStore, hub Broadcaster, logger *slog.Logger) *SubmissionHandler {
	return &SubmissionHandler{submissions: ss, users: us, hub: hub, logger: logger}
}

func (h *SubmissionHandler) Create(w http.ResponseWriter, r *http.Request) {
	u, ok := actor(w, r)
	if !ok {
		return
	}
	var req submission.SubmitInput
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, h.logger, "decode submission", err)
		return
	}
	sub, err := h.submissions.Submit(r.Context(), u, req)
	if err != nil {
		writeError(w, h.logger, "submit", err)
		return
	}

	broadcast(h.hub, sub.ParentID, websocket.NewMessage("submission", "created", sub.ID, map[string]any{"child_id": sub.ChildID}))
	writeJSON(w, http.StatusCreated, sub)
}

// List returns the parent's review queue, or one child's submissions when
// the actor is a child or passes child_id. ?status= narrows either.
func (h *SubmissionHandler) List(w http.ResponseWriter, r *http.Request) {
	u, ok := actor(w, r)
	if !ok {
		return
	}
	child, err := childFromQuery(r, h.users, u)
	if err != nil {
		writeError(w, h.logger, "get child", err)
		return
	}

	var subs []model.Submission
	if child != nil {
		subs, err = h.submissions.ListForChild(r.Context(), u, *child, statusParam(r))
	} else {
		subs, err = h.submissions.ListForParent(r.Context(), u, statusParam(r))
	}
	if err != nil {
		writeError(w, h.logger, "list submissions", err)
		return
	}
	writeJSON(w, http.StatusOK, subs)
}

func (h *SubmissionHandler) Get(w http.ResponseWriter, r *http.Request) {
	u, ok := actor(w, r)
	if !ok {
		return
	}
	sub, err := h.submissions.GetByID(r.Context(), u, r.PathValue("id"))
	if err != nil {
		writeError(w, h.logger, "get submission", err)
		return
	}
	writeJSON(w, http.StatusOK, sub)
}

func (h *SubmissionHandler) Review(w http.ResponseWriter, r *http.Request) {
	u, ok := actor(w, r)
	if !ok {
		return
	}
	var req reviewRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, h.logger, "decode review", err)
		return
	}
	d, err := req.decision()
	if err != nil {
		writeError(w, h.logger, "review submission", err)
		return
	}
	sub, err := h.submissions.Review(r.Context(), u, r.PathValue("id"), d, req.Feedback)
	if err != nil {
		writeError(w, h.logger, "review submission", err)
		return
	}

	extra := map[string]any{"child_id": sub.ChildID, "status": sub.Status}
	broadcast(h.hub, sub.ParentID, websocket.NewMessage("submission", string(sub.Status), sub.ID, extra))
	if sub.TokenAwarded {
		broadcast(h.hub, sub.ParentID, websocket.NewMessage("balance", "changed", sub.ChildID, nil))
	}
	writeJSON(w, http.StatusOK, sub)
}
