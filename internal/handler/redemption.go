package handler

import (
	"log/slog"
	"net/http"

	"github.com/dukerupert/zooz/internal/model"
	"github.com/dukerupert/zooz/internal/redemption"
	"github.com/dukerupert/zooz/internal/store"
	"github.com/dukerupert/zooz/internal/websocket"
)

type RedemptionHandler struct {
	redemptions *redemption.Service
	users       *store.UserStore
	hub         Broadcaster
	logger      *slog.Logger
}

func NewRedemptionHandler(rs *redemption.Service, us *store.UserStore, hub Broadcaster, logger *slog.Logger) *RedemptionHandler {
	return &RedemptionHandler{redemptions: rs, users: us, hub: hub, logger: logger}
}

func (h *RedemptionHandler) Platforms(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.redemptions.Platforms())
}

func (h *RedemptionHandler) Create(w http.ResponseWriter, r *http.Request) {
	u, ok := actor(w, r)
	if !ok {
		return
	}
	var req redemption.RequestInput
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, h.logger, "decode redemption", err)
		return
	}
	red, err := h.redemptions.Request(r.Context(), u, req)
	if err != nil {
		writeError(w, h.logger, "request redemption", err)
		return
	}

	broadcast(h.hub, red.ParentID, websocket.NewMessage("redemption", "created", red.ID, map[string]any{"child_id": red.ChildID}))
	writeJSON(w, http.StatusCreated, red)
}

func (h *RedemptionHandler) List(w http.ResponseWriter, r *http.Request) {
	u, ok := actor(w, r)
	if !ok {
		return
	}
	child, err := childFromQuery(r, h.users, u)
	if err != nil {
		writeError(w, h.logger, "get child", err)
		return
	}

	var rs []model.Redemption
	if child != nil {
		rs, err = h.redemptions.ListForChild(r.Context(), u, *child, statusParam(r))
	} else {
		rs, err = h.redemptions.ListForParent(r.Context(), u, statusParam(r))
	}
	if err != nil {
		writeError(w, h.logger, "list redemptions", err)
		return
	}
	writeJSON(w, http.StatusOK, rs)
}

func (h *RedemptionHandler) Get(w http.ResponseWriter, r *http.Request) {
	u, ok := actor(w, r)
	if !ok {
		return
	}
	red, err := h.redemptions.GetByID(r.Context(), u, r.PathValue("id"))
	if err != nil {
		writeError(w, h.logger, "get redemption", err)
		return
	}
	writeJSON(w, http.StatusOK, red)
}

func (h *RedemptionHandler) Review(w http.ResponseWriter, r *http.Request) {
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
		writeError(w, h.logger, "review redemption", err)
		return
	}
	red, err := h.redemptions.Review(r.Context(), u, r.PathValue("id"), d, req.Feedback)
	if err != nil {
		writeError(w, h.logger, "review redemption", err)
		return
	}

	extra := map[string]any{"child_id": red.ChildID, "status": red.Status}
	broadcast(h.hub, red.ParentID, websocket.NewMessage("redemption", string(red.Status), red.ID, extra))
	if red.Status == model.StatusApproved {
		broadcast(h.hub, red.ParentID, websocket.NewMessage("balance", "changed", red.ChildID, nil))
	}
	writeJSON(w, http.StatusOK, red)
}
