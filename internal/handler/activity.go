package handler

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/dukerupert/zooz/internal/apperr"
	"github.com/dukerupert/zooz/internal/catalog"
	"github.com/dukerupert/zooz/internal/model"
	"github.com/dukerupert/zooz/internal/store"
	"github.com/dukerupert/zooz/internal/websocket"
)

type ActivityHandler struct {
	catalog *catalog.Service
	users   *store.UserStore
	hub     Broadcaster
	logger  *slog.Logger
}

func NewActivityHandler(cs *catalog.Service, us *store.UserStore, hub Broadcaster, logger *slog.Logger) *ActivityHandler {
	return &ActivityHandler{catalog: cs, users: us, hub: hub, logger: logger}
}

func (h *ActivityHandler) Create(w http.ResponseWriter, r *http.Request) {
	u, ok := actor(w, r)
	if !ok {
		return
	}
	var req catalog.ActivityInput
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, h.logger, "decode activity", err)
		return
	}

	var (
		a   *model.Activity
		err error
	)
	if req.IsTemplate {
		a, err = h.catalog.CreateTemplate(r.Context(), u, req)
	} else {
		a, err = h.catalog.Create(r.Context(), u, req)
	}
	if err != nil {
		writeError(w, h.logger, "create activity", err)
		return
	}

	broadcast(h.hub, a.CreatedBy, websocket.NewMessage("activity", "created", a.ID, nil))
	writeJSON(w, http.StatusCreated, a)
}

// List returns the actor's activities: those a parent created, or those
// open to a child.
func (h *ActivityHandler) List(w http.ResponseWriter, r *http.Request) {
	u, ok := actor(w, r)
	if !ok {
		return
	}

	var (
		activities []model.Activity
		err        error
	)
	switch {
	case u.IsChild():
		activities, err = h.catalog.ListForChild(r.Context(), u.ID)
	case u.IsAdmin() && r.URL.Query().Get("parent_id") != "":
		activities, err = h.catalog.ListForParent(r.Context(), r.URL.Query().Get("parent_id"))
	default:
		activities, err = h.catalog.ListForParent(r.Context(), u.ID)
	}
	if err != nil {
		writeError(w, h.logger, "list activities", err)
		return
	}
	writeJSON(w, http.StatusOK, activities)
}

func (h *ActivityHandler) ListForChild(w http.ResponseWriter, r *http.Request) {
	u, ok := actor(w, r)
	if !ok {
		return
	}
	c, err := childFor(r, h.users, u, r.PathValue("id"))
	if err != nil {
		writeError(w, h.logger, "get child", err)
		return
	}
	activities, err := h.catalog.ListForChild(r.Context(), c.ID)
	if err != nil {
		writeError(w, h.logger, "list activities", err)
		return
	}
	writeJSON(w, http.StatusOK, activities)
}

func (h *ActivityHandler) ListTemplates(w http.ResponseWriter, r *http.Request) {
	templates, err := h.catalog.ListTemplates(r.Context())
	if err != nil {
		writeError(w, h.logger, "list templates", err)
		return
	}
	writeJSON(w, http.StatusOK, templates)
}

// Get returns an activity to its creator's family or an admin. Templates
// are visible to everyone.
func (h *ActivityHandler) Get(w http.ResponseWriter, r *http.Request) {
	u, ok := actor(w, r)
	if !ok {
		return
	}
	a, err := h.catalog.GetByID(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, h.logger, "get activity", err)
		return
	}
	if !a.IsTemplate && !canSee(u, a) {
		writeError(w, h.logger, "get activity", apperr.Authorization("activity belongs to another family"))
		return
	}
	writeJSON(w, http.StatusOK, a)
}

func canSee(u model.User, a *model.Activity) bool {
	switch {
	case u.IsAdmin():
		return true
	case u.IsParent():
		return a.CreatedBy == u.ID
	case u.IsChild():
		return a.OpenToChild(u)
	}
	return false
}

func (h *ActivityHandler) Update(w http.ResponseWriter, r *http.Request) {
	u, ok := actor(w, r)
	if !ok {
		return
	}
	var req catalog.ActivityInput
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, h.logger, "decode activity", err)
		return
	}
	a, err := h.catalog.Update(r.Context(), u, r.PathValue("id"), req)
	if err != nil {
		writeError(w, h.logger, "update activity", err)
		return
	}

	broadcast(h.hub, a.CreatedBy, websocket.NewMessage("activity", "updated", a.ID, nil))
	writeJSON(w, http.StatusOK, a)
}

func (h *ActivityHandler) Delete(w http.ResponseWriter, r *http.Request) {
	u, ok := actor(w, r)
	if !ok {
		return
	}
	id := r.PathValue("id")
	a, err := h.catalog.GetByID(r.Context(), id)
	if err != nil {
		writeError(w, h.logger, "get activity", err)
		return
	}
	if err := h.catalog.Delete(r.Context(), u, id); err != nil {
		writeError(w, h.logger, "delete activity", err)
		return
	}

	broadcast(h.hub, a.CreatedBy, websocket.NewMessage("activity", "deleted", id, nil))
	w.WriteHeader(http.StatusNoContent)
}

type cloneRequest struct {
	AssignedTo []string   `json:"assigned_to"`
	DueDate    *time.Time `json:"due_date"`
}

func (h *ActivityHandler) CloneTemplate(w http.ResponseWriter, r *http.Request) {
	u, ok := actor(w, r)
	if !ok {
		return
	}
	var req cloneRequest
	if r.ContentLength != 0 {
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, h.logger, "decode clone", err)
			return
		}
	}
	a, err := h.catalog.CreateFromTemplate(r.Context(), u, r.PathValue("id"), req.AssignedTo, req.DueDate)
	if err != nil {
		writeError(w, h.logger, "clone template", err)
		return
	}

	broadcast(h.hub, a.CreatedBy, websocket.NewMessage("activity", "created", a.ID, map[string]any{"template_id": a.TemplateID}))
	writeJSON(w, http.StatusCreated, a)
}
