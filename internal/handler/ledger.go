package handler

import (
	"bytes"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/dukerupert/zooz/internal/export"
	"github.com/dukerupert/zooz/internal/ledger"
	"github.com/dukerupert/zooz/internal/model"
	"github.com/dukerupert/zooz/internal/store"
	"github.com/dukerupert/zooz/internal/websocket"
)

type LedgerHandler struct {
	ledger *ledger.Service
	users  *store.UserStore
	hub    Broadcaster
	logger *slog.Logger
	now    func() time.Time
}

func NewLedgerHandler(ls *ledger.Service, us *store.UserStore, hub Broadcaster, logger *slog.Logger) *LedgerHandler {
	return &LedgerHandler{ledger: ls, users: us, hub: hub, logger: logger, now: time.Now}
}

// Balance returns the child's totals and current balance.
func (h *LedgerHandler) Balance(w http.ResponseWriter, r *http.Request) {
	u, ok := actor(w, r)
	if !ok {
		return
	}
	c, err := childFor(r, h.users, u, r.PathValue("id"))
	if err != nil {
		writeError(w, h.logger, "get child", err)
		return
	}
	stats, err := h.ledger.Stats(r.Context(), c.ID)
	if err != nil {
		writeError(w, h.logger, "token stats", err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

// historyFilter reads ?source=a,b&from=&to=&limit= into a filter.
func historyFilter(r *http.Request) (ledger.HistoryFilter, error) {
	q := r.URL.Query()
	var f ledger.HistoryFilter
	for _, v := range q["source"] {
		for _, s := range strings.Split(v, ",") {
			if s = strings.TrimSpace(s); s != "" {
				f.Sources = append(f.Sources, model.TransactionSource(s))
			}
		}
	}
	var err error
	if f.From, err = parseTime(q.Get("from"), false); err != nil {
		return f, err
	}
	if f.To, err = parseTime(q.Get("to"), true); err != nil {
		return f, err
	}
	if f.Limit, err = parseLimit(q.Get("limit")); err != nil {
		return f, err
	}
	return f, nil
}

func (h *LedgerHandler) History(w http.ResponseWriter, r *http.Request) {
	u, ok := actor(w, r)
	if !ok {
		return
	}
	c, err := childFor(r, h.users, u, r.PathValue("id"))
	if err != nil {
		writeError(w, h.logger, "get child", err)
		return
	}
	f, err := historyFilter(r)
	if err != nil {
		writeError(w, h.logger, "history filter", err)
		return
	}
	txns, err := h.ledger.History(r.Context(), c.ID, f)
	if err != nil {
		writeError(w, h.logger, "history", err)
		return
	}
	writeJSON(w, http.StatusOK, txns)
}

// Export streams the filtered history as an xlsx workbook.
func (h *LedgerHandler) Export(w http.ResponseWriter, r *http.Request) {
	u, ok := actor(w, r)
	if !ok {
		return
	}
	c, err := childFor(r, h.users, u, r.PathValue("id"))
	if err != nil {
		writeError(w, h.logger, "get child", err)
		return
	}
	f, err := historyFilter(r)
	if err != nil {
		writeError(w, h.logger, "history filter", err)
		return
	}
	txns, err := h.ledger.History(r.Context(), c.ID, f)
	if err != nil {
		writeError(w, h.logger, "history", err)
		return
	}
	stats, err := h.ledger.Stats(r.Context(), c.ID)
	if err != nil {
		writeError(w, h.logger, "token stats", err)
		return
	}

	var buf bytes.Buffer
	if err := export.WriteHistory(&buf, *c, txns, *stats); err != nil {
		writeError(w, h.logger, "export history", err)
		return
	}
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", export.HistoryFilename(c.DisplayName, h.now())))
	w.WriteHeader(http.StatusOK)
	w.Write(buf.Bytes())
}

type adjustRequest struct {
	Amount      int    `json:"amount"`
	Description string `json:"description"`
}

func (h *LedgerHandler) Adjust(w http.ResponseWriter, r *http.Request) {
	u, ok := actor(w, r)
	if !ok {
		return
	}
	var req adjustRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, h.logger, "decode adjustment", err)
		return
	}
	t, err := h.ledger.Adjust(r.Context(), u, r.PathValue("id"), req.Amount, req.Description)
	if err != nil {
		writeError(w, h.logger, "adjust balance", err)
		return
	}

	if c, err := h.users.GetChild(r.Context(), t.ChildID); err == nil && c != nil {
		broadcast(h.hub, c.ParentID, websocket.NewMessage("balance", "changed", c.ID, map[string]any{"balance": c.TokenBalance}))
	}
	writeJSON(w, http.StatusCreated, t)
}
