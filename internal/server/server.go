package server

import (
	"context"
	"database/sql"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/dukerupert/zooz/internal/backup"
	"github.com/dukerupert/zooz/internal/catalog"
	"github.com/dukerupert/zooz/internal/config"
	"github.com/dukerupert/zooz/internal/database"
	"github.com/dukerupert/zooz/internal/handler"
	"github.com/dukerupert/zooz/internal/keylock"
	"github.com/dukerupert/zooz/internal/ledger"
	"github.com/dukerupert/zooz/internal/metrics"
	"github.com/dukerupert/zooz/internal/middleware"
	"github.com/dukerupert/zooz/internal/model"
	"github.com/dukerupert/zooz/internal/notify"
	"github.com/dukerupert/zooz/internal/redemption"
	"github.com/dukerupert/zooz/internal/reminder"
	"github.com/dukerupert/zooz/internal/store"
	"github.com/dukerupert/zooz/internal/submission"
	ws "github.com/dukerupert/zooz/internal/websocket"
)

const (
	loginLimit  = 10
	loginWindow = time.Minute
)

type Server struct {
	db          *sql.DB
	hub         *ws.Hub
	authH       *handler.AuthHandler
	activityH   *handler.ActivityHandler
	submissionH *handler.SubmissionHandler
	redemptionH *handler.RedemptionHandler
	ledgerH     *handler.LedgerHandler
	notifH      *handler.NotificationHandler
	sessions    *store.SessionStore
	users       *store.UserStore
	emitter     *notify.Emitter
	reminders   *reminder.Scheduler
	snapshots   *backup.Snapshotter
	rateLimiter *middleware.RateLimiter
	logger      *slog.Logger
}

// New builds every store, service and handler over db. One keylock is shared
// by the ledger and both review workflows.
func New(db *sql.DB, cfg *config.Config, logger *slog.Logger) *Server {
	hub := ws.NewHub(logger.With("component", "websocket"))

	users := store.NewUserStore(db)
	sessions := store.NewSessionStore(db)
	activities := store.NewActivityStore(db)
	submissions := store.NewSubmissionStore(db)
	redemptions := store.NewRedemptionStore(db)
	ledgerStore := store.NewLedgerStore(db)
	notifications := store.NewNotificationStore(db)

	locks := keylock.New()
	emitter := notify.NewEmitter(notifications, hub, logger.With("component", "notify"))
	emitter.SetRetryInterval(cfg.NotifyRetry)

	catalogSvc := catalog.NewService(activities, users)
	ledgerSvc := ledger.NewService(ledgerStore, users, locks)
	submissionSvc := submission.NewService(submissions, activities, emitter, locks, logger.With("component", "submission"))
	redemptionSvc := redemption.NewService(redemptions, ledgerStore, cfg.Platforms, emitter, locks, logger.With("component", "redemption"))
	reminders := reminder.NewScheduler(activities, submissions, users, notifications, emitter, cfg.ReminderInterval, logger.With("component", "reminder"))

	return &Server{
		db:          db,
		hub:         hub,
		authH:       handler.NewAuthHandler(users, sessions, cfg.SessionTTL, logger.With("component", "auth")),
		activityH:   handler.NewActivityHandler(catalogSvc, users, hub, logger.With("component", "activity")),
		submissionH: handler.NewSubmissionHandler(submissionSvc, users, hub, logger.With("component", "submission")),
		redemptionH: handler.NewRedemptionHandler(redemptionSvc, users, hub, logger.With("component", "redemption")),
		ledgerH:     handler.NewLedgerHandler(ledgerSvc, users, hub, logger.With("component", "ledger")),
		notifH:      handler.NewNotificationHandler(emitter, logger.With("component", "notification")),
		sessions:    sessions,
		users:       users,
		emitter:     emitter,
		reminders:   reminders,
		snapshots:   backup.New(db, cfg.S3, cfg.SnapshotKey, logger),
		rateLimiter: middleware.NewRateLimiter(loginLimit, loginWindow),
		logger:      logger,
	}
}

// SessionStore returns the session store for cleanup tasks.
func (s *Server) SessionStore() *store.SessionStore {
	return s.sessions
}

// RateLimiter returns the login rate limiter for cleanup tasks.
func (s *Server) RateLimiter() *middleware.RateLimiter {
	return s.rateLimiter
}

// Emitter returns the notification emitter so its retry loop can be run.
func (s *Server) Emitter() *notify.Emitter {
	return s.emitter
}

// Reminders returns the due-date reminder scheduler.
func (s *Server) Reminders() *reminder.Scheduler {
	return s.reminders
}

// Snapshots returns the snapshotter, or nil when no bucket is configured.
func (s *Server) Snapshots() *backup.Snapshotter {
	return s.snapshots
}

// Hub returns the websocket hub.
func (s *Server) Hub() *ws.Hub {
	return s.hub
}

func (s *Server) Router() http.Handler {
	outerMux := http.NewServeMux()

	// Public routes
	outerMux.Handle("POST /login", middleware.RateLimit(s.rateLimiter)(http.HandlerFunc(s.authH.Login)))
	outerMux.HandleFunc("POST /logout", s.authH.Logout)
	outerMux.HandleFunc("GET /health", s.healthHandler)
	outerMux.Handle("GET /metrics", metrics.Handler())

	// Protected routes, wrapped with RequireAuth
	protectedMux := http.NewServeMux()
	s.registerProtectedRoutes(protectedMux)

	authMiddleware := middleware.RequireAuth(s.sessions, s.users)
	outerMux.Handle("/", authMiddleware(protectedMux))

	return middleware.RequestLogger(s.logger.With("component", "http"))(outerMux)
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	status, code := "ok", http.StatusOK
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	version, err := database.SchemaVersion(ctx, s.db)
	if err != nil {
		s.logger.Error("health check", "error", err)
		status, code = "unavailable", http.StatusServiceUnavailable
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]any{
		"status":         status,
		"schema_version": version,
		"ws_clients":     s.hub.ClientCount(),
	})
}

func (s *Server) registerProtectedRoutes(mux *http.ServeMux) {
	managers := middleware.RequireRole(model.RoleParent, model.RoleAdmin)
	admins := middleware.RequireRole(model.RoleAdmin)

	mux.HandleFunc("GET /api/me", s.authH.Me)

	// Activities
	mux.HandleFunc("GET /api/activities", s.activityH.List)
	mux.Handle("POST /api/activities", managers(http.HandlerFunc(s.activityH.Create)))
	mux.HandleFunc("GET /api/activities/templates", s.activityH.ListTemplates)
	mux.Handle("POST /api/activities/templates/{id}/clone", managers(http.HandlerFunc(s.activityH.CloneTemplate)))
	mux.HandleFunc("GET /api/activities/{id}", s.activityH.Get)
	mux.Handle("PUT /api/activities/{id}", managers(http.HandlerFunc(s.activityH.Update)))
	mux.Handle("DELETE /api/activities/{id}", managers(http.HandlerFunc(s.activityH.Delete)))
	mux.HandleFunc("GET /api/children/{id}/activities", s.activityH.ListForChild)

	// Submissions
	mux.HandleFunc("POST /api/submissions", s.submissionH.Create)
	mux.HandleFunc("GET /api/submissions", s.submissionH.List)
	mux.HandleFunc("GET /api/submissions/{id}", s.submissionH.Get)
	mux.HandleFunc("POST /api/submissions/{id}/review", s.submissionH.Review)

	// Redemptions
	mux.HandleFunc("GET /api/platforms", s.redemptionH.Platforms)
	mux.HandleFunc("POST /api/redemptions", s.redemptionH.Create)
	mux.HandleFunc("GET /api/redemptions", s.redemptionH.List)
	mux.HandleFunc("GET /api/redemptions/{id}", s.redemptionH.Get)
	mux.HandleFunc("POST /api/redemptions/{id}/review", s.redemptionH.Review)

	// Ledger
	mux.HandleFunc("GET /api/children/{id}/balance", s.ledgerH.Balance)
	mux.HandleFunc("GET /api/children/{id}/transactions", s.ledgerH.History)
	mux.HandleFunc("GET /api/children/{id}/transactions.xlsx", s.ledgerH.Export)
	mux.Handle("POST /api/children/{id}/adjustments", managers(http.HandlerFunc(s.ledgerH.Adjust)))

	// Notifications
	mux.HandleFunc("GET /api/notifications", s.notifH.List)
	mux.HandleFunc("GET /api/notifications/unread", s.notifH.ListUnread)
	mux.HandleFunc("POST /api/notifications/{id}/read", s.notifH.MarkRead)
	mux.HandleFunc("POST /api/notifications/read-all", s.notifH.MarkAllRead)

	// Snapshots
	mux.Handle("GET /api/admin/snapshots", admins(http.HandlerFunc(s.listSnapshots)))
	mux.Handle("POST /api/admin/snapshots", admins(http.HandlerFunc(s.runSnapshot)))

	// WebSocket
	mux.HandleFunc("GET /ws", ws.HandleWebSocket(s.hub, s.logger.With("component", "websocket")))
}

func (s *Server) runSnapshot(w http.ResponseWriter, r *http.Request) {
	if s.snapshots == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "snapshots are not configured"})
		return
	}
	snap, err := s.snapshots.Run(r.Context())
	if err != nil {
		s.logger.Error("snapshot", "error", err)
		writeJSON(w, http.StatusBadGateway, map[string]string{"error": "snapshot failed"})
		return
	}
	writeJSON(w, http.StatusCreated, snap)
}

func (s *Server) listSnapshots(w http.ResponseWriter, r *http.Request) {
	if s.snapshots == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "snapshots are not configured"})
		return
	}
	snaps, err := s.snapshots.List(r.Context())
	if err != nil {
		s.logger.Error("list snapshots", "error", err)
		writeJSON(w, http.StatusBadGateway, map[string]string{"error": "list snapshots failed"})
		return
	}
	if snaps == nil {
		snaps = []backup.Snapshot{}
	}
	writeJSON(w, http.StatusOK, snaps)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
