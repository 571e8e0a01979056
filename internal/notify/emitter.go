// Package notify records informational notifications for users. Delivery is
// best-effort: a failed emit never undoes the workflow step that caused it.
package notify

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dukerupert/zooz/internal/apperr"
	"github.com/dukerupert/zooz/internal/metrics"
	"github.com/dukerupert/zooz/internal/model"
	"github.com/dukerupert/zooz/internal/websocket"
)

const (
	defaultRetryInterval = 30 * time.Second
	defaultMaxAttempts   = 5
)

// Store persists notifications.
type Store interface {
	Create(ctx context.Context, n model.Notification) (*model.Notification, error)
	GetByID(ctx context.Context, id string) (*model.Notification, error)
	ListByUser(ctx context.Context, userID string, unreadOnly bool) ([]model.Notification, error)
	MarkRead(ctx context.Context, id string) error
	MarkAllRead(ctx context.Context, userID string) (int64, error)
}

// Publisher pushes realtime messages to a user's open connections.
type Publisher interface {
	SendToUser(userID string, msg websocket.Message)
}

type queued struct {
	n        model.Notification
	attempts int
}

type Emitter struct {
	store       Store
	hub         Publisher
	logger      *slog.Logger
	now         func() time.Time
	interval    time.Duration
	maxAttempts int

	mu    sync.Mutex
	queue []queued
}

func NewEmitter(store Store, hub Publisher, logger *slog.Logger) *Emitter {
	return &Emitter{
		store:       store,
		hub:         hub,
		logger:      logger,
		now:         func() time.Time { return time.Now().UTC() },
		interval:    defaultRetryInterval,
		maxAttempts: defaultMaxAttempts,
	}
}

// SetRetryInterval changes how often Run replays failed emits.
func (e *Emitter) SetRetryInterval(d time.Duration) {
	if d > 0 {
		e.interval = d
	}
}

// Emit renders and stores a notification for userID. On a storage failure
// the notification is queued for Run to retry and the error is returned.
func (e *Emitter) Emit(ctx context.Context, userID string, typ model.NotificationType, relatedID string, data TemplateData) (*model.Notification, error) {
	r, err := render(typ, relatedID, data)
	if err != nil {
		metrics.Notifications.WithLabelValues(string(typ), "invalid").Inc()
		return nil, apperr.Validation("%v", err)
	}

	n := model.Notification{
		ID:        uuid.NewString(),
		UserID:    userID,
		Type:      typ,
		Title:     r.title,
		Message:   r.message,
		RelatedID: relatedID,
		ActionURL: r.actionURL,
		CreatedAt: e.now(),
	}

	created, err := e.store.Create(ctx, n)
	if err != nil {
		metrics.Notifications.WithLabelValues(string(typ), "failed").Inc()
		e.enqueue(queued{n: n, attempts: 1})
		return nil, err
	}
	metrics.Notifications.WithLabelValues(string(typ), "sent").Inc()
	e.publish(created)
	return created, nil
}

func (e *Emitter) publish(n *model.Notification) {
	if e.hub == nil {
		return
	}
	e.hub.SendToUser(n.UserID, websocket.NewMessage("notification", "created", n.ID, map[string]any{
		"type":  string(n.Type),
		"title": n.Title,
	}))
}

func (e *Emitter) enqueue(q queued) {
	e.mu.Lock()
	e.queue = append(e.queue, q)
	e.mu.Unlock()
}

// Pending returns the number of emits waiting for a retry.
func (e *Emitter) Pending() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.queue)
}

// Run replays queued emits every retry interval until ctx is done.
func (e *Emitter) Run(ctx context.Context) {
	ticker := time.NewTicker(e.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			e.Retry(ctx)
		}
	}
}

// Retry makes one delivery attempt for every queued emit and returns how
// many were stored. Emits that exhaust their attempts are dropped.
func (e *Emitter) Retry(ctx context.Context) int {
	e.mu.Lock()
	batch := e.queue
	e.queue = nil
	e.mu.Unlock()

	delivered := 0
	for _, q := range batch {
		created, err := e.store.Create(ctx, q.n)
		if err != nil {
			// The id is fixed before the first insert, so a row under it means
			// an earlier attempt committed even though it reported an error.
			if existing, gerr := e.store.GetByID(ctx, q.n.ID); gerr == nil && existing != nil {
				created, err = existing, nil
			}
		}
		if err == nil {
			delivered++
			metrics.Notifications.WithLabelValues(string(q.n.Type), "retried").Inc()
			e.publish(created)
			continue
		}

		q.attempts++
		if q.attempts >= e.maxAttempts {
			metrics.Notifications.WithLabelValues(string(q.n.Type), "dropped").Inc()
			e.logger.Error("dropping notification",
				"user_id", q.n.UserID, "type", q.n.Type, "related_id", q.n.RelatedID,
				"attempts", q.attempts, "error", err)
			continue
		}
		e.logger.Warn("notification retry failed", "user_id", q.n.UserID, "attempts", q.attempts, "error", err)
		e.enqueue(q)
	}
	return delivered
}

// MarkRead marks one of the actor's notifications as read.
func (e *Emitter) MarkRead(ctx context.Context, actor model.User, id string) (*model.Notification, error) {
	n, err := e.store.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if n == nil {
		return nil, apperr.NotFound("notification %s not found", id)
	}
	if n.UserID != actor.ID {
		return nil, apperr.Authorization("notification belongs to another user")
	}
	if n.Read {
		return n, nil
	}
	if err := e.store.MarkRead(ctx, id); err != nil {
		return nil, err
	}
	n.Read = true
	return n, nil
}

func (e *Emitter) MarkAllRead(ctx context.Context, actor model.User) (int64, error) {
	return e.store.MarkAllRead(ctx, actor.ID)
}

func (e *Emitter) ListUnread(ctx context.Context, userID string) ([]model.Notification, error) {
	return e.list(ctx, userID, true)
}

func (e *Emitter) List(ctx context.Context, userID string) ([]model.Notification, error) {
	return e.list(ctx, userID, false)
}

func (e *Emitter) list(ctx context.Context, userID string, unreadOnly bool) ([]model.Notification, error) {
	ns, err := e.store.ListByUser(ctx, userID, unreadOnly)
	if err != nil {
		return nil, err
	}
	if ns == nil {
		ns = []model.Notification{}
	}
	return ns, nil
}
