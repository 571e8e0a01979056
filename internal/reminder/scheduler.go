// Package reminder nudges children about activities that are almost due.
package reminder

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/dukerupert/zooz/internal/model"
	"github.com/dukerupert/zooz/internal/notify"
	"github.com/dukerupert/zooz/internal/store"
)

const defaultWindow = 24 * time.Hour

// Notifier emits informational notifications.
type Notifier interface {
	Emit(ctx context.Context, userID string, typ model.NotificationType, relatedID string, data notify.TemplateData) (*model.Notification, error)
}

// Scheduler periodically sends one reminder per (activity, child) for
// activities due within the window that the child has not submitted.
type Scheduler struct {
	mu            sync.RWMutex
	activities    *store.ActivityStore
	submissions   *store.SubmissionStore
	users         *store.UserStore
	notifications *store.NotificationStore
	notifier      Notifier
	logger        *slog.Logger
	interval      time.Duration
	window        time.Duration
	now           func() time.Time
	cancel        context.CancelFunc
	done          chan struct{}
}

func NewScheduler(activities *store.ActivityStore, submissions *store.SubmissionStore, users *store.UserStore,
	notifications *store.NotificationStore, notifier Notifier, interval time.Duration, logger *slog.Logger) *Scheduler {
	return &Scheduler{
		activities:    activities,
		submissions:   submissions,
		users:         users,
		notifications: notifications,
		notifier:      notifier,
		logger:        logger,
		interval:      interval,
		window:        defaultWindow,
		now:           func() time.Time { return time.Now().UTC() },
	}
}

func (s *Scheduler) SetClock(now func() time.Time) { s.now = now }

// Start begins the scheduler loop.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	ctx, s.cancel = context.WithCancel(ctx)
	s.done = make(chan struct{})
	s.mu.Unlock()

	go func() {
		defer close(s.done)
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if _, err := s.Tick(ctx); err != nil {
					s.logger.Error("reminder tick", "error", err)
				}
			}
		}
	}()
}

// Stop gracefully stops the scheduler.
func (s *Scheduler) Stop() {
	s.mu.RLock()
	cancel := s.cancel
	done := s.done
	s.mu.RUnlock()

	if cancel != nil {
		cancel()
	}
	if done != nil {
		<-done
	}
}

// Tick sends every reminder currently due and returns how many were sent.
func (s *Scheduler) Tick(ctx context.Context) (int, error) {
	now := s.now()
	due, err := s.activities.ListDueBetween(ctx, now, now.Add(s.window))
	if err != nil {
		return 0, err
	}

	sent := 0
	for _, a := range due {
		children, err := s.recipients(ctx, a)
		if err != nil {
			s.logger.Warn("reminder recipients", "activity_id", a.ID, "error", err)
			continue
		}
		for _, childID := range children {
			ok, err := s.remind(ctx, a, childID, now)
			if err != nil {
				s.logger.Warn("send reminder", "activity_id", a.ID, "child_id", childID, "error", err)
				continue
			}
			if ok {
				sent++
			}
		}
	}
	if sent > 0 {
		s.logger.Info("reminders sent", "count", sent)
	}
	return sent, nil
}

func (s *Scheduler) recipients(ctx context.Context, a model.Activity) ([]string, error) {
	if len(a.AssignedTo) > 0 {
		return a.AssignedTo, nil
	}
	children, err := s.users.ListChildren(ctx, a.CreatedBy)
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(children))
	for _, c := range children {
		ids = append(ids, c.ID)
	}
	return ids, nil
}

func (s *Scheduler) remind(ctx context.Context, a model.Activity, childID string, now time.Time) (bool, error) {
	submitted, err := s.submissions.HasSubmitted(ctx, a.ID, childID)
	if err != nil || submitted {
		return false, err
	}
	fresh, err := s.notifications.RecordReminder(ctx, a.ID, childID, now)
	if err != nil || !fresh {
		return false, err
	}
	// A failed emit is queued for retry by the notifier, so the record stays.
	if _, err := s.notifier.Emit(ctx, childID, model.NotifReminder, a.ID, notify.TemplateData{ActivityTitle: a.Title}); err != nil {
		s.logger.Warn("emit reminder", "activity_id", a.ID, "child_id", childID, "error", err)
	}
	return true, nil
}
