// Package submission runs the child-submits, parent-reviews workflow for
// activities.
package submission

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/dukerupert/zooz/internal/apperr"
	"github.com/dukerupert/zooz/internal/keylock"
	"github.com/dukerupert/zooz/internal/ledger"
	"github.com/dukerupert/zooz/internal/metrics"
	"github.com/dukerupert/zooz/internal/model"
	"github.com/dukerupert/zooz/internal/notify"
	"github.com/dukerupert/zooz/internal/review"
	"github.com/dukerupert/zooz/internal/store"
)

// Notifier emits informational notifications.
type Notifier interface {
	Emit(ctx context.Context, userID string, typ model.NotificationType, relatedID string, data notify.TemplateData) (*model.Notification, error)
}

type SubmitInput struct {
	ActivityID  string `json:"activity_id"`
	EvidenceURL string `json:"evidence_url"`
	Notes       string `json:"notes"`
}

type Service struct {
	submissions *store.SubmissionStore
	activities  *store.ActivityStore
	notifier    Notifier
	locks       *keylock.Mutex
	logger      *slog.Logger
	now         func() time.Time
}

func NewService(submissions *store.SubmissionStore, activities *store.ActivityStore, notifier Notifier, locks *keylock.Mutex, logger *slog.Logger) *Service {
	return &Service{
		submissions: submissions,
		activities:  activities,
		notifier:    notifier,
		locks:       locks,
		logger:      logger,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

func (s *Service) SetClock(now func() time.Time) { s.now = now }

func key(id string) string { return "submission:" + id }

// Submit records a child's claim to have completed an activity. Past due
// dates are accepted.
func (s *Service) Submit(ctx context.Context, actor model.User, in SubmitInput) (*model.Submission, error) {
	if !actor.IsChild() {
		return nil, apperr.Authorization("only children submit activities")
	}
	a, err := s.activities.GetByID(ctx, in.ActivityID)
	if err != nil {
		return nil, err
	}
	if a == nil {
		return nil, apperr.NotFound("activity %s not found", in.ActivityID)
	}
	if a.IsTemplate {
		return nil, apperr.Authorization("templates cannot be submitted")
	}
	if len(a.AssignedTo) == 0 && a.CreatedBy != actor.ParentID {
		return nil, apperr.Authorization("activity belongs to another family")
	}
	if !a.OpenToChild(actor) {
		return nil, apperr.Authorization("activity is assigned to other children")
	}

	notes := strings.TrimSpace(in.Notes)
	evidence := strings.TrimSpace(in.EvidenceURL)
	if notes == "" {
		return nil, apperr.Validation("notes are required")
	}
	if a.RequiresEvidence && evidence == "" {
		return nil, apperr.Validation("this activity requires evidence")
	}

	sub, err := s.submissions.Create(ctx, model.Submission{
		ActivityID:  a.ID,
		ChildID:     actor.ID,
		ParentID:    actor.ParentID,
		EvidenceURL: evidence,
		Notes:       notes,
		TokenValue:  a.TokenValue,
		SubmittedAt: s.now(),
	})
	if err != nil {
		return nil, err
	}
	metrics.Submissions.Inc()

	s.emit(ctx, sub.ParentID, model.NotifSubmission, sub.ID, notify.TemplateData{
		ChildName:     actor.DisplayName,
		ActivityTitle: a.Title,
	})
	return sub, nil
}

// Review approves or rejects a pending submission. Approval credits the
// snapshotted token value in the same database transaction as the status
// change. A submission that already left pending reports InvalidState.
func (s *Service) Review(ctx context.Context, actor model.User, id string, d review.Decision, feedback string) (*model.Submission, error) {
	unlock := s.locks.Lock(key(id))
	defer unlock()

	sub, err := s.submissions.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if sub == nil {
		return nil, apperr.NotFound("submission %s not found", id)
	}
	if err := review.Authorize(actor, sub.ParentID); err != nil {
		return nil, err
	}
	if err := review.Check(sub.Status, d, feedback); err != nil {
		if errors.Is(err, apperr.ErrInvalidState) {
			metrics.ReviewConflicts.WithLabelValues("submission").Inc()
		}
		return nil, err
	}
	feedback = strings.TrimSpace(feedback)

	var updated *model.Submission
	switch d {
	case review.Approve:
		unlockChild := s.locks.Lock(ledger.ChildKey(sub.ChildID))
		var credit *model.Transaction
		updated, credit, err = s.submissions.Approve(ctx, id, actor.ID, feedback, s.now())
		unlockChild()
		if err == nil {
			metrics.ObserveLedger(credit.Amount)
		}
	case review.Reject:
		updated, err = s.submissions.Reject(ctx, id, actor.ID, feedback, s.now())
	}
	if err != nil {
		if errors.Is(err, apperr.ErrInvalidState) {
			metrics.ReviewConflicts.WithLabelValues("submission").Inc()
		}
		return nil, err
	}
	metrics.Reviews.WithLabelValues("submission", string(d)).Inc()

	title := ""
	if a, err := s.activities.GetByID(ctx, updated.ActivityID); err == nil && a != nil {
		title = a.Title
	}
	typ := model.NotifApproval
	if d == review.Reject {
		typ = model.NotifRejection
	}
	s.emit(ctx, updated.ChildID, typ, updated.ID, notify.TemplateData{
		ActivityTitle: title,
		TokenValue:    updated.TokenValue,
	})
	return updated, nil
}

// emit sends a notification without letting a failure reach the caller.
func (s *Service) emit(ctx context.Context, userID string, typ model.NotificationType, relatedID string, data notify.TemplateData) {
	if s.notifier == nil {
		return
	}
	if _, err := s.notifier.Emit(ctx, userID, typ, relatedID, data); err != nil {
		s.logger.Warn("emit notification", "type", typ, "user_id", userID, "related_id", relatedID, "error", err)
	}
}

func (s *Service) GetByID(ctx context.Context, actor model.User, id string) (*model.Submission, error) {
	sub, err := s.submissions.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if sub == nil {
		return nil, apperr.NotFound("submission %s not found", id)
	}
	if err := review.AuthorizeView(actor, sub.ChildID, sub.ParentID); err != nil {
		return nil, err
	}
	return sub, nil
}

// ListForParent returns the submissions the parent actor reviews. An empty
// status lists all.
func (s *Service) ListForParent(ctx context.Context, actor model.User, status model.Status) ([]model.Submission, error) {
	if !actor.IsParent() {
		return nil, apperr.Authorization("only parents have a review queue")
	}
	if status != "" && !status.Valid() {
		return nil, apperr.Validation("unknown status %q", status)
	}
	return orEmpty(s.submissions.ListByParent(ctx, actor.ID, status))
}

// ListForChild returns childID's submissions to the child, its parent, or
// an admin.
func (s *Service) ListForChild(ctx context.Context, actor model.User, child model.User, status model.Status) ([]model.Submission, error) {
	if err := review.AuthorizeView(actor, child.ID, child.ParentID); err != nil {
		return nil, err
	}
	if status != "" && !status.Valid() {
		return nil, apperr.Validation("unknown status %q", status)
	}
	return orEmpty(s.submissions.ListByChild(ctx, child.ID, status))
}

func orEmpty(subs []model.Submission, err error) ([]model.Submission, error) {
	if err != nil {
		return nil, err
	}
	if subs == nil {
		subs = []model.Submission{}
	}
	return subs, nil
}
