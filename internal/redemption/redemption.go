// Package redemption turns a child's tokens into gaming currency once a
// parent approves the request.
package redemption

import (
	"context"
	"errors"
	"fmt"
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

type RequestInput struct {
	Platform  string `json:"platform"`
	Amount    int    `json:"amount"`
	AccountID string `json:"account_id"`
	Notes     string `json:"notes"`
}

type Service struct {
	redemptions *store.RedemptionStore
	ledger      *store.LedgerStore
	notifier    Notifier
	locks       *keylock.Mutex
	logger      *slog.Logger
	platforms   []model.Platform
	now         func() time.Time
}

func NewService(redemptions *store.RedemptionStore, ledger *store.LedgerStore, platforms []model.Platform, notifier Notifier, locks *keylock.Mutex, logger *slog.Logger) *Service {
	return &Service{
		redemptions: redemptions,
		ledger:      ledger,
		notifier:    notifier,
		locks:       locks,
		logger:      logger,
		platforms:   platforms,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

func (s *Service) SetClock(now func() time.Time) { s.now = now }

func key(id string) string { return "redemption:" + id }

// Platforms returns the configured destinations and their conversion rates.
func (s *Service) Platforms() []model.Platform {
	out := make([]model.Platform, len(s.platforms))
	copy(out, s.platforms)
	return out
}

func (s *Service) platform(name string) (model.Platform, bool) {
	name = strings.ToLower(strings.TrimSpace(name))
	for _, p := range s.platforms {
		if p.Name == name {
			return p, true
		}
	}
	return model.Platform{}, false
}

func describe(r *model.Redemption, label string) string {
	return fmt.Sprintf("%d tokens for %d %s currency", r.Amount, r.GameAmount, label)
}

// Request records a pending redemption. The balance is checked now and again
// at approval; nothing is reserved in between.
func (s *Service) Request(ctx context.Context, actor model.User, in RequestInput) (*model.Redemption, error) {
	if !actor.IsChild() {
		return nil, apperr.Authorization("only children request redemptions")
	}
	if in.Amount <= 0 {
		return nil, apperr.Validation("amount must be positive")
	}
	p, ok := s.platform(in.Platform)
	if !ok {
		return nil, apperr.Validation("unknown platform %q", in.Platform)
	}
	accountID := strings.TrimSpace(in.AccountID)
	if accountID == "" {
		return nil, apperr.Validation("account id is required")
	}

	balance, err := s.ledger.Balance(ctx, actor.ID)
	if err != nil {
		return nil, err
	}
	if in.Amount > balance {
		return nil, apperr.InsufficientBalance(balance, in.Amount)
	}

	r, err := s.redemptions.Create(ctx, model.Redemption{
		ChildID:    actor.ID,
		ParentID:   actor.ParentID,
		Platform:   p.Name,
		Amount:     in.Amount,
		GameAmount: in.Amount * p.ConversionRate,
		AccountID:  accountID,
		Notes:      strings.TrimSpace(in.Notes),
		CreatedAt:  s.now(),
	})
	if err != nil {
		return nil, err
	}
	metrics.RedemptionRequests.Inc()

	s.emit(ctx, r.ParentID, model.NotifSubmission, r.ID, notify.TemplateData{
		ChildName:     actor.DisplayName,
		ActivityTitle: describe(r, p.Label),
		TokenValue:    r.Amount,
		Redemption:    true,
	})
	return r, nil
}

// Review approves or rejects a pending redemption. Approval re-reads the
// balance inside the debit transaction; an overdraft fails with
// InsufficientBalance and the redemption stays pending.
func (s *Service) Review(ctx context.Context, actor model.User, id string, d review.Decision, feedback string) (*model.Redemption, error) {
	unlock := s.locks.Lock(key(id))
	defer unlock()

	r, err := s.redemptions.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if r == nil {
		return nil, apperr.NotFound("redemption %s not found", id)
	}
	if err := review.Authorize(actor, r.ParentID); err != nil {
		return nil, err
	}
	if err := review.Check(r.Status, d, feedback); err != nil {
		if errors.Is(err, apperr.ErrInvalidState) {
			metrics.ReviewConflicts.WithLabelValues("redemption").Inc()
		}
		return nil, err
	}
	feedback = strings.TrimSpace(feedback)

	var updated *model.Redemption
	switch d {
	case review.Approve:
		unlockChild := s.locks.Lock(ledger.ChildKey(r.ChildID))
		var debit *model.Transaction
		updated, debit, err = s.redemptions.Approve(ctx, id, actor.ID, feedback, s.now())
		unlockChild()
		if err == nil {
			metrics.ObserveLedger(debit.Amount)
		}
	case review.Reject:
		updated, err = s.redemptions.Reject(ctx, id, actor.ID, feedback, s.now())
	}
	if err != nil {
		if errors.Is(err, apperr.ErrInvalidState) {
			metrics.ReviewConflicts.WithLabelValues("redemption").Inc()
		}
		return nil, err
	}
	metrics.Reviews.WithLabelValues("redemption", string(d)).Inc()

	label := updated.Platform
	if p, ok := s.platform(updated.Platform); ok {
		label = p.Label
	}
	typ := model.NotifApproval
	if d == review.Reject {
		typ = model.NotifRejection
	}
	s.emit(ctx, updated.ChildID, typ, updated.ID, notify.TemplateData{
		ActivityTitle: describe(updated, label),
		TokenValue:    updated.Amount,
		Redemption:    true,
	})
	return updated, nil
}

func (s *Service) emit(ctx context.Context, userID string, typ model.NotificationType, relatedID string, data notify.TemplateData) {
	if s.notifier == nil {
		return
	}
	if _, err := s.notifier.Emit(ctx, userID, typ, relatedID, data); err != nil {
		s.logger.Warn("emit notification", "type", typ, "user_id", userID, "related_id", relatedID, "error", err)
	}
}

func (s *Service) GetByID(ctx context.Context, actor model.User, id string) (*model.Redemption, error) {
	r, err := s.redemptions.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if r == nil {
		return nil, apperr.NotFound("redemption %s not found", id)
	}
	if err := review.AuthorizeView(actor, r.ChildID, r.ParentID); err != nil {
		return nil, err
	}
	return r, nil
}

func (s *Service) ListForParent(ctx context.Context, actor model.User, status model.Status) ([]model.Redemption, error) {
	if !actor.IsParent() {
		return nil, apperr.Authorization("only parents have a review queue")
	}
	if status != "" && !status.Valid() {
		return nil, apperr.Validation("unknown status %q", status)
	}
	return orEmpty(s.redemptions.ListByParent(ctx, actor.ID, status))
}

func (s *Service) ListForChild(ctx context.Context, actor model.User, child model.User, status model.Status) ([]model.Redemption, error) {
	if err := review.AuthorizeView(actor, child.ID, child.ParentID); err != nil {
		return nil, err
	}
	if status != "" && !status.Valid() {
		return nil, apperr.Validation("unknown status %q", status)
	}
	return orEmpty(s.redemptions.ListByChild(ctx, child.ID, status))
}

func orEmpty(rs []model.Redemption, err error) ([]model.Redemption, error) {
	if err != nil {
		return nil, err
	}
	if rs == nil {
		rs = []model.Redemption{}
	}
	return rs, nil
}
