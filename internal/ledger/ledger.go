// Package ledger is the append-only token log. A child's balance is always
// the sum of its entries; nothing caches it.
package ledger

import (
	"context"
	"iter"
	"strings"
	"time"

	"github.com/dukerupert/zooz/internal/apperr"
	"github.com/dukerupert/zooz/internal/keylock"
	"github.com/dukerupert/zooz/internal/metrics"
	"github.com/dukerupert/zooz/internal/model"
	"github.com/dukerupert/zooz/internal/store"
)

const defaultPageSize = 100

type RecordInput struct {
	ChildID     string
	Amount      int
	Source      model.TransactionSource
	RelatedID   string
	Platform    string
	GameAmount  int
	AccountID   string
	Description string
}

// HistoryFilter narrows a history listing. Zero values leave a field open.
type HistoryFilter struct {
	Sources []model.TransactionSource
	From    time.Time
	To      time.Time
	Limit   int
}

// Reconciliation compares the SQL balance with a sum over the full history.
type Reconciliation struct {
	ChildID string `json:"child_id"`
	Balance int    `json:"balance"`
	Walked  int    `json:"walked"`
	Entries int    `json:"entries"`
}

func (r Reconciliation) OK() bool { return r.Balance == r.Walked }

type Service struct {
	store    *store.LedgerStore
	users    *store.UserStore
	locks    *keylock.Mutex
	now      func() time.Time
	pageSize int
}

// NewService creates the ledger. locks must be the instance shared with the
// review workflows so every write for a child is serialized.
func NewService(ledger *store.LedgerStore, users *store.UserStore, locks *keylock.Mutex) *Service {
	return &Service{
		store:    ledger,
		users:    users,
		locks:    locks,
		now:      func() time.Time { return time.Now().UTC() },
		pageSize: defaultPageSize,
	}
}

func (s *Service) SetClock(now func() time.Time) { s.now = now }

// ChildKey is the lock key for writes to childID's balance.
func ChildKey(childID string) string { return "child:" + childID }

func (s *Service) child(ctx context.Context, childID string) (*model.Child, error) {
	c, err := s.users.GetChild(ctx, childID)
	if err != nil {
		return nil, err
	}
	if c == nil {
		return nil, apperr.NotFound("child %s not found", childID)
	}
	return c, nil
}

// Record appends one entry. Debits that would overdraw the child fail with
// InsufficientBalance and write nothing.
func (s *Service) Record(ctx context.Context, in RecordInput) (*model.Transaction, error) {
	if _, err := s.child(ctx, in.ChildID); err != nil {
		return nil, err
	}
	if in.Amount == 0 {
		return nil, apperr.Validation("amount must be non-zero")
	}
	if !in.Source.Valid() {
		return nil, apperr.Validation("unknown source %q", in.Source)
	}

	unlock := s.locks.Lock(ChildKey(in.ChildID))
	defer unlock()

	t, err := s.store.Record(ctx, model.Transaction{
		ChildID:     in.ChildID,
		Amount:      in.Amount,
		Source:      in.Source,
		RelatedID:   in.RelatedID,
		Platform:    in.Platform,
		GameAmount:  in.GameAmount,
		AccountID:   in.AccountID,
		Description: strings.TrimSpace(in.Description),
		CreatedAt:   s.now(),
	})
	if err != nil {
		return nil, err
	}
	metrics.ObserveLedger(t.Amount)
	return t, nil
}

// Adjust records a manual correction by the child's parent or an admin.
func (s *Service) Adjust(ctx context.Context, actor model.User, childID string, amount int, description string) (*model.Transaction, error) {
	c, err := s.child(ctx, childID)
	if err != nil {
		return nil, err
	}
	if !actor.IsAdmin() && !(actor.IsParent() && c.ParentID == actor.ID) {
		return nil, apperr.Authorization("only the child's parent or an admin may adjust a balance")
	}
	if strings.TrimSpace(description) == "" {
		return nil, apperr.Validation("description is required for adjustments")
	}
	return s.Record(ctx, RecordInput{
		ChildID:     childID,
		Amount:      amount,
		Source:      model.SourceManualAdjustment,
		Description: description,
	})
}

func (s *Service) Balance(ctx context.Context, childID string) (int, error) {
	if _, err := s.child(ctx, childID); err != nil {
		return 0, err
	}
	return s.store.Balance(ctx, childID)
}

func (s *Service) Stats(ctx context.Context, childID string) (*model.TokenStats, error) {
	if _, err := s.child(ctx, childID); err != nil {
		return nil, err
	}
	return s.store.Stats(ctx, childID)
}

// History returns the matching entries newest first.
func (s *Service) History(ctx context.Context, childID string, f HistoryFilter) ([]model.Transaction, error) {
	txns := []model.Transaction{}
	for t, err := range s.Walk(ctx, childID, f) {
		if err != nil {
			return nil, err
		}
		txns = append(txns, t)
	}
	return txns, nil
}

// Walk lazily enumerates the same entries as History, reading the store one
// page at a time. Each range over the returned sequence starts again from
// the newest entry.
func (s *Service) Walk(ctx context.Context, childID string, f HistoryFilter) iter.Seq2[model.Transaction, error] {
	return func(yield func(model.Transaction, error) bool) {
		if f.Limit < 0 {
			yield(model.Transaction{}, apperr.Validation("limit must not be negative"))
			return
		}
		for _, src := range f.Sources {
			if !src.Valid() {
				yield(model.Transaction{}, apperr.Validation("unknown source %q", src))
				return
			}
		}
		if _, err := s.child(ctx, childID); err != nil {
			yield(model.Transaction{}, err)
			return
		}

		q := store.HistoryQuery{Sources: f.Sources, From: f.From, To: f.To, Limit: s.pageSize}
		emitted := 0
		for {
			if f.Limit > 0 && f.Limit-emitted < q.Limit {
				q.Limit = f.Limit - emitted
			}
			page, next, err := s.store.History(ctx, childID, q)
			if err != nil {
				yield(model.Transaction{}, err)
				return
			}
			for _, t := range page {
				if !yield(t, nil) {
					return
				}
				emitted++
			}
			if next == nil || (f.Limit > 0 && emitted >= f.Limit) {
				return
			}
			q.After = next
		}
	}
}

// Verify recomputes the balance from a full history walk.
func (s *Service) Verify(ctx context.Context, childID string) (*Reconciliation, error) {
	balance, err := s.Balance(ctx, childID)
	if err != nil {
		return nil, err
	}
	r := &Reconciliation{ChildID: childID, Balance: balance}
	for t, err := range s.Walk(ctx, childID, HistoryFilter{}) {
		if err != nil {
			return nil, err
		}
		r.Walked += t.Amount
		r.Entries++
	}
	return r, nil
}
