package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/dukerupert/zooz/internal/apperr"
	"github.com/dukerupert/zooz/internal/model"
)

func seedRedemption(t *testing.T, rs *RedemptionStore, f family, amount int) *model.Redemption {
	t.Helper()
	r, err := rs.Create(context.Background(), model.Redemption{
		ChildID:    f.child.ID,
		ParentID:   f.parent.ID,
		Platform:   "roblox",
		Amount:     amount,
		GameAmount: amount * 10,
		AccountID:  "kim_builds",
	})
	if err != nil {
		t.Fatalf("create redemption: %v", err)
	}
	return r
}

func TestRedemptionApproveDebits(t *testing.T) {
	db := setupTestDB(t)
	f := seedFamily(t, db)
	rs := NewRedemptionStore(db)
	ctx := context.Background()
	credit(t, db, f.child.ID, 50)
	r := seedRedemption(t, rs, f, 30)

	approved, debit, err := rs.Approve(ctx, r.ID, f.parent.ID, "", time.Time{})
	if err != nil {
		t.Fatalf("approve: %v", err)
	}
	if approved.Status != model.StatusApproved {
		t.Errorf("status = %q, want approved", approved.Status)
	}
	if debit.Amount != -30 || debit.Platform != "roblox" || debit.GameAmount != 300 || debit.AccountID != "kim_builds" {
		t.Errorf("debit = %+v", debit)
	}

	balance, _ := NewLedgerStore(db).Balance(ctx, f.child.ID)
	if balance != 20 {
		t.Errorf("balance = %d, want 20", balance)
	}

	if _, _, err := rs.Approve(ctx, r.ID, f.parent.ID, "", time.Time{}); !errors.Is(err, apperr.ErrInvalidState) {
		t.Errorf("second approve err = %v, want invalid state", err)
	}
}

func TestRedemptionApproveOverdraftStaysPending(t *testing.T) {
	db := setupTestDB(t)
	f := seedFamily(t, db)
	rs := NewRedemptionStore(db)
	ctx := context.Background()
	credit(t, db, f.child.ID, 50)

	first := seedRedemption(t, rs, f, 40)
	second := seedRedemption(t, rs, f, 40)

	if _, _, err := rs.Approve(ctx, first.ID, f.parent.ID, "", time.Time{}); err != nil {
		t.Fatalf("approve first: %v", err)
	}
	_, _, err := rs.Approve(ctx, second.ID, f.parent.ID, "", time.Time{})
	if !errors.Is(err, apperr.ErrInsufficientBalance) {
		t.Fatalf("approve second err = %v, want insufficient balance", err)
	}

	got, _ := rs.GetByID(ctx, second.ID)
	if got.Status != model.StatusPending {
		t.Errorf("status = %q, want pending", got.Status)
	}
	balance, _ := NewLedgerStore(db).Balance(ctx, f.child.ID)
	if balance != 10 {
		t.Errorf("balance = %d, want 10", balance)
	}
}

func TestRedemptionReject(t *testing.T) {
	db := setupTestDB(t)
	f := seedFamily(t, db)
	rs := NewRedemptionStore(db)
	ctx := context.Background()
	r := seedRedemption(t, rs, f, 10)

	rejected, err := rs.Reject(ctx, r.ID, f.parent.ID, "Not this week", time.Time{})
	if err != nil {
		t.Fatalf("reject: %v", err)
	}
	if rejected.Status != model.StatusRejected || rejected.Feedback != "Not this week" {
		t.Errorf("redemption = %+v", rejected)
	}

	list, err := rs.ListByChild(ctx, f.child.ID, model.StatusRejected)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 1 {
		t.Errorf("rejected = %d, want 1", len(list))
	}
}
