package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/dukerupert/zooz/internal/apperr"
	"github.com/dukerupert/zooz/internal/model"
)

func TestLedgerRecordAndBalance(t *testing.T) {
	db := setupTestDB(t)
	f := seedFamily(t, db)
	ls := NewLedgerStore(db)
	ctx := context.Background()

	credit(t, db, f.child.ID, 40)
	credit(t, db, f.child.ID, -15)

	balance, err := ls.Balance(ctx, f.child.ID)
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	if balance != 25 {
		t.Errorf("balance = %d, want 25", balance)
	}

	stats, err := ls.Stats(ctx, f.child.ID)
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if stats.TotalEarned != 40 || stats.TotalSpent != 15 || stats.Balance != 25 {
		t.Errorf("stats = %+v, want earned 40 spent 15 balance 25", stats)
	}
}

func TestLedgerRecordRejectsOverdraft(t *testing.T) {
	db := setupTestDB(t)
	f := seedFamily(t, db)
	ls := NewLedgerStore(db)
	ctx := context.Background()

	credit(t, db, f.child.ID, 10)
	_, err := ls.Record(ctx, model.Transaction{ChildID: f.child.ID, Amount: -11, Source: model.SourceManualAdjustment})
	if !errors.Is(err, apperr.ErrInsufficientBalance) {
		t.Fatalf("err = %v, want insufficient balance", err)
	}

	balance, _ := ls.Balance(ctx, f.child.ID)
	if balance != 10 {
		t.Errorf("balance = %d, want 10", balance)
	}
}

func TestLedgerUniqueRelatedEntry(t *testing.T) {
	db := setupTestDB(t)
	f := seedFamily(t, db)
	ls := NewLedgerStore(db)
	ctx := context.Background()

	entry := model.Transaction{ChildID: f.child.ID, Amount: 10, Source: model.SourceSubmissionApproval, RelatedID: "sub-1"}
	if _, err := ls.Record(ctx, entry); err != nil {
		t.Fatalf("first record: %v", err)
	}
	_, err := ls.Record(ctx, entry)
	if !errors.Is(err, apperr.ErrInvalidState) {
		t.Fatalf("second record err = %v, want invalid state", err)
	}

	manual := model.Transaction{ChildID: f.child.ID, Amount: 5, Source: model.SourceManualAdjustment, RelatedID: "x"}
	if _, err := ls.Record(ctx, manual); err != nil {
		t.Fatalf("manual 1: %v", err)
	}
	if _, err := ls.Record(ctx, manual); err != nil {
		t.Fatalf("manual adjustments may share a related id: %v", err)
	}
}

func TestLedgerHistoryPaging(t *testing.T) {
	db := setupTestDB(t)
	f := seedFamily(t, db)
	ls := NewLedgerStore(db)
	ctx := context.Background()
	base := time.Date(2026, 1, 1, 9, 0, 0, 0, time.UTC)

	for i := 0; i < 5; i++ {
		_, err := ls.Record(ctx, model.Transaction{
			ChildID:   f.child.ID,
			Amount:    i + 1,
			Source:    model.SourceManualAdjustment,
			CreatedAt: base.Add(time.Duration(i/2) * time.Hour), // pairs share a timestamp
		})
		if err != nil {
			t.Fatalf("record %d: %v", i, err)
		}
	}

	var amounts []int
	q := HistoryQuery{Limit: 2}
	for {
		page, next, err := ls.History(ctx, f.child.ID, q)
		if err != nil {
			t.Fatalf("history: %v", err)
		}
		for _, tx := range page {
			amounts = append(amounts, tx.Amount)
		}
		if next == nil {
			break
		}
		q.After = next
	}

	want := []int{5, 4, 3, 2, 1}
	if len(amounts) != len(want) {
		t.Fatalf("amounts = %v, want %v", amounts, want)
	}
	for i := range want {
		if amounts[i] != want[i] {
			t.Errorf("amounts = %v, want %v", amounts, want)
			break
		}
	}
}

func TestLedgerHistoryFilters(t *testing.T) {
	db := setupTestDB(t)
	f := seedFamily(t, db)
	ls := NewLedgerStore(db)
	ctx := context.Background()
	base := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)

	entries := []model.Transaction{
		{ChildID: f.child.ID, Amount: 10, Source: model.SourceSubmissionApproval, RelatedID: "s1", CreatedAt: base},
		{ChildID: f.child.ID, Amount: 20, Source: model.SourceSubmissionApproval, RelatedID: "s2", CreatedAt: base.Add(24 * time.Hour)},
		{ChildID: f.child.ID, Amount: -5, Source: model.SourceRedemption, RelatedID: "r1", CreatedAt: base.Add(48 * time.Hour)},
	}
	for _, e := range entries {
		if _, err := ls.Record(ctx, e); err != nil {
			t.Fatalf("record: %v", err)
		}
	}

	approvals, _, err := ls.History(ctx, f.child.ID, HistoryQuery{Sources: []model.TransactionSource{model.SourceSubmissionApproval}})
	if err != nil {
		t.Fatalf("history by source: %v", err)
	}
	if len(approvals) != 2 {
		t.Errorf("approvals = %d, want 2", len(approvals))
	}

	window, _, err := ls.History(ctx, f.child.ID, HistoryQuery{From: base.Add(time.Hour), To: base.Add(48 * time.Hour)})
	if err != nil {
		t.Fatalf("history by window: %v", err)
	}
	if len(window) != 2 || window[0].Amount != -5 || window[1].Amount != 20 {
		t.Errorf("window = %+v, want redemption then second approval", window)
	}

	other, _, err := ls.History(ctx, f.other.ID, HistoryQuery{})
	if err != nil {
		t.Fatalf("history other child: %v", err)
	}
	if len(other) != 0 {
		t.Errorf("other child history = %d, want 0", len(other))
	}
}
