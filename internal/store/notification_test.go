package store

import (
	"context"
	"testing"
	"time"

	"github.com/dukerupert/zooz/internal/model"
)

func TestNotificationLifecycle(t *testing.T) {
	db := setupTestDB(t)
	f := seedFamily(t, db)
	ns := NewNotificationStore(db)
	ctx := context.Background()

	for _, typ := range []model.NotificationType{model.NotifApproval, model.NotifRejection} {
		if _, err := ns.Create(ctx, model.Notification{
			UserID: f.child.ID, Type: typ, Title: "t", Message: "m",
		}); err != nil {
			t.Fatalf("create %s: %v", typ, err)
		}
	}

	unread, err := ns.ListByUser(ctx, f.child.ID, true)
	if err != nil {
		t.Fatalf("list unread: %v", err)
	}
	if len(unread) != 2 {
		t.Fatalf("unread = %d, want 2", len(unread))
	}

	if err := ns.MarkRead(ctx, unread[0].ID); err != nil {
		t.Fatalf("mark read: %v", err)
	}
	got, _ := ns.GetByID(ctx, unread[0].ID)
	if !got.Read {
		t.Error("expected read")
	}

	n, err := ns.MarkAllRead(ctx, f.child.ID)
	if err != nil {
		t.Fatalf("mark all read: %v", err)
	}
	if n != 1 {
		t.Errorf("marked = %d, want 1", n)
	}
	all, _ := ns.ListByUser(ctx, f.child.ID, false)
	if len(all) != 2 {
		t.Errorf("all = %d, want 2", len(all))
	}
}

func TestRecordReminderOnce(t *testing.T) {
	db := setupTestDB(t)
	f := seedFamily(t, db)
	ns := NewNotificationStore(db)
	ctx := context.Background()
	a := seedActivity(t, db, f.parent.ID, 10)

	first, err := ns.RecordReminder(ctx, a.ID, f.child.ID, time.Time{})
	if err != nil {
		t.Fatalf("record: %v", err)
	}
	second, err := ns.RecordReminder(ctx, a.ID, f.child.ID, time.Time{})
	if err != nil {
		t.Fatalf("record again: %v", err)
	}
	if !first || second {
		t.Errorf("first = %v, second = %v; want true, false", first, second)
	}

	if err := ns.ForgetReminder(ctx, a.ID, f.child.ID); err != nil {
		t.Fatalf("forget: %v", err)
	}
	again, _ := ns.RecordReminder(ctx, a.ID, f.child.ID, time.Time{})
	if !again {
		t.Error("expected reminder to record after forget")
	}
}
