package store

import (
	"context"
	"testing"
	"time"
)

func TestSessionCreateAndGet(t *testing.T) {
	db := setupTestDB(t)
	f := seedFamily(t, db)
	ss := NewSessionStore(db)
	ctx := context.Background()

	sess, err := ss.Create(ctx, f.parent.ID, time.Hour)
	if err != nil {
		t.Fatalf("create session: %v", err)
	}
	if len(sess.Token) != 64 { // 32 bytes hex-encoded
		t.Errorf("token length = %d, want 64", len(sess.Token))
	}

	got, err := ss.GetByToken(ctx, sess.Token)
	if err != nil {
		t.Fatalf("get by token: %v", err)
	}
	if got == nil || got.UserID != f.parent.ID {
		t.Fatalf("session = %+v, want parent session", got)
	}

	if err := ss.Delete(ctx, sess.Token); err != nil {
		t.Fatalf("delete: %v", err)
	}
	got, err = ss.GetByToken(ctx, sess.Token)
	if err != nil {
		t.Fatalf("get after delete: %v", err)
	}
	if got != nil {
		t.Error("expected nil after delete")
	}
}

func TestSessionExpired(t *testing.T) {
	db := setupTestDB(t)
	f := seedFamily(t, db)
	ss := NewSessionStore(db)
	ctx := context.Background()

	sess, err := ss.Create(ctx, f.parent.ID, -time.Minute)
	if err != nil {
		t.Fatalf("create session: %v", err)
	}
	got, err := ss.GetByToken(ctx, sess.Token)
	if err != nil {
		t.Fatalf("get by token: %v", err)
	}
	if got != nil {
		t.Error("expected nil for expired session")
	}

	n, err := ss.DeleteExpired(ctx)
	if err != nil {
		t.Fatalf("delete expired: %v", err)
	}
	if n != 1 {
		t.Errorf("deleted = %d, want 1", n)
	}
}
