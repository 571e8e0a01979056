package auth

import (
	"context"
	"testing"

	"github.com/dukerupert/zooz/internal/model"
)

func TestWithAuthAndFromContext(t *testing.T) {
	ac := AuthContext{
		User:      model.User{ID: "u1", DisplayName: "Pat", Role: model.RoleAdmin},
		SessionID: "s1",
	}

	ctx := WithAuth(context.Background(), ac)
	got, ok := FromContext(ctx)
	if !ok {
		t.Fatal("expected AuthContext in context")
	}
	if got.User.ID != "u1" {
		t.Errorf("UserID = %q, want %q", got.User.ID, "u1")
	}
	if got.SessionID != "s1" {
		t.Errorf("SessionID = %q, want %q", got.SessionID, "s1")
	}
	if UserID(ctx) != "u1" {
		t.Errorf("UserID(ctx) = %q, want %q", UserID(ctx), "u1")
	}
	if !IsAdmin(ctx) {
		t.Error("expected IsAdmin")
	}

	actor, ok := Actor(ctx)
	if !ok || actor.DisplayName != "Pat" {
		t.Errorf("Actor = %+v, %v", actor, ok)
	}
}

func TestFromContextMissing(t *testing.T) {
	ctx := context.Background()
	if _, ok := FromContext(ctx); ok {
		t.Error("expected false for missing AuthContext")
	}
	if _, ok := Actor(ctx); ok {
		t.Error("expected no actor")
	}
	if UserID(ctx) != "" {
		t.Error("expected empty user id")
	}
	if IsAdmin(ctx) {
		t.Error("expected IsAdmin false")
	}
}
