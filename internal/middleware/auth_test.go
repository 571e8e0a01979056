package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/dukerupert/zooz/internal/auth"
	"github.com/dukerupert/zooz/internal/model"
	"github.com/dukerupert/zooz/internal/store"
	"github.com/dukerupert/zooz/internal/testutil"
)

func setupAuthMiddlewareDB(t *testing.T) (*store.SessionStore, *store.UserStore, testutil.Family) {
	t.Helper()
	db := testutil.OpenDB(t)
	fam := testutil.SeedFamily(t, db)
	return store.NewSessionStore(db), store.NewUserStore(db), fam
}

func unreachable(t *testing.T) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("should not reach handler")
	})
}

func TestRequireAuthNoToken(t *testing.T) {
	ss, us, _ := setupAuthMiddlewareDB(t)

	req := httptest.NewRequest("GET", "/api/activities", nil)
	rec := httptest.NewRecorder()
	RequireAuth(ss, us)(unreachable(t)).ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusUnauthorized)
	}
}

func TestRequireAuthInvalidToken(t *testing.T) {
	ss, us, _ := setupAuthMiddlewareDB(t)

	req := httptest.NewRequest("GET", "/api/activities", nil)
	req.AddCookie(&http.Cookie{Name: SessionCookieName, Value: "invalid-token"})
	rec := httptest.NewRecorder()
	RequireAuth(ss, us)(unreachable(t)).ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusUnauthorized)
	}
}

func TestRequireAuthValidSession(t *testing.T) {
	ss, us, fam := setupAuthMiddlewareDB(t)

	sess, err := ss.Create(context.Background(), fam.Child.ID, time.Hour)
	if err != nil {
		t.Fatalf("create session: %v", err)
	}

	var got auth.AuthContext
	handler := RequireAuth(ss, us)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ac, ok := auth.FromContext(r.Context())
		if !ok {
			t.Fatal("auth context missing")
		}
		got = ac
		w.WriteHeader(http.StatusOK)
	}))

	for _, viaHeader := range []bool{false, true} {
		req := httptest.NewRequest("GET", "/api/activities", nil)
		if viaHeader {
			req.Header.Set("Authorization", "Bearer "+sess.Token)
		} else {
			req.AddCookie(&http.Cookie{Name: SessionCookieName, Value: sess.Token})
		}
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d, want 200 (header=%v)", rec.Code, viaHeader)
		}
		if got.User.ID != fam.Child.ID || got.User.Role != model.RoleChild {
			t.Errorf("user = %+v, want child %s", got.User, fam.Child.ID)
		}
		if got.SessionID != sess.ID {
			t.Errorf("session id = %q, want %q", got.SessionID, sess.ID)
		}
	}
}

func TestRequireAuthExpiredSession(t *testing.T) {
	ss, us, fam := setupAuthMiddlewareDB(t)

	sess, err := ss.Create(context.Background(), fam.Parent.ID, -time.Minute)
	if err != nil {
		t.Fatalf("create session: %v", err)
	}

	req := httptest.NewRequest("GET", "/", nil)
	req.AddCookie(&http.Cookie{Name: SessionCookieName, Value: sess.Token})
	rec := httptest.NewRecorder()
	RequireAuth(ss, us)(unreachable(t)).ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusUnauthorized)
	}
}

func TestRequireRole(t *testing.T) {
	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	handler := RequireRole(model.RoleParent, model.RoleAdmin)(ok)

	tests := []struct {
		role model.Role
		want int
	}{
		{model.RoleParent, http.StatusOK},
		{model.RoleAdmin, http.StatusOK},
		{model.RoleChild, http.StatusForbidden},
	}
	for _, tt := range tests {
		req := httptest.NewRequest("POST", "/api/activities", nil)
		ctx := auth.WithAuth(req.Context(), auth.AuthContext{User: model.User{ID: "u", Role: tt.role}})
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req.WithContext(ctx))
		if rec.Code != tt.want {
			t.Errorf("%s: status = %d, want %d", tt.role, rec.Code, tt.want)
		}
	}

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest("GET", "/", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("anonymous: status = %d, want 401", rec.Code)
	}
}
