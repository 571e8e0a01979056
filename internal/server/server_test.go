package server

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/dukerupert/zooz/internal/config"
	"github.com/dukerupert/zooz/internal/model"
	"github.com/dukerupert/zooz/internal/testutil"
)

type testServer struct {
	t      *testing.T
	router http.Handler
	fam    testutil.Family
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	db := testutil.OpenDB(t)
	fam := testutil.SeedFamily(t, db)

	platforms, err := config.ParsePlatforms(config.DefaultPlatforms)
	if err != nil {
		t.Fatalf("parse platforms: %v", err)
	}
	cfg := &config.Config{
		Platforms:        platforms,
		SessionTTL:       time.Hour,
		ReminderInterval: time.Minute,
		NotifyRetry:      time.Minute,
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	srv := New(db, cfg, logger)
	return &testServer{t: t, router: srv.Router(), fam: fam}
}

func (ts *testServer) login(email, password string) string {
	ts.t.Helper()
	rec := ts.do("", "POST", "/login", map[string]string{"email": email, "password": password})
	if rec.Code != http.StatusOK {
		ts.t.Fatalf("login %s: status = %d, body = %s", email, rec.Code, rec.Body)
	}
	var resp struct {
		Token string `json:"token"`
	}
	decode(ts.t, rec, &resp)
	if resp.Token == "" {
		ts.t.Fatal("login returned no token")
	}
	return resp.Token
}

func (ts *testServer) do(token, method, path string, body any) *httptest.ResponseRecorder {
	ts.t.Helper()
	var r io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			ts.t.Fatalf("marshal body: %v", err)
		}
		r = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, r)
	req.RemoteAddr = "192.0.2.1:1234"
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	ts.router.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.NewDecoder(rec.Body).Decode(v); err != nil {
		t.Fatalf("decode response: %v (body %q)", err, rec.Body.String())
	}
}

func expect(t *testing.T, rec *httptest.ResponseRecorder, status int) {
	t.Helper()
	if rec.Code != status {
		t.Fatalf("status = %d, want %d (body %s)", rec.Code, status, rec.Body)
	}
}

func TestHealthAndMetrics(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do("", "GET", "/health", nil)
	expect(t, rec, http.StatusOK)
	var health struct {
		Status        string `json:"status"`
		SchemaVersion int64  `json:"schema_version"`
	}
	decode(t, rec, &health)
	if health.Status != "ok" || health.SchemaVersion < 1 {
		t.Errorf("health = %+v", health)
	}

	rec = ts.do("", "GET", "/metrics", nil)
	expect(t, rec, http.StatusOK)
	if !bytes.Contains(rec.Body.Bytes(), []byte("zooz_http_request_duration_seconds")) {
		t.Error("metrics output missing http histogram")
	}
}

func TestLoginRejectsBadPassword(t *testing.T) {
	ts := newTestServer(t)
	rec := ts.do("", "POST", "/login", map[string]string{"email": "pat@example.com", "password": "nope"})
	expect(t, rec, http.StatusUnauthorized)
}

func TestProtectedRoutesRequireSession(t *testing.T) {
	ts := newTestServer(t)
	expect(t, ts.do("", "GET", "/api/activities", nil), http.StatusUnauthorized)
	expect(t, ts.do("bogus", "GET", "/api/me", nil), http.StatusUnauthorized)
}

func TestLogoutEndsSession(t *testing.T) {
	ts := newTestServer(t)
	token := ts.login("pat@example.com", "parent-pass")

	expect(t, ts.do(token, "GET", "/api/me", nil), http.StatusOK)
	expect(t, ts.do(token, "POST", "/logout", nil), http.StatusNoContent)
	expect(t, ts.do(token, "GET", "/api/me", nil), http.StatusUnauthorized)
}

func TestSubmissionAndRedemptionFlow(t *testing.T) {
	ts := newTestServer(t)
	parent := ts.login("pat@example.com", "parent-pass")
	child := ts.login("kim@example.com", "child-pass")
	childID := ts.fam.Child.ID

	// Children cannot manage activities.
	expect(t, ts.do(child, "POST", "/api/activities", map[string]any{
		"title": "Read", "category": "educational", "token_value": 10,
	}), http.StatusForbidden)

	rec := ts.do(parent, "POST", "/api/activities", map[string]any{
		"title": "Read a chapter", "category": "educational", "token_value": 15,
	})
	expect(t, rec, http.StatusCreated)
	var activity model.Activity
	decode(t, rec, &activity)

	rec = ts.do(child, "GET", "/api/activities", nil)
	expect(t, rec, http.StatusOK)
	var open []model.Activity
	decode(t, rec, &open)
	if len(open) != 1 || open[0].ID != activity.ID {
		t.Fatalf("child activities = %+v", open)
	}

	rec = ts.do(child, "POST", "/api/submissions", map[string]any{
		"activity_id": activity.ID, "notes": "finished chapter 3",
	})
	expect(t, rec, http.StatusCreated)
	var sub model.Submission
	decode(t, rec, &sub)

	// Parent was notified.
	rec = ts.do(parent, "GET", "/api/notifications/unread", nil)
	expect(t, rec, http.StatusOK)
	var notes []model.Notification
	decode(t, rec, &notes)
	if len(notes) != 1 || notes[0].Type != model.NotifSubmission {
		t.Fatalf("parent notifications = %+v", notes)
	}
	expect(t, ts.do(child, "POST", "/api/notifications/"+notes[0].ID+"/read", nil), http.StatusForbidden)
	expect(t, ts.do(parent, "POST", "/api/notifications/"+notes[0].ID+"/read", nil), http.StatusOK)

	// Child cannot review.
	expect(t, ts.do(child, "POST", "/api/submissions/"+sub.ID+"/review", map[string]string{"decision": "approve"}), http.StatusForbidden)

	rec = ts.do(parent, "POST", "/api/submissions/"+sub.ID+"/review", map[string]string{"decision": "approve"})
	expect(t, rec, http.StatusOK)
	decode(t, rec, &sub)
	if sub.Status != model.StatusApproved || !sub.TokenAwarded {
		t.Fatalf("submission = %+v", sub)
	}

	// A second review conflicts.
	expect(t, ts.do(parent, "POST", "/api/submissions/"+sub.ID+"/review", map[string]string{"decision": "approve"}), http.StatusConflict)

	rec = ts.do(child, "GET", "/api/children/"+childID+"/balance", nil)
	expect(t, rec, http.StatusOK)
	var stats model.TokenStats
	decode(t, rec, &stats)
	if stats.Balance != 15 || stats.TotalEarned != 15 {
		t.Fatalf("stats = %+v", stats)
	}

	// Overdraft is rejected up front.
	expect(t, ts.do(child, "POST", "/api/redemptions", map[string]any{
		"platform": "roblox", "amount": 20, "account_id": "kim_builds",
	}), http.StatusUnprocessableEntity)

	rec = ts.do(child, "POST", "/api/redemptions", map[string]any{
		"platform": "roblox", "amount": 10, "account_id": "kim_builds",
	})
	expect(t, rec, http.StatusCreated)
	var red model.Redemption
	decode(t, rec, &red)
	if red.GameAmount != 100 {
		t.Errorf("game amount = %d, want 100", red.GameAmount)
	}

	expect(t, ts.do(parent, "POST", "/api/redemptions/"+red.ID+"/review", map[string]string{"decision": "reject"}), http.StatusBadRequest)
	expect(t, ts.do(parent, "POST", "/api/redemptions/"+red.ID+"/review", map[string]string{"decision": "approve"}), http.StatusOK)

	rec = ts.do(parent, "GET", "/api/children/"+childID+"/transactions?source=redemption", nil)
	expect(t, rec, http.StatusOK)
	var txns []model.Transaction
	decode(t, rec, &txns)
	if len(txns) != 1 || txns[0].Amount != -10 || txns[0].RelatedID != red.ID {
		t.Fatalf("redemption transactions = %+v", txns)
	}

	rec = ts.do(parent, "GET", "/api/children/"+childID+"/transactions.xlsx", nil)
	expect(t, rec, http.StatusOK)
	f, err := excelize.OpenReader(rec.Body)
	if err != nil {
		t.Fatalf("open xlsx: %v", err)
	}
	defer f.Close()
	rows, err := f.GetRows("Transactions")
	if err != nil {
		t.Fatalf("get rows: %v", err)
	}
	if len(rows) != 3 {
		t.Errorf("xlsx rows = %d, want header + 2", len(rows))
	}
}

func TestChildRecordsAreFamilyScoped(t *testing.T) {
	ts := newTestServer(t)
	other := ts.login("sam@example.com", "other-pass")
	admin := ts.login("admin@example.com", "admin-pass")
	childID := ts.fam.Child.ID

	expect(t, ts.do(other, "GET", "/api/children/"+childID+"/balance", nil), http.StatusForbidden)
	expect(t, ts.do(other, "GET", "/api/children/"+childID+"/transactions", nil), http.StatusForbidden)
	expect(t, ts.do(other, "POST", "/api/children/"+childID+"/adjustments", map[string]any{
		"amount": 100, "description": "gift",
	}), http.StatusForbidden)

	expect(t, ts.do(admin, "GET", "/api/children/"+childID+"/balance", nil), http.StatusOK)
	expect(t, ts.do(admin, "GET", "/api/children/missing/balance", nil), http.StatusNotFound)
}

func TestAdjustments(t *testing.T) {
	ts := newTestServer(t)
	parent := ts.login("pat@example.com", "parent-pass")
	path := "/api/children/" + ts.fam.Child.ID + "/adjustments"

	expect(t, ts.do(parent, "POST", path, map[string]any{"amount": 5}), http.StatusBadRequest)
	expect(t, ts.do(parent, "POST", path, map[string]any{"amount": -5, "description": "oops"}), http.StatusUnprocessableEntity)
	expect(t, ts.do(parent, "POST", path, map[string]any{"amount": 5, "description": "birthday"}), http.StatusCreated)
}

func TestHistoryRejectsBadFilter(t *testing.T) {
	ts := newTestServer(t)
	parent := ts.login("pat@example.com", "parent-pass")
	base := "/api/children/" + ts.fam.Child.ID + "/transactions"

	expect(t, ts.do(parent, "GET", base+"?from=yesterday", nil), http.StatusBadRequest)
	expect(t, ts.do(parent, "GET", base+"?limit=-1", nil), http.StatusBadRequest)
	expect(t, ts.do(parent, "GET", base+"?source=lottery", nil), http.StatusBadRequest)
	expect(t, ts.do(parent, "GET", base+"?from=2026-01-01&to=2026-01-31&limit=5", nil), http.StatusOK)
}

func TestSnapshotsDisabled(t *testing.T) {
	ts := newTestServer(t)
	parent := ts.login("pat@example.com", "parent-pass")
	admin := ts.login("admin@example.com", "admin-pass")

	expect(t, ts.do(parent, "POST", "/api/admin/snapshots", nil), http.StatusForbidden)
	expect(t, ts.do(admin, "POST", "/api/admin/snapshots", nil), http.StatusServiceUnavailable)
}

func TestLoginRateLimited(t *testing.T) {
	ts := newTestServer(t)
	body := map[string]string{"email": "pat@example.com", "password": "wrong"}
	for i := 0; i < loginLimit; i++ {
		expect(t, ts.do("", "POST", "/login", body), http.StatusUnauthorized)
	}
	expect(t, ts.do("", "POST", "/login", body), http.StatusTooManyRequests)
}
