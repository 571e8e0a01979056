// Package testutil builds in-memory databases and seeded families for tests.
package testutil

import (
	"context"
	"database/sql"
	"sync"
	"testing"
	"time"

	"github.com/dukerupert/zooz/internal/database"
	"github.com/dukerupert/zooz/internal/model"
	"github.com/dukerupert/zooz/internal/store"
)

func OpenDB(t testing.TB) *sql.DB {
	t.Helper()
	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		t.Fatalf("enable foreign keys: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// Family is a parent with two children plus an unrelated parent and an admin.
type Family struct {
	Parent      model.User
	Child       model.User
	Sibling     model.User
	OtherParent model.User
	OtherChild  model.User
	Admin       model.User
}

func SeedFamily(t testing.TB, db *sql.DB) Family {
	t.Helper()
	ctx := context.Background()
	us := store.NewUserStore(db)

	create := func(u model.User, password string) model.User {
		t.Helper()
		created, err := us.Create(ctx, u, password)
		if err != nil {
			t.Fatalf("create user %s: %v", u.DisplayName, err)
		}
		return *created
	}

	var f Family
	f.Parent = create(model.User{Email: "pat@example.com", DisplayName: "Pat", Role: model.RoleParent}, "parent-pass")
	f.Child = create(model.User{Email: "kim@example.com", DisplayName: "Kim", Role: model.RoleChild, ParentID: f.Parent.ID, Age: 9}, "child-pass")
	f.Sibling = create(model.User{DisplayName: "Lee", Role: model.RoleChild, ParentID: f.Parent.ID, Age: 12}, "")
	f.OtherParent = create(model.User{Email: "sam@example.com", DisplayName: "Sam", Role: model.RoleParent}, "other-pass")
	f.OtherChild = create(model.User{DisplayName: "Ash", Role: model.RoleChild, ParentID: f.OtherParent.ID, Age: 10}, "")
	f.Admin = create(model.User{Email: "admin@example.com", DisplayName: "Root", Role: model.RoleAdmin}, "admin-pass")
	return f
}

// Credit records a manual adjustment for childID.
func Credit(t testing.TB, db *sql.DB, childID string, amount int) {
	t.Helper()
	_, err := store.NewLedgerStore(db).Record(context.Background(), model.Transaction{
		ChildID:     childID,
		Amount:      amount,
		Source:      model.SourceManualAdjustment,
		Description: "test credit",
	})
	if err != nil {
		t.Fatalf("credit %d: %v", amount, err)
	}
}

// Clock is a settable time source.
type Clock struct {
	mu sync.Mutex
	t  time.Time
}

func NewClock(t time.Time) *Clock {
	return &Clock{t: t.UTC()}
}

func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *Clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}
