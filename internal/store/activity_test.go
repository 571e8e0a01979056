package store

import (
	"context"
	"testing"
	"time"

	"github.com/dukerupert/zooz/internal/model"
)

func TestActivityCreateWithAssignees(t *testing.T) {
	db := setupTestDB(t)
	f := seedFamily(t, db)

	a := seedActivity(t, db, f.parent.ID, 15, f.child.ID)
	if a.TokenValue != 15 {
		t.Errorf("token value = %d, want 15", a.TokenValue)
	}
	if a.RecurringType != model.RecurringNone {
		t.Errorf("recurring type = %q, want none", a.RecurringType)
	}
	if len(a.AssignedTo) != 1 || a.AssignedTo[0] != f.child.ID {
		t.Errorf("assigned to = %v, want [%s]", a.AssignedTo, f.child.ID)
	}
}

func TestActivityListForChild(t *testing.T) {
	db := setupTestDB(t)
	f := seedFamily(t, db)
	as := NewActivityStore(db)
	ctx := context.Background()

	open := seedActivity(t, db, f.parent.ID, 10)
	mine := seedActivity(t, db, f.parent.ID, 10, f.child.ID)
	seedActivity(t, db, f.parent.ID, 10, f.other.ID)
	if _, err := as.Create(ctx, model.Activity{
		Title: "Template", Category: model.CategorySocial, TokenValue: 10,
		CreatedBy: f.parent.ID, IsTemplate: true,
	}); err != nil {
		t.Fatalf("create template: %v", err)
	}

	list, err := as.ListForChild(ctx, f.parent.ID, f.child.ID)
	if err != nil {
		t.Fatalf("list for child: %v", err)
	}
	if len(list) != 2 {
		t.Fatalf("len = %d, want 2", len(list))
	}
	ids := map[string]bool{list[0].ID: true, list[1].ID: true}
	if !ids[open.ID] || !ids[mine.ID] {
		t.Errorf("list = %v, want open and assigned activities", ids)
	}

	templates, err := as.ListTemplates(ctx)
	if err != nil {
		t.Fatalf("list templates: %v", err)
	}
	if len(templates) != 1 {
		t.Errorf("templates = %d, want 1", len(templates))
	}
}

func TestActivityUpdateReplacesAssignees(t *testing.T) {
	db := setupTestDB(t)
	f := seedFamily(t, db)
	as := NewActivityStore(db)

	a := seedActivity(t, db, f.parent.ID, 10, f.child.ID)
	a.Title = "Read two chapters"
	a.AssignedTo = []string{f.other.ID}

	updated, err := as.Update(context.Background(), *a)
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.Title != "Read two chapters" {
		t.Errorf("title = %q", updated.Title)
	}
	if len(updated.AssignedTo) != 1 || updated.AssignedTo[0] != f.other.ID {
		t.Errorf("assigned to = %v, want [%s]", updated.AssignedTo, f.other.ID)
	}
}

func TestActivityDeleteAndCount(t *testing.T) {
	db := setupTestDB(t)
	f := seedFamily(t, db)
	as := NewActivityStore(db)
	ctx := context.Background()

	a := seedActivity(t, db, f.parent.ID, 10)
	n, err := as.CountSubmissions(ctx, a.ID)
	if err != nil {
		t.Fatalf("count submissions: %v", err)
	}
	if n != 0 {
		t.Errorf("count = %d, want 0", n)
	}
	if err := as.Delete(ctx, a.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	got, err := as.GetByID(ctx, a.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got != nil {
		t.Error("expected nil after delete")
	}
}

func TestActivityListDueBetween(t *testing.T) {
	db := setupTestDB(t)
	f := seedFamily(t, db)
	as := NewActivityStore(db)
	ctx := context.Background()
	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)

	soon := now.Add(3 * time.Hour)
	later := now.Add(72 * time.Hour)
	for _, due := range []*time.Time{&soon, &later, nil} {
		if _, err := as.Create(ctx, model.Activity{
			Title: "Due", Category: model.CategoryHouseChores, TokenValue: 8,
			CreatedBy: f.parent.ID, DueDate: due,
		}); err != nil {
			t.Fatalf("create: %v", err)
		}
	}

	due, err := as.ListDueBetween(ctx, now, now.Add(24*time.Hour))
	if err != nil {
		t.Fatalf("list due: %v", err)
	}
	if len(due) != 1 || !due[0].DueDate.Equal(soon) {
		t.Errorf("due = %+v, want only the activity due soon", due)
	}
}
