package catalog

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dukerupert/zooz/internal/apperr"
	"github.com/dukerupert/zooz/internal/model"
	"github.com/dukerupert/zooz/internal/store"
	"github.com/dukerupert/zooz/internal/testutil"
)

func setup(t *testing.T) (*Service, *store.SubmissionStore, testutil.Family) {
	t.Helper()
	db := testutil.OpenDB(t)
	f := testutil.SeedFamily(t, db)
	svc := NewService(store.NewActivityStore(db), store.NewUserStore(db))
	return svc, store.NewSubmissionStore(db), f
}

func validInput() ActivityInput {
	return ActivityInput{
		Title:      "Read a chapter",
		Category:   model.CategoryEducational,
		TokenValue: 15,
	}
}

func TestCreate(t *testing.T) {
	svc, _, f := setup(t)
	ctx := context.Background()

	in := validInput()
	in.AssignedTo = []string{f.Child.ID}
	a, err := svc.Create(ctx, f.Parent, in)
	require.NoError(t, err)
	assert.Equal(t, f.Parent.ID, a.CreatedBy)
	assert.Equal(t, []string{f.Child.ID}, a.AssignedTo)
	assert.Equal(t, model.RecurringNone, a.RecurringType)

	got, err := svc.GetByID(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, a, got)
}

func TestCreateValidation(t *testing.T) {
	svc, _, f := setup(t)
	ctx := context.Background()

	tests := []struct {
		name   string
		mutate func(*ActivityInput)
	}{
		{"zero tokens", func(in *ActivityInput) { in.TokenValue = 0 }},
		{"negative tokens", func(in *ActivityInput) { in.TokenValue = -5 }},
		{"blank title", func(in *ActivityInput) { in.Title = "   " }},
		{"unknown category", func(in *ActivityInput) { in.Category = "gaming" }},
		{"unknown recurrence", func(in *ActivityInput) { in.RecurringType = "hourly" }},
		{"assigned template", func(in *ActivityInput) { in.IsTemplate = true; in.AssignedTo = []string{f.Child.ID} }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := validInput()
			tt.mutate(&in)
			_, err := svc.Create(ctx, f.Parent, in)
			assert.ErrorIs(t, err, apperr.ErrValidation)
		})
	}
}

func TestCreateAuthorization(t *testing.T) {
	svc, _, f := setup(t)
	ctx := context.Background()

	_, err := svc.Create(ctx, f.Child, validInput())
	assert.ErrorIs(t, err, apperr.ErrAuthorization)

	in := validInput()
	in.AssignedTo = []string{f.OtherChild.ID}
	_, err = svc.Create(ctx, f.Parent, in)
	assert.ErrorIs(t, err, apperr.ErrAuthorization)

	in.AssignedTo = []string{"nobody"}
	_, err = svc.Create(ctx, f.Parent, in)
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	in.AssignedTo = []string{f.OtherChild.ID}
	_, err = svc.Create(ctx, f.Admin, in)
	assert.NoError(t, err)
}

func TestListForChild(t *testing.T) {
	svc, _, f := setup(t)
	ctx := context.Background()

	open, err := svc.Create(ctx, f.Parent, validInput())
	require.NoError(t, err)
	in := validInput()
	in.AssignedTo = []string{f.Sibling.ID}
	_, err = svc.Create(ctx, f.Parent, in)
	require.NoError(t, err)
	_, err = svc.Create(ctx, f.OtherParent, validInput())
	require.NoError(t, err)

	list, err := svc.ListForChild(ctx, f.Child.ID)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, open.ID, list[0].ID)

	_, err = svc.ListForChild(ctx, f.Parent.ID)
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	others, err := svc.ListForChild(ctx, f.OtherChild.ID)
	require.NoError(t, err)
	assert.Len(t, others, 1)

	none, err := svc.ListForParent(ctx, f.Admin.ID)
	require.NoError(t, err)
	assert.NotNil(t, none)
	assert.Empty(t, none)
}

func TestListForChildIncludesAdminAssignment(t *testing.T) {
	svc, _, f := setup(t)
	ctx := context.Background()

	in := validInput()
	in.AssignedTo = []string{f.Child.ID}
	assigned, err := svc.Create(ctx, f.Admin, in)
	require.NoError(t, err)
	_, err = svc.Create(ctx, f.Admin, validInput())
	require.NoError(t, err)

	list, err := svc.ListForChild(ctx, f.Child.ID)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, assigned.ID, list[0].ID)
	assert.True(t, list[0].OpenToChild(f.Child))
	assert.False(t, list[0].OpenToChild(f.Sibling))

	sibling, err := svc.ListForChild(ctx, f.Sibling.ID)
	require.NoError(t, err)
	assert.Empty(t, sibling)
}

func TestGetByIDRepeatable(t *testing.T) {
	svc, _, f := setup(t)
	ctx := context.Background()

	in := validInput()
	in.AssignedTo = []string{f.Child.ID, f.Sibling.ID}
	due := time.Date(2026, 7, 1, 9, 0, 0, 0, time.UTC)
	in.DueDate = &due
	a, err := svc.Create(ctx, f.Parent, in)
	require.NoError(t, err)

	first, err := svc.GetByID(ctx, a.ID)
	require.NoError(t, err)
	for i := 0; i < 3; i++ {
		again, err := svc.GetByID(ctx, a.ID)
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}

	_, err = svc.GetByID(ctx, "missing")
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestTemplates(t *testing.T) {
	svc, _, f := setup(t)
	ctx := context.Background()

	tmpl, err := svc.CreateTemplate(ctx, f.Admin, ActivityInput{
		Title:    "Tidy your room",
		Category: model.CategoryHouseChores,
	})
	require.NoError(t, err)
	assert.True(t, tmpl.IsTemplate)
	assert.Equal(t, 8, tmpl.TokenValue)

	templates, err := svc.ListTemplates(ctx)
	require.NoError(t, err)
	require.Len(t, templates, 1)

	due := time.Date(2026, 6, 1, 17, 0, 0, 0, time.UTC)
	clone, err := svc.CreateFromTemplate(ctx, f.Parent, tmpl.ID, []string{f.Child.ID}, &due)
	require.NoError(t, err)
	assert.False(t, clone.IsTemplate)
	assert.Equal(t, tmpl.ID, clone.TemplateID)
	assert.Equal(t, f.Parent.ID, clone.CreatedBy)
	assert.Equal(t, 8, clone.TokenValue)
	require.NotNil(t, clone.DueDate)
	assert.True(t, clone.DueDate.Equal(due))

	_, err = svc.CreateFromTemplate(ctx, f.Parent, clone.ID, nil, nil)
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	// Templates are never listed as assignable work.
	list, err := svc.ListForChild(ctx, f.Child.ID)
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestDefaultTokenValue(t *testing.T) {
	assert.Equal(t, 15, DefaultTokenValue(model.CategoryEducational))
	assert.Equal(t, 10, DefaultTokenValue(model.CategorySocial))
	assert.Equal(t, 8, DefaultTokenValue(model.CategoryHouseChores))
	assert.Equal(t, 12, DefaultTokenValue(model.CategoryPhysical))
	assert.Equal(t, 0, DefaultTokenValue("unknown"))
}

func TestUpdateFreezesRewardOnceReferenced(t *testing.T) {
	svc, subs, f := setup(t)
	ctx := context.Background()

	a, err := svc.Create(ctx, f.Parent, validInput())
	require.NoError(t, err)

	in := validInput()
	in.TokenValue = 20
	updated, err := svc.Update(ctx, f.Parent, a.ID, in)
	require.NoError(t, err)
	assert.Equal(t, 20, updated.TokenValue)

	_, err = subs.Create(ctx, model.Submission{
		ActivityID: a.ID, ChildID: f.Child.ID, ParentID: f.Parent.ID, Notes: "done", TokenValue: 20,
	})
	require.NoError(t, err)

	in.TokenValue = 50
	_, err = svc.Update(ctx, f.Parent, a.ID, in)
	assert.ErrorIs(t, err, apperr.ErrInvalidState)

	in = validInput()
	in.TokenValue = 20
	in.RequiresEvidence = true
	_, err = svc.Update(ctx, f.Parent, a.ID, in)
	assert.ErrorIs(t, err, apperr.ErrInvalidState)

	in.RequiresEvidence = false
	in.Title = "Read two chapters"
	updated, err = svc.Update(ctx, f.Parent, a.ID, in)
	require.NoError(t, err)
	assert.Equal(t, "Read two chapters", updated.Title)

	_, err = svc.Update(ctx, f.OtherParent, a.ID, in)
	assert.ErrorIs(t, err, apperr.ErrAuthorization)
}

func TestDelete(t *testing.T) {
	svc, subs, f := setup(t)
	ctx := context.Background()

	free, err := svc.Create(ctx, f.Parent, validInput())
	require.NoError(t, err)
	require.NoError(t, svc.Delete(ctx, f.Parent, free.ID))
	_, err = svc.GetByID(ctx, free.ID)
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	used, err := svc.Create(ctx, f.Parent, validInput())
	require.NoError(t, err)
	_, err = subs.Create(ctx, model.Submission{
		ActivityID: used.ID, ChildID: f.Child.ID, ParentID: f.Parent.ID, Notes: "done", TokenValue: 15,
	})
	require.NoError(t, err)
	assert.ErrorIs(t, svc.Delete(ctx, f.Parent, used.ID), apperr.ErrInvalidState)
	assert.ErrorIs(t, svc.Delete(ctx, f.Child, used.ID), apperr.ErrAuthorization)
}
