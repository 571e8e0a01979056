// Package catalog manages the activities parents assign and the templates
// they are cloned from.
package catalog

import (
	"context"
	"strings"
	"time"

	"github.com/dukerupert/zooz/internal/apperr"
	"github.com/dukerupert/zooz/internal/model"
	"github.com/dukerupert/zooz/internal/store"
)

// DefaultTokenValue is the suggested reward for a category.
func DefaultTokenValue(c model.Category) int {
	switch c {
	case model.CategoryEducational:
		return 15
	case model.CategorySocial:
		return 10
	case model.CategoryHouseChores:
		return 8
	case model.CategoryPhysical:
		return 12
	}
	return 0
}

type ActivityInput struct {
	Title            string              `json:"title"`
	Description      string              `json:"description"`
	Category         model.Category      `json:"category"`
	TokenValue       int                 `json:"token_value"`
	RequiresEvidence bool                `json:"requires_evidence"`
	AssignedTo       []string            `json:"assigned_to"`
	DueDate          *time.Time          `json:"due_date"`
	IsTemplate       bool                `json:"is_template"`
	RecurringType    model.RecurringType `json:"recurring_type"`
}

type Service struct {
	activities *store.ActivityStore
	users      *store.UserStore
	now        func() time.Time
}

func NewService(activities *store.ActivityStore, users *store.UserStore) *Service {
	return &Service{
		activities: activities,
		users:      users,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// SetClock replaces the time source.
func (s *Service) SetClock(now func() time.Time) { s.now = now }

func validate(in *ActivityInput) error {
	in.Title = strings.TrimSpace(in.Title)
	in.Description = strings.TrimSpace(in.Description)
	if in.Title == "" {
		return apperr.Validation("title is required")
	}
	if in.TokenValue <= 0 {
		return apperr.Validation("token value must be positive")
	}
	if !in.Category.Valid() {
		return apperr.Validation("unknown category %q", in.Category)
	}
	if in.RecurringType == "" {
		in.RecurringType = model.RecurringNone
	}
	if !in.RecurringType.Valid() {
		return apperr.Validation("unknown recurring type %q", in.RecurringType)
	}
	if in.IsTemplate && len(in.AssignedTo) > 0 {
		return apperr.Validation("templates cannot be assigned")
	}
	return nil
}

// checkAssignees verifies every assignee is a child of owner. Admin-owned
// activities may be assigned to any child.
func (s *Service) checkAssignees(ctx context.Context, owner model.User, childIDs []string) error {
	for _, id := range childIDs {
		c, err := s.users.GetChild(ctx, id)
		if err != nil {
			return err
		}
		if c == nil {
			return apperr.NotFound("child %s not found", id)
		}
		if !owner.IsAdmin() && c.ParentID != owner.ID {
			return apperr.Authorization("child %s belongs to another family", id)
		}
	}
	return nil
}

func canManage(actor model.User) error {
	if actor.IsParent() || actor.IsAdmin() {
		return nil
	}
	return apperr.Authorization("only parents and admins manage activities")
}

// Create adds an activity or template owned by actor.
func (s *Service) Create(ctx context.Context, actor model.User, in ActivityInput) (*model.Activity, error) {
	if err := canManage(actor); err != nil {
		return nil, err
	}
	if err := validate(&in); err != nil {
		return nil, err
	}
	if err := s.checkAssignees(ctx, actor, in.AssignedTo); err != nil {
		return nil, err
	}

	now := s.now()
	return s.activities.Create(ctx, model.Activity{
		Title:            in.Title,
		Description:      in.Description,
		Category:         in.Category,
		TokenValue:       in.TokenValue,
		RequiresEvidence: in.RequiresEvidence,
		CreatedBy:        actor.ID,
		AssignedTo:       in.AssignedTo,
		DueDate:          in.DueDate,
		IsTemplate:       in.IsTemplate,
		RecurringType:    in.RecurringType,
		CreatedAt:        now,
		UpdatedAt:        now,
	})
}

// CreateTemplate creates a template, filling a zero token value from the
// category default.
func (s *Service) CreateTemplate(ctx context.Context, actor model.User, in ActivityInput) (*model.Activity, error) {
	in.IsTemplate = true
	if in.TokenValue == 0 {
		in.TokenValue = DefaultTokenValue(in.Category)
	}
	return s.Create(ctx, actor, in)
}

// CreateFromTemplate clones a template into an assignable activity owned by actor.
func (s *Service) CreateFromTemplate(ctx context.Context, actor model.User, templateID string, assignedTo []string, dueDate *time.Time) (*model.Activity, error) {
	if err := canManage(actor); err != nil {
		return nil, err
	}
	tmpl, err := s.activities.GetByID(ctx, templateID)
	if err != nil {
		return nil, err
	}
	if tmpl == nil || !tmpl.IsTemplate {
		return nil, apperr.NotFound("template %s not found", templateID)
	}
	if err := s.checkAssignees(ctx, actor, assignedTo); err != nil {
		return nil, err
	}

	now := s.now()
	return s.activities.Create(ctx, model.Activity{
		Title:            tmpl.Title,
		Description:      tmpl.Description,
		Category:         tmpl.Category,
		TokenValue:       tmpl.TokenValue,
		RequiresEvidence: tmpl.RequiresEvidence,
		CreatedBy:        actor.ID,
		AssignedTo:       assignedTo,
		DueDate:          dueDate,
		RecurringType:    tmpl.RecurringType,
		TemplateID:       tmpl.ID,
		CreatedAt:        now,
		UpdatedAt:        now,
	})
}

func (s *Service) GetByID(ctx context.Context, id string) (*model.Activity, error) {
	a, err := s.activities.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if a == nil {
		return nil, apperr.NotFound("activity %s not found", id)
	}
	return a, nil
}

// ListForChild returns the activities open to childID: those assigned to the
// child by anyone allowed to, and the parent's unassigned activities.
func (s *Service) ListForChild(ctx context.Context, childID string) ([]model.Activity, error) {
	c, err := s.users.GetChild(ctx, childID)
	if err != nil {
		return nil, err
	}
	if c == nil {
		return nil, apperr.NotFound("child %s not found", childID)
	}
	return orEmpty(s.activities.ListForChild(ctx, c.ParentID, childID))
}

func (s *Service) ListForParent(ctx context.Context, parentID string) ([]model.Activity, error) {
	return orEmpty(s.activities.ListByCreator(ctx, parentID))
}

func (s *Service) ListTemplates(ctx context.Context) ([]model.Activity, error) {
	return orEmpty(s.activities.ListTemplates(ctx))
}

// Update edits an activity. Once a submission references it, the token value
// and evidence requirement are frozen.
func (s *Service) Update(ctx context.Context, actor model.User, id string, in ActivityInput) (*model.Activity, error) {
	a, err := s.editable(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	in.IsTemplate = a.IsTemplate
	if err := validate(&in); err != nil {
		return nil, err
	}

	if in.TokenValue != a.TokenValue || in.RequiresEvidence != a.RequiresEvidence {
		n, err := s.activities.CountSubmissions(ctx, id)
		if err != nil {
			return nil, err
		}
		if n > 0 {
			return nil, apperr.InvalidState("activity has %d submissions; token value and evidence requirement cannot change", n)
		}
	}

	owner, err := s.users.GetByID(ctx, a.CreatedBy)
	if err != nil {
		return nil, err
	}
	if owner == nil {
		return nil, apperr.NotFound("activity owner %s not found", a.CreatedBy)
	}
	if err := s.checkAssignees(ctx, *owner, in.AssignedTo); err != nil {
		return nil, err
	}

	a.Title = in.Title
	a.Description = in.Description
	a.Category = in.Category
	a.TokenValue = in.TokenValue
	a.RequiresEvidence = in.RequiresEvidence
	a.AssignedTo = in.AssignedTo
	a.DueDate = in.DueDate
	a.RecurringType = in.RecurringType
	a.UpdatedAt = s.now()
	return s.activities.Update(ctx, *a)
}

// Delete removes an activity that no submission references.
func (s *Service) Delete(ctx context.Context, actor model.User, id string) error {
	if _, err := s.editable(ctx, actor, id); err != nil {
		return err
	}
	n, err := s.activities.CountSubmissions(ctx, id)
	if err != nil {
		return err
	}
	if n > 0 {
		return apperr.InvalidState("activity has %d submissions and cannot be deleted", n)
	}
	return s.activities.Delete(ctx, id)
}

func (s *Service) editable(ctx context.Context, actor model.User, id string) (*model.Activity, error) {
	a, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !actor.IsAdmin() && a.CreatedBy != actor.ID {
		return nil, apperr.Authorization("only the creator or an admin may change this activity")
	}
	return a, nil
}

func orEmpty(activities []model.Activity, err error) ([]model.Activity, error) {
	if err != nil {
		return nil, err
	}
	if activities == nil {
		activities = []model.Activity{}
	}
	return activities, nil
}
