package model

import "time"

type Category string

const (
	CategoryEducational Category = "educational"
	CategorySocial      Category = "social"
	CategoryHouseChores Category = "house_chores"
	CategoryPhysical    Category = "physical"
)

var Categories = []Category{CategoryEducational, CategorySocial, CategoryHouseChores, CategoryPhysical}

func (c Category) Valid() bool {
	for _, v := range Categories {
		if c == v {
			return true
		}
	}
	return false
}

// OpenToChild reports whether child may see and submit the activity.
// Assignees are checked against the creator when the activity is saved, so
// an explicit assignment is enough on its own. An unassigned activity is open
// to the creator's children.
func (a Activity) OpenToChild(child User) bool {
	if a.IsTemplate {
		return false
	}
	if len(a.AssignedTo) > 0 {
		return a.AssignedToChild(child.ID)
	}
	return a.CreatedBy == child.ParentID
}

type RecurringType string

const (
	RecurringNone   RecurringType = "none"
	RecurringDaily  RecurringType = "daily"
	RecurringWeekly RecurringType = "weekly"
)

func (r RecurringType) Valid() bool {
	switch r {
	case RecurringNone, RecurringDaily, RecurringWeekly:
		return true
	}
	return false
}

type Activity struct {
	ID               string        `json:"id"`
	Title            string        `json:"title"`
	Description      string        `json:"description"`
	Category         Category      `json:"category"`
	TokenValue       int           `json:"token_value"`
	RequiresEvidence bool          `json:"requires_evidence"`
	CreatedBy        string        `json:"created_by"`
	AssignedTo       []string      `json:"assigned_to"`
	DueDate          *time.Time    `json:"due_date,omitempty"`
	IsTemplate       bool          `json:"is_template"`
	RecurringType    RecurringType `json:"recurring_type"`
	TemplateID       string        `json:"template_id,omitempty"`
	CreatedAt        time.Time     `json:"created_at"`
	UpdatedAt        time.Time     `json:"updated_at"`
}

// AssignedToChild reports whether the activity is open to childID. An empty
// assignment list means every child of the creator.
func (a Activity) AssignedToChild(childID string) bool {
	if len(a.AssignedTo) == 0 {
		return true
	}
	for _, id := range a.AssignedTo {
		if id == childID {
			return true
		}
	}
	return false
}
