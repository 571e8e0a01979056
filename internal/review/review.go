// Package review holds the approve/reject contract shared by submissions and
// redemptions.
package review

import (
	"strings"

	"github.com/dukerupert/zooz/internal/apperr"
	"github.com/dukerupert/zooz/internal/model"
)

type Decision string

const (
	Approve Decision = "approve"
	Reject  Decision = "reject"
)

func ParseDecision(s string) (Decision, error) {
	switch Decision(strings.ToLower(strings.TrimSpace(s))) {
	case Approve:
		return Approve, nil
	case Reject:
		return Reject, nil
	}
	return "", apperr.Validation("decision must be approve or reject")
}

// Status is the terminal status a decision moves a pending record to.
func (d Decision) Status() model.Status {
	if d == Approve {
		return model.StatusApproved
	}
	return model.StatusRejected
}

// Authorize allows the record's parent or an admin to review it.
func Authorize(actor model.User, parentID string) error {
	if actor.IsAdmin() {
		return nil
	}
	if actor.IsParent() && actor.ID == parentID {
		return nil
	}
	return apperr.Authorization("only the parent or an admin may review")
}

// Check verifies a review can proceed against a record in status. State is
// checked first so a repeated review always reports InvalidState.
func Check(status model.Status, d Decision, feedback string) error {
	if status != model.StatusPending {
		return apperr.InvalidState("already %s", status)
	}
	switch d {
	case Approve:
	case Reject:
		if strings.TrimSpace(feedback) == "" {
			return apperr.Validation("feedback is required when rejecting")
		}
	default:
		return apperr.Validation("decision must be approve or reject")
	}
	return nil
}

// AuthorizeView allows the child itself, its parent, or an admin to read
// records that belong to childID.
func AuthorizeView(actor model.User, childID, parentID string) error {
	switch {
	case actor.IsAdmin():
		return nil
	case actor.IsChild() && actor.ID == childID:
		return nil
	case actor.IsParent() && actor.ID == parentID:
		return nil
	}
	return apperr.Authorization("not allowed to view this child's records")
}
