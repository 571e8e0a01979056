package model

import "time"

type Status string

const (
	StatusPending  Status = "pending"
	StatusApproved Status = "approved"
	StatusRejected Status = "rejected"
)

func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusApproved, StatusRejected:
		return true
	}
	return false
}

func (s Status) Terminal() bool {
	return s == StatusApproved || s == StatusRejected
}

type Submission struct {
	ID           string     `json:"id"`
	ActivityID   string     `json:"activity_id"`
	ChildID      string     `json:"child_id"`
	ParentID     string     `json:"parent_id"`
	Status       Status     `json:"status"`
	EvidenceURL  string     `json:"evidence_url,omitempty"`
	Notes        string     `json:"notes"`
	TokenValue   int        `json:"token_value"`
	TokenAwarded bool       `json:"token_awarded"`
	Feedback     string     `json:"feedback,omitempty"`
	SubmittedAt  time.Time  `json:"submitted_at"`
	ReviewedAt   *time.Time `json:"reviewed_at,omitempty"`
	ReviewedBy   string     `json:"reviewed_by,omitempty"`
}
