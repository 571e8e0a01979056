package model

import "time"

type NotificationType string

const (
	NotifSubmission NotificationType = "submission"
	NotifApproval   NotificationType = "approval"
	NotifRejection  NotificationType = "rejection"
	NotifReminder   NotificationType = "reminder"
)

type Notification struct {
	ID        string           `json:"id"`
	UserID    string           `json:"user_id"`
	Type      NotificationType `json:"type"`
	Title     string           `json:"title"`
	Message   string           `json:"message"`
	RelatedID string           `json:"related_id,omitempty"`
	ActionURL string           `json:"action_url,omitempty"`
	Read      bool             `json:"read"`
	CreatedAt time.Time        `json:"created_at"`
}
