package model

import "time"

type Redemption struct {
	ID         string     `json:"id"`
	ChildID    string     `json:"child_id"`
	ParentID   string     `json:"parent_id"`
	Platform   string     `json:"platform"`
	Amount     int        `json:"amount"`
	GameAmount int        `json:"game_amount"`
	AccountID  string     `json:"account_id"`
	Notes      string     `json:"notes,omitempty"`
	Status     Status     `json:"status"`
	Feedback   string     `json:"feedback,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
	ReviewedAt *time.Time `json:"reviewed_at,omitempty"`
	ReviewedBy string     `json:"reviewed_by,omitempty"`
}

// Platform is a gaming currency destination and its tokens-to-currency rate.
type Platform struct {
	Name           string `json:"name"`
	Label          string `json:"label"`
	ConversionRate int    `json:"conversion_rate"`
}
