package model

import "time"

type TransactionSource string

const (
	SourceSubmissionApproval TransactionSource = "submission_approval"
	SourceRedemption         TransactionSource = "redemption"
	SourceManualAdjustment   TransactionSource = "manual_adjustment"
)

func (s TransactionSource) Valid() bool {
	switch s {
	case SourceSubmissionApproval, SourceRedemption, SourceManualAdjustment:
		return true
	}
	return false
}

// Transaction is an append-only ledger entry. Positive amounts are credits.
type Transaction struct {
	ID          string            `json:"id"`
	ChildID     string            `json:"child_id"`
	Amount      int               `json:"amount"`
	Source      TransactionSource `json:"source"`
	RelatedID   string            `json:"related_id,omitempty"`
	Platform    string            `json:"platform,omitempty"`
	GameAmount  int               `json:"game_amount,omitempty"`
	AccountID   string            `json:"account_id,omitempty"`
	Description string            `json:"description,omitempty"`
	CreatedAt   time.Time         `json:"created_at"`
}

type TokenStats struct {
	ChildID     string `json:"child_id"`
	TotalEarned int    `json:"total_earned"`
	TotalSpent  int    `json:"total_spent"`
	Balance     int    `json:"balance"`
}
