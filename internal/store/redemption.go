package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/dukerupert/zooz/internal/apperr"
	"github.com/dukerupert/zooz/internal/model"
)

type RedemptionStore struct {
	db *sql.DB
}

func NewRedemptionStore(db *sql.DB) *RedemptionStore {
	return &RedemptionStore{db: db}
}

func scanRedemption(scanner interface{ Scan(...any) error }) (*model.Redemption, error) {
	var r model.Redemption
	var reviewedAt sql.NullTime

	err := scanner.Scan(&r.ID, &r.ChildID, &r.ParentID, &r.Platform, &r.Amount, &r.GameAmount,
		&r.AccountID, &r.Notes, &r.Status, &r.Feedback, &r.CreatedAt, &reviewedAt, &r.ReviewedBy)
	if err != nil {
		return nil, err
	}

	r.CreatedAt = r.CreatedAt.UTC()
	r.ReviewedAt = timePtr(reviewedAt)
	return &r, nil
}

const redemptionCols = `id, child_id, parent_id, platform, amount, game_amount, account_id, notes,
	status, feedback, created_at, reviewed_at, reviewed_by`

// Create inserts a pending redemption. No tokens are reserved.
func (s *RedemptionStore) Create(ctx context.Context, r model.Redemption) (*model.Redemption, error) {
	if r.ID == "" {
		r.ID = newID()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO redemptions (id, child_id, parent_id, platform, amount, game_amount, account_id,
		   notes, status, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, 'pending', ?)`,
		r.ID, r.ChildID, r.ParentID, r.Platform, r.Amount, r.GameAmount, r.AccountID,
		r.Notes, orNow(r.CreatedAt),
	)
	if err != nil {
		return nil, fmt.Errorf("insert redemption: %w", err)
	}
	return s.GetByID(ctx, r.ID)
}

func (s *RedemptionStore) GetByID(ctx context.Context, id string) (*model.Redemption, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+redemptionCols+` FROM redemptions WHERE id = ?`, id)
	r, err := scanRedemption(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get redemption: %w", err)
	}
	return r, nil
}

func (s *RedemptionStore) ListByParent(ctx context.Context, parentID string, status model.Status) ([]model.Redemption, error) {
	return s.list(ctx, "parent_id", parentID, status)
}

func (s *RedemptionStore) ListByChild(ctx context.Context, childID string, status model.Status) ([]model.Redemption, error) {
	return s.list(ctx, "child_id", childID, status)
}

func (s *RedemptionStore) list(ctx context.Context, col, id string, status model.Status) ([]model.Redemption, error) {
	query := `SELECT ` + redemptionCols + ` FROM redemptions WHERE ` + col + ` = ?`
	args := []any{id}
	if status != "" {
		query += ` AND status = ?`
		args = append(args, status)
	}
	query += ` ORDER BY created_at DESC, id ASC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list redemptions: %w", err)
	}
	defer rows.Close()

	var redemptions []model.Redemption
	for rows.Next() {
		r, err := scanRedemption(rows)
		if err != nil {
			return nil, fmt.Errorf("scan redemption: %w", err)
		}
		redemptions = append(redemptions, *r)
	}
	return redemptions, rows.Err()
}

// Approve debits the child and flips the redemption to approved in one
// database transaction. The balance is re-read inside the transaction; an
// overdraft returns InsufficientBalance and leaves the redemption pending.
func (s *RedemptionStore) Approve(ctx context.Context, id, reviewerID, feedback string, at time.Time) (*model.Redemption, *model.Transaction, error) {
	at = orNow(at)
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	row := tx.QueryRowContext(ctx, `SELECT `+redemptionCols+` FROM redemptions WHERE id = ?`, id)
	r, err := scanRedemption(row)
	if err == sql.ErrNoRows {
		return nil, nil, apperr.NotFound("redemption %s not found", id)
	}
	if err != nil {
		return nil, nil, fmt.Errorf("get redemption: %w", err)
	}
	if r.Status != model.StatusPending {
		return nil, nil, apperr.InvalidState("redemption already %s", r.Status)
	}

	balance, err := balanceOf(ctx, tx, r.ChildID)
	if err != nil {
		return nil, nil, err
	}
	if balance < r.Amount {
		return nil, nil, apperr.InsufficientBalance(balance, r.Amount)
	}

	debit := model.Transaction{
		ChildID:     r.ChildID,
		Amount:      -r.Amount,
		Source:      model.SourceRedemption,
		RelatedID:   id,
		Platform:    r.Platform,
		GameAmount:  r.GameAmount,
		AccountID:   r.AccountID,
		Description: fmt.Sprintf("Redeemed for %d %s currency", r.GameAmount, r.Platform),
		CreatedAt:   at,
	}
	if err := insertTransaction(ctx, tx, &debit); err != nil {
		return nil, nil, err
	}

	if err := transition(ctx, tx, "redemptions", id, model.StatusApproved, reviewerID, feedback, at, true); err != nil {
		return nil, nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, nil, fmt.Errorf("commit: %w", err)
	}

	updated, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	return updated, &debit, nil
}

// Reject moves a pending redemption to rejected. No ledger entry is written.
func (s *RedemptionStore) Reject(ctx context.Context, id, reviewerID, feedback string, at time.Time) (*model.Redemption, error) {
	if err := transition(ctx, s.db, "redemptions", id, model.StatusRejected, reviewerID, feedback, orNow(at), false); err != nil {
		return nil, err
	}
	return s.GetByID(ctx, id)
}
