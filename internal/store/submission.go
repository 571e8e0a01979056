package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/dukerupert/zooz/internal/apperr"
	"github.com/dukerupert/zooz/internal/model"
)

type SubmissionStore struct {
	db *sql.DB
}

func NewSubmissionStore(db *sql.DB) *SubmissionStore {
	return &SubmissionStore{db: db}
}

func scanSubmission(scanner interface{ Scan(...any) error }) (*model.Submission, error) {
	var sub model.Submission
	var tokenAwarded int
	var reviewedAt sql.NullTime

	err := scanner.Scan(&sub.ID, &sub.ActivityID, &sub.ChildID, &sub.ParentID, &sub.Status,
		&sub.EvidenceURL, &sub.Notes, &sub.TokenValue, &tokenAwarded, &sub.Feedback,
		&sub.SubmittedAt, &reviewedAt, &sub.ReviewedBy)
	if err != nil {
		return nil, err
	}

	sub.TokenAwarded = tokenAwarded != 0
	sub.SubmittedAt = sub.SubmittedAt.UTC()
	sub.ReviewedAt = timePtr(reviewedAt)
	return &sub, nil
}

const submissionCols = `id, activity_id, child_id, parent_id, status, evidence_url, notes, token_value,
	token_awarded, feedback, submitted_at, reviewed_at, reviewed_by`

// Create inserts a pending, unawarded submission.
func (s *SubmissionStore) Create(ctx context.Context, sub model.Submission) (*model.Submission, error) {
	if sub.ID == "" {
		sub.ID = newID()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO submissions (id, activity_id, child_id, parent_id, status, evidence_url, notes,
		   token_value, token_awarded, submitted_at)
		 VALUES (?, ?, ?, ?, 'pending', ?, ?, ?, 0, ?)`,
		sub.ID, sub.ActivityID, sub.ChildID, sub.ParentID, sub.EvidenceURL, sub.Notes,
		sub.TokenValue, orNow(sub.SubmittedAt),
	)
	if err != nil {
		return nil, fmt.Errorf("insert submission: %w", err)
	}
	return s.GetByID(ctx, sub.ID)
}

func (s *SubmissionStore) GetByID(ctx context.Context, id string) (*model.Submission, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+submissionCols+` FROM submissions WHERE id = ?`, id)
	sub, err := scanSubmission(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get submission: %w", err)
	}
	return sub, nil
}

// ListByParent returns submissions awaiting or reviewed by parentID, newest
// first. An empty status lists every status.
func (s *SubmissionStore) ListByParent(ctx context.Context, parentID string, status model.Status) ([]model.Submission, error) {
	return s.list(ctx, "parent_id", parentID, status)
}

func (s *SubmissionStore) ListByChild(ctx context.Context, childID string, status model.Status) ([]model.Submission, error) {
	return s.list(ctx, "child_id", childID, status)
}

func (s *SubmissionStore) list(ctx context.Context, col, id string, status model.Status) ([]model.Submission, error) {
	query := `SELECT ` + submissionCols + ` FROM submissions WHERE ` + col + ` = ?`
	args := []any{id}
	if status != "" {
		query += ` AND status = ?`
		args = append(args, status)
	}
	query += ` ORDER BY submitted_at DESC, id ASC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list submissions: %w", err)
	}
	defer rows.Close()

	var subs []model.Submission
	for rows.Next() {
		sub, err := scanSubmission(rows)
		if err != nil {
			return nil, fmt.Errorf("scan submission: %w", err)
		}
		subs = append(subs, *sub)
	}
	return subs, rows.Err()
}

// HasSubmitted reports whether childID has any submission for activityID.
func (s *SubmissionStore) HasSubmitted(ctx context.Context, activityID, childID string) (bool, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM submissions WHERE activity_id = ? AND child_id = ?`,
		activityID, childID,
	).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("check submitted: %w", err)
	}
	return n > 0, nil
}

// Approve credits the snapshotted token value and flips the submission to
// approved in one database transaction. Nothing is written unless the
// submission is still pending.
func (s *SubmissionStore) Approve(ctx context.Context, id, reviewerID, feedback string, at time.Time) (*model.Submission, *model.Transaction, error) {
	at = orNow(at)
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	var (
		status     model.Status
		childID    string
		tokenValue int
	)
	err = tx.QueryRowContext(ctx,
		`SELECT status, child_id, token_value FROM submissions WHERE id = ?`, id,
	).Scan(&status, &childID, &tokenValue)
	if err == sql.ErrNoRows {
		return nil, nil, apperr.NotFound("submission %s not found", id)
	}
	if err != nil {
		return nil, nil, fmt.Errorf("get submission status: %w", err)
	}
	if status != model.StatusPending {
		return nil, nil, apperr.InvalidState("submission already %s", status)
	}

	credit := model.Transaction{
		ChildID:     childID,
		Amount:      tokenValue,
		Source:      model.SourceSubmissionApproval,
		RelatedID:   id,
		Description: "Activity approved",
		CreatedAt:   at,
	}
	if err := insertTransaction(ctx, tx, &credit); err != nil {
		return nil, nil, err
	}

	if err := transition(ctx, tx, "submissions", id, model.StatusApproved, reviewerID, feedback, at, true); err != nil {
		return nil, nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, nil, fmt.Errorf("commit: %w", err)
	}

	sub, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	return sub, &credit, nil
}

// Reject moves a pending submission to rejected.
func (s *SubmissionStore) Reject(ctx context.Context, id, reviewerID, feedback string, at time.Time) (*model.Submission, error) {
	if err := transition(ctx, s.db, "submissions", id, model.StatusRejected, reviewerID, feedback, orNow(at), false); err != nil {
		return nil, err
	}
	return s.GetByID(ctx, id)
}

// transition is the compare-and-set that takes a pending row in table to a
// terminal status. A row that is no longer pending reports InvalidState.
func transition(ctx context.Context, q querier, table, id string, to model.Status, reviewerID, feedback string, at time.Time, awarded bool) error {
	query := `UPDATE ` + table + ` SET status = ?, feedback = ?, reviewed_at = ?, reviewed_by = ?`
	args := []any{to, feedback, at, reviewerID}
	if table == "submissions" {
		query += `, token_awarded = ?`
		args = append(args, boolInt(awarded))
	}
	query += ` WHERE id = ? AND status = 'pending'`
	args = append(args, id)

	res, err := q.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update %s status: %w", table, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 1 {
		return nil
	}

	var current model.Status
	err = q.QueryRowContext(ctx, `SELECT status FROM `+table+` WHERE id = ?`, id).Scan(&current)
	if err == sql.ErrNoRows {
		return apperr.NotFound("%s %s not found", table[:len(table)-1], id)
	}
	if err != nil {
		return fmt.Errorf("get %s status: %w", table, err)
	}
	return apperr.InvalidState("%s already %s", table[:len(table)-1], current)
}
