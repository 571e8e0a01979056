package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/dukerupert/zooz/internal/apperr"
	"github.com/dukerupert/zooz/internal/model"
)

// LedgerStore owns the append-only transactions table. Nothing here updates
// or deletes a row.
type LedgerStore struct {
	db *sql.DB
}

func NewLedgerStore(db *sql.DB) *LedgerStore {
	return &LedgerStore{db: db}
}

func scanTransaction(scanner interface{ Scan(...any) error }) (*model.Transaction, int64, error) {
	var t model.Transaction
	var seq int64
	err := scanner.Scan(&seq, &t.ID, &t.ChildID, &t.Amount, &t.Source, &t.RelatedID,
		&t.Platform, &t.GameAmount, &t.AccountID, &t.Description, &t.CreatedAt)
	if err != nil {
		return nil, 0, err
	}
	t.CreatedAt = t.CreatedAt.UTC()
	return &t, seq, nil
}

const transactionCols = `seq, id, child_id, amount, source, related_id, platform, game_amount,
	account_id, description, created_at`

func balanceOf(ctx context.Context, q querier, childID string) (int, error) {
	var balance int
	err := q.QueryRowContext(ctx,
		`SELECT COALESCE(SUM(amount), 0) FROM transactions WHERE child_id = ?`, childID,
	).Scan(&balance)
	if err != nil {
		return 0, fmt.Errorf("sum balance: %w", err)
	}
	return balance, nil
}

// insertTransaction appends t. A second approval/redemption entry for the
// same related record violates the unique index and reports InvalidState.
func insertTransaction(ctx context.Context, q querier, t *model.Transaction) error {
	if t.ID == "" {
		t.ID = newID()
	}
	t.CreatedAt = orNow(t.CreatedAt)
	_, err := q.ExecContext(ctx,
		`INSERT INTO transactions (id, child_id, amount, source, related_id, platform, game_amount,
		   account_id, description, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ID, t.ChildID, t.Amount, t.Source, t.RelatedID, t.Platform, t.GameAmount,
		t.AccountID, t.Description, t.CreatedAt,
	)
	if isUniqueViolation(err) {
		return apperr.InvalidState("%s %s already recorded", t.Source, t.RelatedID)
	}
	if err != nil {
		return fmt.Errorf("insert transaction: %w", err)
	}
	return nil
}

// Record appends t after checking, in the same database transaction, that a
// debit does not take the balance below zero.
func (s *LedgerStore) Record(ctx context.Context, t model.Transaction) (*model.Transaction, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if t.Amount < 0 {
		balance, err := balanceOf(ctx, tx, t.ChildID)
		if err != nil {
			return nil, err
		}
		if balance+t.Amount < 0 {
			return nil, apperr.InsufficientBalance(balance, -t.Amount)
		}
	}
	if err := insertTransaction(ctx, tx, &t); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return &t, nil
}

func (s *LedgerStore) GetByID(ctx context.Context, id string) (*model.Transaction, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+transactionCols+` FROM transactions WHERE id = ?`, id)
	t, _, err := scanTransaction(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get transaction: %w", err)
	}
	return t, nil
}

func (s *LedgerStore) Balance(ctx context.Context, childID string) (int, error) {
	return balanceOf(ctx, s.db, childID)
}

// Stats sums credits and debits separately.
func (s *LedgerStore) Stats(ctx context.Context, childID string) (*model.TokenStats, error) {
	st := model.TokenStats{ChildID: childID}
	err := s.db.QueryRowContext(ctx,
		`SELECT COALESCE(SUM(CASE WHEN amount > 0 THEN amount ELSE 0 END), 0),
		        COALESCE(SUM(CASE WHEN amount < 0 THEN -amount ELSE 0 END), 0)
		 FROM transactions WHERE child_id = ?`, childID,
	).Scan(&st.TotalEarned, &st.TotalSpent)
	if err != nil {
		return nil, fmt.Errorf("token stats: %w", err)
	}
	st.Balance = st.TotalEarned - st.TotalSpent
	return &st, nil
}

// Cursor marks the last row of a history page.
type Cursor struct {
	CreatedAt time.Time
	Seq       int64
}

// HistoryQuery selects a page of a child's transactions, newest first. A zero
// From or To leaves that side open; both bounds are inclusive.
type HistoryQuery struct {
	Sources []model.TransactionSource
	From    time.Time
	To      time.Time
	After   *Cursor
	Limit   int
}

// History returns one page and the cursor of its last row. The cursor is nil
// when the page is shorter than Limit.
func (s *LedgerStore) History(ctx context.Context, childID string, q HistoryQuery) ([]model.Transaction, *Cursor, error) {
	var sb strings.Builder
	args := []any{childID}
	sb.WriteString(`SELECT ` + transactionCols + ` FROM transactions WHERE child_id = ?`)

	if len(q.Sources) > 0 {
		sb.WriteString(` AND source IN (?` + strings.Repeat(`, ?`, len(q.Sources)-1) + `)`)
		for _, src := range q.Sources {
			args = append(args, src)
		}
	}
	if !q.From.IsZero() {
		sb.WriteString(` AND created_at >= ?`)
		args = append(args, q.From.UTC())
	}
	if !q.To.IsZero() {
		sb.WriteString(` AND created_at <= ?`)
		args = append(args, q.To.UTC())
	}
	if q.After != nil {
		sb.WriteString(` AND (created_at < ? OR (created_at = ? AND seq < ?))`)
		at := q.After.CreatedAt.UTC()
		args = append(args, at, at, q.After.Seq)
	}
	sb.WriteString(` ORDER BY created_at DESC, seq DESC`)
	if q.Limit > 0 {
		sb.WriteString(` LIMIT ?`)
		args = append(args, q.Limit)
	}

	rows, err := s.db.QueryContext(ctx, sb.String(), args...)
	if err != nil {
		return nil, nil, fmt.Errorf("list transactions: %w", err)
	}
	defer rows.Close()

	var (
		txns []model.Transaction
		last Cursor
	)
	for rows.Next() {
		t, seq, err := scanTransaction(rows)
		if err != nil {
			return nil, nil, fmt.Errorf("scan transaction: %w", err)
		}
		txns = append(txns, *t)
		last = Cursor{CreatedAt: t.CreatedAt, Seq: seq}
	}
	if err := rows.Err(); err != nil {
		return nil, nil, err
	}
	if q.Limit > 0 && len(txns) == q.Limit {
		return txns, &last, nil
	}
	return txns, nil, nil
}
