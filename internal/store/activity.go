package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/dukerupert/zooz/internal/model"
)

type ActivityStore struct {
	db *sql.DB
}

func NewActivityStore(db *sql.DB) *ActivityStore {
	return &ActivityStore{db: db}
}

func scanActivity(scanner interface{ Scan(...any) error }) (*model.Activity, error) {
	var a model.Activity
	var requiresEvidence, isTemplate int
	var dueDate sql.NullTime

	err := scanner.Scan(&a.ID, &a.Title, &a.Description, &a.Category, &a.TokenValue,
		&requiresEvidence, &a.CreatedBy, &dueDate, &isTemplate, &a.RecurringType,
		&a.TemplateID, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return nil, err
	}

	a.RequiresEvidence = requiresEvidence != 0
	a.IsTemplate = isTemplate != 0
	a.DueDate = timePtr(dueDate)
	a.CreatedAt = a.CreatedAt.UTC()
	a.UpdatedAt = a.UpdatedAt.UTC()
	a.AssignedTo = []string{}
	return &a, nil
}

const activityCols = `id, title, description, category, token_value, requires_evidence, created_by,
	due_date, is_template, recurring_type, template_id, created_at, updated_at`

func (s *ActivityStore) Create(ctx context.Context, a model.Activity) (*model.Activity, error) {
	if a.ID == "" {
		a.ID = newID()
	}
	now := orNow(a.CreatedAt)
	if a.RecurringType == "" {
		a.RecurringType = model.RecurringNone
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO activities (id, title, description, category, token_value, requires_evidence,
		   created_by, due_date, is_template, recurring_type, template_id, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		a.ID, a.Title, a.Description, a.Category, a.TokenValue, boolInt(a.RequiresEvidence),
		a.CreatedBy, nullTime(a.DueDate), boolInt(a.IsTemplate), a.RecurringType, a.TemplateID, now, now,
	)
	if err != nil {
		return nil, fmt.Errorf("insert activity: %w", err)
	}
	if err := setAssignees(ctx, tx, a.ID, a.AssignedTo); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return s.GetByID(ctx, a.ID)
}

func setAssignees(ctx context.Context, q querier, activityID string, childIDs []string) error {
	if _, err := q.ExecContext(ctx, `DELETE FROM activity_assignees WHERE activity_id = ?`, activityID); err != nil {
		return fmt.Errorf("clear assignees: %w", err)
	}
	for _, cid := range childIDs {
		_, err := q.ExecContext(ctx,
			`INSERT OR IGNORE INTO activity_assignees (activity_id, child_id) VALUES (?, ?)`,
			activityID, cid,
		)
		if err != nil {
			return fmt.Errorf("insert assignee: %w", err)
		}
	}
	return nil
}

func (s *ActivityStore) GetByID(ctx context.Context, id string) (*model.Activity, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+activityCols+` FROM activities WHERE id = ?`, id)
	a, err := scanActivity(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get activity: %w", err)
	}
	if err := s.loadAssignees(ctx, []*model.Activity{a}); err != nil {
		return nil, err
	}
	return a, nil
}

// Update overwrites the mutable fields of a and replaces its assignees.
func (s *ActivityStore) Update(ctx context.Context, a model.Activity) (*model.Activity, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`UPDATE activities SET title = ?, description = ?, category = ?, token_value = ?,
		   requires_evidence = ?, due_date = ?, recurring_type = ?, updated_at = ?
		 WHERE id = ?`,
		a.Title, a.Description, a.Category, a.TokenValue, boolInt(a.RequiresEvidence),
		nullTime(a.DueDate), a.RecurringType, orNow(a.UpdatedAt), a.ID,
	)
	if err != nil {
		return nil, fmt.Errorf("update activity: %w", err)
	}
	if err := setAssignees(ctx, tx, a.ID, a.AssignedTo); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return s.GetByID(ctx, a.ID)
}

func (s *ActivityStore) Delete(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM activities WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete activity: %w", err)
	}
	return nil
}

// CountSubmissions reports how many submissions reference the activity.
func (s *ActivityStore) CountSubmissions(ctx context.Context, id string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM submissions WHERE activity_id = ?`, id).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count submissions: %w", err)
	}
	return n, nil
}

// ListByCreator returns the non-template activities created by userID, newest first.
func (s *ActivityStore) ListByCreator(ctx context.Context, userID string) ([]model.Activity, error) {
	return s.list(ctx,
		`SELECT `+activityCols+` FROM activities
		 WHERE created_by = ? AND is_template = 0 ORDER BY created_at DESC, id ASC`, userID)
}

// ListTemplates returns every template ordered by category then title.
func (s *ActivityStore) ListTemplates(ctx context.Context) ([]model.Activity, error) {
	return s.list(ctx,
		`SELECT `+activityCols+` FROM activities
		 WHERE is_template = 1 ORDER BY category ASC, title ASC, id ASC`)
}

// ListForChild returns the non-template activities assigned to childID, plus
// parentID's unassigned ones, newest first.
func (s *ActivityStore) ListForChild(ctx context.Context, parentID, childID string) ([]model.Activity, error) {
	return s.list(ctx,
		`SELECT `+activityCols+` FROM activities a
		 WHERE a.is_template = 0
		   AND ((a.created_by = ? AND NOT EXISTS (SELECT 1 FROM activity_assignees x WHERE x.activity_id = a.id))
		        OR EXISTS (SELECT 1 FROM activity_assignees x WHERE x.activity_id = a.id AND x.child_id = ?))
		 ORDER BY a.created_at DESC, a.id ASC`, parentID, childID)
}

// ListDueBetween returns non-template activities with a due date in [from, to).
func (s *ActivityStore) ListDueBetween(ctx context.Context, from, to time.Time) ([]model.Activity, error) {
	return s.list(ctx,
		`SELECT `+activityCols+` FROM activities
		 WHERE is_template = 0 AND due_date IS NOT NULL AND due_date >= ? AND due_date < ?
		 ORDER BY due_date ASC, id ASC`, from.UTC(), to.UTC())
}

func (s *ActivityStore) list(ctx context.Context, query string, args ...any) ([]model.Activity, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list activities: %w", err)
	}

	var ptrs []*model.Activity
	for rows.Next() {
		a, err := scanActivity(rows)
		if err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan activity: %w", err)
		}
		ptrs = append(ptrs, a)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, err
	}
	rows.Close()

	// The pool holds a single connection, so assignees load after rows close.
	if err := s.loadAssignees(ctx, ptrs); err != nil {
		return nil, err
	}
	activities := make([]model.Activity, 0, len(ptrs))
	for _, a := range ptrs {
		activities = append(activities, *a)
	}
	return activities, nil
}

func (s *ActivityStore) loadAssignees(ctx context.Context, activities []*model.Activity) error {
	for _, a := range activities {
		rows, err := s.db.QueryContext(ctx,
			`SELECT child_id FROM activity_assignees WHERE activity_id = ? ORDER BY child_id ASC`, a.ID)
		if err != nil {
			return fmt.Errorf("list assignees: %w", err)
		}
		ids := []string{}
		for rows.Next() {
			var id string
			if err := rows.Scan(&id); err != nil {
				rows.Close()
				return fmt.Errorf("scan assignee: %w", err)
			}
			ids = append(ids, id)
		}
		err = rows.Err()
		rows.Close()
		if err != nil {
			return err
		}
		a.AssignedTo = ids
	}
	return nil
}
