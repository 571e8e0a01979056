package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/dukerupert/zooz/internal/model"
)

type NotificationStore struct {
	db *sql.DB
}

func NewNotificationStore(db *sql.DB) *NotificationStore {
	return &NotificationStore{db: db}
}

func scanNotification(scanner interface{ Scan(...any) error }) (*model.Notification, error) {
	var n model.Notification
	var read int

	err := scanner.Scan(&n.ID, &n.UserID, &n.Type, &n.Title, &n.Message, &n.RelatedID,
		&n.ActionURL, &read, &n.CreatedAt)
	if err != nil {
		return nil, err
	}

	n.Read = read != 0
	n.CreatedAt = n.CreatedAt.UTC()
	return &n, nil
}

const notificationCols = `id, user_id, type, title, message, related_id, action_url, read, created_at`

func (s *NotificationStore) Create(ctx context.Context, n model.Notification) (*model.Notification, error) {
	if n.ID == "" {
		n.ID = newID()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO notifications (id, user_id, type, title, message, related_id, action_url, read, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, 0, ?)`,
		n.ID, n.UserID, n.Type, n.Title, n.Message, n.RelatedID, n.ActionURL, orNow(n.CreatedAt),
	)
	if err != nil {
		return nil, fmt.Errorf("insert notification: %w", err)
	}
	return s.GetByID(ctx, n.ID)
}

func (s *NotificationStore) GetByID(ctx context.Context, id string) (*model.Notification, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+notificationCols+` FROM notifications WHERE id = ?`, id)
	n, err := scanNotification(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get notification: %w", err)
	}
	return n, nil
}

// ListByUser returns userID's notifications newest first, optionally only
// the unread ones.
func (s *NotificationStore) ListByUser(ctx context.Context, userID string, unreadOnly bool) ([]model.Notification, error) {
	query := `SELECT ` + notificationCols + ` FROM notifications WHERE user_id = ?`
	if unreadOnly {
		query += ` AND read = 0`
	}
	query += ` ORDER BY created_at DESC, id ASC`

	rows, err := s.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("list notifications: %w", err)
	}
	defer rows.Close()

	var notifications []model.Notification
	for rows.Next() {
		n, err := scanNotification(rows)
		if err != nil {
			return nil, fmt.Errorf("scan notification: %w", err)
		}
		notifications = append(notifications, *n)
	}
	return notifications, rows.Err()
}

func (s *NotificationStore) MarkRead(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `UPDATE notifications SET read = 1 WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("mark notification read: %w", err)
	}
	return nil
}

// MarkAllRead marks every unread notification of userID and returns the count.
func (s *NotificationStore) MarkAllRead(ctx context.Context, userID string) (int64, error) {
	res, err := s.db.ExecContext(ctx, `UPDATE notifications SET read = 1 WHERE user_id = ? AND read = 0`, userID)
	if err != nil {
		return 0, fmt.Errorf("mark all notifications read: %w", err)
	}
	return res.RowsAffected()
}

// RecordReminder records that a reminder for (activityID, childID) went out.
// It returns false when one was already recorded.
func (s *NotificationStore) RecordReminder(ctx context.Context, activityID, childID string, at time.Time) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO reminders_sent (activity_id, child_id, sent_at) VALUES (?, ?, ?)`,
		activityID, childID, orNow(at),
	)
	if err != nil {
		return false, fmt.Errorf("record reminder: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return n == 1, nil
}

// ForgetReminder removes a reminder record so it can be sent again.
func (s *NotificationStore) ForgetReminder(ctx context.Context, activityID, childID string) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM reminders_sent WHERE activity_id = ? AND child_id = ?`, activityID, childID)
	if err != nil {
		return fmt.Errorf("forget reminder: %w", err)
	}
	return nil
}
