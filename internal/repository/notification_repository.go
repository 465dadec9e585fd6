package repository

import (
	"context"
	"database/sql"

	"github.com/iliyamo/seatswap/internal/model"
)

// NotificationRepo stores user notifications.  Ownership is enforced in
// the WHERE clause of every mutating query rather than by a separate
// lookup, so touching another user's notification simply affects zero
// rows.
type NotificationRepo struct {
	db *sql.DB
}

// NewNotificationRepo returns a NotificationRepo bound to db.
func NewNotificationRepo(db *sql.DB) *NotificationRepo { return &NotificationRepo{db: db} }

// Create inserts n and sets its ID.
func (r *NotificationRepo) Create(ctx context.Context, n *model.Notification) error {
	data := []byte(n.Data)
	if len(data) == 0 {
		data = []byte("{}")
	}
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO notifications (user_id, type, title, body, data) VALUES (?, ?, ?, ?, ?)`,
		n.UserID, n.Type, n.Title, n.Body, string(data))
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	n.ID = uint64(id)
	return nil
}

// ListByUser returns up to limit notifications for userID, newest first.
func (r *NotificationRepo) ListByUser(ctx context.Context, userID uint64, unreadOnly bool, limit int) ([]model.Notification, error) {
	q := `SELECT id, user_id, type, title, body, data, is_read, created_at FROM notifications WHERE user_id = ?`
	if unreadOnly {
		q += ` AND is_read = FALSE`
	}
	q += ` ORDER BY created_at DESC, id DESC LIMIT ?`
	rows, err := r.db.QueryContext(ctx, q, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]model.Notification, 0, limit)
	for rows.Next() {
		var (
			n    model.Notification
			data []byte
		)
		if err := rows.Scan(&n.ID, &n.UserID, &n.Type, &n.Title, &n.Body, &data, &n.IsRead, &n.CreatedAt); err != nil {
			return nil, err
		}
		n.Data = append([]byte(nil), data...)
		out = append(out, n)
	}
	return out, rows.Err()
}

// CountUnread returns the number of unread notifications of userID.
func (r *NotificationRepo) CountUnread(ctx context.Context, userID uint64) (int64, error) {
	var n int64
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM notifications WHERE user_id = ? AND is_read = FALSE`, userID).Scan(&n)
	return n, err
}

// MarkRead marks notification id as read if it belongs to userID and
// returns the number of rows changed.
func (r *NotificationRepo) MarkRead(ctx context.Context, id, userID uint64) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE notifications SET is_read = TRUE WHERE id = ? AND user_id = ?`, id, userID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// MarkAllRead marks every unread notification of userID as read.
func (r *NotificationRepo) MarkAllRead(ctx context.Context, userID uint64) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE notifications SET is_read = TRUE WHERE user_id = ? AND is_read = FALSE`, userID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
