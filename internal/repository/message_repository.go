package repository

import (
	"context"
	"database/sql"

	"github.com/iliyamo/seatswap/internal/model"
)

// MessageRepo stores direct messages.
type MessageRepo struct {
	db *sql.DB
}

// NewMessageRepo returns a MessageRepo bound to db.
func NewMessageRepo(db *sql.DB) *MessageRepo { return &MessageRepo{db: db} }

// Create inserts m, bumps the conversation's updated_at and clears the
// recipient's archived flag, all in one transaction.  The generated ID
// and created_at are set on m.
func (r *MessageRepo) Create(ctx context.Context, m *model.Message, recipientID uint64) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()
	res, err := tx.ExecContext(ctx,
		`INSERT INTO messages (conversation_id, sender_id, body) VALUES (?, ?, ?)`,
		m.ConversationID, m.SenderID, m.Text)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	m.ID = uint64(id)
	if err := tx.QueryRowContext(ctx, `SELECT created_at FROM messages WHERE id = ?`, m.ID).Scan(&m.CreatedAt); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx,
		`UPDATE conversations SET updated_at = UTC_TIMESTAMP() WHERE id = ?`, m.ConversationID); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx,
		`UPDATE conversation_participants SET archived = FALSE WHERE conversation_id = ? AND user_id = ?`,
		m.ConversationID, recipientID); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	committed = true
	return nil
}

// ListByConversation returns up to limit messages older than beforeID
// (all when beforeID is 0), newest first.
func (r *MessageRepo) ListByConversation(ctx context.Context, conversationID, beforeID uint64, limit int) ([]model.Message, error) {
	q := `SELECT id, conversation_id, sender_id, body, created_at FROM messages WHERE conversation_id = ?`
	args := []any{conversationID}
	if beforeID > 0 {
		q += ` AND id < ?`
		args = append(args, beforeID)
	}
	q += ` ORDER BY id DESC LIMIT ?`
	args = append(args, limit)
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]model.Message, 0, limit)
	for rows.Next() {
		var m model.Message
		if err := rows.Scan(&m.ID, &m.ConversationID, &m.SenderID, &m.Text, &m.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}
