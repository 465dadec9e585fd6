package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/iliyamo/seatswap/internal/model"
)

// CreditRepo is the persistence side of the credit ledger.  Every change
// to a balance goes through ApplyTx, which appends a credit_transactions
// row and updates the cached users.credits column inside the caller's
// transaction so the two can never diverge.
type CreditRepo struct {
	db *sql.DB
}

// NewCreditRepo returns a CreditRepo bound to db.
func NewCreditRepo(db *sql.DB) *CreditRepo { return &CreditRepo{db: db} }

// DB exposes the underlying handle so callers can open transactions
// spanning several repositories.
func (r *CreditRepo) DB() *sql.DB { return r.db }

// ApplyTx appends one ledger row for userID within tx.  The user row is
// locked with SELECT ... FOR UPDATE first, so concurrent appends for the
// same user serialize.  A negative amount that would take the balance
// below zero is rejected with *InsufficientCreditsError before anything
// is written.  It returns the appended row and the new balance.
func (r *CreditRepo) ApplyTx(ctx context.Context, tx *sql.Tx, userID uint64, amount int64, note string) (model.CreditTransaction, int64, error) {
	var balance int64
	err := tx.QueryRowContext(ctx, `SELECT credits FROM users WHERE id = ? FOR UPDATE`, userID).Scan(&balance)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.CreditTransaction{}, 0, ErrUserNotFound
		}
		return model.CreditTransaction{}, 0, err
	}
	if amount < 0 && balance+amount < 0 {
		return model.CreditTransaction{}, balance, &InsufficientCreditsError{Balance: balance, Amount: amount}
	}
	res, err := tx.ExecContext(ctx,
		`INSERT INTO credit_transactions (user_id, amount, note) VALUES (?, ?, ?)`,
		userID, amount, note)
	if err != nil {
		return model.CreditTransaction{}, 0, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return model.CreditTransaction{}, 0, err
	}
	if amount != 0 {
		if _, err := tx.ExecContext(ctx, `UPDATE users SET credits = credits + ? WHERE id = ?`, amount, userID); err != nil {
			return model.CreditTransaction{}, 0, err
		}
	}
	ct := model.CreditTransaction{ID: uint64(id), UserID: userID, Amount: amount, Note: note}
	if err := tx.QueryRowContext(ctx, `SELECT created_at FROM credit_transactions WHERE id = ?`, ct.ID).Scan(&ct.CreatedAt); err != nil {
		return model.CreditTransaction{}, 0, err
	}
	return ct, balance + amount, nil
}

// Apply runs ApplyTx in its own transaction.
func (r *CreditRepo) Apply(ctx context.Context, userID uint64, amount int64, note string) (model.CreditTransaction, int64, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return model.CreditTransaction{}, 0, err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()
	ct, balance, err := r.ApplyTx(ctx, tx, userID, amount, note)
	if err != nil {
		return model.CreditTransaction{}, balance, err
	}
	if err := tx.Commit(); err != nil {
		return model.CreditTransaction{}, 0, err
	}
	committed = true
	return ct, balance, nil
}

// Balance returns the cached balance of userID.
func (r *CreditRepo) Balance(ctx context.Context, userID uint64) (int64, error) {
	var balance int64
	err := r.db.QueryRowContext(ctx, `SELECT credits FROM users WHERE id = ?`, userID).Scan(&balance)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, ErrUserNotFound
	}
	return balance, err
}

// SumTransactions recomputes the balance of userID from the ledger rows.
func (r *CreditRepo) SumTransactions(ctx context.Context, userID uint64) (int64, error) {
	var sum int64
	err := r.db.QueryRowContext(ctx,
		`SELECT COALESCE(SUM(amount), 0) FROM credit_transactions WHERE user_id = ?`, userID).Scan(&sum)
	return sum, err
}

// ListByUser returns the most recent ledger rows of userID, newest first.
func (r *CreditRepo) ListByUser(ctx context.Context, userID uint64, limit int) ([]model.CreditTransaction, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, user_id, amount, note, created_at FROM credit_transactions
		 WHERE user_id = ? ORDER BY id DESC LIMIT ?`, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]model.CreditTransaction, 0, limit)
	for rows.Next() {
		var ct model.CreditTransaction
		if err := rows.Scan(&ct.ID, &ct.UserID, &ct.Amount, &ct.Note, &ct.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, ct)
	}
	return out, rows.Err()
}
