package model

import "time"

// CreditTransaction is one append-only row of the credit ledger.
// Amount is signed: purchases are positive, spends negative, and
// audit rows recorded for analytics carry zero.
type CreditTransaction struct {
	ID        uint64    `json:"id"`         // credit_transactions.id
	UserID    uint64    `json:"user_id"`    // credit_transactions.user_id
	Amount    int64     `json:"amount"`     // credit_transactions.amount
	Note      string    `json:"note"`       // credit_transactions.note
	CreatedAt time.Time `json:"created_at"` // credit_transactions.created_at
}
