package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/iliyamo/seatswap/internal/model"
)

// MaxPurchase bounds a single purchase.
const MaxPurchase int64 = 10000

// CreditStore is the persistence behind CreditLedger.  Apply must lock
// the user, reject a deduction that would go negative with
// *repository.InsufficientCreditsError, append the transaction and
// update the cached balance atomically.
type CreditStore interface {
	Apply(ctx context.Context, userID uint64, amount int64, note string) (model.CreditTransaction, int64, error)
	Balance(ctx context.Context, userID uint64) (int64, error)
	SumTransactions(ctx context.Context, userID uint64) (int64, error)
	ListByUser(ctx context.Context, userID uint64, limit int) ([]model.CreditTransaction, error)
}

// CreditLedger is append-only balance accounting.  The balance of a
// user always equals the sum of that user's transactions.
type CreditLedger struct {
	store CreditStore
	log   *slog.Logger
}

func NewCreditLedger(store CreditStore, log *slog.Logger) *CreditLedger {
	return &CreditLedger{store: store, log: log}
}

func (l *CreditLedger) Balance(ctx context.Context, userID uint64) (int64, error) {
	b, err := l.store.Balance(ctx, userID)
	return b, translate(err)
}

// Purchase credits amount to userID and returns the new balance.
func (l *CreditLedger) Purchase(ctx context.Context, userID uint64, amount int64) (int64, model.CreditTransaction, error) {
	if amount <= 0 || amount > MaxPurchase {
		return 0, model.CreditTransaction{}, validationf("amount must be between 1 and %d", MaxPurchase)
	}
	tx, balance, err := l.store.Apply(ctx, userID, amount, fmt.Sprintf("Purchased %d credit(s)", amount))
	if err != nil {
		return 0, model.CreditTransaction{}, translate(err)
	}
	l.log.Info("credits purchased", "user_id", userID, "amount", amount, "balance", balance)
	return balance, tx, nil
}

// Spend deducts amount.  When the balance is short nothing is written
// and a *PaymentRequiredError is returned.
func (l *CreditLedger) Spend(ctx context.Context, userID uint64, amount int64, note string) (int64, error) {
	if amount <= 0 {
		return 0, validationf("amount must be positive")
	}
	_, balance, err := l.store.Apply(ctx, userID, -amount, note)
	if err != nil {
		return 0, translate(err)
	}
	return balance, nil
}

// RecordAudit appends a zero-amount row.  Used to keep free actions
// visible in the ledger history.
func (l *CreditLedger) RecordAudit(ctx context.Context, userID uint64, note string) error {
	_, _, err := l.store.Apply(ctx, userID, 0, note)
	return translate(err)
}

// History returns the newest transactions first.
func (l *CreditLedger) History(ctx context.Context, userID uint64, limit int) ([]model.CreditTransaction, error) {
	if limit < 1 || limit > 100 {
		limit = 50
	}
	out, err := l.store.ListByUser(ctx, userID, limit)
	if err != nil {
		return nil, translate(err)
	}
	if out == nil {
		out = []model.CreditTransaction{}
	}
	return out, nil
}

// LedgerCheck compares the cached balance with the transaction sum.
type LedgerCheck struct {
	UserID     uint64 `json:"user_id"`
	Cached     int64  `json:"cached_balance"`
	Sum        int64  `json:"transaction_sum"`
	Consistent bool   `json:"consistent"`
}

func (l *CreditLedger) Verify(ctx context.Context, userID uint64) (LedgerCheck, error) {
	cached, err := l.store.Balance(ctx, userID)
	if err != nil {
		return LedgerCheck{}, translate(err)
	}
	sum, err := l.store.SumTransactions(ctx, userID)
	if err != nil {
		return LedgerCheck{}, translate(err)
	}
	c := LedgerCheck{UserID: userID, Cached: cached, Sum: sum, Consistent: cached == sum}
	if !c.Consistent {
		l.log.Error("ledger drift", "user_id", userID, "cached", cached, "sum", sum)
	}
	return c, nil
}
