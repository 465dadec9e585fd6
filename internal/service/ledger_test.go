package service

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLedgerBalanceEqualsTransactionSum(t *testing.T) {
	h := newHarness(false)
	ctx := context.Background()
	u := h.db.addUser("ana", 0)

	steps := []struct {
		purchase bool
		amount   int64
		ok       bool
	}{
		{true, 5, true},
		{false, 3, true},
		{false, 4, false},
		{true, 10, true},
		{false, 12, true},
		{false, 1, false},
		{true, 1, true},
	}
	var want int64
	for i, s := range steps {
		var err error
		if s.purchase {
			_, _, err = h.ledger.Purchase(ctx, u.ID, s.amount)
		} else {
			_, err = h.ledger.Spend(ctx, u.ID, s.amount, "spend")
		}
		if s.ok {
			require.NoError(t, err, "step %d", i)
			if s.purchase {
				want += s.amount
			} else {
				want -= s.amount
			}
		} else {
			require.ErrorIs(t, err, ErrInsufficientFunds, "step %d", i)
		}

		bal, err := h.ledger.Balance(ctx, u.ID)
		require.NoError(t, err)
		assert.Equal(t, want, bal, "step %d", i)
		assert.GreaterOrEqual(t, bal, int64(0))

		check, err := h.ledger.Verify(ctx, u.ID)
		require.NoError(t, err)
		assert.True(t, check.Consistent, "step %d", i)
	}
}

func TestLedgerSpendShortLeavesLedgerUnchanged(t *testing.T) {
	h := newHarness(false)
	ctx := context.Background()
	u := h.db.addUser("ben", 2)
	before := len(h.db.ledgerRows(u.ID))

	_, err := h.ledger.Spend(ctx, u.ID, 3, "too much")
	var pr *PaymentRequiredError
	require.True(t, errors.As(err, &pr))
	assert.Equal(t, int64(3), pr.CreditsRequired)
	assert.Equal(t, int64(2), pr.CurrentCredits)

	assert.Len(t, h.db.ledgerRows(u.ID), before)
	bal, _ := h.ledger.Balance(ctx, u.ID)
	assert.Equal(t, int64(2), bal)
}

func TestLedgerValidation(t *testing.T) {
	h := newHarness(false)
	ctx := context.Background()
	u := h.db.addUser("cy", 0)

	_, _, err := h.ledger.Purchase(ctx, u.ID, 0)
	assert.ErrorIs(t, err, ErrValidation)
	_, _, err = h.ledger.Purchase(ctx, u.ID, MaxPurchase+1)
	assert.ErrorIs(t, err, ErrValidation)
	_, err = h.ledger.Spend(ctx, u.ID, -1, "x")
	assert.ErrorIs(t, err, ErrValidation)

	_, err = h.ledger.Balance(ctx, 999)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestLedgerConcurrentSpendsNeverOverdraw(t *testing.T) {
	h := newHarness(false)
	ctx := context.Background()
	u := h.db.addUser("dee", 10)

	var (
		wg sync.WaitGroup
		mu sync.Mutex
		ok int
	)
	for i := 0; i < 40; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := h.ledger.Spend(ctx, u.ID, 1, "race"); err == nil {
				mu.Lock()
				ok++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 10, ok)
	bal, err := h.ledger.Balance(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(0), bal)
}

func TestLedgerHistoryNewestFirst(t *testing.T) {
	h := newHarness(false)
	ctx := context.Background()
	u := h.db.addUser("eve", 0)
	_, _, err := h.ledger.Purchase(ctx, u.ID, 4)
	require.NoError(t, err)
	require.NoError(t, h.ledger.RecordAudit(ctx, u.ID, "free thing"))

	hist, err := h.ledger.History(ctx, u.ID, 10)
	require.NoError(t, err)
	require.Len(t, hist, 2)
	assert.Equal(t, int64(0), hist[0].Amount)
	assert.Equal(t, "free thing", hist[0].Note)
	assert.Equal(t, int64(4), hist[1].Amount)
}
