// Package repository defines error types that are reused across multiple
// repositories. These sentinel values allow higher layers such as
// services and handlers to distinguish between different failure
// scenarios without inspecting driver errors.
package repository

import (
	"errors"
	"fmt"

	"github.com/go-sql-driver/mysql"
)

// ErrForbidden is returned when the caller attempts an operation
// on a resource they do not own.
var ErrForbidden = errors.New("forbidden")

// ErrConflict is returned when an update cannot be performed because
// of the current state of the row, such as changing the status of a
// listing that is already MATCHED or EXPIRED.
var ErrConflict = errors.New("conflict")

var (
	ErrUserNotFound         = errors.New("user not found")
	ErrListingNotFound      = errors.New("listing not found")
	ErrConversationNotFound = errors.New("conversation not found")
	ErrEmailExists          = errors.New("email already exists")

	// ErrConversationExists signals that the unique key on
	// (user_low, user_high, listing_key) rejected an insert or update:
	// another request created the same conversation first.
	ErrConversationExists = errors.New("conversation already exists")
)

// InsufficientCreditsError is returned when a deducting ledger append
// would take the balance below zero.  Balance is the balance observed
// under the row lock, before the rejected append.
type InsufficientCreditsError struct {
	Balance int64
	Amount  int64
}

func (e *InsufficientCreditsError) Error() string {
	return fmt.Sprintf("insufficient credits: balance %d, amount %d", e.Balance, e.Amount)
}

// mysqlDuplicateEntry is ER_DUP_ENTRY.
const mysqlDuplicateEntry = 1062

func isDuplicateKey(err error) bool {
	var me *mysql.MySQLError
	return errors.As(err, &me) && me.Number == mysqlDuplicateEntry
}
