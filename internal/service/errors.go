// Package service holds the application logic between the HTTP handlers
// and the repositories: the credit ledger, the notification dispatcher,
// the conversation coordinator, messaging and listings with their match
// enrichment.
package service

import (
	"errors"
	"fmt"

	"github.com/iliyamo/seatswap/internal/repository"
)

// Error taxonomy understood by the handler layer.  Anything that does
// not match one of these is an internal error.
var (
	ErrValidation        = errors.New("validation error")
	ErrUnauthorized      = errors.New("unauthorized")
	ErrForbidden         = errors.New("forbidden")
	ErrNotFound          = errors.New("not found")
	ErrConflict          = errors.New("conflict")
	ErrInsufficientFunds = errors.New("insufficient credits")
)

// PaymentRequiredError is returned when an action needs more credits
// than the caller holds.  It carries what a client needs to prompt a
// purchase.
type PaymentRequiredError struct {
	CreditsRequired int64
	CurrentCredits  int64
}

func (e *PaymentRequiredError) Error() string {
	return fmt.Sprintf("payment required: %d credit(s) needed, %d available", e.CreditsRequired, e.CurrentCredits)
}

// Is makes errors.Is(err, ErrInsufficientFunds) hold.
func (e *PaymentRequiredError) Is(target error) bool { return target == ErrInsufficientFunds }

func validationf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

// translate maps repository errors onto the service taxonomy.  The
// original error stays in the chain.
func translate(err error) error {
	if err == nil {
		return nil
	}
	var short *repository.InsufficientCreditsError
	switch {
	case errors.As(err, &short):
		return &PaymentRequiredError{CreditsRequired: -short.Amount, CurrentCredits: short.Balance}
	case errors.Is(err, repository.ErrUserNotFound),
		errors.Is(err, repository.ErrListingNotFound),
		errors.Is(err, repository.ErrConversationNotFound):
		return fmt.Errorf("%w: %w", ErrNotFound, err)
	case errors.Is(err, repository.ErrForbidden):
		return fmt.Errorf("%w: %w", ErrForbidden, err)
	case errors.Is(err, repository.ErrConflict),
		errors.Is(err, repository.ErrEmailExists):
		return fmt.Errorf("%w: %w", ErrConflict, err)
	}
	return err
}

// runner starts fire-and-forget work.  Tests swap in a synchronous one.
type runner func(func())

func goRunner(f func()) { go f() }
