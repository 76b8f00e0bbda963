package client

import (
	"errors"
	"fmt"
)

// Set of errors for client API.
var (
	ErrNotFound          = errors.New("client not found")
	ErrInvalidArgument   = errors.New("client invalid argument")
	ErrTransactionDenied = errors.New("client transaction denied")
	ErrTransient         = errors.New("client transient failure")

	// ErrBalanceOverflow reports a credit that would take the balance past
	// the largest representable amount.
	ErrBalanceOverflow = fmt.Errorf("%w: balance out of range", ErrTransactionDenied)
)

// LimitExceededError reports a debit that would take the balance below the
// credit limit.
type LimitExceededError struct {
	Value   int
	Balance int
	Limit   int
}

// Overage is how much the debit goes past the available credit.
func (e *LimitExceededError) Overage() int {
	return e.Value - e.Remaining()
}

// Remaining is the credit still available to the client.
func (e *LimitExceededError) Remaining() int {
	return e.Limit + e.Balance
}

func (e *LimitExceededError) Error() string {
	return fmt.Sprintf("transaction exceeds client limit by %d", e.Overage())
}

func (e *LimitExceededError) Is(target error) bool {
	return target == ErrTransactionDenied
}

// FieldError reports an invalid field of a new transaction.
type FieldError struct {
	Field  string
	Reason string
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func (e *FieldError) Is(target error) bool {
	return target == ErrInvalidArgument
}
