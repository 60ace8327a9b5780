package shared

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

var (
	// ErrNotFound indicates the order or line does not exist.
	ErrNotFound = errors.New("not found")
	// ErrDuplicateEvent indicates a reception event id was already applied.
	ErrDuplicateEvent = errors.New("reception event already applied")
)

// ValidationError reports malformed input detected before any mutation.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("validation: %s", e.Reason)
	}
	return fmt.Sprintf("validation: %s: %s", e.Field, e.Reason)
}

// NewValidationError builds a ValidationError for a field.
func NewValidationError(field, reason string) *ValidationError {
	return &ValidationError{Field: field, Reason: reason}
}

// StateTransitionError reports an action that is illegal for the current status.
type StateTransitionError struct {
	OrderID int64
	From    string
	Action  string
}

func (e *StateTransitionError) Error() string {
	return fmt.Sprintf("order %d: invalid transition from %s on %s", e.OrderID, e.From, e.Action)
}

// OverReceiptError reports a reception line exceeding its pending quantity.
type OverReceiptError struct {
	OrderID   int64
	LineID    int64
	Requested decimal.Decimal
	Pending   decimal.Decimal
}

func (e *OverReceiptError) Error() string {
	return fmt.Sprintf("order %d line %d: requested %s exceeds pending %s",
		e.OrderID, e.LineID, e.Requested.String(), e.Pending.String())
}

// ConcurrencyConflictError reports a lost update detected by the version check.
// The caller recovers by re-reading and retrying.
type ConcurrencyConflictError struct {
	OrderID int64
}

func (e *ConcurrencyConflictError) Error() string {
	return fmt.Sprintf("order %d: concurrent modification detected", e.OrderID)
}

// IsConflict reports whether err is a ConcurrencyConflictError.
func IsConflict(err error) bool {
	var conflict *ConcurrencyConflictError
	return errors.As(err, &conflict)
}
