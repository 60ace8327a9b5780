package dispatch

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Kind enumerates the side-effect commands emitted after a committed reception.
type Kind string

const (
	// KindInventory increases stock for one received line.
	KindInventory Kind = "INVENTORY"
	// KindExpense records the aggregated expense for one reception event.
	KindExpense Kind = "EXPENSE"
)

// Command is one idempotent follow-up emitted by a committed reception.
// Inventory commands carry LineID/ProductID/Qty; expense commands carry the
// aggregated Amount for the whole event.
type Command struct {
	Kind           Kind
	OrderID        int64
	EventID        uuid.UUID
	LineID         int64
	ProductID      int64
	Qty            decimal.Decimal
	Amount         decimal.Decimal
	IdempotencyKey string
}

// InventoryKey derives the idempotency key for one (event, line) delivery.
func InventoryKey(eventID uuid.UUID, lineID int64) string {
	return fmt.Sprintf("sideeffect:%s:%d", eventID, lineID)
}

// ExpenseKey derives the idempotency key for the event's expense record.
func ExpenseKey(eventID uuid.UUID) string {
	return fmt.Sprintf("sideeffect:%s", eventID)
}
