package dispatch

import (
	"context"

	"github.com/shopspring/decimal"
)

// InventoryCommand asks the inventory collaborator to add received stock.
type InventoryCommand struct {
	IdempotencyKey string          `json:"idempotency_key"`
	OrderID        int64           `json:"order_id"`
	ProductID      int64           `json:"product_id"`
	Qty            decimal.Decimal `json:"qty"`
}

// ExpenseCommand asks the finance collaborator to record the reception cost.
type ExpenseCommand struct {
	IdempotencyKey string          `json:"idempotency_key"`
	OrderID        int64           `json:"order_id"`
	Amount         decimal.Decimal `json:"amount"`
}

// InventoryService accepts idempotent add-stock commands.
type InventoryService interface {
	AddStock(ctx context.Context, cmd InventoryCommand) error
}

// FinanceService accepts idempotent record-expense commands and returns the
// created transaction id.
type FinanceService interface {
	RecordExpense(ctx context.Context, cmd ExpenseCommand) (string, error)
}
