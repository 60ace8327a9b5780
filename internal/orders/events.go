package orders

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/franferrer12/intramedia-system-sub001/internal/dispatch"
)

// BuildSideEffects derives the idempotent follow-up commands of one
// committed reception: an inventory increase per line that received units,
// and a single aggregated expense command for the event.
func BuildSideEffects(o Order, eventID uuid.UUID, applied []AppliedLine) []dispatch.Command {
	if len(applied) == 0 {
		return nil
	}
	cmds := make([]dispatch.Command, 0, len(applied)+1)
	amount := decimal.Zero
	for _, line := range applied {
		amount = amount.Add(line.Qty.Mul(line.UnitPrice))
		cmds = append(cmds, dispatch.Command{
			Kind:           dispatch.KindInventory,
			OrderID:        o.ID,
			EventID:        eventID,
			LineID:         line.LineID,
			ProductID:      line.ProductID,
			Qty:            line.Qty,
			IdempotencyKey: dispatch.InventoryKey(eventID, line.LineID),
		})
	}
	cmds = append(cmds, dispatch.Command{
		Kind:           dispatch.KindExpense,
		OrderID:        o.ID,
		EventID:        eventID,
		Amount:         amount.Round(2),
		IdempotencyKey: dispatch.ExpenseKey(eventID),
	})
	return cmds
}
