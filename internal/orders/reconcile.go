package orders

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/franferrer12/intramedia-system-sub001/internal/shared"
)

// ReceptionItem is one submitted line of a reception event.
type ReceptionItem struct {
	LineID int64
	Qty    decimal.Decimal
	Notes  string
}

// AppliedLine reports units actually applied to a line by one event, used to
// build the side-effect commands.
type AppliedLine struct {
	LineID    int64
	ProductID int64
	Qty       decimal.Decimal
	UnitPrice decimal.Decimal
}

// ReceptionResult summarises a committed reconciliation.
type ReceptionResult struct {
	PreviousStatus Status
	NewStatus      Status
	FirstReception bool
	Applied        []AppliedLine
}

// Reconcile applies one reception event to the order in place. The whole
// batch applies or none of it does: all items are validated against a
// scratch copy of the lines before anything is committed back.
//
// The caller is responsible for checking that the order's status permits
// receiving and for event-id deduplication; receiving the same event twice
// would double-apply.
func Reconcile(o *Order, items []ReceptionItem, actorID int64, now time.Time) (ReceptionResult, error) {
	if len(items) == 0 {
		return ReceptionResult{}, shared.NewValidationError("lines", "reception requires at least one line")
	}
	submitted := decimal.Zero
	for _, item := range items {
		if item.Qty.IsNegative() {
			return ReceptionResult{}, shared.NewValidationError("quantity", "received quantity cannot be negative")
		}
		submitted = submitted.Add(item.Qty)
	}
	if !submitted.IsPositive() {
		return ReceptionResult{}, shared.NewValidationError("quantity", "reception must deliver at least one unit")
	}

	// Validate and apply against a copy; repeated line ids accumulate and
	// are checked against the running pending quantity.
	scratch := CloneLines(o.Lines)
	index := make(map[int64]int, len(scratch))
	for i, l := range scratch {
		index[l.ID] = i
	}

	var applied []AppliedLine
	for _, item := range items {
		i, ok := index[item.LineID]
		if !ok {
			return ReceptionResult{}, shared.ErrNotFound
		}
		pending := scratch[i].Pending()
		if item.Qty.GreaterThan(pending) {
			return ReceptionResult{}, &shared.OverReceiptError{
				OrderID:   o.ID,
				LineID:    item.LineID,
				Requested: item.Qty,
				Pending:   pending,
			}
		}
		if !item.Qty.IsPositive() {
			continue
		}
		scratch[i].QtyReceived = scratch[i].QtyReceived.Add(item.Qty)
		if item.Notes != "" {
			scratch[i].Notes = item.Notes
		}
		applied = append(applied, AppliedLine{
			LineID:    scratch[i].ID,
			ProductID: scratch[i].ProductID,
			Qty:       item.Qty,
			UnitPrice: scratch[i].UnitPrice,
		})
	}

	result := ReceptionResult{
		PreviousStatus: o.Status,
		FirstReception: o.ReceivedDate.IsZero(),
		Applied:        applied,
	}

	o.Lines = scratch
	if o.FullyReceived() {
		o.Status = StatusReceived
	} else {
		o.Status = StatusPartial
	}
	result.NewStatus = o.Status
	if result.FirstReception {
		o.ReceivedDate = now
		o.ReceivedBy = actorID
	}
	return result, nil
}
