package orders

import (
	"time"

	"github.com/shopspring/decimal"
)

// Status enumerates the purchase order lifecycle.
type Status string

const (
	StatusDraft     Status = "DRAFT"
	StatusSent      Status = "SENT"
	StatusConfirmed Status = "CONFIRMED"
	StatusInTransit Status = "IN_TRANSIT"
	StatusReceived  Status = "RECEIVED"
	StatusPartial   Status = "PARTIAL"
	StatusCancelled Status = "CANCELLED"
)

// Order is a purchase order placed with a supplier. Subtotal, TaxAmount and
// Total are derived by the totals calculator and never set directly. Version
// backs the optimistic concurrency check on every mutation.
type Order struct {
	ID           int64
	Number       string
	SupplierID   int64
	SupplierName string
	Status       Status
	CreatedAt    time.Time
	ExpectedDate time.Time
	ReceivedDate time.Time
	Subtotal     decimal.Decimal
	TaxAmount    decimal.Decimal
	Total        decimal.Decimal
	CreatedBy    int64
	ReceivedBy   int64
	ExpenseTxID  string
	Notes        string
	Version      int64
	Lines        []DetailLine
}

// DetailLine is one product row within an order. UnitPrice is copied from
// the catalog at creation and frozen once the order leaves DRAFT.
type DetailLine struct {
	ID          int64
	OrderID     int64
	ProductID   int64
	ProductName string
	QtyOrdered  decimal.Decimal
	QtyReceived decimal.Decimal
	UnitPrice   decimal.Decimal
	Subtotal    decimal.Decimal
	Notes       string
}

// Pending returns the quantity still to be received, floored at zero.
func (l DetailLine) Pending() decimal.Decimal {
	pending := l.QtyOrdered.Sub(l.QtyReceived)
	if pending.IsNegative() {
		return decimal.Zero
	}
	return pending
}

// Complete reports whether the line has been fully received.
func (l DetailLine) Complete() bool {
	return !l.QtyReceived.LessThan(l.QtyOrdered)
}

// Partial reports whether some but not all ordered quantity has arrived.
func (l DetailLine) Partial() bool {
	return l.QtyReceived.IsPositive() && l.QtyReceived.LessThan(l.QtyOrdered)
}

// FullyReceived reports whether every line is complete.
func (o Order) FullyReceived() bool {
	if len(o.Lines) == 0 {
		return false
	}
	for _, l := range o.Lines {
		if !l.Complete() {
			return false
		}
	}
	return true
}

// PartiallyReceived reports whether at least one unit has arrived but the
// order is not complete.
func (o Order) PartiallyReceived() bool {
	received := false
	for _, l := range o.Lines {
		if l.QtyReceived.IsPositive() {
			received = true
			break
		}
	}
	return received && !o.FullyReceived()
}

// View is the presentation projection over an order. Every boolean is a
// pure function of status and line state; nothing here is stored.
type View struct {
	Order
	Editable          bool
	Receivable        bool
	Cancellable       bool
	Deletable         bool
	FullyReceived     bool
	PartiallyReceived bool
}

// NewView projects the derived booleans for an order.
func NewView(o Order) View {
	return View{
		Order:             o,
		Editable:          o.Status == StatusDraft,
		Receivable:        IsAllowed(o.Status, ActionReceive).Allowed,
		Cancellable:       IsAllowed(o.Status, ActionCancel).Allowed,
		Deletable:         IsAllowed(o.Status, ActionDelete).Allowed,
		FullyReceived:     o.FullyReceived(),
		PartiallyReceived: o.PartiallyReceived(),
	}
}

// FieldChange captures a before/after value for the audit trail.
type FieldChange struct {
	Field string
	Prev  string
	Next  string
}

// trackedFields is the declarative list backing the audit field diff. New
// mutable fields must be registered here to appear in FIELD_MODIFIED entries.
var trackedFields = []struct {
	Name  string
	Value func(Order) string
}{
	{"expected_date", func(o Order) string {
		if o.ExpectedDate.IsZero() {
			return ""
		}
		return o.ExpectedDate.Format("2006-01-02")
	}},
	{"notes", func(o Order) string { return o.Notes }},
	{"subtotal", func(o Order) string { return o.Subtotal.StringFixed(2) }},
	{"tax_amount", func(o Order) string { return o.TaxAmount.StringFixed(2) }},
	{"total", func(o Order) string { return o.Total.StringFixed(2) }},
	{"lines", func(o Order) string { return lineFingerprint(o.Lines) }},
}

func lineFingerprint(lines []DetailLine) string {
	var qty decimal.Decimal
	for _, l := range lines {
		qty = qty.Add(l.QtyOrdered)
	}
	return "count=" + decimal.NewFromInt(int64(len(lines))).String() + " qty=" + qty.String()
}

// DiffFields compares two order snapshots over the tracked-field list.
func DiffFields(before, after Order) []FieldChange {
	var changes []FieldChange
	for _, f := range trackedFields {
		prev, next := f.Value(before), f.Value(after)
		if prev != next {
			changes = append(changes, FieldChange{Field: f.Name, Prev: prev, Next: next})
		}
	}
	return changes
}

// CloneLines returns a deep copy of the line slice so reconciliation can
// work on a scratch copy and commit all-or-nothing.
func CloneLines(lines []DetailLine) []DetailLine {
	out := make([]DetailLine, len(lines))
	copy(out, lines)
	return out
}
