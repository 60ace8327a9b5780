package orders

import "github.com/shopspring/decimal"

// DefaultTaxRate applies when no jurisdiction rate is configured.
var DefaultTaxRate = decimal.NewFromFloat(0.21)

// TotalsCalculator derives line and order money from quantities and unit
// prices. It runs at creation and on DRAFT edits only; prices are frozen
// once the order leaves DRAFT.
type TotalsCalculator struct {
	taxRate decimal.Decimal
}

// NewTotalsCalculator builds a calculator for the configured tax rate.
func NewTotalsCalculator(taxRate decimal.Decimal) TotalsCalculator {
	if taxRate.IsNegative() {
		taxRate = decimal.Zero
	}
	return TotalsCalculator{taxRate: taxRate}
}

// LineSubtotal computes quantity x unit price rounded to cents.
func (c TotalsCalculator) LineSubtotal(qty, unitPrice decimal.Decimal) decimal.Decimal {
	return qty.Mul(unitPrice).Round(2)
}

// Apply recomputes every line subtotal and the order subtotal, tax and total.
func (c TotalsCalculator) Apply(o *Order) {
	subtotal := decimal.Zero
	for i := range o.Lines {
		o.Lines[i].Subtotal = c.LineSubtotal(o.Lines[i].QtyOrdered, o.Lines[i].UnitPrice)
		subtotal = subtotal.Add(o.Lines[i].Subtotal)
	}
	o.Subtotal = subtotal.Round(2)
	o.TaxAmount = subtotal.Mul(c.taxRate).Round(2)
	o.Total = o.Subtotal.Add(o.TaxAmount)
}
