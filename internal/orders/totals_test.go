package orders

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestTotalsSingleLine(t *testing.T) {
	calc := NewTotalsCalculator(dec("0.21"))
	order := Order{Lines: []DetailLine{
		{QtyOrdered: dec("10"), UnitPrice: dec("5.00")},
	}}

	calc.Apply(&order)

	require.True(t, order.Lines[0].Subtotal.Equal(dec("50.00")))
	require.True(t, order.Subtotal.Equal(dec("50.00")))
	require.True(t, order.TaxAmount.Equal(dec("10.50")))
	require.True(t, order.Total.Equal(dec("60.50")))
}

func TestTotalsRoundsPerLine(t *testing.T) {
	calc := NewTotalsCalculator(dec("0.21"))
	order := Order{Lines: []DetailLine{
		{QtyOrdered: dec("3"), UnitPrice: dec("0.333")},
		{QtyOrdered: dec("2"), UnitPrice: dec("1.005")},
	}}

	calc.Apply(&order)

	// 0.999 -> 1.00, 2.01 stays 2.01; order subtotal sums rounded lines.
	require.True(t, order.Lines[0].Subtotal.Equal(dec("1.00")))
	require.True(t, order.Lines[1].Subtotal.Equal(dec("2.01")))
	require.True(t, order.Subtotal.Equal(dec("3.01")))
	require.True(t, order.TaxAmount.Equal(dec("0.63")))
	require.True(t, order.Total.Equal(dec("3.64")))
}

func TestTotalsZeroRate(t *testing.T) {
	calc := NewTotalsCalculator(decimal.Zero)
	order := Order{Lines: []DetailLine{{QtyOrdered: dec("4"), UnitPrice: dec("2.50")}}}

	calc.Apply(&order)

	require.True(t, order.TaxAmount.IsZero())
	require.True(t, order.Total.Equal(order.Subtotal))
}

func TestTotalsNegativeRateClamped(t *testing.T) {
	calc := NewTotalsCalculator(dec("-0.10"))
	order := Order{Lines: []DetailLine{{QtyOrdered: dec("1"), UnitPrice: dec("10.00")}}}

	calc.Apply(&order)

	require.True(t, order.TaxAmount.IsZero())
	require.True(t, order.Total.Equal(dec("10.00")))
}

func TestTotalsRecomputeReplacesStaleValues(t *testing.T) {
	calc := NewTotalsCalculator(dec("0.21"))
	order := Order{
		Subtotal:  dec("999"),
		TaxAmount: dec("999"),
		Total:     dec("999"),
		Lines:     []DetailLine{{QtyOrdered: dec("2"), UnitPrice: dec("3.00"), Subtotal: dec("999")}},
	}

	calc.Apply(&order)

	require.True(t, order.Subtotal.Equal(dec("6.00")))
	require.True(t, order.TaxAmount.Equal(dec("1.26")))
	require.True(t, order.Total.Equal(dec("7.26")))
}
