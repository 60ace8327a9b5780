package orders

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/franferrer12/intramedia-system-sub001/internal/shared"
)

func transitOrder() Order {
	return Order{
		ID:     7,
		Status: StatusInTransit,
		Lines: []DetailLine{
			{ID: 1, OrderID: 7, ProductID: 100, QtyOrdered: dec("10"), UnitPrice: dec("5.00")},
			{ID: 2, OrderID: 7, ProductID: 200, QtyOrdered: dec("4"), UnitPrice: dec("2.50")},
		},
	}
}

func TestReconcileFullReception(t *testing.T) {
	order := transitOrder()
	now := time.Now()

	result, err := Reconcile(&order, []ReceptionItem{
		{LineID: 1, Qty: dec("10")},
		{LineID: 2, Qty: dec("4")},
	}, 42, now)
	require.NoError(t, err)

	require.Equal(t, StatusReceived, order.Status)
	require.Equal(t, StatusInTransit, result.PreviousStatus)
	require.Equal(t, StatusReceived, result.NewStatus)
	require.True(t, result.FirstReception)
	require.Len(t, result.Applied, 2)
	require.Equal(t, now, order.ReceivedDate)
	require.EqualValues(t, 42, order.ReceivedBy)
}

func TestReconcilePartialThenComplete(t *testing.T) {
	order := transitOrder()

	result, err := Reconcile(&order, []ReceptionItem{{LineID: 1, Qty: dec("6")}}, 42, time.Now())
	require.NoError(t, err)
	require.Equal(t, StatusPartial, order.Status)
	require.True(t, result.FirstReception)
	require.True(t, order.Lines[0].Pending().Equal(dec("4")))

	firstDate := order.ReceivedDate
	result, err = Reconcile(&order, []ReceptionItem{
		{LineID: 1, Qty: dec("4")},
		{LineID: 2, Qty: dec("4")},
	}, 99, time.Now())
	require.NoError(t, err)
	require.Equal(t, StatusReceived, order.Status)
	require.False(t, result.FirstReception)
	// First reception stamps date and actor once.
	require.Equal(t, firstDate, order.ReceivedDate)
	require.EqualValues(t, 42, order.ReceivedBy)
}

func TestReconcileOverReceiptRejectsWholeBatch(t *testing.T) {
	order := transitOrder()

	_, err := Reconcile(&order, []ReceptionItem{
		{LineID: 1, Qty: dec("3")},
		{LineID: 2, Qty: dec("5")},
	}, 42, time.Now())

	var over *shared.OverReceiptError
	require.ErrorAs(t, err, &over)
	require.EqualValues(t, 2, over.LineID)
	require.True(t, over.Requested.Equal(dec("5")))
	require.True(t, over.Pending.Equal(dec("4")))

	// Nothing applied, including the valid first item.
	require.Equal(t, StatusInTransit, order.Status)
	require.True(t, order.Lines[0].QtyReceived.IsZero())
	require.True(t, order.Lines[1].QtyReceived.IsZero())
}

func TestReconcileRepeatedLineAccumulatesWithinBatch(t *testing.T) {
	order := transitOrder()

	// 6 + 5 on a line with 10 pending must fail on the second item.
	_, err := Reconcile(&order, []ReceptionItem{
		{LineID: 1, Qty: dec("6")},
		{LineID: 1, Qty: dec("5")},
	}, 42, time.Now())

	var over *shared.OverReceiptError
	require.ErrorAs(t, err, &over)
	require.True(t, order.Lines[0].QtyReceived.IsZero())
}

func TestReconcileSplitEventsEqualOneEvent(t *testing.T) {
	split := transitOrder()
	_, err := Reconcile(&split, []ReceptionItem{{LineID: 1, Qty: dec("3")}}, 1, time.Now())
	require.NoError(t, err)
	_, err = Reconcile(&split, []ReceptionItem{{LineID: 1, Qty: dec("7")}}, 1, time.Now())
	require.NoError(t, err)

	whole := transitOrder()
	_, err = Reconcile(&whole, []ReceptionItem{{LineID: 1, Qty: dec("10")}}, 1, time.Now())
	require.NoError(t, err)

	require.True(t, split.Lines[0].QtyReceived.Equal(whole.Lines[0].QtyReceived))
	require.Equal(t, whole.Status, split.Status)
}

func TestReconcileUnknownLine(t *testing.T) {
	order := transitOrder()
	_, err := Reconcile(&order, []ReceptionItem{{LineID: 999, Qty: dec("1")}}, 42, time.Now())
	require.True(t, errors.Is(err, shared.ErrNotFound))
}

func TestReconcileNegativeQty(t *testing.T) {
	order := transitOrder()
	_, err := Reconcile(&order, []ReceptionItem{{LineID: 1, Qty: dec("-1")}}, 42, time.Now())
	var validation *shared.ValidationError
	require.ErrorAs(t, err, &validation)
}

func TestReconcileZeroTotalBatch(t *testing.T) {
	order := transitOrder()
	_, err := Reconcile(&order, []ReceptionItem{
		{LineID: 1, Qty: dec("0")},
		{LineID: 2, Qty: dec("0")},
	}, 42, time.Now())
	var validation *shared.ValidationError
	require.ErrorAs(t, err, &validation)
}

func TestReconcileEmptyBatch(t *testing.T) {
	order := transitOrder()
	_, err := Reconcile(&order, nil, 42, time.Now())
	var validation *shared.ValidationError
	require.ErrorAs(t, err, &validation)
}

func TestReconcileZeroQtyItemSkipped(t *testing.T) {
	order := transitOrder()
	result, err := Reconcile(&order, []ReceptionItem{
		{LineID: 1, Qty: dec("2")},
		{LineID: 2, Qty: dec("0")},
	}, 42, time.Now())
	require.NoError(t, err)
	require.Len(t, result.Applied, 1)
	require.EqualValues(t, 1, result.Applied[0].LineID)
	require.True(t, order.Lines[1].QtyReceived.IsZero())
}
