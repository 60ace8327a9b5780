package audit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type memoryAuditRepo struct {
	entries []Entry
}

func (r *memoryAuditRepo) ListByOrder(ctx context.Context, orderID int64) ([]Entry, error) {
	var out []Entry
	for _, e := range r.entries {
		if e.OrderID == orderID {
			out = append(out, e)
		}
	}
	return out, nil
}

func TestHistoryOrdersByTimestamp(t *testing.T) {
	base := time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)
	repo := &memoryAuditRepo{entries: []Entry{
		{ID: 3, OrderID: 1, Kind: KindStatusChanged, At: base.Add(2 * time.Minute)},
		{ID: 1, OrderID: 1, Kind: KindCreated, At: base},
		{ID: 2, OrderID: 1, Kind: KindFieldModified, At: base.Add(time.Minute)},
		{ID: 9, OrderID: 2, Kind: KindCreated, At: base},
	}}
	svc := NewService(repo)

	entries, err := svc.History(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, entries, 3)
	require.Equal(t, KindCreated, entries[0].Kind)
	require.Equal(t, KindFieldModified, entries[1].Kind)
	require.Equal(t, KindStatusChanged, entries[2].Kind)
}

func TestHistoryBreaksTiesByID(t *testing.T) {
	at := time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)
	repo := &memoryAuditRepo{entries: []Entry{
		{ID: 5, OrderID: 1, Kind: KindStatusChanged, At: at},
		{ID: 4, OrderID: 1, Kind: KindCreated, At: at},
	}}
	svc := NewService(repo)

	entries, err := svc.History(context.Background(), 1)
	require.NoError(t, err)
	require.EqualValues(t, 4, entries[0].ID)
	require.EqualValues(t, 5, entries[1].ID)
}

func TestHistoryWithoutRepository(t *testing.T) {
	svc := NewService(nil)
	_, err := svc.History(context.Background(), 1)
	require.Error(t, err)
}
