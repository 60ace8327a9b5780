package dispatch

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func TestIdempotencyKeys(t *testing.T) {
	eventID := uuid.MustParse("11111111-2222-3333-4444-555555555555")

	require.Equal(t, "sideeffect:11111111-2222-3333-4444-555555555555:7", InventoryKey(eventID, 7))
	require.Equal(t, "sideeffect:11111111-2222-3333-4444-555555555555", ExpenseKey(eventID))

	// One key per (event, line); a second event yields fresh keys.
	other := uuid.New()
	require.NotEqual(t, InventoryKey(eventID, 7), InventoryKey(other, 7))
	require.NotEqual(t, InventoryKey(eventID, 7), InventoryKey(eventID, 8))
}
