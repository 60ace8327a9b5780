package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/franferrer12/intramedia-system-sub001/internal/audit"
	"github.com/franferrer12/intramedia-system-sub001/internal/dispatch"
)

func TestNewSideEffectTaskMapsKinds(t *testing.T) {
	inventory := dispatch.OutboxRow{ID: 11, Command: dispatch.Command{
		Kind:    dispatch.KindInventory,
		EventID: uuid.New(),
	}}
	task, err := NewSideEffectTask(inventory)
	require.NoError(t, err)
	require.Equal(t, TaskTypeInventoryAdd, task.Type())

	var payload SideEffectPayload
	require.NoError(t, json.Unmarshal(task.Payload(), &payload))
	require.EqualValues(t, 11, payload.OutboxID)

	expense := dispatch.OutboxRow{ID: 12, Command: dispatch.Command{Kind: dispatch.KindExpense}}
	task, err = NewSideEffectTask(expense)
	require.NoError(t, err)
	require.Equal(t, TaskTypeExpenseRecord, task.Type())
}

func TestNewSideEffectTaskRejectsUnknownKind(t *testing.T) {
	_, err := NewSideEffectTask(dispatch.OutboxRow{Command: dispatch.Command{Kind: "MYSTERY"}})
	require.Error(t, err)
}

func TestNewOutboxRelayTask(t *testing.T) {
	task := NewOutboxRelayTask()
	require.Equal(t, TaskTypeOutboxRelay, task.Type())
}

func TestNewKeyCleanupTask(t *testing.T) {
	task := NewKeyCleanupTask()
	require.Equal(t, TaskTypeKeyCleanup, task.Type())
}

type memoryOutbox struct {
	rows     map[int64]dispatch.OutboxRow
	sent     []int64
	attempts map[int64]int
	linked   map[int64]string
}

func newMemoryOutbox(rows ...dispatch.OutboxRow) *memoryOutbox {
	m := &memoryOutbox{
		rows:     make(map[int64]dispatch.OutboxRow),
		attempts: make(map[int64]int),
		linked:   make(map[int64]string),
	}
	for _, row := range rows {
		m.rows[row.ID] = row
	}
	return m
}

func (m *memoryOutbox) Get(_ context.Context, id int64) (dispatch.OutboxRow, error) {
	row, ok := m.rows[id]
	if !ok {
		return dispatch.OutboxRow{}, errors.New("outbox row not found")
	}
	return row, nil
}

func (m *memoryOutbox) MarkSent(_ context.Context, id int64) error {
	row := m.rows[id]
	row.Status = dispatch.OutboxSent
	m.rows[id] = row
	m.sent = append(m.sent, id)
	return nil
}

func (m *memoryOutbox) IncrementAttempt(_ context.Context, id int64) error {
	m.attempts[id]++
	return nil
}

func (m *memoryOutbox) LinkExpense(_ context.Context, orderID int64, txID string) (bool, error) {
	if _, ok := m.linked[orderID]; ok {
		return false, nil
	}
	m.linked[orderID] = txID
	return true, nil
}

type stubInventory struct {
	calls []dispatch.InventoryCommand
	err   error
}

func (s *stubInventory) AddStock(_ context.Context, cmd dispatch.InventoryCommand) error {
	s.calls = append(s.calls, cmd)
	return s.err
}

type stubFinance struct {
	calls []dispatch.ExpenseCommand
	txID  string
	err   error
}

func (s *stubFinance) RecordExpense(_ context.Context, cmd dispatch.ExpenseCommand) (string, error) {
	s.calls = append(s.calls, cmd)
	return s.txID, s.err
}

type memoryAudit struct {
	entries []audit.Entry
}

func (m *memoryAudit) Record(_ context.Context, e audit.Entry) error {
	m.entries = append(m.entries, e)
	return nil
}

type memoryKeys struct {
	swept []time.Duration
}

func (m *memoryKeys) Cleanup(_ context.Context, olderThan time.Duration) error {
	m.swept = append(m.swept, olderThan)
	return nil
}

type handlerFixture struct {
	store     *memoryOutbox
	inventory *stubInventory
	finance   *stubFinance
	audits    *memoryAudit
	keys      *memoryKeys
	handlers  *SideEffectHandlers
}

func newHandlerFixture(rows ...dispatch.OutboxRow) *handlerFixture {
	f := &handlerFixture{
		store:     newMemoryOutbox(rows...),
		inventory: &stubInventory{},
		finance:   &stubFinance{txID: "TX-900"},
		audits:    &memoryAudit{},
		keys:      &memoryKeys{},
	}
	f.handlers = NewSideEffectHandlers(SideEffectConfig{
		Store:        f.store,
		Inventory:    f.inventory,
		Finance:      f.finance,
		Audit:        f.audits,
		Keys:         f.keys,
		Logger:       slog.New(slog.NewTextHandler(io.Discard, nil)),
		KeyRetention: 48 * time.Hour,
	})
	return f
}

func outboxTask(t *testing.T, row dispatch.OutboxRow) *asynq.Task {
	t.Helper()
	task, err := NewSideEffectTask(row)
	require.NoError(t, err)
	return task
}

func inventoryRow(id int64) dispatch.OutboxRow {
	return dispatch.OutboxRow{ID: id, Status: dispatch.OutboxPending, Command: dispatch.Command{
		Kind:           dispatch.KindInventory,
		OrderID:        7,
		ProductID:      100,
		Qty:            decimal.NewFromInt(10),
		IdempotencyKey: "sideeffect:inv:1",
	}}
}

func expenseRow(id int64) dispatch.OutboxRow {
	return dispatch.OutboxRow{ID: id, Status: dispatch.OutboxPending, Command: dispatch.Command{
		Kind:           dispatch.KindExpense,
		OrderID:        7,
		Amount:         decimal.RequireFromString("72.60"),
		IdempotencyKey: "sideeffect:exp:1",
	}}
}

func TestHandleInventoryAddDeliversAndMarksSent(t *testing.T) {
	row := inventoryRow(1)
	f := newHandlerFixture(row)

	err := f.handlers.HandleInventoryAdd(context.Background(), outboxTask(t, row))
	require.NoError(t, err)

	require.Len(t, f.inventory.calls, 1)
	require.Equal(t, "sideeffect:inv:1", f.inventory.calls[0].IdempotencyKey)
	require.Equal(t, []int64{1}, f.store.sent)
	require.Equal(t, 1, f.store.attempts[1])
}

func TestHandleInventoryAddSkipsAcknowledgedRow(t *testing.T) {
	row := inventoryRow(1)
	row.Status = dispatch.OutboxSent
	f := newHandlerFixture(row)

	err := f.handlers.HandleInventoryAdd(context.Background(), outboxTask(t, row))
	require.NoError(t, err)

	require.Empty(t, f.inventory.calls)
	require.Empty(t, f.store.sent)
	require.Zero(t, f.store.attempts[1])
}

func TestHandleInventoryAddPropagatesDownstreamError(t *testing.T) {
	row := inventoryRow(1)
	f := newHandlerFixture(row)
	f.inventory.err = errors.New("inventory unavailable")

	err := f.handlers.HandleInventoryAdd(context.Background(), outboxTask(t, row))
	require.Error(t, err)

	require.Empty(t, f.store.sent)
	require.Equal(t, dispatch.OutboxPending, f.store.rows[1].Status)
}

func TestHandleExpenseRecordLinksAndAudits(t *testing.T) {
	row := expenseRow(2)
	f := newHandlerFixture(row)

	err := f.handlers.HandleExpenseRecord(context.Background(), outboxTask(t, row))
	require.NoError(t, err)

	require.Len(t, f.finance.calls, 1)
	require.Equal(t, "TX-900", f.store.linked[7])
	require.Equal(t, []int64{2}, f.store.sent)

	require.Len(t, f.audits.entries, 1)
	entry := f.audits.entries[0]
	require.EqualValues(t, 7, entry.OrderID)
	require.Equal(t, audit.KindFieldModified, entry.Kind)
	require.Equal(t, "expense_tx_id", entry.Field)
	require.Equal(t, "TX-900", entry.NewValue)
	require.Nil(t, entry.ActorID)
}

func TestHandleExpenseRecordRedeliveryAuditsOnce(t *testing.T) {
	row := expenseRow(2)
	f := newHandlerFixture(row)
	f.store.linked[7] = "TX-900"

	err := f.handlers.HandleExpenseRecord(context.Background(), outboxTask(t, row))
	require.NoError(t, err)

	require.Empty(t, f.audits.entries)
	require.Equal(t, []int64{2}, f.store.sent)
}

func TestHandleSideEffectBadPayloadSkipsRetry(t *testing.T) {
	f := newHandlerFixture()
	task := asynq.NewTask(TaskTypeInventoryAdd, []byte("not json"))

	err := f.handlers.HandleInventoryAdd(context.Background(), task)
	require.ErrorIs(t, err, asynq.SkipRetry)
}

func TestHandleKeyCleanupUsesRetention(t *testing.T) {
	f := newHandlerFixture()

	err := f.handlers.HandleKeyCleanup(context.Background(), nil)
	require.NoError(t, err)
	require.Equal(t, []time.Duration{48 * time.Hour}, f.keys.swept)
}
