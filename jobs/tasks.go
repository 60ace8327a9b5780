package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	"github.com/franferrer12/intramedia-system-sub001/internal/audit"
	"github.com/franferrer12/intramedia-system-sub001/internal/dispatch"
	"github.com/franferrer12/intramedia-system-sub001/internal/observability"
	"github.com/franferrer12/intramedia-system-sub001/internal/shared"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskTypeInventoryAdd delivers one received line to the inventory service.
	TaskTypeInventoryAdd = "sideeffect:inventory"
	// TaskTypeExpenseRecord delivers the reception cost to the finance service.
	TaskTypeExpenseRecord = "sideeffect:expense"
	// TaskTypeOutboxRelay sweeps the outbox for stuck pending rows.
	TaskTypeOutboxRelay = "outbox:relay"
	// TaskTypeKeyCleanup prunes idempotency keys past their retention window.
	TaskTypeKeyCleanup = "idempotency:cleanup"
)

// SideEffectPayload references the outbox row to deliver. The payload stays
// a bare id so the worker always acts on the current row state.
type SideEffectPayload struct {
	OutboxID int64 `json:"outbox_id"`
}

// NewSideEffectTask builds the delivery task matching the row's kind.
func NewSideEffectTask(row dispatch.OutboxRow) (*asynq.Task, error) {
	body, err := json.Marshal(SideEffectPayload{OutboxID: row.ID})
	if err != nil {
		return nil, err
	}
	switch row.Command.Kind {
	case dispatch.KindInventory:
		return asynq.NewTask(TaskTypeInventoryAdd, body, asynq.Queue(QueueDefault)), nil
	case dispatch.KindExpense:
		return asynq.NewTask(TaskTypeExpenseRecord, body, asynq.Queue(QueueDefault)), nil
	default:
		return nil, fmt.Errorf("jobs: unknown side effect kind %q", row.Command.Kind)
	}
}

// NewOutboxRelayTask builds the periodic relay task.
func NewOutboxRelayTask() *asynq.Task {
	return asynq.NewTask(TaskTypeOutboxRelay, nil, asynq.Queue(QueueDefault))
}

// NewKeyCleanupTask builds the periodic idempotency sweep task.
func NewKeyCleanupTask() *asynq.Task {
	return asynq.NewTask(TaskTypeKeyCleanup, nil, asynq.Queue(QueueDefault))
}

// OutboxStore is the slice of the outbox the task handlers touch.
type OutboxStore interface {
	Get(ctx context.Context, id int64) (dispatch.OutboxRow, error)
	MarkSent(ctx context.Context, id int64) error
	IncrementAttempt(ctx context.Context, id int64) error
	LinkExpense(ctx context.Context, orderID int64, txID string) (bool, error)
}

// AuditSink records the system-side mutations the worker performs.
type AuditSink interface {
	Record(ctx context.Context, e audit.Entry) error
}

// KeyStore removes expired idempotency keys.
type KeyStore interface {
	Cleanup(ctx context.Context, olderThan time.Duration) error
}

var (
	_ OutboxStore = (*dispatch.Store)(nil)
	_ AuditSink   = (*audit.Recorder)(nil)
	_ KeyStore    = (*shared.IdempotencyStore)(nil)
)

// SideEffectHandlers processes side-effect delivery tasks against the
// downstream collaborators.
type SideEffectHandlers struct {
	store     OutboxStore
	inventory dispatch.InventoryService
	finance   dispatch.FinanceService
	audit     AuditSink
	keys      KeyStore
	relay     *dispatch.Dispatcher
	metrics   *observability.Metrics
	logger    *slog.Logger

	relayAge     time.Duration
	relayLimit   int
	keyRetention time.Duration
}

// SideEffectConfig collects the task handlers' collaborators. Relay and Keys
// may be nil when the worker runs without the periodic sweeps.
type SideEffectConfig struct {
	Store     OutboxStore
	Inventory dispatch.InventoryService
	Finance   dispatch.FinanceService
	Audit     AuditSink
	Keys      KeyStore
	Relay     *dispatch.Dispatcher
	Metrics   *observability.Metrics
	Logger    *slog.Logger

	RelayAge     time.Duration
	KeyRetention time.Duration
}

// NewSideEffectHandlers constructs the task handlers.
func NewSideEffectHandlers(cfg SideEffectConfig) *SideEffectHandlers {
	if cfg.RelayAge <= 0 {
		cfg.RelayAge = 30 * time.Second
	}
	if cfg.KeyRetention <= 0 {
		cfg.KeyRetention = 30 * 24 * time.Hour
	}
	return &SideEffectHandlers{
		store:        cfg.Store,
		inventory:    cfg.Inventory,
		finance:      cfg.Finance,
		audit:        cfg.Audit,
		keys:         cfg.Keys,
		relay:        cfg.Relay,
		metrics:      cfg.Metrics,
		logger:       cfg.Logger,
		relayAge:     cfg.RelayAge,
		relayLimit:   100,
		keyRetention: cfg.KeyRetention,
	}
}

// HandleInventoryAdd delivers one inventory command. Redelivery is safe
// because the command carries its idempotency key.
func (h *SideEffectHandlers) HandleInventoryAdd(ctx context.Context, t *asynq.Task) error {
	row, done, err := h.loadRow(ctx, t)
	if err != nil || done {
		return err
	}
	cmd := dispatch.InventoryCommand{
		IdempotencyKey: row.Command.IdempotencyKey,
		OrderID:        row.Command.OrderID,
		ProductID:      row.Command.ProductID,
		Qty:            row.Command.Qty,
	}
	if err := h.inventory.AddStock(ctx, cmd); err != nil {
		h.logger.Warn("inventory add failed", slog.Int64("outbox_id", row.ID), slog.Any("error", err))
		return err
	}
	h.metrics.SideEffectSent(string(dispatch.KindInventory))
	return h.store.MarkSent(ctx, row.ID)
}

// HandleExpenseRecord delivers the expense command and links the resulting
// finance transaction back onto the order. The link is a system mutation, so
// it gets its own audit entry with no actor.
func (h *SideEffectHandlers) HandleExpenseRecord(ctx context.Context, t *asynq.Task) error {
	row, done, err := h.loadRow(ctx, t)
	if err != nil || done {
		return err
	}
	cmd := dispatch.ExpenseCommand{
		IdempotencyKey: row.Command.IdempotencyKey,
		OrderID:        row.Command.OrderID,
		Amount:         row.Command.Amount,
	}
	txID, err := h.finance.RecordExpense(ctx, cmd)
	if err != nil {
		h.logger.Warn("expense record failed", slog.Int64("outbox_id", row.ID), slog.Any("error", err))
		return err
	}
	linked, err := h.store.LinkExpense(ctx, row.Command.OrderID, txID)
	if err != nil {
		return err
	}
	if linked && h.audit != nil {
		entry := audit.Entry{
			OrderID:  row.Command.OrderID,
			Kind:     audit.KindFieldModified,
			Field:    "expense_tx_id",
			NewValue: txID,
			Note:     "expense transaction linked",
		}
		// The link is already durable and a redelivery cannot tell a
		// fresh link from an old one, so a failed append is logged
		// rather than retried.
		if err := h.audit.Record(ctx, entry); err != nil {
			h.logger.Warn("expense link audit failed", slog.Int64("order_id", row.Command.OrderID), slog.Any("error", err))
		}
	}
	h.metrics.SideEffectSent(string(dispatch.KindExpense))
	return h.store.MarkSent(ctx, row.ID)
}

// HandleOutboxRelay re-enqueues pending rows that missed their first flush.
func (h *SideEffectHandlers) HandleOutboxRelay(ctx context.Context, _ *asynq.Task) error {
	if h.relay == nil {
		return nil
	}
	return h.relay.Relay(ctx, h.relayAge, h.relayLimit)
}

// HandleKeyCleanup deletes idempotency keys older than the retention window
// so the table stops growing without bound.
func (h *SideEffectHandlers) HandleKeyCleanup(ctx context.Context, _ *asynq.Task) error {
	if h.keys == nil {
		return nil
	}
	return h.keys.Cleanup(ctx, h.keyRetention)
}

// loadRow resolves the task payload into a live outbox row. Rows already
// acknowledged resolve to done without error, which makes redelivery a no-op.
func (h *SideEffectHandlers) loadRow(ctx context.Context, t *asynq.Task) (dispatch.OutboxRow, bool, error) {
	var payload SideEffectPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return dispatch.OutboxRow{}, false, asynq.SkipRetry
	}
	row, err := h.store.Get(ctx, payload.OutboxID)
	if err != nil {
		return dispatch.OutboxRow{}, false, err
	}
	if row.Status == dispatch.OutboxSent {
		return row, true, nil
	}
	if err := h.store.IncrementAttempt(ctx, row.ID); err != nil {
		h.logger.Warn("attempt counter", slog.Int64("outbox_id", row.ID), slog.Any("error", err))
	}
	return row, false, nil
}

var errNoClient = errors.New("jobs: client not configured")
