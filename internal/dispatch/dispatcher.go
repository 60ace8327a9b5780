package dispatch

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// Enqueuer hands an outbox row to the delivery queue. Implemented by the
// jobs client, which maps the row kind onto the matching task type.
type Enqueuer interface {
	EnqueueOutbox(ctx context.Context, row OutboxRow) error
}

// Dispatcher moves committed outbox rows into the delivery queue. It never
// runs inside the order transaction: reconciliation commits first, delivery
// is retried until acknowledged.
type Dispatcher struct {
	store    *Store
	enqueuer Enqueuer
	logger   *slog.Logger
}

// NewDispatcher constructs a Dispatcher.
func NewDispatcher(store *Store, enqueuer Enqueuer, logger *slog.Logger) *Dispatcher {
	return &Dispatcher{store: store, enqueuer: enqueuer, logger: logger}
}

// Flush enqueues the pending commands of one reception event. Failures are
// logged only; the relay redelivers anything missed here.
func (d *Dispatcher) Flush(ctx context.Context, eventID uuid.UUID) {
	if d == nil || d.store == nil || d.enqueuer == nil {
		return
	}
	rows, err := d.store.PendingForEvent(ctx, eventID)
	if err != nil {
		d.logger.Warn("outbox flush", slog.String("event", eventID.String()), slog.Any("error", err))
		return
	}
	for _, row := range rows {
		if err := d.enqueuer.EnqueueOutbox(ctx, row); err != nil {
			d.logger.Warn("outbox enqueue", slog.Int64("outbox_id", row.ID), slog.Any("error", err))
		}
	}
}

// Relay re-enqueues pending rows that have waited past the grace period.
// Idempotency keys make redelivery safe.
func (d *Dispatcher) Relay(ctx context.Context, olderThan time.Duration, limit int) error {
	rows, err := d.store.ListPending(ctx, olderThan, limit)
	if err != nil {
		return err
	}
	for _, row := range rows {
		if err := d.enqueuer.EnqueueOutbox(ctx, row); err != nil {
			d.logger.Warn("outbox relay enqueue", slog.Int64("outbox_id", row.ID), slog.Any("error", err))
			continue
		}
	}
	if len(rows) > 0 {
		d.logger.Info("outbox relay", slog.Int("redelivered", len(rows)))
	}
	return nil
}
