package dispatch

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/franferrer12/intramedia-system-sub001/internal/shared"
)

// OutboxStatus tracks delivery progress of a side-effect command.
type OutboxStatus string

const (
	// OutboxPending means the command has not been acknowledged yet.
	OutboxPending OutboxStatus = "PENDING"
	// OutboxSent means the downstream service acknowledged the command.
	OutboxSent OutboxStatus = "SENT"
)

// OutboxRow is one persisted side-effect command. Rows are written inside
// the reception transaction so a commit can never lose its side effects.
type OutboxRow struct {
	ID        int64
	Command   Command
	Status    OutboxStatus
	Attempts  int
	CreatedAt time.Time
	SentAt    time.Time
}

// Store persists the side-effect outbox.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore constructs an outbox store.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// AppendTx writes commands into the outbox using the caller's transaction.
func AppendTx(ctx context.Context, exec shared.Executor, cmds []Command) error {
	for _, cmd := range cmds {
		_, err := exec.Exec(ctx, `INSERT INTO side_effect_outbox
(kind, order_id, event_id, line_id, product_id, qty, amount, idempotency_key, status, attempts, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, 0, NOW())`,
			string(cmd.Kind), cmd.OrderID, cmd.EventID, cmd.LineID, cmd.ProductID,
			cmd.Qty, cmd.Amount, cmd.IdempotencyKey, string(OutboxPending))
		if err != nil {
			return err
		}
	}
	return nil
}

const outboxColumns = `id, kind, order_id, event_id, line_id, product_id, qty, amount, idempotency_key, status, attempts, created_at, COALESCE(sent_at, 'epoch'::timestamptz)`

// PendingForEvent returns unacknowledged rows for one reception event.
func (s *Store) PendingForEvent(ctx context.Context, eventID uuid.UUID) ([]OutboxRow, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+outboxColumns+` FROM side_effect_outbox
WHERE event_id = $1 AND status = $2 ORDER BY id`, eventID, string(OutboxPending))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanOutboxRows(rows)
}

// ListPending returns unacknowledged rows older than the grace period, for
// the relay to redeliver.
func (s *Store) ListPending(ctx context.Context, olderThan time.Duration, limit int) ([]OutboxRow, error) {
	cutoff := time.Now().Add(-olderThan)
	rows, err := s.pool.Query(ctx, `SELECT `+outboxColumns+` FROM side_effect_outbox
WHERE status = $1 AND created_at < $2 ORDER BY id LIMIT $3`, string(OutboxPending), cutoff, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanOutboxRows(rows)
}

// Get loads a single outbox row.
func (s *Store) Get(ctx context.Context, id int64) (OutboxRow, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+outboxColumns+` FROM side_effect_outbox WHERE id = $1`, id)
	out, err := scanOutboxRow(row)
	if err != nil {
		return OutboxRow{}, err
	}
	return out, nil
}

// MarkSent acknowledges a delivered command.
func (s *Store) MarkSent(ctx context.Context, id int64) error {
	_, err := s.pool.Exec(ctx, `UPDATE side_effect_outbox SET status = $1, sent_at = NOW()
WHERE id = $2 AND status = $3`, string(OutboxSent), id, string(OutboxPending))
	return err
}

// IncrementAttempt counts a delivery try for observability.
func (s *Store) IncrementAttempt(ctx context.Context, id int64) error {
	_, err := s.pool.Exec(ctx, `UPDATE side_effect_outbox SET attempts = attempts + 1 WHERE id = $1`, id)
	return err
}

// LinkExpense persists the finance transaction id back onto the order. The
// column is system-owned and write-once, so this stays outside the order's
// version protocol. Returns whether this call performed the write; a false
// result means an earlier delivery already linked the order.
func (s *Store) LinkExpense(ctx context.Context, orderID int64, txID string) (bool, error) {
	if txID == "" {
		return false, errors.New("dispatch: expense transaction id required")
	}
	tag, err := s.pool.Exec(ctx, `UPDATE purchase_orders SET expense_tx_id = $1
WHERE id = $2 AND expense_tx_id IS NULL`, txID, orderID)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

type rowsScanner interface {
	Next() bool
	Err() error
	Scan(dest ...any) error
}

func scanOutboxRows(rows rowsScanner) ([]OutboxRow, error) {
	var out []OutboxRow
	for rows.Next() {
		row, err := scanOutboxRow(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

func scanOutboxRow(row rowScanner) (OutboxRow, error) {
	var (
		out  OutboxRow
		kind string
		stat string
		qty  decimal.Decimal
		amt  decimal.Decimal
	)
	if err := row.Scan(&out.ID, &kind, &out.Command.OrderID, &out.Command.EventID,
		&out.Command.LineID, &out.Command.ProductID, &qty, &amt,
		&out.Command.IdempotencyKey, &stat, &out.Attempts, &out.CreatedAt, &out.SentAt); err != nil {
		return OutboxRow{}, err
	}
	out.Command.Kind = Kind(kind)
	out.Command.Qty = qty
	out.Command.Amount = amt
	out.Status = OutboxStatus(stat)
	return out, nil
}
