package audit

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/franferrer12/intramedia-system-sub001/internal/shared"
)

// Kind classifies an audit entry.
type Kind string

const (
	// KindCreated records order creation.
	KindCreated Kind = "CREATED"
	// KindStatusChanged records a lifecycle transition.
	KindStatusChanged Kind = "STATUS_CHANGED"
	// KindFieldModified records a tracked-field change.
	KindFieldModified Kind = "FIELD_MODIFIED"
	// KindDeleted records a logical delete.
	KindDeleted Kind = "DELETED"
)

// Entry is one immutable audit record. ActorID nil means the system acted.
// Entries are never updated or deleted.
type Entry struct {
	ID         int64
	OrderID    int64
	ActorID    *int64
	Kind       Kind
	PrevStatus string
	NewStatus  string
	Field      string
	PrevValue  string
	NewValue   string
	Note       string
	OriginIP   string
	UserAgent  string
	At         time.Time
}

// Append writes the entry using the caller's executor, typically the same
// transaction as the mutation it documents.
func Append(ctx context.Context, exec shared.Executor, e Entry) error {
	if e.OrderID == 0 {
		return errors.New("audit: order id required")
	}
	if e.Kind == "" {
		return errors.New("audit: kind required")
	}
	at := e.At
	if at.IsZero() {
		at = time.Now()
	}
	_, err := exec.Exec(ctx, `INSERT INTO order_audit_entries
(order_id, actor_id, kind, prev_status, new_status, field, prev_value, new_value, note, origin_ip, user_agent, at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		e.OrderID, e.ActorID, string(e.Kind), e.PrevStatus, e.NewStatus,
		e.Field, e.PrevValue, e.NewValue, e.Note, e.OriginIP, e.UserAgent, at)
	return err
}

// Recorder appends entries outside of a caller-held transaction.
type Recorder struct {
	pool *pgxpool.Pool
}

// NewRecorder returns a new Recorder.
func NewRecorder(pool *pgxpool.Pool) *Recorder {
	return &Recorder{pool: pool}
}

// Record persists the entry.
func (r *Recorder) Record(ctx context.Context, e Entry) error {
	if r == nil {
		return errors.New("audit: recorder not initialised")
	}
	return Append(ctx, r.pool, e)
}
