package audit

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresRepository reads audit entries from Postgres.
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresRepository constructs the repository.
func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{pool: pool}
}

// ListByOrder returns every entry for the order, oldest first.
func (r *PostgresRepository) ListByOrder(ctx context.Context, orderID int64) ([]Entry, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, order_id, actor_id, kind, prev_status, new_status,
field, prev_value, new_value, note, origin_ip, user_agent, at
FROM order_audit_entries WHERE order_id = $1 ORDER BY at ASC, id ASC`, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var (
			e    Entry
			kind string
		)
		if err := rows.Scan(&e.ID, &e.OrderID, &e.ActorID, &kind, &e.PrevStatus, &e.NewStatus,
			&e.Field, &e.PrevValue, &e.NewValue, &e.Note, &e.OriginIP, &e.UserAgent, &e.At); err != nil {
			return nil, err
		}
		e.Kind = Kind(kind)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
