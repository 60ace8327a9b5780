package orders

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/franferrer12/intramedia-system-sub001/internal/audit"
	"github.com/franferrer12/intramedia-system-sub001/internal/dispatch"
	"github.com/franferrer12/intramedia-system-sub001/internal/platform/db"
	"github.com/franferrer12/intramedia-system-sub001/internal/shared"
)

// Repository provides PostgreSQL backed persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

type txRepo struct {
	tx pgx.Tx
}

// WithTx wraps callback in a repeatable-read transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &txRepo{tx: tx})
	})
}

// GetOrder returns the order and its lines. Logically deleted orders are
// not found.
func (r *Repository) GetOrder(ctx context.Context, id int64) (Order, error) {
	row := r.pool.QueryRow(ctx, `SELECT o.id, o.number, o.supplier_id, COALESCE(s.name, ''),
o.status, o.created_at, o.expected_date, o.received_date,
o.subtotal, o.tax_amount, o.total, o.created_by, o.received_by,
o.expense_tx_id, o.notes, o.version
FROM purchase_orders o
LEFT JOIN suppliers s ON s.id = o.supplier_id
WHERE o.id = $1 AND o.deleted_at IS NULL`, id)

	var (
		o            Order
		status       string
		expectedDate *time.Time
		receivedDate *time.Time
		receivedBy   *int64
		expenseTxID  *string
	)
	err := row.Scan(&o.ID, &o.Number, &o.SupplierID, &o.SupplierName,
		&status, &o.CreatedAt, &expectedDate, &receivedDate,
		&o.Subtotal, &o.TaxAmount, &o.Total, &o.CreatedBy, &receivedBy,
		&expenseTxID, &o.Notes, &o.Version)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Order{}, shared.ErrNotFound
		}
		return Order{}, err
	}
	o.Status = Status(status)
	if expectedDate != nil {
		o.ExpectedDate = *expectedDate
	}
	if receivedDate != nil {
		o.ReceivedDate = *receivedDate
	}
	if receivedBy != nil {
		o.ReceivedBy = *receivedBy
	}
	if expenseTxID != nil {
		o.ExpenseTxID = *expenseTxID
	}

	lines, err := r.getLines(ctx, id)
	if err != nil {
		return Order{}, err
	}
	o.Lines = lines
	return o, nil
}

func (r *Repository) getLines(ctx context.Context, orderID int64) ([]DetailLine, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, order_id, product_id, product_name,
qty_ordered, qty_received, unit_price, subtotal, notes
FROM purchase_order_lines WHERE order_id = $1 ORDER BY id`, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var lines []DetailLine
	for rows.Next() {
		var l DetailLine
		if err := rows.Scan(&l.ID, &l.OrderID, &l.ProductID, &l.ProductName,
			&l.QtyOrdered, &l.QtyReceived, &l.UnitPrice, &l.Subtotal, &l.Notes); err != nil {
			return nil, err
		}
		lines = append(lines, l)
	}
	return lines, rows.Err()
}

// List returns orders with supplier name and total, filtered and paginated.
func (r *Repository) List(ctx context.Context, limit, offset int, filters ListFilters) ([]ListItem, int, error) {
	countSQL := `SELECT COUNT(*) FROM purchase_orders o WHERE o.deleted_at IS NULL`
	countSQL, countArgs := applyListFilters(countSQL, filters)

	var total int
	if err := r.pool.QueryRow(ctx, countSQL, countArgs...).Scan(&total); err != nil {
		return nil, 0, err
	}

	dataSQL := `SELECT o.id, o.number, o.supplier_id, COALESCE(s.name, '') AS supplier_name,
o.status, COALESCE(o.expected_date, 'epoch'::date), o.created_at, o.total
FROM purchase_orders o
LEFT JOIN suppliers s ON s.id = o.supplier_id
WHERE o.deleted_at IS NULL`
	dataSQL, dataArgs := applyListFilters(dataSQL, filters)
	dataSQL += ` ORDER BY ` + sortOrder(filters.SortBy, filters.SortDir)
	dataSQL += fmt.Sprintf(` LIMIT $%d OFFSET $%d`, len(dataArgs)+1, len(dataArgs)+2)
	dataArgs = append(dataArgs, limit, offset)

	rows, err := r.pool.Query(ctx, dataSQL, dataArgs...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var items []ListItem
	for rows.Next() {
		var (
			item   ListItem
			status string
		)
		if err := rows.Scan(&item.ID, &item.Number, &item.SupplierID, &item.SupplierName,
			&status, &item.ExpectedDate, &item.CreatedAt, &item.Total); err != nil {
			return nil, 0, err
		}
		item.Status = Status(status)
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

func applyListFilters(sql string, filters ListFilters) (string, []any) {
	args := []any{}
	if filters.Status != "" {
		args = append(args, filters.Status)
		sql += fmt.Sprintf(` AND o.status = $%d`, len(args))
	}
	if filters.SupplierID > 0 {
		args = append(args, filters.SupplierID)
		sql += fmt.Sprintf(` AND o.supplier_id = $%d`, len(args))
	}
	if filters.Search != "" {
		args = append(args, "%"+filters.Search+"%")
		sql += fmt.Sprintf(` AND o.number ILIKE $%d`, len(args))
	}
	return sql, args
}

// sortOrder returns a safe ORDER BY clause.
func sortOrder(sortBy, sortDir string) string {
	dir := "DESC"
	if sortDir == "asc" {
		dir = "ASC"
	}
	switch sortBy {
	case "number":
		return "o.number " + dir
	case "supplier":
		return "supplier_name " + dir
	case "expected_date":
		return "o.expected_date " + dir
	case "total":
		return "o.total " + dir
	case "status":
		return "o.status " + dir
	default:
		return "o.created_at DESC"
	}
}

func (tx *txRepo) CreateOrder(ctx context.Context, o Order) (int64, error) {
	var expectedDate *time.Time
	if !o.ExpectedDate.IsZero() {
		expectedDate = &o.ExpectedDate
	}
	var id int64
	err := tx.tx.QueryRow(ctx, `INSERT INTO purchase_orders
(number, supplier_id, status, created_at, expected_date, subtotal, tax_amount, total, created_by, notes, version)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, 1)
RETURNING id`,
		o.Number, o.SupplierID, string(o.Status), o.CreatedAt, expectedDate,
		o.Subtotal, o.TaxAmount, o.Total, o.CreatedBy, o.Notes).Scan(&id)
	if err != nil {
		return 0, orderInsertError(err)
	}
	return id, nil
}

// orderInsertError maps a unique violation on the order number onto the
// validation taxonomy so a caller-supplied duplicate is rejected, not a 500.
func orderInsertError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return shared.NewValidationError("number", "order number already in use")
	}
	return err
}

func (tx *txRepo) InsertLine(ctx context.Context, line DetailLine) (int64, error) {
	var id int64
	err := tx.tx.QueryRow(ctx, `INSERT INTO purchase_order_lines
(order_id, product_id, product_name, qty_ordered, qty_received, unit_price, subtotal, notes)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
RETURNING id`,
		line.OrderID, line.ProductID, line.ProductName, line.QtyOrdered,
		line.QtyReceived, line.UnitPrice, line.Subtotal, line.Notes).Scan(&id)
	return id, err
}

func (tx *txRepo) UpdateHeader(ctx context.Context, o Order) error {
	var expectedDate *time.Time
	if !o.ExpectedDate.IsZero() {
		expectedDate = &o.ExpectedDate
	}
	tag, err := tx.tx.Exec(ctx, `UPDATE purchase_orders
SET expected_date = $1, notes = $2, subtotal = $3, tax_amount = $4, total = $5, version = version + 1
WHERE id = $6 AND version = $7 AND deleted_at IS NULL`,
		expectedDate, o.Notes, o.Subtotal, o.TaxAmount, o.Total, o.ID, o.Version)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return &shared.ConcurrencyConflictError{OrderID: o.ID}
	}
	return nil
}

func (tx *txRepo) ReplaceLines(ctx context.Context, orderID int64, lines []DetailLine) error {
	if _, err := tx.tx.Exec(ctx, `DELETE FROM purchase_order_lines WHERE order_id = $1`, orderID); err != nil {
		return err
	}
	for _, line := range lines {
		if _, err := tx.InsertLine(ctx, line); err != nil {
			return err
		}
	}
	return nil
}

func (tx *txRepo) UpdateStatus(ctx context.Context, orderID, version int64, status Status) error {
	tag, err := tx.tx.Exec(ctx, `UPDATE purchase_orders
SET status = $1, version = version + 1
WHERE id = $2 AND version = $3 AND deleted_at IS NULL`, string(status), orderID, version)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return &shared.ConcurrencyConflictError{OrderID: orderID}
	}
	return nil
}

func (tx *txRepo) UpdateReception(ctx context.Context, o Order) error {
	var receivedDate *time.Time
	if !o.ReceivedDate.IsZero() {
		receivedDate = &o.ReceivedDate
	}
	var receivedBy *int64
	if o.ReceivedBy != 0 {
		receivedBy = &o.ReceivedBy
	}
	tag, err := tx.tx.Exec(ctx, `UPDATE purchase_orders
SET status = $1, received_date = COALESCE(received_date, $2), received_by = COALESCE(received_by, $3), version = version + 1
WHERE id = $4 AND version = $5 AND deleted_at IS NULL`,
		string(o.Status), receivedDate, receivedBy, o.ID, o.Version)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return &shared.ConcurrencyConflictError{OrderID: o.ID}
	}
	for _, line := range o.Lines {
		if _, err := tx.tx.Exec(ctx, `UPDATE purchase_order_lines
SET qty_received = $1, notes = $2 WHERE id = $3 AND order_id = $4`,
			line.QtyReceived, line.Notes, line.ID, o.ID); err != nil {
			return err
		}
	}
	return nil
}

func (tx *txRepo) MarkDeleted(ctx context.Context, orderID, version int64) error {
	tag, err := tx.tx.Exec(ctx, `UPDATE purchase_orders
SET deleted_at = NOW(), version = version + 1
WHERE id = $1 AND version = $2 AND deleted_at IS NULL`, orderID, version)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return &shared.ConcurrencyConflictError{OrderID: orderID}
	}
	return nil
}

func (tx *txRepo) ClaimEvent(ctx context.Context, key, module string) error {
	return shared.ClaimKey(ctx, tx.tx, key, module)
}

func (tx *txRepo) AppendAudit(ctx context.Context, e audit.Entry) error {
	return audit.Append(ctx, tx.tx, e)
}

func (tx *txRepo) AppendOutbox(ctx context.Context, cmds []dispatch.Command) error {
	return dispatch.AppendTx(ctx, tx.tx, cmds)
}
