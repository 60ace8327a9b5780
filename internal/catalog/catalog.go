package catalog

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/franferrer12/intramedia-system-sub001/internal/shared"
)

// Product is the reference data resolved at line-creation time. The unit
// price on the order line is copied in by the caller, never re-read later.
type Product struct {
	ID     int64
	Name   string
	Active bool
}

// Port resolves product references for new order lines.
type Port interface {
	Resolve(ctx context.Context, productID int64) (Product, error)
}

// PostgresCatalog resolves products from the shared products table.
type PostgresCatalog struct {
	pool *pgxpool.Pool
}

// NewPostgresCatalog constructs the catalog.
func NewPostgresCatalog(pool *pgxpool.Pool) *PostgresCatalog {
	return &PostgresCatalog{pool: pool}
}

// Resolve loads the product or reports ErrNotFound. Inactive products
// cannot be ordered.
func (c *PostgresCatalog) Resolve(ctx context.Context, productID int64) (Product, error) {
	var p Product
	err := c.pool.QueryRow(ctx, `SELECT id, name, active FROM products WHERE id = $1`, productID).
		Scan(&p.ID, &p.Name, &p.Active)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Product{}, shared.ErrNotFound
		}
		return Product{}, err
	}
	if !p.Active {
		return Product{}, shared.NewValidationError("product_id", "product is inactive")
	}
	return p, nil
}
