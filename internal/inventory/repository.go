package inventory

import (
	"context"
	"database/sql"
	"errors"

	"storefront-be/internal/db"
	"storefront-be/internal/logger"

	"go.uber.org/zap"
)

type Repository interface {
	// DecrementStock takes qty off the product if enough is left. ok is false
	// when the product is missing or short.
	DecrementStock(ctx context.Context, productID int64, qty int) (p *Product, ok bool, err error)
	IncrementStock(ctx context.Context, productID int64, qty int) error
	GetProduct(ctx context.Context, productID int64) (*Product, error)
	ListOrderLines(ctx context.Context, orderID int64) ([]Line, error)
}

type repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) Repository {
	return &repository{db: db}
}

func (r *repository) DecrementStock(ctx context.Context, productID int64, qty int) (*Product, bool, error) {
	log := logger.FromCtx(ctx).With(
		zap.String("layer", "repository"),
		zap.String("method", "DecrementStock"),
		zap.Int64("product_id", productID),
	)

	// the UPDATE takes the row lock, so concurrent reservations queue here
	const q = `
		UPDATE products
		SET stock = stock - $1,
		    purchase_count = purchase_count + $1,
		    updated_at = NOW()
		WHERE id = $2 AND stock >= $1
		RETURNING id, name, price, stock
	`

	var p Product
	err := db.Conn(ctx, r.db).QueryRowContext(ctx, q, qty, productID).
		Scan(&p.ID, &p.Name, &p.Price, &p.Stock)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		log.Error("failed to decrement stock", zap.Error(err))
		return nil, false, err
	}

	return &p, true, nil
}

func (r *repository) IncrementStock(ctx context.Context, productID int64, qty int) error {
	const q = `
		UPDATE products
		SET stock = stock + $1,
		    purchase_count = GREATEST(purchase_count - $1, 0),
		    updated_at = NOW()
		WHERE id = $2
	`

	res, err := db.Conn(ctx, r.db).ExecContext(ctx, q, qty, productID)
	if err != nil {
		logger.FromCtx(ctx).Error("failed to restore stock",
			zap.Int64("product_id", productID),
			zap.Error(err),
		)
		return err
	}

	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrProductNotFound
	}
	return nil
}

func (r *repository) GetProduct(ctx context.Context, productID int64) (*Product, error) {
	var p Product
	err := db.Conn(ctx, r.db).QueryRowContext(ctx,
		`SELECT id, name, price, stock FROM products WHERE id = $1`,
		productID,
	).Scan(&p.ID, &p.Name, &p.Price, &p.Stock)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrProductNotFound
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// ListOrderLines returns the order's items ordered by product id.
func (r *repository) ListOrderLines(ctx context.Context, orderID int64) ([]Line, error) {
	rows, err := db.Conn(ctx, r.db).QueryContext(ctx, `
		SELECT product_id, SUM(quantity)
		FROM order_items
		WHERE order_id = $1
		GROUP BY product_id
		ORDER BY product_id ASC
	`, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var lines []Line
	for rows.Next() {
		var l Line
		if err := rows.Scan(&l.ProductID, &l.Quantity); err != nil {
			return nil, err
		}
		lines = append(lines, l)
	}
	return lines, rows.Err()
}
