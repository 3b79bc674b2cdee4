package cart

import (
	"context"
	"database/sql"
	"errors"

	"storefront-be/internal/apperr"
	"storefront-be/internal/db"
	"storefront-be/internal/logger"

	"go.uber.org/zap"
)

type Repository interface {
	ActiveCartID(ctx context.Context, userID int64) (int64, bool, error)
	CreateCart(ctx context.Context, userID int64) (int64, error)
	UpsertItem(ctx context.Context, cartID, productID int64, quantity int) error
	DeleteItem(ctx context.Context, cartID, productID int64) error
	Items(ctx context.Context, userID int64) ([]Item, error)
	SoftDeleteActive(ctx context.Context, userID int64) error
}

type repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) Repository {
	return &repository{db: db}
}

func (r *repository) ActiveCartID(ctx context.Context, userID int64) (int64, bool, error) {
	var id int64
	err := db.Conn(ctx, r.db).QueryRowContext(ctx,
		`SELECT id FROM carts WHERE user_id = $1 AND deleted_at IS NULL`, userID,
	).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	return id, true, nil
}

// CreateCart opens a cart for the user. A concurrent creator winning the
// race is not an error; its cart is returned instead.
func (r *repository) CreateCart(ctx context.Context, userID int64) (int64, error) {
	var id int64
	err := db.Conn(ctx, r.db).QueryRowContext(ctx,
		`INSERT INTO carts (user_id) VALUES ($1) RETURNING id`, userID,
	).Scan(&id)
	if apperr.IsUniqueViolation(err, activeCartConstraint) {
		existing, found, err := r.ActiveCartID(ctx, userID)
		if err != nil {
			return 0, err
		}
		if !found {
			return 0, ErrCartItemNotFound
		}
		return existing, nil
	}
	if err != nil {
		logger.FromCtx(ctx).Error("failed to create cart",
			zap.String("layer", "repository"),
			zap.Int64("user_id", userID),
			zap.Error(err),
		)
		return 0, err
	}
	return id, nil
}

// UpsertItem sets the line quantity. A product newly placed in the cart
// bumps its add_to_cart_count; a quantity change on an existing line does not.
func (r *repository) UpsertItem(ctx context.Context, cartID, productID int64, quantity int) error {
	_, err := db.Conn(ctx, r.db).ExecContext(ctx, `
		WITH line AS (
			INSERT INTO cart_items (cart_id, product_id, quantity)
			VALUES ($1, $2, $3)
			ON CONFLICT (cart_id, product_id)
			DO UPDATE SET quantity = EXCLUDED.quantity, updated_at = NOW()
			RETURNING (xmax = 0) AS inserted
		)
		UPDATE products
		SET add_to_cart_count = add_to_cart_count + 1
		WHERE id = $2 AND EXISTS (SELECT 1 FROM line WHERE inserted)
	`, cartID, productID, quantity)
	return err
}

func (r *repository) DeleteItem(ctx context.Context, cartID, productID int64) error {
	res, err := db.Conn(ctx, r.db).ExecContext(ctx,
		`DELETE FROM cart_items WHERE cart_id = $1 AND product_id = $2`, cartID, productID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrCartItemNotFound
	}
	return nil
}

// Items returns the lines of the user's active cart in product id order.
func (r *repository) Items(ctx context.Context, userID int64) ([]Item, error) {
	log := logger.FromCtx(ctx).With(
		zap.String("layer", "repository"),
		zap.String("method", "Items"),
		zap.Int64("user_id", userID),
	)

	rows, err := db.Conn(ctx, r.db).QueryContext(ctx, `
		SELECT ci.product_id, p.name, p.price, ci.quantity, ci.updated_at
		FROM carts c
		JOIN cart_items ci ON ci.cart_id = c.id
		JOIN products p ON p.id = ci.product_id
		WHERE c.user_id = $1 AND c.deleted_at IS NULL
		ORDER BY ci.product_id ASC
	`, userID)
	if err != nil {
		log.Error("failed to query cart items", zap.Error(err))
		return nil, err
	}
	defer rows.Close()

	var items []Item
	for rows.Next() {
		var it Item
		if err := rows.Scan(&it.ProductID, &it.ProductName, &it.UnitPrice, &it.Quantity, &it.UpdatedAt); err != nil {
			return nil, err
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

func (r *repository) SoftDeleteActive(ctx context.Context, userID int64) error {
	_, err := db.Conn(ctx, r.db).ExecContext(ctx,
		`UPDATE carts SET deleted_at = NOW() WHERE user_id = $1 AND deleted_at IS NULL`, userID)
	return err
}
