package order

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"storefront-be/internal/apperr"
	"storefront-be/internal/db"
	"storefront-be/internal/logger"

	"go.uber.org/zap"
)

type Repository interface {
	InsertOrder(ctx context.Context, o *Order) error
	InsertItems(ctx context.Context, orderID int64, items []Item) error

	GetByPublicID(ctx context.Context, publicID string) (*Order, error)
	LockByPublicID(ctx context.Context, publicID string) (*Order, error)
	LockByID(ctx context.Context, id int64) (*Order, error)
	ListItems(ctx context.Context, orderID int64) ([]Item, error)

	UpdateStatus(ctx context.Context, id int64, status Status) error
	// SetGatewayTransaction only writes a NULL column.
	SetGatewayTransaction(ctx context.Context, id int64, txnID string) error

	UpsertShipping(ctx context.Context, orderID int64, info *ShippingInfo) error
	GetShipping(ctx context.Context, orderID int64) (*ShippingInfo, error)

	Recipient(ctx context.Context, orderID int64) (*Recipient, error)
	ListStalePending(ctx context.Context, before time.Time, limit int) ([]string, error)
}

type repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) Repository {
	return &repository{db: db}
}

const orderColumns = `id, public_id, customer_id, ordered_at, subtotal, discount, total_price, address_id,
	payment_method_id, coupon_id, status, gateway_transaction_id, updated_at`

func scanOrder(row *sql.Row) (*Order, error) {
	var (
		o         Order
		paymentID sql.NullInt64
		couponID  sql.NullInt64
		txnID     sql.NullString
	)
	err := row.Scan(
		&o.ID, &o.PublicID, &o.CustomerID, &o.OrderedAt, &o.Subtotal, &o.Discount, &o.TotalPrice,
		&o.AddressID, &paymentID, &couponID, &o.Status, &txnID, &o.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrOrderNotFound
	}
	if err != nil {
		return nil, err
	}
	if paymentID.Valid {
		o.PaymentMethodID = &paymentID.Int64
	}
	if couponID.Valid {
		o.CouponID = &couponID.Int64
	}
	if txnID.Valid {
		o.GatewayTransactionID = &txnID.String
	}
	return &o, nil
}

func (r *repository) InsertOrder(ctx context.Context, o *Order) error {
	err := db.Conn(ctx, r.db).QueryRowContext(ctx, `
		INSERT INTO orders (
			public_id, customer_id, subtotal, discount, total_price,
			address_id, payment_method_id, coupon_id, status
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id, ordered_at, updated_at
	`,
		o.PublicID, o.CustomerID, o.Subtotal, o.Discount, o.TotalPrice,
		o.AddressID, o.PaymentMethodID, o.CouponID, o.Status,
	).Scan(&o.ID, &o.OrderedAt, &o.UpdatedAt)
	if err != nil && !apperr.IsUniqueViolation(err, publicIDConstraint) {
		logger.FromCtx(ctx).Error("failed to insert order",
			zap.String("layer", "repository"),
			zap.Int64("customer_id", o.CustomerID),
			zap.Error(err),
		)
	}
	return err
}

func (r *repository) InsertItems(ctx context.Context, orderID int64, items []Item) error {
	conn := db.Conn(ctx, r.db)
	for _, it := range items {
		_, err := conn.ExecContext(ctx, `
			INSERT INTO order_items (order_id, product_id, product_name, quantity, unit_price)
			VALUES ($1, $2, $3, $4, $5)
		`, orderID, it.ProductID, it.ProductName, it.Quantity, it.UnitPrice)
		if err != nil {
			logger.FromCtx(ctx).Error("failed to insert order item",
				zap.String("layer", "repository"),
				zap.Int64("order_id", orderID),
				zap.Int64("product_id", it.ProductID),
				zap.Error(err),
			)
			return err
		}
	}
	return nil
}

func (r *repository) GetByPublicID(ctx context.Context, publicID string) (*Order, error) {
	o, err := scanOrder(db.Conn(ctx, r.db).QueryRowContext(ctx,
		`SELECT `+orderColumns+` FROM orders WHERE public_id = $1`, publicID))
	if err != nil {
		return nil, err
	}
	o.Items, err = r.ListItems(ctx, o.ID)
	if err != nil {
		return nil, err
	}
	return o, nil
}

// LockByPublicID takes the order row lock every mutating command starts with.
func (r *repository) LockByPublicID(ctx context.Context, publicID string) (*Order, error) {
	return scanOrder(db.Conn(ctx, r.db).QueryRowContext(ctx,
		`SELECT `+orderColumns+` FROM orders WHERE public_id = $1 FOR UPDATE`, publicID))
}

func (r *repository) LockByID(ctx context.Context, id int64) (*Order, error) {
	return scanOrder(db.Conn(ctx, r.db).QueryRowContext(ctx,
		`SELECT `+orderColumns+` FROM orders WHERE id = $1 FOR UPDATE`, id))
}

func (r *repository) ListItems(ctx context.Context, orderID int64) ([]Item, error) {
	rows, err := db.Conn(ctx, r.db).QueryContext(ctx, `
		SELECT product_id, product_name, quantity, unit_price
		FROM order_items
		WHERE order_id = $1
		ORDER BY product_id ASC, id ASC
	`, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []Item
	for rows.Next() {
		var it Item
		if err := rows.Scan(&it.ProductID, &it.ProductName, &it.Quantity, &it.UnitPrice); err != nil {
			return nil, err
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

func (r *repository) UpdateStatus(ctx context.Context, id int64, status Status) error {
	res, err := db.Conn(ctx, r.db).ExecContext(ctx,
		`UPDATE orders SET status = $1, updated_at = NOW() WHERE id = $2`, status, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrOrderNotFound
	}
	return nil
}

func (r *repository) SetGatewayTransaction(ctx context.Context, id int64, txnID string) error {
	res, err := db.Conn(ctx, r.db).ExecContext(ctx, `
		UPDATE orders SET gateway_transaction_id = $1, updated_at = NOW()
		WHERE id = $2 AND gateway_transaction_id IS NULL
	`, txnID, id)
	if apperr.IsUniqueViolation(err, gatewayTxnConstraint) {
		return ErrTransactionConflict
	}
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrTransactionConflict
	}
	return nil
}

func (r *repository) UpsertShipping(ctx context.Context, orderID int64, info *ShippingInfo) error {
	return db.Conn(ctx, r.db).QueryRowContext(ctx, `
		INSERT INTO shipping_info (order_id, courier_name, tracking_id, estimated_delivery, notes)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (order_id) DO UPDATE
		SET courier_name = EXCLUDED.courier_name,
		    tracking_id = EXCLUDED.tracking_id,
		    estimated_delivery = EXCLUDED.estimated_delivery,
		    notes = EXCLUDED.notes,
		    shipped_at = NOW()
		RETURNING shipped_at
	`, orderID, info.Courier, info.TrackingID, info.EstimatedDelivery, info.Notes,
	).Scan(&info.ShippedAt)
}

func (r *repository) GetShipping(ctx context.Context, orderID int64) (*ShippingInfo, error) {
	var info ShippingInfo
	err := db.Conn(ctx, r.db).QueryRowContext(ctx, `
		SELECT courier_name, tracking_id, estimated_delivery, notes, shipped_at
		FROM shipping_info
		WHERE order_id = $1
	`, orderID).Scan(&info.Courier, &info.TrackingID, &info.EstimatedDelivery, &info.Notes, &info.ShippedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &info, nil
}

func (r *repository) Recipient(ctx context.Context, orderID int64) (*Recipient, error) {
	var rc Recipient
	err := db.Conn(ctx, r.db).QueryRowContext(ctx, `
		SELECT u.email, u.full_name
		FROM orders o
		JOIN users u ON u.id = o.customer_id
		WHERE o.id = $1
	`, orderID).Scan(&rc.Email, &rc.Name)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrOrderNotFound
	}
	if err != nil {
		return nil, err
	}
	return &rc, nil
}

// ListStalePending returns public ids of pending orders placed before the cutoff, oldest first.
func (r *repository) ListStalePending(ctx context.Context, before time.Time, limit int) ([]string, error) {
	rows, err := db.Conn(ctx, r.db).QueryContext(ctx, `
		SELECT public_id
		FROM orders
		WHERE status = 'pending' AND ordered_at < $1
		ORDER BY ordered_at ASC
		LIMIT $2
	`, before, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
