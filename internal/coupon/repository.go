package coupon

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
	GetByCode(ctx context.Context, code string) (*Coupon, error)
	LockByID(ctx context.Context, id int64) (*Coupon, error)
	HasRedemption(ctx context.Context, couponID, customerID int64) (bool, error)
	InsertRedemption(ctx context.Context, couponID, customerID, orderID int64) (int64, error)
	IncrementUsed(ctx context.Context, couponID int64) (bool, error)
	DeleteRedemptionByOrder(ctx context.Context, orderID int64) (couponID int64, found bool, err error)
	DecrementUsed(ctx context.Context, couponID int64) error
}

type repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) Repository {
	return &repository{db: db}
}

const couponColumns = `id, code, discount_kind, value, usage_limit, used, valid_from, valid_until`

func scanCoupon(row *sql.Row) (*Coupon, error) {
	var c Coupon
	err := row.Scan(&c.ID, &c.Code, &c.Kind, &c.Value, &c.UsageLimit, &c.Used, &c.ValidFrom, &c.ValidUntil)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrCouponNotFound
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *repository) GetByCode(ctx context.Context, code string) (*Coupon, error) {
	row := db.Conn(ctx, r.db).QueryRowContext(ctx,
		`SELECT `+couponColumns+` FROM coupons WHERE code = $1`, code)
	return scanCoupon(row)
}

func (r *repository) LockByID(ctx context.Context, id int64) (*Coupon, error) {
	row := db.Conn(ctx, r.db).QueryRowContext(ctx,
		`SELECT `+couponColumns+` FROM coupons WHERE id = $1 FOR UPDATE`, id)
	return scanCoupon(row)
}

func (r *repository) HasRedemption(ctx context.Context, couponID, customerID int64) (bool, error) {
	var exists bool
	err := db.Conn(ctx, r.db).QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM coupon_redemptions WHERE coupon_id = $1 AND customer_id = $2)`,
		couponID, customerID,
	).Scan(&exists)
	return exists, err
}

func (r *repository) InsertRedemption(ctx context.Context, couponID, customerID, orderID int64) (int64, error) {
	log := logger.FromCtx(ctx).With(
		zap.String("layer", "repository"),
		zap.String("method", "InsertRedemption"),
		zap.Int64("coupon_id", couponID),
		zap.Int64("customer_id", customerID),
	)

	var id int64
	err := db.Conn(ctx, r.db).QueryRowContext(ctx, `
		INSERT INTO coupon_redemptions (coupon_id, customer_id, order_id)
		VALUES ($1, $2, $3)
		RETURNING id
	`, couponID, customerID, orderID).Scan(&id)
	if apperr.IsUniqueViolation(err, redemptionConstraint) {
		log.Info("duplicate redemption rejected")
		return 0, ErrAlreadyRedeemed
	}
	if err != nil {
		log.Error("failed to insert redemption", zap.Error(err))
		return 0, err
	}
	return id, nil
}

// IncrementUsed bumps the usage counter unless the limit is reached.
func (r *repository) IncrementUsed(ctx context.Context, couponID int64) (bool, error) {
	res, err := db.Conn(ctx, r.db).ExecContext(ctx, `
		UPDATE coupons SET used = used + 1
		WHERE id = $1 AND used < usage_limit
	`, couponID)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func (r *repository) DeleteRedemptionByOrder(ctx context.Context, orderID int64) (int64, bool, error) {
	var couponID int64
	err := db.Conn(ctx, r.db).QueryRowContext(ctx,
		`DELETE FROM coupon_redemptions WHERE order_id = $1 RETURNING coupon_id`, orderID,
	).Scan(&couponID)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	return couponID, true, nil
}

func (r *repository) DecrementUsed(ctx context.Context, couponID int64) error {
	res, err := db.Conn(ctx, r.db).ExecContext(ctx,
		`UPDATE coupons SET used = used - 1 WHERE id = $1 AND used > 0`, couponID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrCouponNotFound
	}
	return nil
}
