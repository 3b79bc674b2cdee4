package coupon

import (
	"context"
	"strings"
	"time"

	"storefront-be/internal/logger"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type Engine interface {
	Validate(ctx context.Context, code string, customerID int64, orderAmount decimal.Decimal, now time.Time) (*Quote, error)
	// Redeem must run inside the transaction that places the order.
	Redeem(ctx context.Context, couponID, customerID, orderID int64) (int64, error)
	// Release drops the order's redemption, if any, and gives the use back.
	Release(ctx context.Context, orderID int64) error
}

type engine struct {
	repo Repository
}

func NewEngine(repo Repository) Engine {
	return &engine{repo: repo}
}

func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

func (e *engine) Validate(
	ctx context.Context,
	code string,
	customerID int64,
	orderAmount decimal.Decimal,
	now time.Time,
) (*Quote, error) {
	log := logger.FromCtx(ctx).With(
		zap.String("layer", "service"),
		zap.String("method", "Validate"),
		zap.String("code", code),
		zap.Int64("customer_id", customerID),
	)

	// 1. Look up
	c, err := e.repo.GetByCode(ctx, NormalizeCode(code))
	if err != nil {
		return nil, err
	}

	// 2. Validity window
	if now.Before(c.ValidFrom) {
		return nil, ErrNotYetActive
	}
	if now.After(c.ValidUntil) {
		return nil, ErrExpired
	}

	// 3. Usage
	if c.Used >= c.UsageLimit {
		return nil, ErrExhausted
	}

	// 4. One per customer
	redeemed, err := e.repo.HasRedemption(ctx, c.ID, customerID)
	if err != nil {
		return nil, err
	}
	if redeemed {
		return nil, ErrAlreadyRedeemed
	}

	// 5. Price
	discount := c.Discount(orderAmount)
	quote := &Quote{
		CouponID:       c.ID,
		Code:           c.Code,
		DiscountAmount: discount,
		FinalAmount:    orderAmount.Sub(discount),
	}

	log.Debug("coupon validated",
		zap.String("discount", discount.StringFixed(2)),
		zap.String("final", quote.FinalAmount.StringFixed(2)),
	)
	return quote, nil
}

func (e *engine) Redeem(ctx context.Context, couponID, customerID, orderID int64) (int64, error) {
	log := logger.FromCtx(ctx).With(
		zap.String("layer", "service"),
		zap.String("method", "Redeem"),
		zap.Int64("coupon_id", couponID),
		zap.Int64("order_id", orderID),
	)

	c, err := e.repo.LockByID(ctx, couponID)
	if err != nil {
		return 0, err
	}
	if c.Used >= c.UsageLimit {
		return 0, ErrExhausted
	}

	// the insert goes first so a duplicate never touches the counter
	redemptionID, err := e.repo.InsertRedemption(ctx, couponID, customerID, orderID)
	if err != nil {
		return 0, err
	}

	ok, err := e.repo.IncrementUsed(ctx, couponID)
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, ErrExhausted
	}

	log.Info("coupon redeemed", zap.Int64("redemption_id", redemptionID))
	return redemptionID, nil
}

func (e *engine) Release(ctx context.Context, orderID int64) error {
	couponID, found, err := e.repo.DeleteRedemptionByOrder(ctx, orderID)
	if err != nil || !found {
		return err
	}

	if _, err := e.repo.LockByID(ctx, couponID); err != nil {
		return err
	}
	if err := e.repo.DecrementUsed(ctx, couponID); err != nil {
		return err
	}

	logger.FromCtx(ctx).Info("coupon released",
		zap.String("layer", "service"),
		zap.Int64("coupon_id", couponID),
		zap.Int64("order_id", orderID),
	)
	return nil
}
