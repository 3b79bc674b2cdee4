package coupon

import (
	"fmt"

	"storefront-be/internal/apperr"
)

var (
	ErrCouponNotFound  = fmt.Errorf("coupon %w", apperr.ErrNotFound)
	ErrExpired         = apperr.ErrExpired
	ErrNotYetActive    = apperr.ErrNotYetActive
	ErrExhausted       = apperr.ErrExhausted
	ErrAlreadyRedeemed = apperr.ErrAlreadyRedeemed

	// constraint guarding one redemption per (coupon, customer)
	redemptionConstraint = "coupon_redemptions_coupon_id_customer_id_key"
)
