package coupon

import (
	"time"

	"github.com/shopspring/decimal"
)

type DiscountKind string

const (
	KindPercentage DiscountKind = "percentage"
	KindFixed      DiscountKind = "fixed"
)

type Coupon struct {
	ID         int64
	Code       string
	Kind       DiscountKind
	Value      decimal.Decimal
	UsageLimit int
	Used       int
	ValidFrom  time.Time
	ValidUntil time.Time
}

// Quote is the outcome of a successful validation.
type Quote struct {
	CouponID       int64           `json:"coupon_id"`
	Code           string          `json:"code"`
	DiscountAmount decimal.Decimal `json:"discount_amount"`
	FinalAmount    decimal.Decimal `json:"final_amount"`
}

// Discount computes the amount taken off orderAmount, rounded half-up to
// two decimals. No discount exceeds the order amount.
func (c *Coupon) Discount(orderAmount decimal.Decimal) decimal.Decimal {
	switch c.Kind {
	case KindPercentage:
		off := orderAmount.Mul(c.Value).Div(decimal.NewFromInt(100)).Round(2)
		return decimal.Min(off, orderAmount)
	case KindFixed:
		return decimal.Min(c.Value, orderAmount).Round(2)
	default:
		return decimal.Zero
	}
}
