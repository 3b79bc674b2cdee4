package order

import (
	"time"

	"github.com/shopspring/decimal"
)

type Status string

const (
	StatusPending   Status = "pending"
	StatusApproved  Status = "approved"
	StatusShipped   Status = "shipped"
	StatusDelivered Status = "delivered"
	StatusCancelled Status = "cancelled"
)

func (s Status) Terminal() bool {
	return s == StatusDelivered || s == StatusCancelled
}

type Order struct {
	ID                   int64           `json:"-"`
	PublicID             string          `json:"order_id"`
	CustomerID           int64           `json:"customer_id"`
	OrderedAt            time.Time       `json:"ordered_at"`
	Subtotal             decimal.Decimal `json:"subtotal"`
	Discount             decimal.Decimal `json:"discount"`
	TotalPrice           decimal.Decimal `json:"total_price"`
	AddressID            int64           `json:"address_id"`
	PaymentMethodID      *int64          `json:"payment_method_id,omitempty"`
	CouponID             *int64          `json:"coupon_id,omitempty"`
	Status               Status          `json:"status"`
	GatewayTransactionID *string         `json:"gateway_transaction_id,omitempty"`
	UpdatedAt            time.Time       `json:"updated_at"`
	Items                []Item          `json:"items,omitempty"`
}

type Item struct {
	ProductID   int64           `json:"product_id"`
	ProductName string          `json:"product_name"`
	Quantity    int             `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
}

type LineInput struct {
	ProductID int64
	Quantity  int
}

type PlaceOrderInput struct {
	CustomerID      int64
	AddressID       int64
	PaymentMethodID *int64
	// Items empty means the customer's active cart.
	Items      []LineInput
	CouponCode string
}

type ActorKind string

const (
	ActorCustomer ActorKind = "customer"
	ActorAdmin    ActorKind = "admin"
	ActorSystem   ActorKind = "system"
	ActorRider    ActorKind = "rider"
)

type Actor struct {
	Kind   ActorKind
	UserID int64
}

// PaymentResult is the gateway verdict on a transaction.
type PaymentResult string

const (
	PaymentValid   PaymentResult = "VALID"
	PaymentInvalid PaymentResult = "INVALID"
)

type ShipInput struct {
	PublicID          string
	Courier           string
	TrackingID        string
	EstimatedDelivery *time.Time
	RiderID           int64
	Notes             string
}

type ShippingInfo struct {
	Courier           string     `json:"courier_name"`
	TrackingID        string     `json:"tracking_id"`
	EstimatedDelivery *time.Time `json:"estimated_delivery,omitempty"`
	Notes             string     `json:"notes,omitempty"`
	ShippedAt         time.Time  `json:"shipped_at"`
}

// Recipient is who hears about the order by email.
type Recipient struct {
	Email string
	Name  string
}

type TrackingView struct {
	OrderID    string            `json:"order_id"`
	Status     Status            `json:"status"`
	OrderedAt  time.Time         `json:"ordered_at"`
	TotalPrice decimal.Decimal   `json:"total_price"`
	Items      []Item            `json:"items"`
	Shipping   *ShippingInfo     `json:"shipping,omitempty"`
	Delivery   *TrackingDelivery `json:"delivery,omitempty"`
}

type TrackingDelivery struct {
	AssignmentID      string     `json:"assignment_id"`
	Status            string     `json:"status"`
	RiderName         string     `json:"rider_name,omitempty"`
	VehicleType       string     `json:"vehicle_type,omitempty"`
	VehicleNumber     string     `json:"vehicle_number,omitempty"`
	EstimatedDelivery *time.Time `json:"estimated_delivery,omitempty"`
	ActualDelivery    *time.Time `json:"actual_delivery,omitempty"`
}
