package payment

import (
	"encoding/json"
	"net/url"
	"time"

	"github.com/shopspring/decimal"
)

const Provider = "SSLCOMMERZ"

// CallbackKind is which of the three gateway return URLs was hit.
type CallbackKind string

const (
	CallbackSuccess CallbackKind = "success"
	CallbackFail    CallbackKind = "fail"
	CallbackCancel  CallbackKind = "cancel"
)

func (k CallbackKind) Valid() bool {
	return k == CallbackSuccess || k == CallbackFail || k == CallbackCancel
}

// Status of a payment row.
type Status string

const (
	StatusInitiated Status = "initiated"
	StatusSession   Status = "session_created"
	StatusPaid      Status = "paid"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
)

type Payment struct {
	ID         int64
	OrderID    int64
	TranID     string
	Amount     decimal.Decimal
	Currency   string
	Status     Status
	SessionKey *string
	GatewayURL *string
	ValID      *string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// Customer is the payer block the gateway asks for.
type Customer struct {
	Name     string `json:"cus_name" binding:"required"`
	Email    string `json:"cus_email" binding:"required,email"`
	Phone    string `json:"cus_phone" binding:"required"`
	Address  string `json:"cus_add1"`
	City     string `json:"cus_city"`
	Postcode string `json:"cus_postcode"`
	Country  string `json:"cus_country"`
}

type CreateSessionInput struct {
	OrderPublicID string
	CustomerID    int64
	Customer      Customer
}

// SessionRequest is what goes to the gateway.
type SessionRequest struct {
	TranID        string
	OrderPublicID string
	Amount        decimal.Decimal
	Currency      string
	ProductName   string
	NumItems      int
	Customer      Customer
}

type Session struct {
	TranID     string `json:"tran_id"`
	OrderID    string `json:"order_id"`
	SessionKey string `json:"sessionkey"`
	GatewayURL string `json:"redirect_url"`
}

// Callback is a parsed success/fail/cancel post.
type Callback struct {
	Kind          CallbackKind
	TranID        string `validate:"required,transaction_id"`
	OrderPublicID string `validate:"required,order_public_id"`
	Status        string
	ValID         string
	Amount        string
	Raw           url.Values
}

// ParseCallback reads the gateway form. value_a carries the order public id.
func ParseCallback(kind CallbackKind, form url.Values) Callback {
	return Callback{
		Kind:          kind,
		TranID:        form.Get("tran_id"),
		OrderPublicID: form.Get("value_a"),
		Status:        form.Get("status"),
		ValID:         form.Get("val_id"),
		Amount:        form.Get("amount"),
		Raw:           form,
	}
}

func (c Callback) Payload() json.RawMessage {
	b, err := json.Marshal(c.Raw)
	if err != nil {
		return json.RawMessage(`{}`)
	}
	return b
}

// Validation is the validator API answer.
type Validation struct {
	Status   string          `json:"status"`
	TranID   string          `json:"tran_id"`
	ValID    string          `json:"val_id"`
	Amount   decimal.Decimal `json:"amount"`
	Currency string          `json:"currency"`
	ValueA   string          `json:"value_a"`
}

// Valid reports whether the validator accepted the transaction. VALIDATED
// means it was already validated once.
func (v *Validation) Valid() bool {
	return v.Status == "VALID" || v.Status == "VALIDATED"
}
