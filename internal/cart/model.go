package cart

import (
	"time"

	"github.com/shopspring/decimal"
)

type Cart struct {
	ID     int64  `json:"id"`
	UserID int64  `json:"-"`
	Items  []Item `json:"items"`
}

type Item struct {
	ProductID   int64           `json:"product_id"`
	ProductName string          `json:"product_name"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	Quantity    int             `json:"quantity"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

type SetItemParams struct {
	UserID    int64
	ProductID int64
	// Quantity zero removes the line.
	Quantity int
}
