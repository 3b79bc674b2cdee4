package inventory

import "github.com/shopspring/decimal"

type Product struct {
	ID    int64
	Name  string
	Price decimal.Decimal
	Stock int
}

// Line is one product/quantity pair of an order.
type Line struct {
	ProductID int64
	Quantity  int
}
