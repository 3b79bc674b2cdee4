package address

import (
	"fmt"
	"time"

	"storefront-be/internal/apperr"
)

var (
	ErrAddressNotFound = fmt.Errorf("address: %w", apperr.ErrNotFound)
	ErrUnauthenticated = fmt.Errorf("address: %w", apperr.ErrUnauthorized)
)

type Address struct {
	ID     int64 `json:"id"`
	UserID int64 `json:"user_id"`

	Name  string `json:"name"`
	Phone string `json:"phone"`

	Address1 string  `json:"address_line1"`
	Address2 *string `json:"address_line2,omitempty"`

	City     string `json:"city"`
	Province string `json:"province"`
	Postal   string `json:"postal_code"`
	Country  string `json:"country"`

	IsDefault bool      `json:"is_default"`
	IsActive  bool      `json:"-"`
	CreatedAt time.Time `json:"created_at"`
}

type CreateAddressInput struct {
	Name         string  `json:"name" binding:"required"`
	Phone        string  `json:"phone" binding:"required"`
	AddressLine1 string  `json:"address_line1" binding:"required"`
	AddressLine2 *string `json:"address_line2"`
	City         string  `json:"city" binding:"required"`
	Province     string  `json:"province"`
	PostalCode   string  `json:"postal_code"`
	Country      string  `json:"country"`
	SetAsDefault bool    `json:"set_as_default"`
}
