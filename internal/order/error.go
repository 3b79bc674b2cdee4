package order

import (
	"fmt"

	"storefront-be/internal/apperr"
)

var (
	// -- Lookup --
	ErrOrderNotFound = fmt.Errorf("order %w", apperr.ErrNotFound)

	// -- Ownership --
	ErrNotOwner              = fmt.Errorf("order belongs to another customer: %w", apperr.ErrForbidden)
	ErrAddressNotOwned       = fmt.Errorf("address %w", apperr.ErrNotFound)
	ErrPaymentMethodNotOwned = fmt.Errorf("payment method %w", apperr.ErrNotFound)

	// -- Validation & Input --
	ErrEmptyOrder       = fmt.Errorf("order has no items: %w", apperr.ErrValidation)
	ErrInvalidQuantity  = fmt.Errorf("order line quantity must be positive: %w", apperr.ErrInvalidQuantity)
	ErrShippingRequired = fmt.Errorf("courier, tracking id and rider are required: %w", apperr.ErrValidation)
	ErrMissingTxnID     = fmt.Errorf("gateway transaction id is required: %w", apperr.ErrValidation)
	ErrUnknownResult    = fmt.Errorf("unknown payment result: %w", apperr.ErrValidation)

	// -- Resource State --
	ErrTransactionConflict = fmt.Errorf("order already paid under another transaction: %w", apperr.ErrConflict)

	// -- Constraints --
	publicIDConstraint   = "orders_public_id_key"
	gatewayTxnConstraint = "orders_gateway_transaction_id_key"
)

func illegal(from Status, ev Event) error {
	return fmt.Errorf("order %s on %s: %w", ev, from, apperr.ErrIllegalTransition)
}
