package cart

import (
	"fmt"

	"storefront-be/internal/apperr"
	"storefront-be/internal/inventory"
)

var (
	// -- Validation & Input --
	ErrInvalidQuantity = inventory.ErrInvalidQuantity

	// -- Resource State --
	ErrCartEmpty        = fmt.Errorf("cart is empty: %w", apperr.ErrValidation)
	ErrCartItemNotFound = fmt.Errorf("cart item %w", apperr.ErrNotFound)

	// -- Constraints --
	activeCartConstraint = "carts_one_active_per_user"
)
