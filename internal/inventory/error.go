package inventory

import (
	"fmt"

	"storefront-be/internal/apperr"
)

var (
	ErrProductNotFound   = fmt.Errorf("product %w", apperr.ErrNotFound)
	ErrInsufficientStock = apperr.ErrInsufficientStock
	ErrInvalidQuantity   = fmt.Errorf("quantity must be greater than zero: %w", apperr.ErrInvalidQuantity)
)
