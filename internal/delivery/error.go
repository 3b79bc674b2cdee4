package delivery

import (
	"fmt"

	"storefront-be/internal/apperr"
)

var (
	// -- Lookup --
	ErrAssignmentNotFound = fmt.Errorf("delivery assignment %w", apperr.ErrNotFound)
	ErrRiderNotFound      = fmt.Errorf("rider %w", apperr.ErrNotFound)
	ErrOrderNotFound      = fmt.Errorf("order %w", apperr.ErrNotFound)

	// -- Ownership --
	ErrNotAssignedRider = fmt.Errorf("assignment belongs to another rider: %w", apperr.ErrForbidden)

	// -- Resource State --
	ErrAlreadyAssigned = fmt.Errorf("order already has an active assignment: %w", apperr.ErrConflict)
	ErrRiderInactive   = fmt.Errorf("rider is not active: %w", apperr.ErrConflict)

	// -- Input --
	ErrUnknownStatus = fmt.Errorf("unknown assignment status: %w", apperr.ErrValidation)

	// -- Constraints --
	publicIDConstraint = "delivery_assignments_public_id_key"
)

func illegal(from, to Status) error {
	return fmt.Errorf("assignment %s -> %s: %w", from, to, apperr.ErrIllegalTransition)
}
