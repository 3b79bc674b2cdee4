// Package apperr holds the error kinds shared by every domain package and
// their mapping onto HTTP status codes.
package apperr

import (
	"errors"
	"net/http"

	"github.com/lib/pq"
)

var (
	// -- Lookup --
	ErrNotFound = errors.New("not found")

	// -- State machine --
	ErrIllegalTransition = errors.New("illegal transition")
	ErrConflict          = errors.New("conflict")

	// -- Inventory --
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrInvalidQuantity   = errors.New("invalid quantity")

	// -- Coupons --
	ErrAlreadyRedeemed = errors.New("coupon already redeemed")
	ErrExhausted       = errors.New("coupon usage exhausted")
	ErrExpired         = errors.New("coupon expired")
	ErrNotYetActive    = errors.New("coupon not yet active")

	// -- Input --
	ErrValidation = errors.New("validation failed")

	// -- Upstream --
	ErrGateway = errors.New("payment gateway error")

	// -- Authentication/Authorization --
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")
)

// -- Constants (External Systems) --
const PgUniqueViolation = "23505"

var statusByKind = []struct {
	kind   error
	status int
}{
	{ErrNotFound, http.StatusNotFound},
	{ErrIllegalTransition, http.StatusConflict},
	{ErrInsufficientStock, http.StatusConflict},
	{ErrAlreadyRedeemed, http.StatusConflict},
	{ErrConflict, http.StatusConflict},
	{ErrExhausted, http.StatusBadRequest},
	{ErrExpired, http.StatusBadRequest},
	{ErrNotYetActive, http.StatusBadRequest},
	{ErrInvalidQuantity, http.StatusBadRequest},
	{ErrValidation, http.StatusBadRequest},
	{ErrGateway, http.StatusBadGateway},
	{ErrUnauthorized, http.StatusUnauthorized},
	{ErrForbidden, http.StatusForbidden},
}

// HTTPStatus maps err onto the status code of its kind. Unknown errors are 500.
func HTTPStatus(err error) int {
	for _, k := range statusByKind {
		if errors.Is(err, k.kind) {
			return k.status
		}
	}
	return http.StatusInternalServerError
}

// IsUniqueViolation reports whether err is a postgres unique violation. When
// constraint is non-empty the violated constraint must match it.
func IsUniqueViolation(err error, constraint string) bool {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) {
		return false
	}
	if pqErr.Code != PgUniqueViolation {
		return false
	}
	return constraint == "" || pqErr.Constraint == constraint
}
