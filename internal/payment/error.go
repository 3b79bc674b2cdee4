package payment

import (
	"fmt"

	"storefront-be/internal/apperr"
)

var (
	ErrPaymentNotFound   = fmt.Errorf("payment %w", apperr.ErrNotFound)
	ErrGatewayRejected   = fmt.Errorf("gateway refused the session: %w", apperr.ErrGateway)
	ErrGatewayResponse   = fmt.Errorf("unreadable gateway response: %w", apperr.ErrGateway)
	ErrNotValidated      = fmt.Errorf("transaction not validated by gateway: %w", apperr.ErrValidation)
	ErrAmountMismatch    = fmt.Errorf("paid amount does not match order total: %w", apperr.ErrValidation)
	ErrTranMismatch      = fmt.Errorf("transaction id does not match: %w", apperr.ErrValidation)
	ErrUnknownCallback   = fmt.Errorf("unknown callback kind: %w", apperr.ErrValidation)
	ErrMalformedCallback = fmt.Errorf("callback without a well-formed tran_id and value_a: %w", apperr.ErrValidation)
	ErrOrderNotPayable   = fmt.Errorf("order is not awaiting payment: %w", apperr.ErrIllegalTransition)

	tranIDConstraint = "payments_tran_id_key"
)
