package api

import (
	"storefront-be/internal/payment"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

type createSessionRequest struct {
	OrderID string `json:"order_id" binding:"required,order_public_id"`
	// TotalAmount is ignored; the stored order total is charged.
	TotalAmount *decimal.Decimal `json:"total_amount"`
	payment.Customer
}

func (h *Handler) CreatePaymentSession(c *gin.Context) {
	var req createSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, err)
		return
	}

	s, err := h.payments.CreateSession(c.Request.Context(), payment.CreateSessionInput{
		OrderPublicID: req.OrderID,
		CustomerID:    currentUser(c),
		Customer:      req.Customer,
	})
	if err != nil {
		Fail(c, err)
		return
	}
	Success(c, s)
}
