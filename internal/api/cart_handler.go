package api

import (
	"storefront-be/internal/cart"

	"github.com/gin-gonic/gin"
)

type setCartItemRequest struct {
	ProductID int64 `json:"product_id" binding:"required,gt=0"`
	// zero removes the line
	Quantity *int `json:"quantity" binding:"required"`
}

func (h *Handler) SetCartItem(c *gin.Context) {
	var req setCartItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, err)
		return
	}

	ct, err := h.carts.SetItem(c.Request.Context(), cart.SetItemParams{
		UserID:    currentUser(c),
		ProductID: req.ProductID,
		Quantity:  *req.Quantity,
	})
	if err != nil {
		Fail(c, err)
		return
	}
	Success(c, ct)
}

func (h *Handler) GetCart(c *gin.Context) {
	ct, err := h.carts.GetCart(c.Request.Context(), currentUser(c))
	if err != nil {
		Fail(c, err)
		return
	}
	Success(c, ct)
}
