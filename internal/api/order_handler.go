package api

import (
	"fmt"
	"time"

	"storefront-be/internal/apperr"
	"storefront-be/internal/delivery"
	"storefront-be/internal/order"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

var errCustomerMismatch = fmt.Errorf("customer_id does not match the caller: %w", apperr.ErrForbidden)

type orderLine struct {
	ProductID int64 `json:"product_id" binding:"required,gt=0"`
	Quantity  int   `json:"quantity"`
	// Price is what the client saw; totals are always recomputed.
	Price *decimal.Decimal `json:"price"`
}

type placeOrderRequest struct {
	CustomerID      *int64      `json:"customer_id"`
	AddressID       int64       `json:"address_id" binding:"required,gt=0"`
	PaymentMethodID *int64      `json:"payment_method_id"`
	Items           []orderLine `json:"items" binding:"omitempty,dive"`
	CouponCode      string      `json:"coupon_code"`
}

func (h *Handler) PlaceOrder(c *gin.Context) {
	var req placeOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, err)
		return
	}

	customerID := currentUser(c)
	if req.CustomerID != nil && *req.CustomerID != customerID {
		Fail(c, errCustomerMismatch)
		return
	}

	lines := make([]order.LineInput, 0, len(req.Items))
	for _, it := range req.Items {
		lines = append(lines, order.LineInput{ProductID: it.ProductID, Quantity: it.Quantity})
	}

	o, err := h.orders.PlaceOrder(c.Request.Context(), order.PlaceOrderInput{
		CustomerID:      customerID,
		AddressID:       req.AddressID,
		PaymentMethodID: req.PaymentMethodID,
		Items:           lines,
		CouponCode:      req.CouponCode,
	})
	if err != nil {
		Fail(c, err)
		return
	}
	Success(c, o)
}

func (h *Handler) CancelOrder(c *gin.Context) {
	id, ok := bindOrderID(c)
	if !ok {
		return
	}

	o, err := h.orders.Cancel(c.Request.Context(), id, order.Actor{
		Kind:   order.ActorCustomer,
		UserID: currentUser(c),
	})
	if err != nil {
		Fail(c, err)
		return
	}
	Success(c, o)
}

func (h *Handler) TrackOrder(c *gin.Context) {
	id, ok := bindOrderID(c)
	if !ok {
		return
	}

	view, err := h.orders.Track(c.Request.Context(), id)
	if err != nil {
		Fail(c, err)
		return
	}
	Success(c, view)
}

type shippingRequest struct {
	Courier           string     `json:"courier_name"`
	TrackingID        string     `json:"tracking_id"`
	EstimatedDelivery *time.Time `json:"estimated_delivery"`
	Notes             string     `json:"notes"`
}

type adminStatusRequest struct {
	Status   order.Status     `json:"status" binding:"required,oneof=approved shipped cancelled"`
	Shipping *shippingRequest `json:"shipping"`
	RiderID  int64            `json:"rider_id"`
}

type shippedOrder struct {
	*order.Order
	Assignment *delivery.Assignment `json:"assignment"`
}

func (h *Handler) AdminUpdateOrderStatus(c *gin.Context) {
	id, ok := bindOrderID(c)
	if !ok {
		return
	}
	var req adminStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, err)
		return
	}

	ctx := c.Request.Context()
	switch req.Status {
	case order.StatusApproved:
		o, err := h.orders.Approve(ctx, id)
		if err != nil {
			Fail(c, err)
			return
		}
		Success(c, o)

	case order.StatusShipped:
		in := order.ShipInput{PublicID: id, RiderID: req.RiderID}
		if req.Shipping != nil {
			in.Courier = req.Shipping.Courier
			in.TrackingID = req.Shipping.TrackingID
			in.EstimatedDelivery = req.Shipping.EstimatedDelivery
			in.Notes = req.Shipping.Notes
		}
		o, a, err := h.orders.Ship(ctx, in)
		if err != nil {
			Fail(c, err)
			return
		}
		Success(c, shippedOrder{Order: o, Assignment: a})

	case order.StatusCancelled:
		o, err := h.orders.Cancel(ctx, id, order.Actor{Kind: order.ActorAdmin, UserID: currentUser(c)})
		if err != nil {
			Fail(c, err)
			return
		}
		Success(c, o)
	}
}

type assignRequest struct {
	RiderID int64  `json:"rider_id" binding:"required,gt=0"`
	Notes   string `json:"notes"`
}

// AdminAssignRider hands a shipped order to another rider.
func (h *Handler) AdminAssignRider(c *gin.Context) {
	id, ok := bindOrderID(c)
	if !ok {
		return
	}
	var req assignRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, err)
		return
	}

	a, err := h.orders.Reassign(c.Request.Context(), id, req.RiderID, req.Notes)
	if err != nil {
		Fail(c, err)
		return
	}
	Success(c, a)
}

