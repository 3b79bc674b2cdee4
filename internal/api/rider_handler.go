package api

import (
	"errors"
	"io"
	"time"

	"storefront-be/internal/delivery"

	"github.com/gin-gonic/gin"
)

// riderTarget resolves the assignment in the path and the calling rider.
func (h *Handler) riderTarget(c *gin.Context) (assignmentID, riderID int64, ok bool) {
	publicID, ok := bindAssignmentID(c)
	if !ok {
		return 0, 0, false
	}

	ctx := c.Request.Context()
	assignmentID, err := h.resolver.AssignmentID(ctx, publicID)
	if err != nil {
		Fail(c, err)
		return 0, 0, false
	}
	rider, err := h.deliveries.RiderForUser(ctx, currentUser(c))
	if err != nil {
		Fail(c, err)
		return 0, 0, false
	}
	return assignmentID, rider.ID, true
}

type acceptRequest struct {
	EstimatedDelivery *time.Time `json:"estimated_delivery"`
}

func (h *Handler) AcceptDelivery(c *gin.Context) {
	var req acceptRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		BadRequest(c, err)
		return
	}
	assignmentID, riderID, ok := h.riderTarget(c)
	if !ok {
		return
	}

	a, err := h.deliveries.Accept(c.Request.Context(), assignmentID, riderID, req.EstimatedDelivery)
	if err != nil {
		Fail(c, err)
		return
	}
	Success(c, a)
}

type rejectRequest struct {
	Reason string `json:"rejection_reason" binding:"required"`
}

func (h *Handler) RejectDelivery(c *gin.Context) {
	var req rejectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, err)
		return
	}
	assignmentID, riderID, ok := h.riderTarget(c)
	if !ok {
		return
	}

	a, err := h.deliveries.Reject(c.Request.Context(), assignmentID, riderID, req.Reason)
	if err != nil {
		Fail(c, err)
		return
	}
	Success(c, a)
}

type deliveryStatusRequest struct {
	Status delivery.Status `json:"status" binding:"required"`
	Notes  string          `json:"delivery_notes"`
}

// UpdateDeliveryStatus advances the assignment; delivered also completes the order.
func (h *Handler) UpdateDeliveryStatus(c *gin.Context) {
	var req deliveryStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, err)
		return
	}
	assignmentID, riderID, ok := h.riderTarget(c)
	if !ok {
		return
	}

	a, err := h.deliveries.UpdateStatus(c.Request.Context(), assignmentID, riderID, req.Status, req.Notes)
	if err != nil {
		Fail(c, err)
		return
	}
	Success(c, a)
}
