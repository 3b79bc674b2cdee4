package api

import (
	"storefront-be/internal/address"

	"github.com/gin-gonic/gin"
)

func (h *Handler) ListAddresses(c *gin.Context) {
	list, err := h.addresses.List(c.Request.Context())
	if err != nil {
		Fail(c, err)
		return
	}
	if list == nil {
		list = []*address.Address{}
	}
	Success(c, list)
}

func (h *Handler) CreateAddress(c *gin.Context) {
	var req address.CreateAddressInput
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, err)
		return
	}

	a, err := h.addresses.Create(c.Request.Context(), req)
	if err != nil {
		Fail(c, err)
		return
	}
	Success(c, a)
}

type addressURI struct {
	ID int64 `uri:"id" binding:"required,min=1"`
}

func bindAddressID(c *gin.Context) (int64, bool) {
	var uri addressURI
	if err := c.ShouldBindUri(&uri); err != nil {
		Fail(c, address.ErrAddressNotFound)
		return 0, false
	}
	return uri.ID, true
}

func (h *Handler) GetAddress(c *gin.Context) {
	id, ok := bindAddressID(c)
	if !ok {
		return
	}

	a, err := h.addresses.Get(c.Request.Context(), id)
	if err != nil {
		Fail(c, err)
		return
	}
	Success(c, a)
}

func (h *Handler) DeleteAddress(c *gin.Context) {
	id, ok := bindAddressID(c)
	if !ok {
		return
	}

	if err := h.addresses.Delete(c.Request.Context(), id); err != nil {
		Fail(c, err)
		return
	}
	Success(c, gin.H{"id": id})
}

func (h *Handler) SetDefaultAddress(c *gin.Context) {
	id, ok := bindAddressID(c)
	if !ok {
		return
	}

	if err := h.addresses.SetDefaultAddress(c.Request.Context(), id); err != nil {
		Fail(c, err)
		return
	}
	Success(c, gin.H{"id": id, "is_default": true})
}
