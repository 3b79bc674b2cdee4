// Package api exposes the storefront over REST/JSON under /api/v1.
package api

import (
	"context"
	"net/http"

	"storefront-be/internal/address"
	"storefront-be/internal/cart"
	"storefront-be/internal/delivery"
	"storefront-be/internal/metrics"
	"storefront-be/internal/order"
	"storefront-be/internal/payment"
	"storefront-be/internal/payment/webhook"
	"storefront-be/internal/secureid"
	"storefront-be/internal/user"
	"storefront-be/internal/utils"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// AssignmentResolver maps DEL-... ids onto assignment rows.
type AssignmentResolver interface {
	AssignmentID(ctx context.Context, publicID string) (int64, error)
}

type Deps struct {
	Users      user.Service
	Carts      cart.Service
	Addresses  address.Service
	Orders     order.Service
	Payments   payment.Reconciler
	Deliveries delivery.Manager
	Resolver   AssignmentResolver
	// Health reports whether the database answers.
	Health func(ctx context.Context) error
}

type Handler struct {
	users      user.Service
	carts      cart.Service
	addresses  address.Service
	orders     order.Service
	payments   payment.Reconciler
	deliveries delivery.Manager
	resolver   AssignmentResolver
	health     func(ctx context.Context) error
}

func NewHandler(deps Deps) *Handler {
	return &Handler{
		users:      deps.Users,
		carts:      deps.Carts,
		addresses:  deps.Addresses,
		orders:     deps.Orders,
		payments:   deps.Payments,
		deliveries: deps.Deliveries,
		resolver:   deps.Resolver,
		health:     deps.Health,
	}
}

func registerValidators() error {
	v, ok := binding.Validator.Engine().(*validator.Validate)
	if !ok {
		return nil
	}
	return secureid.RegisterValidators(v)
}

// NewRouter wires every route. Identity is expected on the request context
// already; the auth middleware runs in front of the engine.
func NewRouter(h *Handler) (*gin.Engine, error) {
	if err := registerValidators(); err != nil {
		return nil, err
	}

	r := gin.New()
	r.Use(gin.Recovery(), metrics.PrometheusMiddleware())

	r.GET("/health", h.Health)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := r.Group("/api/v1")

	authGroup := v1.Group("/auth")
	authGroup.POST("/register", h.Register)
	authGroup.POST("/login", h.Login)
	authGroup.GET("/me", requireRole(), h.Me)

	hooks := webhook.NewWebhookHandler(h.payments)
	pay := v1.Group("/payments/sslcommerz")
	pay.POST("/create-session", requireRole(utils.RoleCustomer), h.CreatePaymentSession)
	pay.POST("/success", gin.WrapF(hooks.Success()))
	pay.POST("/fail", gin.WrapF(hooks.Fail()))
	pay.POST("/cancel", gin.WrapF(hooks.Cancel()))

	customer := v1.Group("", requireRole(utils.RoleCustomer))
	customer.GET("/carts", h.GetCart)
	customer.POST("/carts/items", h.SetCartItem)
	customer.GET("/addresses", h.ListAddresses)
	customer.POST("/addresses", h.CreateAddress)
	customer.GET("/addresses/:id", h.GetAddress)
	customer.DELETE("/addresses/:id", h.DeleteAddress)
	customer.PUT("/addresses/:id/default", h.SetDefaultAddress)
	customer.POST("/orders", h.PlaceOrder)
	customer.POST("/orders/:id/cancel", h.CancelOrder)

	authed := v1.Group("", requireRole())
	authed.GET("/orders/track/:id", h.TrackOrder)

	admin := v1.Group("/admin", requireRole(utils.RoleAdmin))
	admin.PUT("/orders/:id/status", h.AdminUpdateOrderStatus)
	admin.POST("/orders/:id/assign", h.AdminAssignRider)

	rider := v1.Group("/riders/deliveries", requireRole(utils.RoleRider))
	rider.POST("/:id/accept", h.AcceptDelivery)
	rider.POST("/:id/reject", h.RejectDelivery)
	rider.PUT("/:id/status", h.UpdateDeliveryStatus)

	return r, nil
}

func (h *Handler) Health(c *gin.Context) {
	if h.health != nil {
		if err := h.health(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, Response{Message: "database unavailable"})
			return
		}
	}
	Success(c, gin.H{"status": "ok"})
}
