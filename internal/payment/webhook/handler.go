// Package webhook receives the SSLCommerz browser and server posts.
package webhook

import (
	"net/http"

	"storefront-be/internal/logger"
	"storefront-be/internal/payment"

	"go.uber.org/zap"
)

// maxFormBytes bounds a callback body.
const maxFormBytes = 64 << 10

type Handler struct {
	Reconciler payment.Reconciler
}

func NewWebhookHandler(rec payment.Reconciler) *Handler {
	return &Handler{Reconciler: rec}
}

// Success, Fail and Cancel are the three return URLs registered with the gateway.
func (h *Handler) Success() http.HandlerFunc {
	return h.callback(payment.CallbackSuccess)
}

func (h *Handler) Fail() http.HandlerFunc {
	return h.callback(payment.CallbackFail)
}

func (h *Handler) Cancel() http.HandlerFunc {
	return h.callback(payment.CallbackCancel)
}

func (h *Handler) callback(kind payment.CallbackKind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		log := logger.FromCtx(r.Context()).With(
			zap.String("layer", "webhook"),
			zap.String("kind", string(kind)),
		)

		r.Body = http.MaxBytesReader(w, r.Body, maxFormBytes)
		if err := r.ParseForm(); err != nil {
			// still redirect; the gateway must not see a 5xx
			log.Warn("unreadable callback form", zap.Error(err))
		}

		target := h.Reconciler.HandleCallback(r.Context(), kind, r.Form)
		http.Redirect(w, r, target, http.StatusFound)
	}
}
