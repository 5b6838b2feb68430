package handlers

import (
	"io"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/biblegpt/api/pkg/billing"
	"github.com/biblegpt/api/pkg/domain"
	"github.com/biblegpt/api/pkg/logger"
	"github.com/biblegpt/api/pkg/models"
)

// WebhookHandler receives billing provider webhooks
type WebhookHandler struct {
	reconciler *billing.Reconciler
	log        logger.Logger
}

// NewWebhookHandler creates a new webhook handler
func NewWebhookHandler(reconciler *billing.Reconciler, log logger.Logger) *WebhookHandler {
	return &WebhookHandler{
		reconciler: reconciler,
		log:        log,
	}
}

// HandleStripe verifies and applies a Stripe webhook delivery. The raw
// body goes to signature verification untouched. A bad signature is the
// only rejection; any failure after verification is logged and the
// delivery acknowledged, so the provider does not retry events we can
// never apply.
func (h *WebhookHandler) HandleStripe(c echo.Context) error {
	payload, err := io.ReadAll(c.Request().Body)
	if err != nil {
		return c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Error:   "invalid_payload",
			Message: "Failed to read request body",
		})
	}

	signature := c.Request().Header.Get("Stripe-Signature")

	if err := h.reconciler.HandleWebhook(c.Request().Context(), payload, signature); err != nil {
		if domain.IsUnauthorized(err) {
			return c.JSON(http.StatusBadRequest, models.ErrorResponse{
				Error:   "invalid_signature",
				Message: "Webhook signature verification failed",
			})
		}
		h.log.Error("webhook processing failed", "error", err)
	}

	return c.JSON(http.StatusOK, models.WebhookAck{Received: true})
}
