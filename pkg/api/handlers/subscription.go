package handlers

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"

	"github.com/biblegpt/api/pkg/api/errors"
	"github.com/biblegpt/api/pkg/auth"
	"github.com/biblegpt/api/pkg/billing"
	"github.com/biblegpt/api/pkg/models"
)

// SubscriptionHandler handles subscription endpoints
type SubscriptionHandler struct {
	billingService *billing.Service
	validator      *validator.Validate
}

// NewSubscriptionHandler creates a new subscription handler
func NewSubscriptionHandler(billingService *billing.Service) *SubscriptionHandler {
	return &SubscriptionHandler{
		billingService: billingService,
		validator:      validator.New(),
	}
}

// Get returns the caller's subscription, provisioning the trial row on
// first access
func (h *SubscriptionHandler) Get(c echo.Context) error {
	identity, ok := auth.IdentityFromContext(c.Request().Context())
	if !ok {
		return errors.UnauthorizedError(c)
	}

	sub, err := h.billingService.GetOrProvision(c.Request().Context(), identity.UserID)
	if err != nil {
		return errors.FromDomain(c, err)
	}

	return c.JSON(http.StatusOK, models.NewSubscriptionResponse(sub))
}

// Create starts the checkout flow for one of the configured plans
func (h *SubscriptionHandler) Create(c echo.Context) error {
	identity, ok := auth.IdentityFromContext(c.Request().Context())
	if !ok {
		return errors.UnauthorizedError(c)
	}

	var req models.CheckoutRequest
	if err := c.Bind(&req); err != nil {
		return errors.ValidationError(c, err)
	}
	if err := h.validator.Struct(req); err != nil {
		return errors.ValidationError(c, err)
	}

	session, err := h.billingService.CreateSubscription(c.Request().Context(), identity.UserID, req.PriceID)
	if err != nil {
		return errors.FromDomain(c, err)
	}

	return c.JSON(http.StatusOK, models.CheckoutResponse{
		ClientSecret:   session.SetupIntentClientSecret,
		CustomerID:     session.CustomerID,
		SubscriptionID: session.SubscriptionID,
	})
}

// Cancel flags the caller's subscription to end at the period boundary
func (h *SubscriptionHandler) Cancel(c echo.Context) error {
	identity, ok := auth.IdentityFromContext(c.Request().Context())
	if !ok {
		return errors.UnauthorizedError(c)
	}

	sub, err := h.billingService.Cancel(c.Request().Context(), identity.UserID)
	if err != nil {
		return errors.FromDomain(c, err)
	}

	return c.JSON(http.StatusOK, models.NewSubscriptionResponse(sub))
}
