package handlers

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"

	"github.com/biblegpt/api/pkg/account"
	"github.com/biblegpt/api/pkg/api/errors"
	"github.com/biblegpt/api/pkg/auth"
	"github.com/biblegpt/api/pkg/models"
)

// AccountHandler handles account endpoints
type AccountHandler struct {
	accountService *account.Service
	validator      *validator.Validate
}

// NewAccountHandler creates a new account handler
func NewAccountHandler(accountService *account.Service) *AccountHandler {
	return &AccountHandler{
		accountService: accountService,
		validator:      validator.New(),
	}
}

// Get returns the caller's profile with its subscription summary
func (h *AccountHandler) Get(c echo.Context) error {
	identity, ok := auth.IdentityFromContext(c.Request().Context())
	if !ok {
		return errors.UnauthorizedError(c)
	}

	user, sub, err := h.accountService.Get(c.Request().Context(), identity.UserID)
	if err != nil {
		return errors.FromDomain(c, err)
	}

	return c.JSON(http.StatusOK, models.AccountResponse{
		User:         models.NewUserResponse(user),
		Subscription: models.NewSubscriptionResponse(sub),
	})
}

// Update changes the caller's mutable profile fields
func (h *AccountHandler) Update(c echo.Context) error {
	identity, ok := auth.IdentityFromContext(c.Request().Context())
	if !ok {
		return errors.UnauthorizedError(c)
	}

	var req models.UpdateProfileRequest
	if err := c.Bind(&req); err != nil {
		return errors.ValidationError(c, err)
	}
	if err := h.validator.Struct(req); err != nil {
		return errors.ValidationError(c, err)
	}

	user, err := h.accountService.UpdateProfile(c.Request().Context(), identity.UserID, req.Name, req.AvatarURL)
	if err != nil {
		return errors.FromDomain(c, err)
	}

	return c.JSON(http.StatusOK, models.NewUserResponse(user))
}

// Delete removes the caller's account and everything hanging off it
func (h *AccountHandler) Delete(c echo.Context) error {
	identity, ok := auth.IdentityFromContext(c.Request().Context())
	if !ok {
		return errors.UnauthorizedError(c)
	}

	if err := h.accountService.Delete(c.Request().Context(), identity.UserID); err != nil {
		return errors.FromDomain(c, err)
	}

	return c.JSON(http.StatusOK, models.SuccessResponse{Message: "Account deleted"})
}
