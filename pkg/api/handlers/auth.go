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

// AuthHandler handles post-signup registration
type AuthHandler struct {
	accountService *account.Service
	validator      *validator.Validate
}

// NewAuthHandler creates a new auth handler
func NewAuthHandler(accountService *account.Service) *AuthHandler {
	return &AuthHandler{
		accountService: accountService,
		validator:      validator.New(),
	}
}

// Register creates the local account row for the authenticated identity.
// The frontend calls this right after identity-platform sign-up; calling
// it again for the same identity returns the existing account.
func (h *AuthHandler) Register(c echo.Context) error {
	identity, ok := auth.IdentityFromContext(c.Request().Context())
	if !ok {
		return errors.UnauthorizedError(c)
	}

	var req models.RegisterRequest
	if err := c.Bind(&req); err != nil {
		return errors.ValidationError(c, err)
	}
	if err := h.validator.Struct(req); err != nil {
		return errors.ValidationError(c, err)
	}

	user, err := h.accountService.Register(c.Request().Context(), identity.UserID, identity.Email, req.Name, req.ReferralCode)
	if err != nil {
		return errors.FromDomain(c, err)
	}

	return c.JSON(http.StatusCreated, models.NewUserResponse(user))
}
