package handlers

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"

	"github.com/biblegpt/api/pkg/api/errors"
	"github.com/biblegpt/api/pkg/auth"
	"github.com/biblegpt/api/pkg/models"
	"github.com/biblegpt/api/pkg/referral"
)

// ReferralHandler handles referral endpoints
type ReferralHandler struct {
	referralService *referral.Service
	validator       *validator.Validate
}

// NewReferralHandler creates a new referral handler
func NewReferralHandler(referralService *referral.Service) *ReferralHandler {
	return &ReferralHandler{
		referralService: referralService,
		validator:       validator.New(),
	}
}

// Apply links the caller to the owner of the submitted referral code
func (h *ReferralHandler) Apply(c echo.Context) error {
	identity, ok := auth.IdentityFromContext(c.Request().Context())
	if !ok {
		return errors.UnauthorizedError(c)
	}

	var req models.ApplyReferralRequest
	if err := c.Bind(&req); err != nil {
		return errors.ValidationError(c, err)
	}
	if err := h.validator.Struct(req); err != nil {
		return errors.ValidationError(c, err)
	}

	if _, err := h.referralService.Apply(c.Request().Context(), identity.UserID, req.Code); err != nil {
		return errors.FromDomain(c, err)
	}

	return c.JSON(http.StatusCreated, models.SuccessResponse{Message: "Referral applied"})
}

// Stats returns the caller's own code and conversion counts
func (h *ReferralHandler) Stats(c echo.Context) error {
	identity, ok := auth.IdentityFromContext(c.Request().Context())
	if !ok {
		return errors.UnauthorizedError(c)
	}

	stats, err := h.referralService.Stats(c.Request().Context(), identity.UserID)
	if err != nil {
		return errors.FromDomain(c, err)
	}

	return c.JSON(http.StatusOK, models.ReferralStatsResponse{
		Code:     stats.Code,
		Total:    stats.Total,
		Rewarded: stats.Rewarded,
	})
}

// Validate is the public pre-signup code check. It reveals only whether
// the code exists and the referrer's first name.
func (h *ReferralHandler) Validate(c echo.Context) error {
	owner, err := h.referralService.Validate(c.Request().Context(), c.Param("code"))
	if err != nil {
		return errors.FromDomain(c, err)
	}
	if owner == nil {
		return c.JSON(http.StatusOK, models.ValidateReferralResponse{Valid: false})
	}

	return c.JSON(http.StatusOK, models.ValidateReferralResponse{
		Valid:        true,
		ReferrerName: owner.Name,
	})
}
