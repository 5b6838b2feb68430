package handlers

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/biblegpt/api/pkg/api/errors"
	"github.com/biblegpt/api/pkg/domain"
	"github.com/biblegpt/api/pkg/models"
)

// DevotionalHandler serves the daily devotional, the simplest
// subscription-gated content
type DevotionalHandler struct {
	devotionals domain.DevotionalRepository
}

// NewDevotionalHandler creates a new devotional handler
func NewDevotionalHandler(devotionals domain.DevotionalRepository) *DevotionalHandler {
	return &DevotionalHandler{devotionals: devotionals}
}

// Today returns the devotional for today, or for an explicit
// ?date=YYYY-MM-DD
func (h *DevotionalHandler) Today(c echo.Context) error {
	date := time.Now().UTC()
	if raw := c.QueryParam("date"); raw != "" {
		parsed, err := time.Parse("2006-01-02", raw)
		if err != nil {
			return errors.BadRequestError(c, "Date must be YYYY-MM-DD")
		}
		date = parsed
	}

	devotional, err := h.devotionals.GetByDate(c.Request().Context(), date)
	if err != nil {
		return errors.FromDomain(c, err)
	}
	if devotional == nil {
		return errors.NotFoundError(c)
	}

	return c.JSON(http.StatusOK, models.NewDevotionalResponse(devotional))
}
