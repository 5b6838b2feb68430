package errors

import (
	"log"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/biblegpt/api/pkg/domain"
	"github.com/biblegpt/api/pkg/models"
)

// ValidationError returns a generic validation error without exposing internal details
func ValidationError(c echo.Context, err error) error {
	// Log the actual error for debugging
	log.Printf("[VALIDATION ERROR] Path: %s, Error: %v", c.Request().URL.Path, err)

	return c.JSON(http.StatusBadRequest, models.ErrorResponse{
		Error:   "validation_error",
		Message: "Invalid request data. Please check your input and try again.",
	})
}

// InternalError returns a generic internal server error
func InternalError(c echo.Context, err error) error {
	// Log the actual error for debugging
	log.Printf("[INTERNAL ERROR] Path: %s, Error: %v", c.Request().URL.Path, err)

	return c.JSON(http.StatusInternalServerError, models.ErrorResponse{
		Error:   "internal_error",
		Message: "An internal error occurred. Please try again later.",
	})
}

// UnauthorizedError returns a generic unauthorized error
func UnauthorizedError(c echo.Context) error {
	return c.JSON(http.StatusUnauthorized, models.ErrorResponse{
		Error:   "unauthorized",
		Message: "You are not authorized to access this resource.",
	})
}

// ForbiddenError returns a forbidden error
func ForbiddenError(c echo.Context, message string) error {
	return c.JSON(http.StatusForbidden, models.ErrorResponse{
		Error:   "forbidden",
		Message: message,
	})
}

// NotFoundError returns a generic not found error
func NotFoundError(c echo.Context) error {
	return c.JSON(http.StatusNotFound, models.ErrorResponse{
		Error:   "not_found",
		Message: "The requested resource was not found.",
	})
}

// ConflictError returns a conflict error
func ConflictError(c echo.Context, message string) error {
	return c.JSON(http.StatusConflict, models.ErrorResponse{
		Error:   "conflict",
		Message: message, // Message is safe to expose (e.g., "Subscription already exists")
	})
}

// BadRequestError returns a bad request error with a safe message
func BadRequestError(c echo.Context, message string) error {
	return c.JSON(http.StatusBadRequest, models.ErrorResponse{
		Error:   "bad_request",
		Message: message,
	})
}

// ProviderError returns the error surfaced when the billing provider
// rejects a request
func ProviderError(c echo.Context, err error) error {
	log.Printf("[PROVIDER ERROR] Path: %s, Error: %v", c.Request().URL.Path, err)

	return c.JSON(http.StatusBadGateway, models.ErrorResponse{
		Error:   "provider_error",
		Message: "The billing provider could not process the request. Please try again later.",
	})
}

// FromDomain maps a domain error onto the matching HTTP response
func FromDomain(c echo.Context, err error) error {
	de, ok := err.(*domain.DomainError)
	if !ok {
		return InternalError(c, err)
	}

	switch de.Code {
	case domain.ErrCodeNotFound:
		return NotFoundError(c)
	case domain.ErrCodeValidation:
		return c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Error:   "validation_error",
			Message: de.Message,
		})
	case domain.ErrCodeUnauthorized:
		return UnauthorizedError(c)
	case domain.ErrCodeForbidden:
		return ForbiddenError(c, de.Message)
	case domain.ErrCodeConflict:
		return ConflictError(c, de.Message)
	case domain.ErrCodeBadRequest:
		return BadRequestError(c, de.Message)
	case domain.ErrCodeProvider:
		return ProviderError(c, err)
	default:
		return InternalError(c, err)
	}
}
