package middleware

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/biblegpt/api/pkg/auth"
	"github.com/biblegpt/api/pkg/models"
)

// Auth creates a middleware that verifies the Supabase access token and
// injects the caller's identity into the request context. Handlers pull
// it back out with auth.IdentityFromContext; nothing reads the token
// twice.
func Auth(jwtSecret string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			authHeader := c.Request().Header.Get("Authorization")
			if authHeader == "" {
				return c.JSON(http.StatusUnauthorized, models.ErrorResponse{
					Error:   "missing_token",
					Message: "Authorization header is required",
				})
			}

			parts := strings.Split(authHeader, " ")
			if len(parts) != 2 || parts[0] != "Bearer" {
				return c.JSON(http.StatusUnauthorized, models.ErrorResponse{
					Error:   "invalid_token_format",
					Message: "Authorization header must be 'Bearer {token}'",
				})
			}

			identity, err := auth.VerifyToken(parts[1], jwtSecret)
			if err != nil {
				return c.JSON(http.StatusUnauthorized, models.ErrorResponse{
					Error:   "invalid_token",
					Message: "Token is invalid or expired",
				})
			}

			ctx := auth.WithIdentity(c.Request().Context(), identity)
			c.SetRequest(c.Request().WithContext(ctx))

			return next(c)
		}
	}
}
