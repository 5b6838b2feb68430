package middleware

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/biblegpt/api/pkg/auth"
	"github.com/biblegpt/api/pkg/billing"
	"github.com/biblegpt/api/pkg/cache"
	"github.com/biblegpt/api/pkg/domain"
	"github.com/biblegpt/api/pkg/logger"
	"github.com/biblegpt/api/pkg/metrics"
	"github.com/biblegpt/api/pkg/models"
)

// statusCacheTTL bounds how stale a cached gate decision can be. Writes
// to the subscription row also invalidate the key, so the TTL only
// matters when an invalidation is missed.
const statusCacheTTL = time.Minute

const (
	statusGranted = "granted"
	statusDenied  = "denied"
)

// SubscriptionGate blocks requests from users whose subscription does
// not grant access. First contact with an unknown user provisions
// their trial, so a fresh account always passes.
type SubscriptionGate struct {
	billing *billing.Service
	cache   domain.CacheRepository
	metrics *metrics.Metrics
	log     logger.Logger
}

// NewSubscriptionGate creates a new subscription gate
func NewSubscriptionGate(billingService *billing.Service, cacheRepo domain.CacheRepository, m *metrics.Metrics, log logger.Logger) *SubscriptionGate {
	return &SubscriptionGate{
		billing: billingService,
		cache:   cacheRepo,
		metrics: m,
		log:     log,
	}
}

// Middleware returns the Echo middleware enforcing the gate
func (g *SubscriptionGate) Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			identity, ok := auth.IdentityFromContext(c.Request().Context())
			if !ok {
				return c.JSON(http.StatusUnauthorized, models.ErrorResponse{
					Error:   "unauthorized",
					Message: "Authentication required",
				})
			}

			ctx := c.Request().Context()
			key := billing.StatusCacheKey(identity.UserID)

			if g.cache != nil {
				cached, err := g.cache.Get(ctx, key)
				switch {
				case err == nil:
					g.metrics.RecordCacheHit("redis")
					if cached == statusGranted {
						return next(c)
					}
					return g.deny(c)
				case cache.IsMiss(err):
					g.metrics.RecordCacheMiss("redis")
				default:
					g.log.Warn("gate cache read failed", "user_id", identity.UserID, "error", err)
				}
			}

			sub, err := g.billing.GetOrProvision(ctx, identity.UserID)
			if err != nil {
				g.log.Error("gate failed to load subscription", "user_id", identity.UserID, "error", err)
				return c.JSON(http.StatusInternalServerError, models.ErrorResponse{
					Error:   "internal_error",
					Message: "An internal error occurred. Please try again later.",
				})
			}

			granted := sub.Status.GrantsAccess()
			if g.cache != nil {
				value := statusDenied
				if granted {
					value = statusGranted
				}
				if err := g.cache.Set(ctx, key, value, statusCacheTTL); err != nil {
					g.log.Warn("gate cache write failed", "user_id", identity.UserID, "error", err)
				}
			}

			if !granted {
				return g.deny(c)
			}
			return next(c)
		}
	}
}

func (g *SubscriptionGate) deny(c echo.Context) error {
	return c.JSON(http.StatusForbidden, models.ErrorResponse{
		Error:   "subscription_required",
		Message: "An active subscription or trial is required.",
	})
}
