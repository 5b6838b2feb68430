package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/getsentry/sentry-go"
	sentryecho "github.com/getsentry/sentry-go/echo"
	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/biblegpt/api/config"
	"github.com/biblegpt/api/pkg/container"
	custommiddleware "github.com/biblegpt/api/pkg/middleware"
)

func main() {
	// Load .env if present (development convenience)
	_ = godotenv.Load()

	cfg := config.Load()
	log.Printf("🔧 Configuration loaded (environment: %s)", cfg.APIEnvironment)

	// Initialize Sentry for error tracking
	if cfg.SentryDSN != "" {
		err := sentry.Init(sentry.ClientOptions{
			Dsn:              cfg.SentryDSN,
			Environment:      cfg.SentryEnvironment,
			TracesSampleRate: 1.0,
			AttachStacktrace: true,
		})
		if err != nil {
			log.Printf("⚠️  Failed to initialize Sentry: %v", err)
		} else {
			log.Printf("✅ Sentry initialized (environment: %s)", cfg.SentryEnvironment)
			defer sentry.Flush(2 * time.Second)
		}
	} else {
		log.Printf("ℹ️  Sentry disabled (no DSN configured)")
	}

	// Build the dependency container (database, cache, services, handlers)
	initCtx, cancelInit := context.WithTimeout(context.Background(), 30*time.Second)
	c, err := container.New(initCtx, cfg)
	cancelInit()
	if err != nil {
		log.Fatalf("❌ Failed to initialize application: %v", err)
	}
	defer c.Close()

	// Initialize Echo
	e := echo.New()
	e.HideBanner = true

	// Rate limiters
	globalRateLimiter := custommiddleware.NewRateLimiter(cfg.RateLimitRequestsPerMinute, cfg.RateLimitBurst)
	registerRateLimiter := custommiddleware.NewRateLimiter(5, 2)   // 5 req/min for registration
	webhookRateLimiter := custommiddleware.NewRateLimiter(100, 20) // 100 req/min for Stripe webhooks

	// Global middleware
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogStatus: true,
		LogURI:    true,
		LogError:  true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			log.Printf("[%s] %s - Status: %d", c.Request().Method, v.URI, v.Status)
			return nil
		},
	}))
	e.Use(middleware.Recover())

	if cfg.SentryDSN != "" {
		e.Use(sentryecho.New(sentryecho.Options{
			Repanic: true,
		}))
	}

	e.Use(c.Metrics.Middleware())

	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: cfg.CORSAllowedOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAuthorization},
	}))

	e.Use(middleware.Gzip())
	e.Use(middleware.Secure())
	e.Use(globalRateLimiter.RateLimitMiddleware())

	// Health and metrics (public)
	e.GET("/health", func(ec echo.Context) error {
		ctx, cancel := context.WithTimeout(ec.Request().Context(), 2*time.Second)
		defer cancel()

		if err := c.DB.Ping(ctx); err != nil {
			return ec.JSON(http.StatusServiceUnavailable, map[string]any{
				"status":   "unhealthy",
				"database": "down",
			})
		}

		return ec.JSON(http.StatusOK, map[string]any{
			"status":   "healthy",
			"database": "up",
		})
	})
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	api := e.Group("/api")
	authRequired := custommiddleware.Auth(cfg.SupabaseJWTSecret)

	// Registration (authenticated, strict rate limit)
	api.POST("/auth/register", c.AuthHandler.Register, authRequired, registerRateLimiter.RateLimitMiddleware())

	// Stripe webhooks: signature-verified, never token-authenticated
	api.POST("/webhooks/stripe", c.WebhookHandler.HandleStripe, webhookRateLimiter.RateLimitMiddleware())

	// Public referral code check for the signup page
	api.GET("/referrals/validate/:code", c.ReferralHandler.Validate)

	// Authenticated routes
	protected := api.Group("", authRequired)
	{
		protected.GET("/subscription", c.SubscriptionHandler.Get)
		protected.POST("/subscription", c.SubscriptionHandler.Create)
		protected.DELETE("/subscription", c.SubscriptionHandler.Cancel)

		protected.POST("/referrals", c.ReferralHandler.Apply)
		protected.GET("/referrals/stats", c.ReferralHandler.Stats)

		protected.GET("/account", c.AccountHandler.Get)
		protected.PATCH("/account", c.AccountHandler.Update)
		protected.DELETE("/account", c.AccountHandler.Delete)
	}

	// Subscription-gated content
	gated := protected.Group("", c.SubscriptionGate.Middleware())
	{
		gated.GET("/devotionals/today", c.DevotionalHandler.Today)
	}

	// Cron jobs
	if err := c.Cron.SetupJobs(); err != nil {
		log.Fatalf("❌ Failed to setup cron jobs: %v", err)
	}
	c.Cron.Start()

	// Start server
	address := fmt.Sprintf("%s:%s", cfg.APIHost, cfg.APIPort)
	log.Printf("🚀 BibleGPT API starting on %s", address)
	log.Printf("🛡️  Rate limiting: %d req/min (burst: %d)", cfg.RateLimitRequestsPerMinute, cfg.RateLimitBurst)

	go func() {
		if err := e.Start(address); err != nil && err != http.ErrServerClosed {
			log.Fatalf("❌ Failed to start server: %v", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	log.Println("🛑 Shutting down server...")

	c.Cron.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := e.Shutdown(ctx); err != nil {
		log.Fatalf("❌ Server forced to shutdown: %v", err)
	}

	log.Println("✅ Server gracefully stopped")
}
