package container

import (
	"context"

	"github.com/biblegpt/api/config"
	"github.com/biblegpt/api/pkg/account"
	"github.com/biblegpt/api/pkg/api/handlers"
	"github.com/biblegpt/api/pkg/billing"
	"github.com/biblegpt/api/pkg/cache"
	"github.com/biblegpt/api/pkg/database"
	"github.com/biblegpt/api/pkg/domain"
	"github.com/biblegpt/api/pkg/email"
	"github.com/biblegpt/api/pkg/jobs"
	"github.com/biblegpt/api/pkg/logger"
	"github.com/biblegpt/api/pkg/metrics"
	"github.com/biblegpt/api/pkg/middleware"
	"github.com/biblegpt/api/pkg/referral"
	"github.com/biblegpt/api/pkg/repository"
)

// Container holds all application dependencies
type Container struct {
	Config  *config.Config
	Logger  logger.Logger
	Metrics *metrics.Metrics

	// Infrastructure
	DB    *database.Client
	Cache domain.CacheRepository

	// Repositories
	Users         domain.UserRepository
	Subscriptions domain.SubscriptionRepository
	Referrals     domain.ReferralRepository
	Devotionals   domain.DevotionalRepository

	// Services
	EmailService    *email.Service
	BillingService  *billing.Service
	Reconciler      *billing.Reconciler
	ReferralService *referral.Service
	AccountService  *account.Service

	// Middleware
	SubscriptionGate *middleware.SubscriptionGate

	// Jobs
	Cron *jobs.CronManager

	// Handlers
	AuthHandler         *handlers.AuthHandler
	SubscriptionHandler *handlers.SubscriptionHandler
	ReferralHandler     *handlers.ReferralHandler
	AccountHandler      *handlers.AccountHandler
	WebhookHandler      *handlers.WebhookHandler
	DevotionalHandler   *handlers.DevotionalHandler
}

// New creates and initializes all application dependencies
func New(ctx context.Context, cfg *config.Config) (*Container, error) {
	c := &Container{
		Config:  cfg,
		Logger:  logger.New(cfg.LogLevel, cfg.APIEnvironment),
		Metrics: metrics.New(),
	}

	if err := c.initInfrastructure(ctx); err != nil {
		return nil, err
	}

	c.initServices()
	c.initHandlers()

	c.Logger.Info("Container initialized successfully",
		"environment", cfg.APIEnvironment,
		"database", "connected",
		"cache", "connected")

	return c, nil
}

// initInfrastructure initializes database and cache connections
func (c *Container) initInfrastructure(ctx context.Context) error {
	var err error

	// Database
	c.DB, err = database.NewClient(ctx, c.Config.DatabaseURL)
	if err != nil {
		c.Logger.Error("Failed to connect to database", "error", err)
		return err
	}

	if err := c.DB.Migrate(ctx, c.Config.MigrationsPath); err != nil {
		c.Logger.Error("Failed to run migrations", "error", err)
		return err
	}

	// Cache
	cacheClient, err := cache.NewClient(c.Config.RedisURL)
	if err != nil {
		c.Logger.Error("Failed to connect to cache", "error", err)
		return err
	}
	c.Cache = cacheClient

	return nil
}

// initServices initializes repositories and domain services
func (c *Container) initServices() {
	c.Users = repository.NewUserRepository(c.DB.Pool)
	c.Subscriptions = repository.NewSubscriptionRepository(c.DB.Pool)
	c.Referrals = repository.NewReferralRepository(c.DB.Pool)
	c.Devotionals = repository.NewDevotionalRepository(c.DB.Pool)

	c.EmailService = email.NewService(
		c.Config.EmailFrom,
		c.Config.EmailFromName,
		c.Config.FrontendURL,
		c.Config.SendGridAPIKey,
	)

	stripeCfg := &billing.StripeConfig{
		SecretKey:     c.Config.StripeSecretKey,
		WebhookSecret: c.Config.StripeWebhookSecret,
		PriceMonthly:  c.Config.StripePriceMonthly,
		PriceYearly:   c.Config.StripePriceYearly,
	}
	provider := billing.NewStripeProvider(stripeCfg)

	c.BillingService = billing.NewService(
		c.Users,
		c.Subscriptions,
		provider,
		c.Cache,
		c.Metrics,
		stripeCfg,
		c.Logger,
	)
	c.Reconciler = billing.NewReconciler(
		c.Subscriptions,
		c.Referrals,
		c.Users,
		provider,
		c.EmailService,
		c.Cache,
		c.Metrics,
		c.Logger,
	)

	c.ReferralService = referral.NewService(c.Users, c.Referrals, c.Logger)
	c.AccountService = account.NewService(
		c.Users,
		c.Subscriptions,
		c.ReferralService,
		c.BillingService,
		c.Metrics,
		c.Logger,
	)

	c.SubscriptionGate = middleware.NewSubscriptionGate(c.BillingService, c.Cache, c.Metrics, c.Logger)
	c.Cron = jobs.NewCronManager(c.Subscriptions, c.Users, c.EmailService, c.Logger)

	c.Logger.Info("Services initialized",
		"billing_service", "ready",
		"referral_service", "ready",
		"account_service", "ready")
}

// initHandlers initializes all HTTP handlers
func (c *Container) initHandlers() {
	c.AuthHandler = handlers.NewAuthHandler(c.AccountService)
	c.SubscriptionHandler = handlers.NewSubscriptionHandler(c.BillingService)
	c.ReferralHandler = handlers.NewReferralHandler(c.ReferralService)
	c.AccountHandler = handlers.NewAccountHandler(c.AccountService)
	c.WebhookHandler = handlers.NewWebhookHandler(c.Reconciler, c.Logger)
	c.DevotionalHandler = handlers.NewDevotionalHandler(c.Devotionals)

	c.Logger.Info("Handlers initialized")
}

// Close closes all resources (database, cache connections)
func (c *Container) Close() error {
	c.Logger.Info("Shutting down container...")

	c.DB.Close()

	if err := c.Cache.Close(); err != nil {
		c.Logger.Error("Failed to close cache", "error", err)
		return err
	}

	c.Logger.Info("Container shutdown complete")
	return nil
}
