package main

import (
	"context"
	"net/http"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"inkpost/internal/api/v1/router"
	"inkpost/internal/auth"
	"inkpost/internal/billing"
	"inkpost/internal/cache"
	"inkpost/internal/config"
	"inkpost/internal/database"
	"inkpost/internal/logger"
	"inkpost/internal/metrics"
	"inkpost/internal/notify"
	"inkpost/internal/pubsub"
	"inkpost/internal/repository"
	"inkpost/internal/secrets"
	"inkpost/internal/service"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
)

// @title Inkpost API
// @version 1.0
// @description Blog platform API with Stripe premium subscriptions
// @host localhost:3001
// @BasePath /api/v1
// @Schemes http https

func main() {
	// 1. Load configuration. The .env file goes first so LOG_LEVEL and ENV
	// reach the logger.
	envErr := godotenv.Load()
	logger := logger.New()
	if envErr != nil {
		logger.Warn().Msg("Warning: no .env file found")
	}

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Msgf("Error loading config: %v", err)
	}
	logger.Info().Str("environment", cfg.Environment).Msg("App environment loaded")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// 2. Resolve Stripe secrets from Secret Manager when configured
	if cfg.StripeSecretKeySecret != "" || cfg.StripeWebhookSecretSecret != "" {
		if err := resolveSecrets(ctx, cfg); err != nil {
			logger.Fatal().Msgf("Failed to resolve secrets: %v", err)
		}
		logger.Info().Msg("Stripe secrets resolved from Secret Manager")
	}

	// 3. Open DB connection
	db, err := database.Open(ctx, cfg.DBConnectionString, cfg.IsDevelopment())
	if err != nil {
		logger.Fatal().Msgf("Failed to connect to database: %v", err)
	}
	defer db.Close()
	logger.Info().Msg("Database connection successful")

	if cfg.MigrateOnStart {
		applied, err := database.Migrate(db, cfg.MigrationsPath)
		if err != nil {
			logger.Fatal().Msgf("Failed to migrate database: %v", err)
		}
		logger.Info().Bool("applied", applied).Msg("Database migrations checked")
	}

	// 4. Blog list cache
	var listCache cache.BlogListCache = cache.Noop{}
	if cfg.RedisURL != "" {
		c, client, err := cache.NewRedisBlogListCache(ctx, cfg.RedisURL, cfg.BlogCacheTTL)
		if err != nil {
			logger.Fatal().Msgf("Failed to connect to Redis: %v", err)
		}
		defer client.Close()
		listCache = c
		logger.Info().Dur("ttl", cfg.BlogCacheTTL).Msg("Blog list cache enabled")
	}

	// 5. Subscription change notifications
	broker := notify.NewBroker()
	var consumers sync.WaitGroup
	consume := func(name string, h notify.Handler) {
		sub := broker.Subscribe(64)
		consumers.Add(1)
		go func() {
			defer consumers.Done()
			if err := sub.Run(context.Background(), h); err != nil {
				logger.Debug().Err(err).Str("consumer", name).Msg("Consumer stopped")
			}
		}()
	}
	consume("log", logChange(logger))

	if cfg.GCPProjectID != "" && cfg.PubSubSubscriptionTopic != "" {
		publisher, err := pubsub.NewPublisher(ctx, cfg.GCPProjectID)
		if err != nil {
			logger.Fatal().Msgf("Failed to create Pub/Sub publisher: %v", err)
		}
		defer publisher.Close()
		consume("pubsub", pubsub.NewForwarder(publisher, cfg.PubSubSubscriptionTopic, logger).Handle)
	}

	// 6. Identity verification
	verifier, err := auth.NewVerifier(auth.Config{
		JWKSURL:   cfg.JWKSURL,
		Issuer:    cfg.JWTIssuer,
		Audience:  cfg.JWTAudience,
		StaticKey: cfg.JWTSecret,
	}, logger)
	if err != nil {
		logger.Fatal().Msgf("Failed to initialize token verifier: %v", err)
	}
	if jwks, ok := verifier.(*auth.JWKSVerifier); ok {
		defer jwks.Close()
	}

	// 7. Billing
	gateway := billing.NewStripeGateway(billing.StripeConfig{
		SecretKey:      cfg.StripeSecretKey,
		PremiumPriceID: cfg.StripePremiumPriceID,
		FrontendDomain: cfg.FrontendDomain,
	})
	var eventVerifier billing.EventVerifier
	if cfg.StripeWebhookSecret != "" {
		eventVerifier = billing.NewWebhookVerifier(cfg.StripeWebhookSecret)
	} else {
		logger.Warn().Msg("STRIPE_WEBHOOK_SECRET is not set; webhooks will be rejected")
	}

	// 8. Repositories, services, router
	userRepo := repository.NewUserRepo(db)
	blogRepo := repository.NewBlogRepo(db)

	handler := router.New(router.Deps{
		DB:            db,
		Users:         service.NewUserService(userRepo, logger),
		Blogs:         service.NewBlogService(blogRepo, listCache, logger),
		Checkout:      service.NewCheckoutService(userRepo, gateway, logger),
		Dispatcher:    service.NewReconciler(userRepo, gateway, broker, logger),
		Verifier:      verifier,
		EventVerifier: eventVerifier,
		RateLimit:     cfg.RateLimitPerMinute,
		TrustProxy:    cfg.TrustProxy,
		CORSOrigins:   cfg.CORSAllowedOrigins,
	}, logger)

	// 9. HTTP server
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      handler,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info().Msgf("Server starting on port %s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Msgf("Listen: %s", err)
		}
	}()

	// 10. Graceful shutdown
	<-ctx.Done()
	logger.Info().Msg("Shutdown signal received, exiting...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("Server forced to shutdown")
	}
	broker.Close()
	consumers.Wait()
	logger.Info().Msg("Server shut down gracefully")
}

func resolveSecrets(ctx context.Context, cfg *config.Config) error {
	resolver, err := secrets.NewResolver(ctx, cfg.GCPProjectID)
	if err != nil {
		return err
	}
	defer resolver.Close()

	if err := resolver.Resolve(ctx, cfg.StripeSecretKeySecret, &cfg.StripeSecretKey); err != nil {
		return err
	}
	return resolver.Resolve(ctx, cfg.StripeWebhookSecretSecret, &cfg.StripeWebhookSecret)
}

func logChange(logger zerolog.Logger) notify.Handler {
	log := logger.With().Str("consumer", "subscription-log").Logger()
	return func(_ context.Context, change notify.SubscriptionChanged) {
		metrics.SubscriptionChanges.WithLabelValues(string(change.PreviousTier), string(change.Tier)).Inc()
		log.Info().
			Str("user_id", change.UserID).
			Str("previous_tier", string(change.PreviousTier)).
			Str("tier", string(change.Tier)).
			Str("status", change.Status).
			Str("event_id", change.EventID).
			Str("event_type", change.EventType).
			Msg("Subscription changed")
	}
}
