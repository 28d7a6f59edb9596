package config

import (
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	Port        string `envconfig:"PORT" default:"3001"`
	Environment string `envconfig:"ENV" default:"development"`
	LogLevel    string `envconfig:"LOG_LEVEL"`

	DBConnectionString string `envconfig:"DB_CONNECTION_STRING" required:"true"`
	MigrationsPath     string `envconfig:"MIGRATIONS_PATH" default:"file://migrations"`
	MigrateOnStart     bool   `envconfig:"MIGRATE_ON_START"`

	// Identity provider (Supabase) settings
	JWKSURL     string `envconfig:"SUPABASE_JWKS_URL"`
	JWTIssuer   string `envconfig:"SUPABASE_JWT_ISSUER"`
	JWTAudience string `envconfig:"SUPABASE_JWT_AUDIENCE" default:"authenticated"`
	JWTSecret   string `envconfig:"SUPABASE_LOCAL_JWT_SECRET"`

	// Stripe settings
	StripeSecretKey      string `envconfig:"STRIPE_SECRET_KEY"`
	StripeWebhookSecret  string `envconfig:"STRIPE_WEBHOOK_SECRET"`
	StripePremiumPriceID string `envconfig:"STRIPE_PREMIUM_PRICE_ID"`
	FrontendDomain       string `envconfig:"FRONTEND_DOMAIN" default:"http://localhost:3000"`

	// Secret Manager names; when set they override the plain Stripe values above
	StripeSecretKeySecret     string `envconfig:"STRIPE_SECRET_KEY_SECRET"`
	StripeWebhookSecretSecret string `envconfig:"STRIPE_WEBHOOK_SECRET_SECRET"`

	// Optional infrastructure
	RedisURL                string        `envconfig:"REDIS_URL"`
	BlogCacheTTL            time.Duration `envconfig:"BLOG_CACHE_TTL" default:"5m"`
	GCPProjectID            string        `envconfig:"GCP_PROJECT_ID"`
	PubSubSubscriptionTopic string        `envconfig:"PUBSUB_SUBSCRIPTION_TOPIC"`

	RateLimitPerMinute int      `envconfig:"RATE_LIMIT_PER_MINUTE" default:"900"`
	CORSAllowedOrigins []string `envconfig:"CORS_ALLOWED_ORIGINS"`
	// TrustProxy keys rate limits on X-Forwarded-For; enable only behind a
	// proxy that overwrites the header.
	TrustProxy bool `envconfig:"TRUST_PROXY"`
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// IsDevelopment reports whether the service runs with local development defaults.
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}
