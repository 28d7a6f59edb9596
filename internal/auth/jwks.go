package auth

import (
	"context"
	"fmt"
	"time"

	"github.com/MicahParks/keyfunc/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"
)

// JWKSVerifier validates asymmetric tokens against the provider's JWKS, which
// is refreshed in the background.
type JWKSVerifier struct {
	jwks *keyfunc.JWKS
	cfg  Config
}

func NewJWKSVerifier(cfg Config, logger zerolog.Logger) (*JWKSVerifier, error) {
	log := logger.With().Str("service", "JWKSVerifier").Logger()
	options := keyfunc.Options{
		RefreshInterval:   time.Hour,
		RefreshRateLimit:  5 * time.Minute,
		RefreshTimeout:    10 * time.Second,
		RefreshUnknownKID: true,
		RefreshErrorHandler: func(err error) {
			log.Warn().Err(err).Str("jwks_url", cfg.JWKSURL).Msg("Failed to refresh JWKS")
		},
	}

	jwks, err := keyfunc.Get(cfg.JWKSURL, options)
	if err != nil {
		return nil, fmt.Errorf("failed to load JWKS: %w", err)
	}
	return &JWKSVerifier{jwks: jwks, cfg: cfg}, nil
}

func (v *JWKSVerifier) Verify(_ context.Context, token string) (Identity, error) {
	claims := &Claims{}
	opts := append(parserOptions(v.cfg, []string{"ES256", "RS256"}), jwt.WithLeeway(5*time.Second))
	if _, err := jwt.ParseWithClaims(token, claims, v.jwks.Keyfunc, opts...); err != nil {
		return Identity{}, fmt.Errorf("token verification failed: %w", err)
	}
	return identityFromClaims(claims)
}

// Close stops the background refresh.
func (v *JWKSVerifier) Close() {
	v.jwks.EndBackground()
}
