package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"inkpost/internal/api/v1/response"
	"inkpost/internal/auth"
	"inkpost/internal/model"

	"github.com/rs/zerolog"
)

// Injected key type to avoid context collisions
type contextKey string

const UserContextKey = contextKey("user")

var (
	errMissingAuthHeader = errors.New("authorization header missing")
	errInvalidAuthHeader = errors.New("invalid authorization header")
)

// Provisioner returns the local user for a verified identity, creating it on
// first sight.
type Provisioner interface {
	GetOrProvision(ctx context.Context, id, email string) (*model.User, error)
}

// AuthMiddleware verifies the bearer token and stores the caller's user record
// in the request context.
func AuthMiddleware(verifier auth.Verifier, users Provisioner, logger zerolog.Logger) func(http.Handler) http.Handler {
	log := logger.With().Str("middleware", "auth").Logger()
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, err := bearerToken(r)
			if err != nil {
				response.Error(w, http.StatusUnauthorized, err.Error())
				return
			}
			identity, err := verifier.Verify(r.Context(), token)
			if err != nil {
				log.Debug().Err(err).Msg("Invalid token")
				response.Error(w, http.StatusUnauthorized, "invalid token")
				return
			}
			user, err := users.GetOrProvision(r.Context(), identity.UserID, identity.Email)
			if err != nil {
				log.Error().Err(err).Str("user_id", identity.UserID).Msg("Failed to load user")
				response.Error(w, http.StatusInternalServerError, "failed to load user")
				return
			}
			ctx := context.WithValue(r.Context(), UserContextKey, user)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func bearerToken(r *http.Request) (string, error) {
	header := r.Header.Get("Authorization")
	if header == "" {
		return "", errMissingAuthHeader
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
		return "", errInvalidAuthHeader
	}
	token := strings.TrimSpace(parts[1])
	if token == "" {
		return "", errInvalidAuthHeader
	}
	return token, nil
}

// UserFromContext returns the authenticated user set by AuthMiddleware.
func UserFromContext(ctx context.Context) (*model.User, bool) {
	u, ok := ctx.Value(UserContextKey).(*model.User)
	return u, ok && u != nil
}

// WithUser returns a context carrying u, as AuthMiddleware would.
func WithUser(ctx context.Context, u *model.User) context.Context {
	return context.WithValue(ctx, UserContextKey, u)
}
