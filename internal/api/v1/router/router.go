package router

import (
	"context"
	"database/sql"
	"net/http"
	"time"

	"inkpost/internal/api/v1/handler"
	"inkpost/internal/api/v1/response"
	"inkpost/internal/auth"
	"inkpost/internal/billing"
	"inkpost/internal/middleware"
	"inkpost/internal/service"

	"github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"
	"github.com/rs/zerolog"
)

// Deps are the collaborators the HTTP layer is built from. DB may be nil, in
// which case /healthz only reports liveness.
type Deps struct {
	DB            *sql.DB
	Users         service.UserService
	Blogs         service.BlogService
	Checkout      service.CheckoutService
	Dispatcher    handler.Dispatcher
	Verifier      auth.Verifier
	EventVerifier billing.EventVerifier
	RateLimit     int
	TrustProxy    bool
	CORSOrigins   []string
}

func New(deps Deps, logger zerolog.Logger) http.Handler {
	validate := validator.New(validator.WithRequiredStructEnabled())

	userHandler := handler.NewUserHandler()
	blogHandler := handler.NewBlogHandler(deps.Blogs, validate, logger)
	subscriptionHandler := handler.NewSubscriptionHandler(deps.Checkout, deps.EventVerifier, deps.Dispatcher, logger)

	authMiddleware := middleware.AuthMiddleware(deps.Verifier, deps.Users, logger)

	apiV1Mux := http.NewServeMux()
	userHandler.RegisterRoutes(apiV1Mux, authMiddleware)
	blogHandler.RegisterRoutes(apiV1Mux, authMiddleware)
	subscriptionHandler.RegisterRoutes(apiV1Mux, authMiddleware)

	mux := http.NewServeMux()
	mux.Handle("/v1/", http.StripPrefix("/v1", apiV1Mux))
	mux.Handle("/api/v1/", http.StripPrefix("/api/v1", apiV1Mux))
	mux.HandleFunc("/healthz", healthz(deps.DB))
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		response.Error(w, http.StatusNotFound, "not found")
	})

	origins := deps.CORSOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	c := cors.New(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Authorization", "Content-Type", middleware.RequestIDHeader},
		ExposedHeaders:   []string{middleware.RequestIDHeader},
		AllowCredentials: true,
	})

	limiter := middleware.NewRateLimiter(deps.RateLimit, deps.TrustProxy)

	logger.Info().Msg("Router initialized")
	return middleware.LoggerMiddleware(logger)(c.Handler(limiter.Middleware(mux)))
}

// healthz answers liveness probes. With a database it also pings it.
func healthz(db *sql.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if db != nil {
			ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
			defer cancel()
			if err := db.PingContext(ctx); err != nil {
				response.Error(w, http.StatusServiceUnavailable, "database unavailable")
				return
			}
		}
		response.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}
