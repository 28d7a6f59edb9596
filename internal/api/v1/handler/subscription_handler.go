package handler

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"inkpost/internal/api/v1/dto"
	"inkpost/internal/api/v1/response"
	"inkpost/internal/billing"
	"inkpost/internal/metrics"
	"inkpost/internal/middleware"
	"inkpost/internal/service"

	"github.com/rs/zerolog"
)

const maxWebhookBodyBytes = 1 << 20

// Dispatcher applies a verified billing event. *service.Reconciler satisfies it.
type Dispatcher interface {
	Dispatch(ctx context.Context, ev *billing.Event) (service.Outcome, error)
}

// SubscriptionHandler handles subscription-related endpoints.
type SubscriptionHandler struct {
	checkout   service.CheckoutService
	verifier   billing.EventVerifier
	dispatcher Dispatcher
	logger     zerolog.Logger
}

// NewSubscriptionHandler creates a new SubscriptionHandler. A nil verifier
// makes the webhook answer 503.
func NewSubscriptionHandler(checkout service.CheckoutService, verifier billing.EventVerifier, dispatcher Dispatcher, logger zerolog.Logger) *SubscriptionHandler {
	return &SubscriptionHandler{
		checkout:   checkout,
		verifier:   verifier,
		dispatcher: dispatcher,
		logger:     logger.With().Str("handler", "SubscriptionHandler").Logger(),
	}
}

// RegisterRoutes registers the subscription endpoints.
func (h *SubscriptionHandler) RegisterRoutes(mux *http.ServeMux, authMw func(http.Handler) http.Handler) {
	mux.Handle("/subscriptions", authMw(http.HandlerFunc(h.Checkout)))
	mux.HandleFunc("/subscriptions/webhook", h.Webhook)
}

// Checkout godoc
// @Summary Start a premium subscription checkout
// @Tags subscriptions
// @Produce json
// @Success 200 {object} dto.CheckoutResponseDTO
// @Failure 401 {object} response.ErrorBody
// @Failure 502 {object} response.ErrorBody
// @Router /subscriptions [post]
func (h *SubscriptionHandler) Checkout(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		response.Error(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	user, ok := middleware.UserFromContext(r.Context())
	if !ok {
		response.Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	url, err := h.checkout.CreateCheckoutSession(r.Context(), user)
	if err != nil {
		if errors.Is(err, service.ErrCustomerCreate) {
			response.Error(w, http.StatusBadGateway, "failed to create billing customer")
			return
		}
		response.Error(w, http.StatusInternalServerError, "failed to create checkout session")
		return
	}
	response.JSON(w, http.StatusOK, dto.CheckoutResponseDTO{URL: url})
}

// Webhook receives Stripe events. The body is read raw for signature
// verification; only verified events reach the reconciler.
func (h *SubscriptionHandler) Webhook(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	eventType := "unknown"
	status := http.StatusOK
	defer func() {
		metrics.WebhookRequestsTotal.WithLabelValues(eventType, strconv.Itoa(status)).Inc()
		metrics.WebhookDuration.WithLabelValues(eventType).Observe(time.Since(start).Seconds())
	}()
	fail := func(code int, msg string) {
		status = code
		response.Error(w, code, msg)
	}

	if r.Method != http.MethodPost {
		fail(http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	if h.verifier == nil {
		h.logger.Error().Msg("Stripe webhook secret is not configured")
		fail(http.StatusServiceUnavailable, "webhook not configured")
		return
	}

	payload, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxWebhookBodyBytes))
	if err != nil {
		fail(http.StatusBadRequest, "failed to read request body")
		return
	}

	ev, err := h.verifier.ConstructEvent(payload, r.Header.Get("Stripe-Signature"))
	if err != nil {
		h.logger.Warn().Err(err).Msg("Rejected webhook")
		switch {
		case errors.Is(err, billing.ErrMissingSignature):
			fail(http.StatusBadRequest, "missing Stripe-Signature header")
		case errors.Is(err, billing.ErrInvalidSignature):
			fail(http.StatusBadRequest, "invalid signature")
		default:
			fail(http.StatusBadRequest, "malformed event payload")
		}
		return
	}
	eventType = string(ev.Type)

	outcome, err := h.dispatcher.Dispatch(r.Context(), ev)
	metrics.ReconcileOutcomes.WithLabelValues(eventType, string(outcome)).Inc()
	if err != nil {
		h.logger.Error().Err(err).Str("event_id", ev.ID).Str("event_type", eventType).Msg("Failed to process webhook")
		fail(http.StatusInternalServerError, "failed to process event")
		return
	}

	h.logger.Debug().Str("event_id", ev.ID).Str("event_type", eventType).Str("outcome", string(outcome)).Msg("Webhook processed")
	response.JSON(w, http.StatusOK, dto.WebhookResponseDTO{Received: true})
}
