package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"inkpost/internal/api/v1/response"
	"inkpost/internal/billing"
	"inkpost/internal/middleware"
	"inkpost/internal/model"
	"inkpost/internal/service"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v82/webhook"
)

const webhookSecret = "whsec_test_123"

type spyDispatcher struct {
	calls   []*billing.Event
	outcome service.Outcome
	err     error
}

func (s *spyDispatcher) Dispatch(_ context.Context, ev *billing.Event) (service.Outcome, error) {
	s.calls = append(s.calls, ev)
	return s.outcome, s.err
}

type stubCheckout struct {
	url string
	err error
}

func (s stubCheckout) CreateCheckoutSession(context.Context, *model.User) (string, error) {
	return s.url, s.err
}

func signedRequest(t *testing.T, payload []byte, secret string) *http.Request {
	t.Helper()
	signed := webhook.GenerateTestSignedPayload(&webhook.UnsignedPayload{
		Payload:   payload,
		Secret:    secret,
		Timestamp: time.Now(),
		Scheme:    "v1",
	})
	req := httptest.NewRequest(http.MethodPost, "/subscriptions/webhook", bytes.NewReader(signed.Payload))
	req.Header.Set("Stripe-Signature", signed.Header)
	return req
}

var checkoutMissingSubscription = []byte(`{
	"id": "evt_1",
	"object": "event",
	"type": "checkout.session.completed",
	"created": 1700000000,
	"data": {"object": {"id": "cs_1", "object": "checkout.session", "customer": "cus_1"}}
}`)

func newWebhookMux(d Dispatcher, verifier billing.EventVerifier) *http.ServeMux {
	h := NewSubscriptionHandler(stubCheckout{}, verifier, d, zerolog.Nop())
	mux := http.NewServeMux()
	h.RegisterRoutes(mux, func(next http.Handler) http.Handler { return next })
	return mux
}

func TestWebhookAcknowledgesVerifiedEvent(t *testing.T) {
	spy := &spyDispatcher{outcome: service.OutcomeSkippedMissingFields}
	mux := newWebhookMux(spy, billing.NewWebhookVerifier(webhookSecret))

	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, signedRequest(t, checkoutMissingSubscription, webhookSecret))

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"received":true}`, rr.Body.String())
	require.Len(t, spy.calls, 1)
	assert.Equal(t, billing.EventCheckoutSessionCompleted, spy.calls[0].Type)
	assert.Equal(t, "cus_1", spy.calls[0].CheckoutSession.CustomerID)
	assert.Empty(t, spy.calls[0].CheckoutSession.SubscriptionID)
}

func TestWebhookRejectsBadSignatures(t *testing.T) {
	tests := []struct {
		name string
		req  func(t *testing.T) *http.Request
	}{
		{
			name: "missing header",
			req: func(t *testing.T) *http.Request {
				return httptest.NewRequest(http.MethodPost, "/subscriptions/webhook", bytes.NewReader(checkoutMissingSubscription))
			},
		},
		{
			name: "wrong secret",
			req: func(t *testing.T) *http.Request {
				return signedRequest(t, checkoutMissingSubscription, "whsec_wrong")
			},
		},
		{
			name: "tampered body",
			req: func(t *testing.T) *http.Request {
				req := signedRequest(t, checkoutMissingSubscription, webhookSecret)
				tampered := bytes.Replace(checkoutMissingSubscription, []byte("cus_1"), []byte("cus_2"), 1)
				signed := req.Header.Get("Stripe-Signature")
				req = httptest.NewRequest(http.MethodPost, "/subscriptions/webhook", bytes.NewReader(tampered))
				req.Header.Set("Stripe-Signature", signed)
				return req
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			spy := &spyDispatcher{}
			mux := newWebhookMux(spy, billing.NewWebhookVerifier(webhookSecret))

			rr := httptest.NewRecorder()
			mux.ServeHTTP(rr, tt.req(t))

			assert.Equal(t, http.StatusBadRequest, rr.Code)
			assert.Empty(t, spy.calls)
			var body response.ErrorBody
			require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
			assert.Equal(t, http.StatusBadRequest, body.Error)
		})
	}
}

func TestWebhookMalformedObject(t *testing.T) {
	spy := &spyDispatcher{}
	mux := newWebhookMux(spy, billing.NewWebhookVerifier(webhookSecret))
	payload := []byte(`{"id":"evt_1","object":"event","type":"customer.subscription.updated","data":{"object":[1,2]}}`)

	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, signedRequest(t, payload, webhookSecret))
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Empty(t, spy.calls)
}

func TestWebhookProcessingFailure(t *testing.T) {
	spy := &spyDispatcher{outcome: service.OutcomeFailed, err: errors.New("db down")}
	mux := newWebhookMux(spy, billing.NewWebhookVerifier(webhookSecret))

	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, signedRequest(t, checkoutMissingSubscription, webhookSecret))
	assert.Equal(t, http.StatusInternalServerError, rr.Code)
	assert.Len(t, spy.calls, 1)
}

func TestWebhookNotConfigured(t *testing.T) {
	spy := &spyDispatcher{}
	mux := newWebhookMux(spy, nil)

	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, signedRequest(t, checkoutMissingSubscription, webhookSecret))
	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
	assert.Empty(t, spy.calls)
}

func TestWebhookRejectsGet(t *testing.T) {
	mux := newWebhookMux(&spyDispatcher{}, billing.NewWebhookVerifier(webhookSecret))
	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/subscriptions/webhook", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rr.Code)
}

func TestCheckoutEndpoint(t *testing.T) {
	user := &model.User{ID: "u1", Email: "u1@example.com", Tier: model.TierFree}
	tests := []struct {
		name       string
		checkout   stubCheckout
		withUser   bool
		wantStatus int
		wantURL    string
	}{
		{name: "ok", checkout: stubCheckout{url: "https://checkout.stripe.com/c/1"}, withUser: true, wantStatus: http.StatusOK, wantURL: "https://checkout.stripe.com/c/1"},
		{name: "no user", withUser: false, wantStatus: http.StatusUnauthorized},
		{name: "customer failure", checkout: stubCheckout{err: service.ErrCustomerCreate}, withUser: true, wantStatus: http.StatusBadGateway},
		{name: "session failure", checkout: stubCheckout{err: errors.New("stripe")}, withUser: true, wantStatus: http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewSubscriptionHandler(tt.checkout, nil, &spyDispatcher{}, zerolog.Nop())
			req := httptest.NewRequest(http.MethodPost, "/subscriptions", nil)
			if tt.withUser {
				req = req.WithContext(middleware.WithUser(req.Context(), user))
			}
			rr := httptest.NewRecorder()
			h.Checkout(rr, req)

			assert.Equal(t, tt.wantStatus, rr.Code)
			if tt.wantURL != "" {
				var body map[string]string
				require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
				assert.Equal(t, tt.wantURL, body["url"])
			}
		})
	}
}
