package router

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"inkpost/internal/auth"
	"inkpost/internal/billing"
	"inkpost/internal/middleware"
	"inkpost/internal/model"
	"inkpost/internal/service"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubBlogs struct{ service.BlogService }

func (stubBlogs) List(context.Context, int, int) ([]model.Blog, error) {
	return []model.Blog{{ID: 1, Title: "t", Content: "c", UserID: "u"}}, nil
}

type stubUsers struct{ service.UserService }

func (stubUsers) GetOrProvision(_ context.Context, id, email string) (*model.User, error) {
	return &model.User{ID: id, Email: email, Tier: model.TierFree}, nil
}

type stubVerifier struct{}

func (stubVerifier) Verify(_ context.Context, token string) (auth.Identity, error) {
	if token != "good" {
		return auth.Identity{}, errors.New("bad token")
	}
	return auth.Identity{UserID: "00000000-0000-0000-0000-000000000001", Email: "a@example.com"}, nil
}

type stubDispatcher struct{}

func (stubDispatcher) Dispatch(context.Context, *billing.Event) (service.Outcome, error) {
	return service.OutcomeIgnored, nil
}

func newTestRouter(rateLimit int) http.Handler {
	return New(Deps{
		Users:      stubUsers{},
		Blogs:      stubBlogs{},
		Dispatcher: stubDispatcher{},
		Verifier:   stubVerifier{},
		RateLimit:  rateLimit,
	}, zerolog.Nop())
}

func TestRoutesMountedUnderBothPrefixes(t *testing.T) {
	h := newTestRouter(100)

	for _, path := range []string{"/v1/blogs", "/api/v1/blogs"} {
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, http.StatusOK, rr.Code, path)
		assert.NotEmpty(t, rr.Header().Get(middleware.RequestIDHeader), path)
	}

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/blogs", nil))
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestAuthenticatedRoute(t *testing.T) {
	h := newTestRouter(100)

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/v1/users/me", nil))
	assert.Equal(t, http.StatusUnauthorized, rr.Code)

	req := httptest.NewRequest(http.MethodGet, "/v1/users/me", nil)
	req.Header.Set("Authorization", "Bearer good")
	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "a@example.com")
}

func TestWebhookWithoutSecretIsUnavailable(t *testing.T) {
	h := newTestRouter(100)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/api/v1/subscriptions/webhook", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
}

func TestHealthAndMetrics(t *testing.T) {
	h := newTestRouter(100)

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rr.Body.String())

	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "inkpost_http_rate_limited_total")
}

func TestRateLimit(t *testing.T) {
	h := newTestRouter(2)

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodGet, "/v1/blogs", nil)
		req.RemoteAddr = "203.0.113.7:4000"
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, req)
		codes = append(codes, rr.Code)
	}
	assert.Equal(t, []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests}, codes)
}
