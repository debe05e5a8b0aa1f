package httpapi

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"warungpos/backend/internal/seed"
	"warungpos/backend/internal/service"
	"warungpos/backend/internal/store"
	"warungpos/backend/internal/syncqueue"
)

func TestMiddlewareSetsSecurityHeaders(t *testing.T) {
	h := newTestAPI(t)

	rec := doJSON(t, h, http.MethodGet, "/healthz", "", nil)

	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "DENY", rec.Header().Get("X-Frame-Options"))
	assert.NotEmpty(t, rec.Header().Get("Referrer-Policy"))
}

func TestCORSPreflight(t *testing.T) {
	h := newTestAPI(t)
	req := httptest.NewRequest(http.MethodOptions, "/api/auth/login", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	req.Header.Set("Access-Control-Request-Headers", "Content-Type")
	rec := httptest.NewRecorder()

	h.ServeHTTP(rec, req)

	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Contains(t, rec.Header().Get("Access-Control-Allow-Methods"), http.MethodPost)
}

func TestLoginRateLimitReturns429(t *testing.T) {
	h := newTestAPI(t)
	body := fmt.Sprintf(`{"email":%q,"password":"wrong-pass"}`, seed.OwnerEmail)

	for i := 0; i < 6; i++ {
		req := httptest.NewRequest(http.MethodPost, "/api/auth/login", strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		req.RemoteAddr = "127.0.0.1:5000"
		rec := httptest.NewRecorder()

		h.ServeHTTP(rec, req)

		if i < 5 {
			require.Equal(t, http.StatusUnauthorized, rec.Code, "attempt %d before limit", i+1)
			continue
		}
		assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	}
}

func TestLoginRateLimitIgnoresForwardedHeaders(t *testing.T) {
	h := newTestAPI(t)
	body := fmt.Sprintf(`{"email":%q,"password":"wrong-pass"}`, seed.OwnerEmail)

	limited := 0
	for i := 0; i < 10; i++ {
		req := httptest.NewRequest(http.MethodPost, "/api/auth/login", strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("X-Forwarded-For", fmt.Sprintf("10.0.0.%d", i+1))
		req.Header.Set("X-Real-IP", fmt.Sprintf("10.0.1.%d", i+1))
		req.RemoteAddr = "127.0.0.1:5000"
		rec := httptest.NewRecorder()

		h.ServeHTTP(rec, req)

		if rec.Code == http.StatusTooManyRequests {
			limited++
		}
	}
	assert.Equal(t, 5, limited)
}

func TestJSONBodyTooLargeRejected(t *testing.T) {
	h := newTestAPI(t)
	veryLong := strings.Repeat("a", maxBodyBytes+1024)
	body := fmt.Sprintf(`{"email":"%s","password":"x"}`, veryLong)

	req := httptest.NewRequest(http.MethodPost, "/api/auth/login", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()

	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
}

func TestLargeResponsesAreGzipped(t *testing.T) {
	h := newTestAPI(t)
	token := login(t, h, seed.OwnerEmail, "admin123")

	req := httptest.NewRequest(http.MethodGet, "/api/stores/"+seed.MainStoreID+"/products", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept-Encoding", "gzip")
	rec := httptest.NewRecorder()

	h.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "gzip", rec.Header().Get("Content-Encoding"))
}

func TestMetricsEndpointExposesRouteHistogram(t *testing.T) {
	h := newTestAPI(t)
	doJSON(t, h, http.MethodGet, "/healthz", "", nil)

	rec := doJSON(t, h, http.MethodGet, "/metrics", "", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `warungpos_http_request_duration_seconds_count{method="GET",route="/healthz",status="200"}`)
}

func TestServerErrorsHideDetails(t *testing.T) {
	rec := httptest.NewRecorder()

	writeError(rec, http.StatusInternalServerError, errors.New("pq: connection refused on 10.0.0.5"))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "10.0.0.5")
	assert.Contains(t, rec.Body.String(), "internal server error")
}

func TestStatusForMapsErrorTaxonomy(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"validation", fmt.Errorf("%w: name is required", store.ErrInvalidInput), http.StatusBadRequest},
		{"unauthenticated", service.ErrUnauthenticated, http.StatusUnauthorized},
		{"forbidden", fmt.Errorf("%w: no access", service.ErrForbidden), http.StatusForbidden},
		{"not found", store.ErrNotFound, http.StatusNotFound},
		{"stock", fmt.Errorf("%w: Kopi", store.ErrInsufficientStock), http.StatusConflict},
		{"conflict", store.ErrConflict, http.StatusConflict},
		{"queue full", syncqueue.ErrQueueFull, http.StatusServiceUnavailable},
		{"unknown", errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, statusFor(tt.err))
		})
	}
}

func TestParsePositiveLimitCaps(t *testing.T) {
	assert.Equal(t, 100, parsePositiveLimit("", 100, 500))
	assert.Equal(t, 100, parsePositiveLimit("-3", 100, 500))
	assert.Equal(t, 100, parsePositiveLimit("abc", 100, 500))
	assert.Equal(t, 20, parsePositiveLimit(" 20 ", 100, 500))
	assert.Equal(t, 500, parsePositiveLimit("9999", 100, 500))
}

func TestClientKeyStripsPort(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "10.1.2.3:5555"
	assert.Equal(t, "10.1.2.3", clientKey(req))

	req.RemoteAddr = "[::1]:8080"
	assert.Equal(t, "::1", clientKey(req))

	req.RemoteAddr = ""
	assert.Equal(t, "unknown", clientKey(req))
}

func TestAttemptLimiterIsPerKey(t *testing.T) {
	l := newAttemptLimiter(2, 0)
	assert.True(t, l.Allow("a"))
	assert.True(t, l.Allow("a"))
	assert.False(t, l.Allow("a"))
	assert.True(t, l.Allow("b"))

	var nilLimiter *attemptLimiter
	assert.True(t, nilLimiter.Allow("a"))
}
