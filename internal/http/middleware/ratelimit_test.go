package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRateLimiterAllowNSpendsBurst(t *testing.T) {
	rl := NewRateLimiter(0.0001, 3)

	assert.True(t, rl.AllowN("1.2.3.4", 1))
	assert.True(t, rl.AllowN("1.2.3.4", 1))
	assert.True(t, rl.AllowN("1.2.3.4", 1))
	assert.False(t, rl.AllowN("1.2.3.4", 1), "burst exhausted")
}

func TestRateLimiterKeysAreIndependent(t *testing.T) {
	rl := NewRateLimiter(0.0001, 1)

	require.True(t, rl.AllowN("1.2.3.4", 1))
	require.False(t, rl.AllowN("1.2.3.4", 1))
	assert.True(t, rl.AllowN("5.6.7.8", 1), "other clients keep their own budget")
}

func TestRateLimiterHeavyCostDrainsFaster(t *testing.T) {
	rl := NewRateLimiter(0.0001, 10)

	// Two model-backed turns at cost 4 fit; a third does not, while a cheap
	// read still passes on the remaining budget.
	assert.True(t, rl.AllowN("c", 4))
	assert.True(t, rl.AllowN("c", 4))
	assert.False(t, rl.AllowN("c", 4))
	assert.True(t, rl.AllowN("c", 1))
}

func TestRateLimitHandlerRejectsWith429(t *testing.T) {
	rl := NewRateLimiter(0.0001, 1)
	handler := rl.Handler(UnitCost)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("X-Real-Ip", "9.9.9.9")

	first := httptest.NewRecorder()
	handler.ServeHTTP(first, req)
	require.Equal(t, http.StatusOK, first.Code)

	second := httptest.NewRecorder()
	handler.ServeHTTP(second, req)
	assert.Equal(t, http.StatusTooManyRequests, second.Code)
}

func TestRateLimitHandlerUsesCostFunc(t *testing.T) {
	rl := NewRateLimiter(0.0001, 4)
	cost := func(r *http.Request) float64 {
		if r.URL.Path == "/api/v1/conversation/send-message" {
			return 4
		}
		return 1
	}
	handler := rl.Handler(cost)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	turn := httptest.NewRequest(http.MethodPost, "/api/v1/conversation/send-message", nil)
	turn.Header.Set("X-Real-Ip", "7.7.7.7")

	first := httptest.NewRecorder()
	handler.ServeHTTP(first, turn)
	require.Equal(t, http.StatusOK, first.Code)

	// One turn emptied the bucket; a second turn is rejected but a cheap
	// request from another client is unaffected.
	second := httptest.NewRecorder()
	handler.ServeHTTP(second, turn)
	assert.Equal(t, http.StatusTooManyRequests, second.Code)

	health := httptest.NewRequest(http.MethodGet, "/health", nil)
	health.Header.Set("X-Real-Ip", "8.8.8.8")
	ok := httptest.NewRecorder()
	handler.ServeHTTP(ok, health)
	assert.Equal(t, http.StatusOK, ok.Code)
}
