package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRateLimiter_AllowsUnderLimit(t *testing.T) {
	limiter := NewRateLimiter(3, time.Minute)
	now := time.Now().UTC()

	for i := 0; i < 3; i++ {
		allowed, _ := limiter.allow("10.0.0.1", now)
		assert.True(t, allowed)
	}
}

func TestRateLimiter_BlocksOverLimit(t *testing.T) {
	limiter := NewRateLimiter(2, time.Minute)
	now := time.Now().UTC()

	limiter.allow("10.0.0.1", now)
	limiter.allow("10.0.0.1", now)

	allowed, retryAfter := limiter.allow("10.0.0.1", now)
	assert.False(t, allowed)
	assert.GreaterOrEqual(t, retryAfter, time.Second)

	// A different address is unaffected.
	allowed, _ = limiter.allow("10.0.0.2", now)
	assert.True(t, allowed)
}

func TestRateLimiter_WindowSlides(t *testing.T) {
	limiter := NewRateLimiter(1, time.Minute)
	now := time.Now().UTC()

	allowed, _ := limiter.allow("10.0.0.1", now)
	assert.True(t, allowed)

	allowed, _ = limiter.allow("10.0.0.1", now.Add(30*time.Second))
	assert.False(t, allowed)

	allowed, _ = limiter.allow("10.0.0.1", now.Add(61*time.Second))
	assert.True(t, allowed)
}

func TestRateLimiter_Middleware(t *testing.T) {
	limiter := NewRateLimiter(1, time.Minute)
	handler := limiter.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodPost, "/login", nil)
	req.RemoteAddr = "10.0.0.1:4000"

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))
}
