package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/baechuer/real-time-ressys/services/account-service/internal/domain"
	"github.com/baechuer/real-time-ressys/services/account-service/internal/infrastructure/redis"
)

type fakeLimiter struct {
	dec    redis.Decision
	err    error
	gotKey string
}

func (f *fakeLimiter) AllowFixedWindow(_ context.Context, key string, limit int, _ time.Duration) (redis.Decision, error) {
	f.gotKey = key
	if f.err != nil {
		return redis.Decision{}, f.err
	}
	d := f.dec
	d.Limit = limit
	return d, nil
}

func serveLimited(t *testing.T, l RateLimiter, req *http.Request) (*httptest.ResponseRecorder, *writeErrRecorder, *nextRecorder) {
	t.Helper()
	rr := httptest.NewRecorder()
	we := &writeErrRecorder{}
	nx := &nextRecorder{}
	mw := RateLimitFixedWindow(l, FixedWindowConfig{RouteKey: "login", Limit: 5, Window: time.Minute}, we.fn)
	mw(nx).ServeHTTP(rr, req)
	return rr, we, nx
}

func TestRateLimit_Allowed_SetsHeaders(t *testing.T) {
	l := &fakeLimiter{dec: redis.Decision{Allowed: true, Remaining: 4}}
	req := httptest.NewRequest(http.MethodPost, "/account/v1/login", nil)
	req.RemoteAddr = "10.0.0.7:5555"

	rr, we, nx := serveLimited(t, l, req)

	assert.Equal(t, 1, nx.calls)
	assert.Equal(t, 0, we.calls)
	assert.Equal(t, "5", rr.Header().Get("X-RateLimit-Limit"))
	assert.Equal(t, "4", rr.Header().Get("X-RateLimit-Remaining"))
	assert.Equal(t, "account:rl:login:ip:10.0.0.7", l.gotKey)
}

func TestRateLimit_Denied_ReturnsRetryAfterMeta(t *testing.T) {
	l := &fakeLimiter{dec: redis.Decision{Allowed: false, RetryAfter: 1500 * time.Millisecond}}
	req := httptest.NewRequest(http.MethodPost, "/account/v1/login", nil)

	_, we, nx := serveLimited(t, l, req)

	assert.Equal(t, 0, nx.calls)
	require.Equal(t, 1, we.calls)

	var de *domain.Error
	require.True(t, errors.As(we.last, &de))
	assert.Equal(t, "rate_limited", de.Code)
	assert.Equal(t, "2", de.Meta["retry_after"])
	assert.Equal(t, "login", de.Meta["scope"])
}

func TestRateLimit_LimiterError_FailsOpen(t *testing.T) {
	l := &fakeLimiter{err: errors.New("redis down")}
	req := httptest.NewRequest(http.MethodPost, "/account/v1/login", nil)

	_, we, nx := serveLimited(t, l, req)

	assert.Equal(t, 1, nx.calls)
	assert.Equal(t, 0, we.calls)
}

func TestRateLimit_NilLimiter_Passes(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/account/v1/login", nil)
	_, we, nx := serveLimited(t, nil, req)

	assert.Equal(t, 1, nx.calls)
	assert.Equal(t, 0, we.calls)
}

func TestRateLimit_PrefersAccountID(t *testing.T) {
	l := &fakeLimiter{dec: redis.Decision{Allowed: true}}
	req := httptest.NewRequest(http.MethodPost, "/", nil)
	req = req.WithContext(WithAccount(req.Context(), "acc-9", "free"))

	serveLimited(t, l, req)

	assert.Equal(t, "account:rl:login:u:acc-9", l.gotKey)
}

func TestClientIP_XForwardedFor(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Forwarded-For", " 203.0.113.9 , 10.0.0.1")
	assert.Equal(t, "203.0.113.9", clientIP(req))
}
