package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"chatcore/internal/redis"
	chat_errors "chatcore/pkg/errors"
	"chatcore/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

type stubUpgradeLimiter struct {
	allowed bool
	err     error
	addrs   []string
}

func (s *stubUpgradeLimiter) AllowUpgrade(_ context.Context, addr string) (*redis.RateLimitResult, error) {
	s.addrs = append(s.addrs, addr)
	if s.err != nil {
		return nil, s.err
	}
	remaining := 4
	if !s.allowed {
		remaining = 0
	}
	return &redis.RateLimitResult{Allowed: s.allowed, Remaining: remaining, ResetIn: 30 * time.Second, Limit: 5}, nil
}

func newEngine(mw ...gin.HandlerFunc) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(mw...)
	r.GET("/ok", func(c *gin.Context) {
		id, _ := c.Request.Context().Value(logger.RequestIdKey).(string)
		c.String(http.StatusOK, id)
	})
	r.GET("/missing", func(c *gin.Context) {
		_ = c.Error(chat_errors.ErrNotFound)
	})
	r.GET("/boom", func(c *gin.Context) {
		_ = c.Error(errors.New(`relation "chat_messages" does not exist`))
	})
	r.GET("/metrics", func(c *gin.Context) {
		c.String(http.StatusOK, "# metrics")
	})
	return r
}

func observed() (*logger.Logger, *observer.ObservedLogs) {
	core, logs := observer.New(zapcore.DebugLevel)
	return &logger.Logger{Logger: zap.New(core)}, logs
}

func TestRequestIDMiddleware_GeneratesAndEchoes(t *testing.T) {
	r := newEngine(RequestIDMiddleware())

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ok", nil))
	generated := w.Header().Get(RequestIDHeader)
	require.NotEmpty(t, generated)
	assert.Equal(t, generated, w.Body.String())

	req := httptest.NewRequest(http.MethodGet, "/ok", nil)
	req.Header.Set(RequestIDHeader, "abc")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, "abc", w.Header().Get(RequestIDHeader))
	assert.Equal(t, "abc", w.Body.String())
}

func TestRequestIDMiddleware_ReplacesUnsafeHeader(t *testing.T) {
	r := newEngine(RequestIDMiddleware())

	for _, supplied := range []string{"has spaces", "quote\"d", strings.Repeat("a", 65)} {
		req := httptest.NewRequest(http.MethodGet, "/ok", nil)
		req.Header.Set(RequestIDHeader, supplied)
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)

		got := w.Header().Get(RequestIDHeader)
		assert.NotEqual(t, supplied, got)
		id, err := uuid.Parse(got)
		require.NoError(t, err)
		assert.Equal(t, uuid.Version(7), id.Version())
	}
}

func TestErrorHandler_MapsSentinel(t *testing.T) {
	l, logs := observed()
	r := newEngine(ErrorHandler(l))

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/missing", nil))

	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "NOT_FOUND", w.Header().Get(ErrorCodeHeader))
	assert.Contains(t, w.Body.String(), `"NOT_FOUND"`)
	assert.Contains(t, w.Body.String(), `"not found"`)

	entries := logs.All()
	require.Len(t, entries, 1)
	assert.Equal(t, zapcore.WarnLevel, entries[0].Level)
	assert.Equal(t, "NOT_FOUND", entries[0].ContextMap()["code"])
	assert.Equal(t, "/missing", entries[0].ContextMap()["route"])
}

func TestErrorHandler_HidesUnmappedErrors(t *testing.T) {
	l, logs := observed()
	r := newEngine(ErrorHandler(l))

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/boom", nil))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, "INTERNAL_ERROR", w.Header().Get(ErrorCodeHeader))
	assert.Contains(t, w.Body.String(), `"internal error"`)
	assert.NotContains(t, w.Body.String(), "chat_messages")

	entries := logs.FilterLevelExact(zapcore.ErrorLevel).All()
	require.Len(t, entries, 1)
	assert.Contains(t, entries[0].ContextMap()["error"], "chat_messages")
}

func TestLoggingMiddleware(t *testing.T) {
	l, logs := observed()
	r := newEngine(LoggingMiddleware(l, "/metrics"), ErrorHandler(logger.Nop()))

	for _, path := range []string{"/ok", "/missing", "/metrics", "/nowhere"} {
		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, path, nil))
	}

	entries := logs.All()
	require.Len(t, entries, 3, "quiet paths are not logged when they succeed")

	assert.Equal(t, zapcore.InfoLevel, entries[0].Level)
	assert.Equal(t, "/ok", entries[0].ContextMap()["route"])
	assert.EqualValues(t, http.StatusOK, entries[0].ContextMap()["status"])

	assert.Equal(t, zapcore.WarnLevel, entries[1].Level)
	assert.EqualValues(t, http.StatusNotFound, entries[1].ContextMap()["status"])

	assert.Equal(t, "unmatched", entries[2].ContextMap()["route"])
	_, upgraded := entries[0].ContextMap()["upgrade"]
	assert.False(t, upgraded)
}

func TestUpgradeRateLimit(t *testing.T) {
	t.Run("allowed sets headers", func(t *testing.T) {
		lim := &stubUpgradeLimiter{allowed: true}
		r := newEngine(UpgradeRateLimitMiddleware(lim, logger.Nop()))

		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ok", nil))

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "5", w.Header().Get("X-RateLimit-Limit"))
		assert.Equal(t, "4", w.Header().Get("X-RateLimit-Remaining"))
		assert.Equal(t, "30", w.Header().Get("X-RateLimit-Reset"))
		assert.Len(t, lim.addrs, 1)
	})

	t.Run("denied", func(t *testing.T) {
		r := newEngine(UpgradeRateLimitMiddleware(&stubUpgradeLimiter{}, logger.Nop()))

		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ok", nil))

		assert.Equal(t, http.StatusTooManyRequests, w.Code)
		assert.Contains(t, w.Body.String(), `"RATE_LIMITED"`)
	})

	t.Run("limiter failure fails open", func(t *testing.T) {
		r := newEngine(UpgradeRateLimitMiddleware(&stubUpgradeLimiter{err: errors.New("redis down")}, logger.Nop()))

		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ok", nil))

		assert.Equal(t, http.StatusOK, w.Code)
	})
}
