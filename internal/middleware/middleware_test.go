package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domainerrors "drone-dispatch/internal/errors"
	"drone-dispatch/internal/pkg/apperrors"
	"drone-dispatch/internal/redis"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func serve(r http.Handler, method, path string, header map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(`{}`))
	req.Header.Set("Content-Type", "application/json")
	for k, v := range header {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func errorCode(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var body apperrors.ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body.Error.Code
}

func TestIdempotency_ReplaysSuccessfulResponse(t *testing.T) {
	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	var calls atomic.Int32
	r := gin.New()
	r.Use(Idempotency(redis.NewIdempotencyStore(client, time.Minute)))
	r.POST("/drones", func(c *gin.Context) {
		n := calls.Add(1)
		c.JSON(http.StatusCreated, gin.H{"call": n})
	})

	header := map[string]string{IdempotencyHeader: "abc"}
	first := serve(r, http.MethodPost, "/drones", header)
	second := serve(r, http.MethodPost, "/drones", header)

	assert.Equal(t, http.StatusCreated, second.Code)
	assert.Equal(t, first.Body.String(), second.Body.String())
	assert.Equal(t, "true", second.Header().Get("Idempotent-Replayed"))
	assert.EqualValues(t, 1, calls.Load())

	serve(r, http.MethodPost, "/drones", nil)
	assert.EqualValues(t, 2, calls.Load(), "requests without a key are not deduplicated")
}

func TestIdempotency_DoesNotStoreFailures(t *testing.T) {
	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	var calls atomic.Int32
	r := gin.New()
	r.Use(Idempotency(redis.NewIdempotencyStore(client, time.Minute)))
	r.POST("/orders", func(c *gin.Context) {
		calls.Add(1)
		apperrors.Validation(c, "bad")
	})

	header := map[string]string{IdempotencyHeader: "abc"}
	serve(r, http.MethodPost, "/orders", header)
	w := serve(r, http.MethodPost, "/orders", header)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.EqualValues(t, 2, calls.Load())
}

type brokenStore struct{}

func (brokenStore) Check(context.Context, string, string) (*redis.StoredResponse, bool, error) {
	return nil, false, errors.New("redis down")
}

func (brokenStore) Set(context.Context, string, string, redis.StoredResponse) error {
	return errors.New("redis down")
}

func TestIdempotency_FailsOpen(t *testing.T) {
	r := gin.New()
	r.Use(Idempotency(brokenStore{}))
	r.POST("/drones", func(c *gin.Context) { c.Status(http.StatusCreated) })

	w := serve(r, http.MethodPost, "/drones", map[string]string{IdempotencyHeader: "abc"})
	assert.Equal(t, http.StatusCreated, w.Code)
}

func TestBulkhead(t *testing.T) {
	entered := make(chan struct{})
	unblock := make(chan struct{})

	r := gin.New()
	r.Use(Bulkhead(1, 0))
	r.POST("/slow", func(c *gin.Context) {
		close(entered)
		<-unblock
		c.Status(http.StatusOK)
	})
	r.POST("/fast", func(c *gin.Context) { c.Status(http.StatusOK) })

	done := make(chan int)
	go func() {
		done <- serve(r, http.MethodPost, "/slow", nil).Code
	}()
	<-entered

	w := serve(r, http.MethodPost, "/fast", nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Equal(t, domainerrors.ErrUnavailable, errorCode(t, w))
	assert.Equal(t, "1", w.Header().Get("Retry-After"))

	close(unblock)
	assert.Equal(t, http.StatusOK, <-done)
	assert.Equal(t, http.StatusOK, serve(r, http.MethodPost, "/fast", nil).Code)
}

func TestBulkhead_WaitsForFreedSlot(t *testing.T) {
	entered := make(chan struct{})
	unblock := make(chan struct{})

	r := gin.New()
	r.Use(Bulkhead(1, 2*time.Second))
	r.POST("/slow", func(c *gin.Context) {
		close(entered)
		<-unblock
		c.Status(http.StatusOK)
	})
	r.POST("/fast", func(c *gin.Context) { c.Status(http.StatusCreated) })

	go serve(r, http.MethodPost, "/slow", nil)
	<-entered

	go func() {
		time.Sleep(50 * time.Millisecond)
		close(unblock)
	}()
	assert.Equal(t, http.StatusCreated, serve(r, http.MethodPost, "/fast", nil).Code)
}

func TestCircuitBreaker(t *testing.T) {
	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	status := http.StatusInternalServerError

	r := gin.New()
	r.Use(circuitBreakerWithClock(2, 30*time.Second, func() time.Time { return now }))
	r.GET("/drones", func(c *gin.Context) { c.Status(status) })
	r.GET("/orders", func(c *gin.Context) { c.Status(http.StatusOK) })

	serve(r, http.MethodGet, "/drones", nil)
	serve(r, http.MethodGet, "/drones", nil)

	w := serve(r, http.MethodGet, "/drones", nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Equal(t, domainerrors.ErrCircuitOpen, errorCode(t, w))
	assert.Equal(t, http.StatusOK, serve(r, http.MethodGet, "/orders", nil).Code, "breakers are per route")

	// a failed trial request reopens the circuit
	now = now.Add(31 * time.Second)
	assert.Equal(t, http.StatusInternalServerError, serve(r, http.MethodGet, "/drones", nil).Code)
	assert.Equal(t, http.StatusServiceUnavailable, serve(r, http.MethodGet, "/drones", nil).Code)

	now = now.Add(31 * time.Second)
	status = http.StatusOK
	assert.Equal(t, http.StatusOK, serve(r, http.MethodGet, "/drones", nil).Code)
	assert.Equal(t, http.StatusOK, serve(r, http.MethodGet, "/drones", nil).Code)
}

func TestCircuitBreaker_IgnoresClientErrors(t *testing.T) {
	r := gin.New()
	r.Use(CircuitBreaker(1, time.Minute))
	r.GET("/drones/:id", func(c *gin.Context) { c.Status(http.StatusNotFound) })

	for i := 0; i < 3; i++ {
		assert.Equal(t, http.StatusNotFound, serve(r, http.MethodGet, "/drones/x", nil).Code)
	}
}

func TestCircuitBreaker_RetryAfterIsRemainingCooldown(t *testing.T) {
	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)

	r := gin.New()
	r.Use(circuitBreakerWithClock(1, 30*time.Second, func() time.Time { return now }))
	r.GET("/orders", func(c *gin.Context) { c.Status(http.StatusInternalServerError) })

	serve(r, http.MethodGet, "/orders", nil)
	now = now.Add(10 * time.Second)

	w := serve(r, http.MethodGet, "/orders", nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Equal(t, "20", w.Header().Get("Retry-After"))
}

func TestCircuitBreaker_PanicInHalfOpenReopens(t *testing.T) {
	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	mode := "fail"

	r := gin.New()
	r.Use(Recovery())
	r.Use(circuitBreakerWithClock(1, 30*time.Second, func() time.Time { return now }))
	r.POST("/orders", func(c *gin.Context) {
		switch mode {
		case "fail":
			c.Status(http.StatusInternalServerError)
		case "panic":
			panic("lost connection mid-transaction")
		default:
			c.Status(http.StatusCreated)
		}
	})

	assert.Equal(t, http.StatusInternalServerError, serve(r, http.MethodPost, "/orders", nil).Code)

	now = now.Add(31 * time.Second)
	mode = "panic"
	assert.Equal(t, http.StatusInternalServerError, serve(r, http.MethodPost, "/orders", nil).Code)
	assert.Equal(t, http.StatusServiceUnavailable, serve(r, http.MethodPost, "/orders", nil).Code)

	// the panic reopened the circuit; the next cooldown lets a trial through
	now = now.Add(31 * time.Second)
	mode = "ok"
	assert.Equal(t, http.StatusCreated, serve(r, http.MethodPost, "/orders", nil).Code)
	assert.Equal(t, http.StatusCreated, serve(r, http.MethodPost, "/orders", nil).Code)
}

func TestCircuitBreaker_SkipsUnmatchedRoutes(t *testing.T) {
	r := gin.New()
	r.Use(CircuitBreaker(1, time.Hour))
	r.NoRoute(func(c *gin.Context) { c.Status(http.StatusInternalServerError) })

	for i := 0; i < 3; i++ {
		w := serve(r, http.MethodGet, fmt.Sprintf("/unknown/%d", i), nil)
		assert.Equal(t, http.StatusInternalServerError, w.Code)
		w = serve(r, http.MethodGet, "/unknown/0", nil)
		assert.Equal(t, http.StatusInternalServerError, w.Code, "unmatched paths never trip a breaker")
	}
}

func TestRecovery(t *testing.T) {
	r := gin.New()
	r.Use(Recovery())
	r.GET("/boom", func(c *gin.Context) { panic("nil map write") })

	w := serve(r, http.MethodGet, "/boom", nil)
	assert.Equal(t, http.StatusInternalServerError, w.Code)

	var body apperrors.ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, apperrors.MaskedMessage, body.Error.Message)
	assert.NotContains(t, w.Body.String(), "nil map write")
}

type stubLimiter struct {
	allowed bool
	err     error
	keys    []string
	limits  []int
}

func (s *stubLimiter) Allow(_ context.Context, key string, limit int) (bool, error) {
	s.keys = append(s.keys, key)
	s.limits = append(s.limits, limit)
	return s.allowed, s.err
}

func TestRateLimit(t *testing.T) {
	budget := RateBudget{Reads: 100, Mutations: 30, Window: time.Minute}
	tests := []struct {
		name    string
		limiter *stubLimiter
		want    int
	}{
		{"allowed", &stubLimiter{allowed: true}, http.StatusOK},
		{"limited", &stubLimiter{allowed: false}, http.StatusTooManyRequests},
		{"limiter down", &stubLimiter{err: errors.New("redis down")}, http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := gin.New()
			r.Use(RateLimit(tt.limiter, budget))
			r.GET("/drones", func(c *gin.Context) { c.Status(http.StatusOK) })
			assert.Equal(t, tt.want, serve(r, http.MethodGet, "/drones", nil).Code)
		})
	}
}

func TestRateLimit_SeparateMutationBudget(t *testing.T) {
	limiter := &stubLimiter{allowed: true}
	r := gin.New()
	r.Use(RateLimit(limiter, RateBudget{Reads: 100, Mutations: 30, Window: time.Minute}))
	r.GET("/drones", func(c *gin.Context) { c.Status(http.StatusOK) })
	r.POST("/orders", func(c *gin.Context) { c.Status(http.StatusCreated) })

	serve(r, http.MethodGet, "/drones", nil)
	serve(r, http.MethodPost, "/orders", nil)

	require.Len(t, limiter.keys, 2)
	assert.Equal(t, "read:192.0.2.1", limiter.keys[0])
	assert.Equal(t, "mutation:192.0.2.1", limiter.keys[1])
	assert.Equal(t, []int{100, 30}, limiter.limits)
}

func TestRateLimit_RetryAfter(t *testing.T) {
	r := gin.New()
	r.Use(RateLimit(&stubLimiter{allowed: false}, RateBudget{Reads: 1, Mutations: 1, Window: time.Minute}))
	r.POST("/orders", func(c *gin.Context) { c.Status(http.StatusCreated) })

	w := serve(r, http.MethodPost, "/orders", nil)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "60", w.Header().Get("Retry-After"))
	assert.Equal(t, domainerrors.ErrRateLimited, errorCode(t, w))
}
