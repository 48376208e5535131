package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	domainerrors "drone-dispatch/internal/errors"
	"drone-dispatch/internal/pkg/apperrors"
)

type rateLimiter interface {
	Allow(ctx context.Context, key string, max int) (bool, error)
}

// RateBudget is the number of requests one client address may make per
// window. Reads (listing drones, medications, orders) and mutations (loading
// drones, placing orders) are counted separately so a client polling the
// fleet cannot starve its own writes.
type RateBudget struct {
	Reads     int
	Mutations int
	Window    time.Duration
}

func (b RateBudget) classify(method string) (class string, limit int) {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodOptions:
		return "read", b.Reads
	default:
		return "mutation", b.Mutations
	}
}

func RateLimit(limiter rateLimiter, budget RateBudget) gin.HandlerFunc {
	return func(c *gin.Context) {
		ip := c.ClientIP()
		class, limit := budget.classify(c.Request.Method)

		allowed, err := limiter.Allow(c.Request.Context(), class+":"+ip, limit)
		if err != nil {
			slog.ErrorContext(c.Request.Context(), "rate limiter error",
				slog.String("ip", ip),
				slog.String("error", err.Error()),
			)
			// fail open, redis being down must not take the API with it
			c.Next()
			return
		}

		if !allowed {
			slog.WarnContext(c.Request.Context(), "rate limit exceeded",
				slog.String("ip", ip),
				slog.String("class", class),
				slog.Int("limit", limit),
			)
			apperrors.Reject(c, domainerrors.ErrRateLimited, "too many requests, please try again later", budget.Window)
			return
		}

		c.Next()
	}
}
