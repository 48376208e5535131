package middleware

import (
	"log/slog"
	"time"

	"github.com/gin-gonic/gin"

	domainerrors "drone-dispatch/internal/errors"
	"drone-dispatch/internal/pkg/apperrors"
)

// Bulkhead caps how many mutations (drone transitions, order placement,
// medication writes) touch the database at once. A request waits up to
// queueTimeout for a slot and is then shed with a 503. A zero queueTimeout
// sheds immediately.
func Bulkhead(maxConcurrent int, queueTimeout time.Duration) gin.HandlerFunc {
	slots := make(chan struct{}, maxConcurrent)

	return func(c *gin.Context) {
		if !acquire(c, slots, queueTimeout) {
			slog.WarnContext(c.Request.Context(), "mutation shed by bulkhead",
				slog.String("route", c.FullPath()),
				slog.Int("in_flight", len(slots)),
			)
			apperrors.Reject(c, domainerrors.ErrUnavailable,
				"too many changes in progress, please retry shortly", retryAfter(queueTimeout))
			return
		}
		defer func() { <-slots }()

		c.Next()
	}
}

func acquire(c *gin.Context, slots chan struct{}, wait time.Duration) bool {
	select {
	case slots <- struct{}{}:
		return true
	default:
	}
	if wait <= 0 {
		return false
	}

	timer := time.NewTimer(wait)
	defer timer.Stop()
	select {
	case slots <- struct{}{}:
		return true
	case <-timer.C:
		return false
	case <-c.Request.Context().Done():
		return false
	}
}

// retryAfter never advertises less than a second.
func retryAfter(d time.Duration) time.Duration {
	return max(d, time.Second)
}
