package middleware

import (
	"bytes"
	"context"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"drone-dispatch/internal/redis"
)

const IdempotencyHeader = "Idempotency-Key"

type idempotencyStore interface {
	Check(ctx context.Context, scope, key string) (*redis.StoredResponse, bool, error)
	Set(ctx context.Context, scope, key string, resp redis.StoredResponse) error
}

// responseRecorder captures the response body so we can store it.
type responseRecorder struct {
	gin.ResponseWriter
	body *bytes.Buffer
}

func (r *responseRecorder) Write(b []byte) (int, error) {
	r.body.Write(b)
	return r.ResponseWriter.Write(b)
}

// Idempotency replays the stored response when a mutation is retried with the
// same Idempotency-Key on the same path. Requests without the header pass
// straight through.
func Idempotency(store idempotencyStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := c.GetHeader(IdempotencyHeader)
		if key == "" || c.Request.Method == http.MethodGet {
			c.Next()
			return
		}

		scope := c.Request.Method + " " + c.Request.URL.Path
		ctx := c.Request.Context()

		cached, found, err := store.Check(ctx, scope, key)
		if err != nil {
			slog.ErrorContext(ctx, "idempotency check failed",
				slog.String("error", err.Error()),
			)
			// fail open
			c.Next()
			return
		}

		if found {
			c.Header("Idempotent-Replayed", "true")
			c.Data(cached.Status, "application/json; charset=utf-8", cached.Body)
			c.Abort()
			return
		}

		rec := &responseRecorder{body: &bytes.Buffer{}, ResponseWriter: c.Writer}
		c.Writer = rec

		c.Next()

		// Only successful responses are replayed.
		status := c.Writer.Status()
		if status >= 200 && status < 300 {
			resp := redis.StoredResponse{Status: status, Body: rec.body.Bytes()}
			if err := store.Set(ctx, scope, key, resp); err != nil {
				slog.ErrorContext(ctx, "idempotency store failed",
					slog.String("error", err.Error()),
				)
			}
		}
	}
}
