package middleware

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	domainerrors "drone-dispatch/internal/errors"
	"drone-dispatch/internal/pkg/apperrors"
)

type circuitState int

const (
	stateClosed   circuitState = iota // normal operation
	stateOpen                         // rejecting requests
	stateHalfOpen                     // one trial request in flight
)

type circuitBreaker struct {
	mu          sync.Mutex
	state       circuitState
	failures    int
	threshold   int
	cooldown    time.Duration
	lastFailure time.Time
	now         func() time.Time
}

// allow reports whether the request may go through and, when it may not, how
// long until the next trial request.
func (cb *circuitBreaker) allow() (bool, time.Duration) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case stateOpen:
		elapsed := cb.now().Sub(cb.lastFailure)
		if elapsed > cb.cooldown {
			cb.state = stateHalfOpen
			return true, 0
		}
		return false, cb.cooldown - elapsed
	case stateHalfOpen:
		return false, cb.cooldown
	default:
		return true, 0
	}
}

func (cb *circuitBreaker) record(failed bool) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if !failed {
		cb.failures = 0
		cb.state = stateClosed
		return
	}

	cb.failures++
	cb.lastFailure = cb.now()
	if cb.failures >= cb.threshold || cb.state == stateHalfOpen {
		cb.state = stateOpen
	}
}

// CircuitBreaker keeps one breaker per route. A route that answers with
// threshold consecutive 5xx responses is short-circuited with a 503 until
// cooldown has passed, after which a single trial request is let through.
func CircuitBreaker(threshold int, cooldown time.Duration) gin.HandlerFunc {
	return circuitBreakerWithClock(threshold, cooldown, time.Now)
}

func circuitBreakerWithClock(threshold int, cooldown time.Duration, now func() time.Time) gin.HandlerFunc {
	var breakers sync.Map

	return func(c *gin.Context) {
		// Unmatched paths get no breaker.
		route := c.FullPath()
		if route == "" {
			c.Next()
			return
		}

		val, _ := breakers.LoadOrStore(route, &circuitBreaker{threshold: threshold, cooldown: cooldown, now: now})
		cb := val.(*circuitBreaker)

		if ok, wait := cb.allow(); !ok {
			apperrors.Reject(c, domainerrors.ErrCircuitOpen, "service temporarily unavailable", wait)
			return
		}

		// A panic is recorded as a failure, then handed on to Recovery.
		defer func() {
			if p := recover(); p != nil {
				cb.record(true)
				panic(p)
			}
		}()

		c.Next()

		cb.record(c.Writer.Status() >= http.StatusInternalServerError)
	}
}
