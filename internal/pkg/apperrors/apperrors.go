package apperrors

import (
	"errors"
	"log/slog"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	domainerrors "drone-dispatch/internal/errors"
)

// MaskedMessage replaces the detail of every unclassified failure.
const MaskedMessage = "This is a system level issue. We are fixing it. Please bear with us"

type ErrorResponse struct {
	Error ErrorBody `json:"error"`
}

type ErrorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

var codeToStatus = map[string]int{
	domainerrors.ErrNotFound:          http.StatusNotFound,
	domainerrors.ErrInvalidTransition: http.StatusUnprocessableEntity,
	domainerrors.ErrConflict:          http.StatusConflict,
	domainerrors.ErrValidation:        http.StatusBadRequest,
	domainerrors.ErrInternal:          http.StatusInternalServerError,
	domainerrors.ErrRateLimited:       http.StatusTooManyRequests,
	domainerrors.ErrUnavailable:       http.StatusServiceUnavailable,
	domainerrors.ErrCircuitOpen:       http.StatusServiceUnavailable,
}

// StatusFor returns the HTTP status a domain error code maps to.
func StatusFor(code string) int {
	if status, ok := codeToStatus[code]; ok {
		return status
	}
	return http.StatusInternalServerError
}

func ToHTTPError(c *gin.Context, err error) {
	var domainErr *domainerrors.DomainError
	if errors.As(err, &domainErr) && domainErr.Code != domainerrors.ErrInternal {
		c.JSON(StatusFor(domainErr.Code), ErrorResponse{
			Error: ErrorBody{
				Code:    domainErr.Code,
				Message: domainErr.Message,
			},
		})
		return
	}

	slog.ErrorContext(c.Request.Context(), "request failed",
		slog.String("method", c.Request.Method),
		slog.String("path", c.Request.URL.Path),
		slog.String("error", err.Error()),
	)
	_ = c.Error(err)

	c.JSON(http.StatusInternalServerError, ErrorResponse{
		Error: ErrorBody{
			Code:    domainerrors.ErrInternal,
			Message: MaskedMessage,
		},
	})
}

// Validation writes a 400 for request binding failures.
func Validation(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, ErrorResponse{
		Error: ErrorBody{Code: domainerrors.ErrValidation, Message: msg},
	})
}

// Reject aborts the request with a load-shedding code. A positive retryAfter
// is sent as Retry-After, rounded up to whole seconds.
func Reject(c *gin.Context, code, msg string, retryAfter time.Duration) {
	if retryAfter > 0 {
		c.Header("Retry-After", strconv.Itoa(int(math.Ceil(retryAfter.Seconds()))))
	}
	c.AbortWithStatusJSON(StatusFor(code), ErrorResponse{
		Error: ErrorBody{Code: code, Message: msg},
	})
}
