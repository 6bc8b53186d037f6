// Package resilience provides the retry and circuit breaker helpers used
// around scoring calls. The scoring client itself never retries; callers opt
// in here.
package resilience

import (
	"context"
	"errors"
	"net"
	"syscall"

	"github.com/sells-group/risk-alerts/pkg/scoring"
)

// IsTransient reports whether err is worth another attempt: a transient HTTP
// status, a per-call timeout, or a dropped connection. Malformed responses
// and caller cancellation are not transient.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, scoring.ErrMalformedResponse) {
		return false
	}

	var apiErr *scoring.APIError
	if errors.As(err, &apiErr) {
		return IsTransientHTTPStatus(apiErr.StatusCode)
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	return errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.ECONNABORTED)
}

// IsTransientHTTPStatus returns true for statuses that may succeed on retry.
func IsTransientHTTPStatus(statusCode int) bool {
	switch statusCode {
	case 408, 429, 500, 502, 503, 504:
		return true
	default:
		return false
	}
}
