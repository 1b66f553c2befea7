// Package httpx holds the retry helpers shared by the outbound API clients.
package httpx

import (
	"context"
	"errors"
	"math/rand"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"
)

type statusCoder interface {
	HTTPStatusCode() int
}

// IsRetryableError reports whether an outbound request failure is worth
// another attempt: timeouts, transient network errors, and 408/429/5xx
// responses from errors that carry a status code.
func IsRetryableError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) && (netErr.Timeout() || netErr.Temporary()) {
		return true
	}
	var sc statusCoder
	if errors.As(err, &sc) {
		code := sc.HTTPStatusCode()
		return code == http.StatusRequestTimeout ||
			code == http.StatusTooManyRequests ||
			(code >= 500 && code <= 599)
	}
	return false
}

// RetryAfterDuration picks the wait before the next attempt, honoring the
// server's Retry-After header when present, capped at max.
func RetryAfterDuration(resp *http.Response, fallback, max time.Duration) time.Duration {
	wait := fallback
	if resp != nil {
		if secs, err := strconv.Atoi(strings.TrimSpace(resp.Header.Get("Retry-After"))); err == nil && secs > 0 {
			wait = time.Duration(secs) * time.Second
		}
	}
	if max > 0 && wait > max {
		wait = max
	}
	return wait
}

// JitterSleep spreads a backoff over +/-20% so retries from concurrent
// conversations don't line up.
func JitterSleep(base time.Duration) time.Duration {
	if base <= 0 {
		return 0
	}
	spread := 0.8 + 0.4*rand.Float64()
	return time.Duration(float64(base) * spread)
}
