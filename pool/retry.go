package pool

import (
	"context"
	"errors"
	"io"
	"math"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/smnsjas/go-wspool/soap/transport"
)

// RetryPolicy controls DoRetry.
type RetryPolicy struct {
	// MaxAttempts is the total number of attempts. Values below 1 mean 1.
	MaxAttempts int

	// InitialDelay is the wait before the second attempt. Default 100ms.
	InitialDelay time.Duration

	// MaxDelay caps the wait between attempts. Default 5s.
	MaxDelay time.Duration

	// Multiplier grows the delay after each attempt. Default 2.
	Multiplier float64
}

// DefaultRetryPolicy returns three attempts with exponential backoff.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts:  3,
		InitialDelay: 100 * time.Millisecond,
		MaxDelay:     5 * time.Second,
		Multiplier:   2,
	}
}

// DoRetry is Do repeated while fn fails with a transient error: an
// exhausted pool, a dropped or timed out connection, or an HTTP 502, 503
// or 504. SOAP faults and authentication failures are returned at once.
// Each attempt borrows a stub afresh.
func (p *Pool[T]) DoRetry(ctx context.Context, policy RetryPolicy, fn func(T) error) error {
	attempts := max(policy.MaxAttempts, 1)

	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		err = p.Do(ctx, fn)
		if err == nil || attempt == attempts || !IsRetryable(err) {
			return err
		}
		if ctx.Err() != nil {
			return err
		}

		delay := retryBackoff(attempt, policy)
		p.logger.Debug("pool: retrying call", "attempt", attempt, "delay", delay, "error", err)
		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return err
		case <-timer.C:
		}
	}
	return err
}

// IsRetryable reports whether err is a transient failure worth retrying.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	switch {
	case errors.Is(err, ErrPoolClosed), errors.Is(err, ErrIllegalState):
		return false
	case errors.Is(err, context.Canceled):
		return false
	case errors.Is(err, transport.ErrUnauthorized), errors.Is(err, transport.ErrForbidden):
		return false
	case errors.Is(err, ErrPoolExhausted):
		return true
	case errors.Is(err, context.DeadlineExceeded):
		return true
	case errors.Is(err, io.EOF), errors.Is(err, io.ErrUnexpectedEOF):
		return true
	}

	var se *transport.StatusError
	if errors.As(err, &se) {
		switch se.StatusCode {
		case http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
			return true
		}
		return false
	}

	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return true
	}

	// Fallback for dial and socket errors wrapped as text.
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "connection reset") ||
		strings.Contains(msg, "connection refused") ||
		strings.Contains(msg, "broken pipe") ||
		strings.Contains(msg, "no route to host") ||
		strings.Contains(msg, "network is unreachable")
}

// retryBackoff returns the wait after the given attempt.
func retryBackoff(attempt int, policy RetryPolicy) time.Duration {
	delay := policy.InitialDelay
	if delay <= 0 {
		delay = 100 * time.Millisecond
	}
	maxDelay := policy.MaxDelay
	if maxDelay <= 0 {
		maxDelay = 5 * time.Second
	}
	if attempt <= 1 {
		return min(delay, maxDelay)
	}

	multiplier := policy.Multiplier
	if multiplier < 1 {
		multiplier = 2
	}
	backoff := float64(delay) * math.Pow(multiplier, float64(attempt-1))
	if backoff > float64(maxDelay) {
		return maxDelay
	}
	return time.Duration(backoff)
}
