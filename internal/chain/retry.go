package chain

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"net"
	"net/http"
	"time"

	"github.com/ethereum/go-ethereum/rpc"

	depoterr "github.com/mrz1836/depot/pkg/errors"
)

// Transient failure classes.
var (
	ErrRetryable = &depoterr.DepotError{
		Code:     "RETRYABLE_ERROR",
		Message:  "retryable error",
		ExitCode: depoterr.ExitGeneral,
	}

	ErrTimeout = &depoterr.DepotError{
		Code:     "TIMEOUT",
		Message:  "operation timed out",
		ExitCode: depoterr.ExitGeneral,
	}

	ErrRateLimited = &depoterr.DepotError{
		Code:     "RATE_LIMITED",
		Message:  "rate limited",
		ExitCode: depoterr.ExitGeneral,
	}
)

// RetryConfig bounds how often and how slowly a transient failure is retried.
type RetryConfig struct {
	// MaxAttempts counts the first call. Values below one mean one.
	MaxAttempts int
	// BaseDelay doubles after every failed attempt up to MaxDelay.
	BaseDelay time.Duration
	MaxDelay  time.Duration
}

// DefaultRetryConfig allows three attempts, waiting roughly 500ms then 1s.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts: 3,
		BaseDelay:   500 * time.Millisecond,
		MaxDelay:    2 * time.Second,
	}
}

// NoRetry runs an operation exactly once.
func NoRetry() RetryConfig {
	return RetryConfig{MaxAttempts: 1}
}

// Retry runs operation under DefaultRetryConfig.
func Retry[T any](ctx context.Context, operation func() (T, error)) (T, error) {
	return RetryWithConfig(ctx, DefaultRetryConfig(), operation)
}

// RetryWithConfig runs operation until it succeeds, fails with an error
// IsRetryable rejects, or cfg.MaxAttempts is used up. A single-attempt
// config returns the operation's error unwrapped.
func RetryWithConfig[T any](ctx context.Context, cfg RetryConfig, operation func() (T, error)) (T, error) {
	limit := max(cfg.MaxAttempts, 1)

	for attempt := 1; ; attempt++ {
		result, err := operation()
		switch {
		case err == nil:
			return result, nil
		case !IsRetryable(err):
			return result, err
		case attempt == limit && limit == 1:
			return result, err
		case attempt == limit:
			return result, fmt.Errorf("operation failed after %d attempts: %w", limit, err)
		}

		if waitErr := backoff(ctx, cfg.delay(attempt)); waitErr != nil {
			return result, waitErr
		}
	}
}

// delay is the pause after the given failed attempt (1-based), jittered
// into [d/2, d).
func (c RetryConfig) delay(attempt int) time.Duration {
	d := min(c.BaseDelay<<(attempt-1), c.MaxDelay)
	if d/2 <= 0 {
		return d
	}
	return d/2 + rand.N(d/2) //nolint:gosec // G404: jitter only
}

func backoff(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// IsRetryable reports whether err is transient. Timeouts and rate limiting
// qualify, as do 5xx and 429 responses from the JSON-RPC endpoint.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}

	if errors.Is(err, ErrRetryable) ||
		errors.Is(err, ErrTimeout) ||
		errors.Is(err, ErrRateLimited) ||
		errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	var httpErr rpc.HTTPError
	if errors.As(err, &httpErr) {
		return httpErr.StatusCode == http.StatusTooManyRequests || httpErr.StatusCode >= http.StatusInternalServerError
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	return false
}

// WrapRetryable marks err as transient for IsRetryable.
func WrapRetryable(err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrRetryable, err)
}
