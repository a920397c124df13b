package chain

import (
	"context"
	"errors"
	"math/rand/v2"
	"strconv"
	"time"

	"github.com/x1wallet/walletcore/internal/metrics"
	walleterr "github.com/x1wallet/walletcore/pkg/errors"
)

// Policy configures retry behavior for RPC calls.
type Policy struct {
	MaxAttempts    int           // Attempts including the first
	BaseDelay      time.Duration // Delay before the first retry
	MaxDelay       time.Duration // Cap on the exponential delay
	Jitter         time.Duration // Upper bound of the random delay added to each wait
	AttemptTimeout time.Duration // Deadline for a single attempt, zero for none
}

// DefaultPolicy returns five attempts with delays 1s, 2s, 4s, 8s plus up to
// 500ms of jitter, and a 10s deadline per attempt.
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts:    5,
		BaseDelay:      time.Second,
		MaxDelay:       8 * time.Second,
		Jitter:         500 * time.Millisecond,
		AttemptTimeout: 10 * time.Second,
	}
}

// Retry executes operation under the default policy.
func Retry[T any](ctx context.Context, operation func(context.Context) (T, error)) (T, error) {
	return RetryWithPolicy(ctx, DefaultPolicy(), operation)
}

// RetryWithPolicy executes operation until it succeeds, fails with a
// non-retryable error, or the attempts are exhausted. Each attempt gets its
// own deadline derived from ctx.
func RetryWithPolicy[T any](ctx context.Context, p Policy, operation func(context.Context) (T, error)) (T, error) {
	var result T
	var err error

	attempts := max(p.MaxAttempts, 1)
	for attempt := 0; attempt < attempts; attempt++ {
		result, err = runAttempt(ctx, p.AttemptTimeout, operation)
		if err == nil {
			return result, nil
		}
		if ctx.Err() != nil {
			return result, walleterr.WrapAs(walleterr.ErrTimeout, ctx.Err())
		}
		if !IsRetryable(err) {
			return result, err
		}

		if attempt < attempts-1 {
			metrics.Global.RecordRPCRetry()
			delay := calculateDelay(attempt, p)
			if wait := retryAfter(err); wait > delay {
				delay = min(wait, p.MaxDelay+p.Jitter)
			}
			timer := time.NewTimer(delay)
			select {
			case <-ctx.Done():
				timer.Stop()
				return result, walleterr.WrapAs(walleterr.ErrTimeout, ctx.Err())
			case <-timer.C:
			}
		}
	}

	if walleterr.KindOf(err) != walleterr.KindNetworkFailure {
		err = walleterr.WrapAs(walleterr.ErrNetwork, err)
	}
	return result, walleterr.WithDetails(err, map[string]string{"attempts": strconv.Itoa(attempts)})
}

func runAttempt[T any](ctx context.Context, timeout time.Duration, operation func(context.Context) (T, error)) (T, error) {
	if timeout <= 0 {
		return operation(ctx)
	}
	attemptCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	result, err := operation(attemptCtx)
	if err != nil && attemptCtx.Err() != nil && ctx.Err() == nil {
		err = walleterr.WrapAs(walleterr.ErrTimeout, err)
	}
	return result, err
}

// calculateDelay returns min(base*2^attempt, max) plus a random jitter in
// [0, p.Jitter].
func calculateDelay(attempt int, p Policy) time.Duration {
	delay := p.MaxDelay
	if attempt < 32 {
		delay = p.BaseDelay << attempt
	}
	if delay > p.MaxDelay || delay <= 0 {
		delay = p.MaxDelay
	}
	if p.Jitter > 0 {
		delay += rand.N(p.Jitter + 1) //nolint:gosec // G404: Jitter does not require cryptographic randomness
	}
	return delay
}

// retryableError marks a failure as transient.
type retryableError struct {
	err error
}

func (e *retryableError) Error() string { return e.err.Error() }

func (e *retryableError) Unwrap() error { return e.err }

// WrapRetryable marks err as transient.
func WrapRetryable(err error) error {
	if err == nil {
		return nil
	}
	return &retryableError{err: err}
}

// rateLimitError carries the server's Retry-After hint.
type rateLimitError struct {
	wait time.Duration
	err  error
}

func (e *rateLimitError) Error() string { return e.err.Error() }

func (e *rateLimitError) Unwrap() error { return e.err }

func newRateLimitError(header string) error {
	wait := ParseRetryAfter(header)
	details := map[string]string{}
	if wait > 0 {
		details["retry-after"] = wait.String()
	}
	return &rateLimitError{wait: wait, err: walleterr.WithDetails(walleterr.ErrRateLimited, details)}
}

func retryAfter(err error) time.Duration {
	var r *rateLimitError
	if errors.As(err, &r) {
		return r.wait
	}
	return 0
}

// IsRetryable reports whether err should trigger another attempt: rate
// limits, timeouts, and failures marked with WrapRetryable.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	var r *retryableError
	return errors.As(err, &r) ||
		errors.Is(err, walleterr.ErrRateLimited) ||
		errors.Is(err, walleterr.ErrTimeout) ||
		errors.Is(err, context.DeadlineExceeded)
}

// ParseRetryAfter parses the Retry-After header value.
// Returns the duration to wait, or 0 if parsing fails.
func ParseRetryAfter(header string) time.Duration {
	if header == "" {
		return 0
	}

	seconds, err := strconv.Atoi(header)
	if err != nil {
		return 0
	}

	return time.Duration(seconds) * time.Second
}
