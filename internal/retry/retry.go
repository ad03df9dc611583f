package retry

import (
	"context"
	"errors"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// #region policy

// Policy bounds the retry loop. MaxAttempts counts total calls, not retries.
type Policy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
}

// DefaultPolicy returns retry configuration from environment variables.
// Reads: FANVISE_GEN_MAX_ATTEMPTS, FANVISE_GEN_BASE_DELAY_MS,
// FANVISE_GEN_MAX_DELAY_MS. MaxDelay is the knob to turn down on hosts
// where a long sleep would outlive the invocation.
func DefaultPolicy() Policy {
	p := Policy{
		MaxAttempts: 3,
		BaseDelay:   500 * time.Millisecond,
		MaxDelay:    15 * time.Second,
	}
	if v := os.Getenv("FANVISE_GEN_MAX_ATTEMPTS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			p.MaxAttempts = n
		}
	}
	if v := os.Getenv("FANVISE_GEN_BASE_DELAY_MS"); v != "" {
		if ms, err := strconv.Atoi(v); err == nil && ms > 0 {
			p.BaseDelay = time.Duration(ms) * time.Millisecond
		}
	}
	if v := os.Getenv("FANVISE_GEN_MAX_DELAY_MS"); v != "" {
		if ms, err := strconv.Atoi(v); err == nil && ms > 0 {
			p.MaxDelay = time.Duration(ms) * time.Millisecond
		}
	}
	return p
}

// #endregion policy

// #region classify

// httpStatusError and apiCodeError are the two conventional numeric fields
// a wire error may carry; classification checks both, then the message.
type httpStatusError interface{ HTTPStatusCode() int }

type apiCodeError interface{ ErrorCode() int }

var rateLimitPhrases = []string{
	"429",
	"rate limit",
	"too many requests",
	"resource exhausted",
}

// IsRateLimited reports whether err is a rate-limit rejection. Everything
// else is non-recoverable as far as the retry loop is concerned.
func IsRateLimited(err error) bool {
	if err == nil {
		return false
	}
	var hs httpStatusError
	if errors.As(err, &hs) && hs.HTTPStatusCode() == 429 {
		return true
	}
	var ac apiCodeError
	if errors.As(err, &ac) && ac.ErrorCode() == 429 {
		return true
	}
	msg := strings.ToLower(err.Error())
	for _, p := range rateLimitPhrases {
		if strings.Contains(msg, p) {
			return true
		}
	}
	return false
}

// #endregion classify

// #region delay

var suggestedDelayRe = regexp.MustCompile(`(?i)retry in\s+(\d+(?:\.\d+)?)\s*s`)

// suggestedDelay parses a server retry hint ("... retry in 7s") from the
// error message, adding a fixed 1s buffer on top of what the server asked
// for. Returns 0 when no hint is present.
func suggestedDelay(err error) time.Duration {
	m := suggestedDelayRe.FindStringSubmatch(err.Error())
	if m == nil {
		return 0
	}
	secs, convErr := strconv.ParseFloat(m[1], 64)
	if convErr != nil {
		return 0
	}
	return time.Duration(secs*float64(time.Second)) + time.Second
}

// nextDelay computes the wait after failed attempt n (0-based):
// max(BaseDelay << n, server suggestion) clamped to MaxDelay.
func nextDelay(p Policy, attempt int, err error) time.Duration {
	delay := p.BaseDelay << uint(attempt)
	if delay <= 0 {
		delay = p.MaxDelay
	}
	if s := suggestedDelay(err); s > delay {
		delay = s
	}
	if p.MaxDelay > 0 && delay > p.MaxDelay {
		delay = p.MaxDelay
	}
	return delay
}

// #endregion delay

// #region do

// Do runs op up to p.MaxAttempts times. Only rate-limited failures wait and
// retry; any other error returns immediately with zero delay. When attempts
// are exhausted the last error is returned unchanged. The wait honors ctx.
func Do[T any](ctx context.Context, p Policy, op func(context.Context) (T, error)) (T, error) {
	var zero T
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = 1
	}

	var lastErr error
	for attempt := 0; attempt < p.MaxAttempts; attempt++ {
		out, err := op(ctx)
		if err == nil {
			return out, nil
		}
		if !IsRateLimited(err) {
			return zero, err
		}
		lastErr = err
		if attempt == p.MaxAttempts-1 {
			break
		}
		if waitErr := wait(ctx, nextDelay(p, attempt, err)); waitErr != nil {
			return zero, waitErr
		}
	}
	return zero, lastErr
}

// wait sleeps for d unless ctx ends first.
func wait(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// #endregion do
