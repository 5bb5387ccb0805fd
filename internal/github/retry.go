package github

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/cli/go-gh/v2/pkg/api"
)

// ErrRateLimited is returned when the rate limit is exhausted and waiting is disabled
var ErrRateLimited = errors.New("GitHub API rate limit exceeded")

// transientError marks a failure worth retrying: transport errors and 5xx responses
type transientError struct {
	err error
}

func (e *transientError) Error() string { return e.err.Error() }
func (e *transientError) Unwrap() error { return e.err }

// rateLimitError carries how long to wait before reissuing the request
type rateLimitError struct {
	wait time.Duration
}

func (e *rateLimitError) Error() string {
	return fmt.Sprintf("rate limit exceeded, resets in %s", e.wait)
}

func asRateLimit(err error) (*rateLimitError, bool) {
	var rl *rateLimitError
	if errors.As(err, &rl) {
		return rl, true
	}
	return nil, false
}

func isTransient(err error) bool {
	var te *transientError
	return errors.As(err, &te)
}

// classify sorts a request failure into rate limit, transient or permanent
func (c *Client) classify(ctx context.Context, err error) error {
	var httpErr *api.HTTPError
	if errors.As(err, &httpErr) {
		if isRateLimited(httpErr.StatusCode, httpErr.Headers) {
			return &rateLimitError{wait: rateLimitWait(httpErr.Headers, c.now())}
		}
		if httpErr.StatusCode >= http.StatusInternalServerError {
			return &transientError{err: err}
		}
		return err
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}
	return &transientError{err: err}
}

func isRateLimited(status int, h http.Header) bool {
	if status != http.StatusForbidden {
		return false
	}
	remaining := strings.TrimSpace(h.Get("X-RateLimit-Remaining"))
	if remaining == "" {
		return false
	}
	n, err := strconv.Atoi(remaining)
	return err == nil && n == 0
}

// rateLimitWait is the time until X-RateLimit-Reset plus one second, never
// negative. A missing or unparsable reset counts as epoch 0, so the wait is 1s.
func rateLimitWait(h http.Header, now time.Time) time.Duration {
	reset, err := strconv.ParseInt(strings.TrimSpace(h.Get("X-RateLimit-Reset")), 10, 64)
	if err != nil {
		reset = 0
	}
	wait := time.Unix(reset, 0).Sub(now)
	if wait < 0 {
		wait = 0
	}
	return wait + time.Second
}

// backoffDelay returns backoff * 2^(attempt-1) for attempt >= 1
func backoffDelay(backoff time.Duration, attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	return backoff * time.Duration(1<<(attempt-1))
}

// withRetry runs fn, retrying transient failures up to maxRetries times
func (c *Client) withRetry(ctx context.Context, target string, fn func() error) error {
	for attempt := 1; ; attempt++ {
		err := fn()
		if err == nil {
			if attempt > 1 {
				c.log.Debug("Request succeeded after retry", "attempt", attempt, "url", target)
			}
			return nil
		}
		if !isTransient(err) {
			return err
		}
		if attempt > c.maxRetries {
			c.log.Error("Request failed, giving up", "attempts", attempt, "url", target, "err", err)
			return fmt.Errorf("request failed after %d attempts: %w", attempt, err)
		}

		delay := backoffDelay(c.backoff, attempt)
		c.log.Warn("Request failed, retrying", "attempt", attempt, "delay", delay, "url", target, "err", err)
		if err := c.sleep(ctx, delay); err != nil {
			return err
		}
	}
}
