package provider

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/corvid-labs/mrsentry/internal/errs"
)

// RetryPolicy bounds the exponential backoff used for 429/5xx responses
// across the hand-rolled GitLab and Bitbucket clients. go-github already
// retries internally for GitHub, so this is only wired into those two.
type RetryPolicy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
}

// DefaultRetryPolicy bounds total wall time spent retrying: three attempts,
// capped exponential backoff.
var DefaultRetryPolicy = RetryPolicy{MaxAttempts: 3, BaseDelay: 500 * time.Millisecond, MaxDelay: 10 * time.Second}

// Do runs fn, retrying on retriable errors up to MaxAttempts times,
// honoring a Retry-After header when resp is non-nil.
func (p RetryPolicy) Do(ctx context.Context, subsystem string, fn func() (*http.Response, error)) (*http.Response, error) {
	var lastErr error
	delay := p.BaseDelay
	for attempt := 1; attempt <= p.MaxAttempts; attempt++ {
		resp, err := fn()
		if err == nil && resp != nil && resp.StatusCode < 400 {
			return resp, nil
		}
		if err != nil {
			lastErr = errs.WrapRetriable(errs.Transport, subsystem, "request failed", err)
		} else {
			body := readAndCloseSnippet(resp)
			herr := errs.HTTPError(subsystem, resp.StatusCode, resp.Request.URL.String(), body)
			lastErr = herr
			if !herr.Retriable {
				return resp, herr
			}
			delay = retryAfterOrBackoff(resp, delay)
		}
		if attempt == p.MaxAttempts {
			break
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(delay):
		}
		delay *= 2
		if delay > p.MaxDelay {
			delay = p.MaxDelay
		}
	}
	return nil, lastErr
}

func retryAfterOrBackoff(resp *http.Response, fallback time.Duration) time.Duration {
	if v := resp.Header.Get("Retry-After"); v != "" {
		if secs, err := strconv.Atoi(v); err == nil {
			return time.Duration(secs) * time.Second
		}
	}
	return fallback
}

func readAndCloseSnippet(resp *http.Response) string {
	if resp == nil || resp.Body == nil {
		return ""
	}
	defer resp.Body.Close()
	buf := make([]byte, 512)
	n, _ := resp.Body.Read(buf)
	return string(buf[:n])
}

// IsNotFound reports whether err represents a 404 from the provider.
func IsNotFound(err error) bool {
	var e *errs.Error
	if errors.As(err, &e) {
		return e.StatusCode == http.StatusNotFound
	}
	return false
}
