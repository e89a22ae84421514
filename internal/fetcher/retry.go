package fetcher

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/stasazaryarozet/sitemirror/pkg/types"
)

// ErrorClass distinguishes failures that may succeed on retry from those
// that never will.
type ErrorClass int

const (
	// Transient covers network errors, timeouts, 5xx and rate-limit responses.
	Transient ErrorClass = iota
	// Permanent covers 4xx responses (other than 429) and malformed input.
	Permanent
)

// Error is the typed failure surfaced after retries are exhausted or a
// permanent condition is hit.
type Error struct {
	URL        string
	Class      ErrorClass
	StatusCode int
	Attempts   int
	Err        error
}

func (e *Error) Error() string {
	class := "transient"
	if e.Class == Permanent {
		class = "permanent"
	}
	if e.StatusCode != 0 {
		return fmt.Sprintf("fetch %s: %s failure after %d attempt(s): status %d", e.URL, class, e.Attempts, e.StatusCode)
	}
	return fmt.Sprintf("fetch %s: %s failure after %d attempt(s): %v", e.URL, class, e.Attempts, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// IsPermanent reports whether err is a fetch error that retrying cannot fix.
func IsPermanent(err error) bool {
	var fe *Error
	return errors.As(err, &fe) && fe.Class == Permanent
}

// IsTransient reports whether err is a fetch error that exhausted its retries.
func IsTransient(err error) bool {
	var fe *Error
	return errors.As(err, &fe) && fe.Class == Transient
}

// Client wraps an HTTPFetcher with bounded retries on transient failures.
type Client struct {
	fetcher    *HTTPFetcher
	maxRetries int
	backoff    time.Duration
	logger     *slog.Logger
}

// NewClient constructs a retrying fetch client. maxRetries counts additional
// attempts after the first; backoff is the fixed delay between attempts.
func NewClient(f *HTTPFetcher, maxRetries int, backoff time.Duration, logger *slog.Logger) *Client {
	if maxRetries < 0 {
		maxRetries = 0
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		fetcher:    f,
		maxRetries: maxRetries,
		backoff:    backoff,
		logger:     logger,
	}
}

// HTTPClient exposes the wrapped fetcher's http.Client.
func (c *Client) HTTPClient() *http.Client {
	return c.fetcher.Client()
}

// Fetch downloads target, retrying transient failures up to the configured
// bound. The returned error, if any, is a *Error carrying its class.
func (c *Client) Fetch(ctx context.Context, target *url.URL) (*types.Page, error) {
	if target == nil {
		return nil, &Error{Class: Permanent, Attempts: 0, Err: errors.New("target URL is nil")}
	}

	attempts := c.maxRetries + 1
	var lastErr error
	var lastStatus int

	for attempt := 1; attempt <= attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, &Error{URL: target.String(), Class: Transient, Attempts: attempt - 1, Err: err}
		}

		page, err := c.fetcher.Fetch(ctx, target)
		switch {
		case err != nil:
			// Network-level failures are retryable unless the context died.
			if ctx.Err() != nil {
				return nil, &Error{URL: target.String(), Class: Transient, Attempts: attempt, Err: err}
			}
			lastErr = err
			lastStatus = 0
		case page.StatusCode >= 200 && page.StatusCode < 300:
			return page, nil
		case retryableStatus(page.StatusCode):
			lastErr = fmt.Errorf("status %d", page.StatusCode)
			lastStatus = page.StatusCode
		default:
			return nil, &Error{
				URL:        target.String(),
				Class:      Permanent,
				StatusCode: page.StatusCode,
				Attempts:   attempt,
				Err:        fmt.Errorf("status %d", page.StatusCode),
			}
		}

		if attempt < attempts {
			c.logger.Debug("retrying fetch",
				"url", target.String(),
				"attempt", attempt,
				"error", lastErr,
			)
			if err := sleepCtx(ctx, c.backoff); err != nil {
				return nil, &Error{URL: target.String(), Class: Transient, Attempts: attempt, Err: err}
			}
		}
	}

	return nil, &Error{
		URL:        target.String(),
		Class:      Transient,
		StatusCode: lastStatus,
		Attempts:   attempts,
		Err:        lastErr,
	}
}

func retryableStatus(code int) bool {
	if code >= 500 {
		return true
	}
	return code == http.StatusTooManyRequests
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
