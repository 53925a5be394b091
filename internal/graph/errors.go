package graph

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"math/rand"
	"net"
	"net/http"
	"strings"
	"syscall"
	"time"
)

var (
	// ErrProcessingTimeout is returned when a container is still processing
	// after the wait budget.
	ErrProcessingTimeout = errors.New("media processing timed out")
	// ErrProcessingFailed is returned when the provider reports status ERROR.
	ErrProcessingFailed = errors.New("media processing failed")
	// ErrNoID is returned when a successful response carries no id.
	ErrNoID = errors.New("response carries no id")
)

// APIError is an error response of the Graph API.
type APIError struct {
	StatusCode int
	Message    string
	Type       string
	Code       int
	Subcode    int
	Transient  bool
	TraceID    string
	// Body is the raw response body, kept for diagnostics.
	Body string
}

func (e *APIError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "graph api: HTTP %d", e.StatusCode)
	if e.Message != "" {
		fmt.Fprintf(&b, ": %s", e.Message)
	}
	if e.Code != 0 {
		fmt.Fprintf(&b, " (code %d", e.Code)
		if e.Subcode != 0 {
			fmt.Fprintf(&b, ", subcode %d", e.Subcode)
		}
		b.WriteString(")")
	}
	return b.String()
}

// rate limit codes of the Graph API
var throttleCodes = map[int]bool{4: true, 17: true, 32: true, 613: true}

// ErrorCategory classifies errors for retry decisions
type ErrorCategory int

const (
	ErrCategoryFatal     ErrorCategory = iota // Non-retryable errors (4xx, canceled)
	ErrCategoryRetryable                      // Transient errors (EOF, timeout, reset, 5xx)
	ErrCategoryThrottled                      // Rate limiting errors (429, rate limit codes)
)

func (c ErrorCategory) String() string {
	switch c {
	case ErrCategoryRetryable:
		return "retryable"
	case ErrCategoryThrottled:
		return "throttled"
	default:
		return "fatal"
	}
}

// ClassifyError determines how an error should be handled for retry purposes
func ClassifyError(err error) ErrorCategory {
	if err == nil {
		return ErrCategoryFatal
	}

	// Cancellation stops the run; a per-request deadline is retryable.
	if errors.Is(err, context.Canceled) {
		return ErrCategoryFatal
	}

	var apiErr *APIError
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.StatusCode == http.StatusTooManyRequests || throttleCodes[apiErr.Code]:
			return ErrCategoryThrottled
		case apiErr.StatusCode >= 500 || apiErr.Transient:
			return ErrCategoryRetryable
		default:
			return ErrCategoryFatal
		}
	}

	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return ErrCategoryRetryable
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return ErrCategoryRetryable
	}

	var sysErr syscall.Errno
	if errors.As(err, &sysErr) {
		switch sysErr {
		case syscall.ECONNRESET, syscall.ECONNREFUSED, syscall.EPIPE, syscall.ETIMEDOUT:
			return ErrCategoryRetryable
		}
	}

	// String-based pattern matching for wrapped errors
	errStr := strings.ToLower(err.Error())
	for _, pattern := range []string{
		"connection reset",
		"connection refused",
		"broken pipe",
		"timeout",
		"eof",
		"temporary failure",
		"no such host",
		"network is unreachable",
	} {
		if strings.Contains(errStr, pattern) {
			return ErrCategoryRetryable
		}
	}
	return ErrCategoryFatal
}

// RetryConfig holds configuration for retrying idempotent requests.
type RetryConfig struct {
	MaxRetries    int           // Maximum number of retry attempts
	BaseDelay     time.Duration // Initial delay before first retry
	MaxDelay      time.Duration // Maximum delay between retries
	JitterFactor  float64       // Random jitter factor (0-1)
	BackoffFactor float64       // Exponential backoff multiplier
}

// DefaultRetryConfig returns the retry policy used for status checks and
// container creation.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:    3,
		BaseDelay:     time.Second,
		MaxDelay:      15 * time.Second,
		JitterFactor:  0.3,
		BackoffFactor: 2.0,
	}
}

// CalculateBackoff computes the delay before the next retry attempt
func (c RetryConfig) CalculateBackoff(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}

	// baseDelay * (backoffFactor ^ (attempt-1))
	delay := float64(c.BaseDelay) * math.Pow(c.BackoffFactor, float64(attempt-1))

	if c.JitterFactor > 0 {
		jitter := c.JitterFactor * (2*rand.Float64() - 1) // random in [-1, 1]
		delay *= (1 + jitter)
	}

	if delay > float64(c.MaxDelay) {
		delay = float64(c.MaxDelay)
	}
	if delay < 0 {
		delay = float64(c.BaseDelay)
	}
	return time.Duration(delay)
}

// retry runs fn until it succeeds, fails fatally or the attempts run out.
// Throttled errors wait twice as long.
func (c RetryConfig) retry(ctx context.Context, fn func() error) error {
	var err error
	for attempt := 0; ; attempt++ {
		if err = fn(); err == nil {
			return nil
		}
		category := ClassifyError(err)
		if category == ErrCategoryFatal || attempt >= c.MaxRetries {
			return err
		}
		delay := c.CalculateBackoff(attempt + 1)
		if category == ErrCategoryThrottled {
			delay *= 2
			if delay > c.MaxDelay {
				delay = c.MaxDelay
			}
		}
		select {
		case <-ctx.Done():
			return err
		case <-time.After(delay):
		}
	}
}
