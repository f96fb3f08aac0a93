// Package retry wraps outbound model calls with linear backoff on rate limiting.
package retry

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"google.golang.org/genai"
)

const (
	// DefaultMaxAttempts is the number of calls made before giving up on a rate limit
	DefaultMaxAttempts = 5
	// DefaultBaseDelay is multiplied by the attempt number to get each wait
	DefaultBaseDelay = 30 * time.Second
)

// rateLimitMarkers are matched case-insensitively against error text.
var rateLimitMarkers = []string{
	"resource_exhausted",
	"resource exhausted",
	"429",
	"too_many_requests",
	"too many requests",
}

// SleepFunc waits for d or until ctx is done.
type SleepFunc func(ctx context.Context, d time.Duration) error

// Policy describes how a call is retried.
type Policy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	// Sleep defaults to ContextSleep; tests replace it to observe waits.
	Sleep SleepFunc
}

// DefaultPolicy returns the policy used when configuration does not override it.
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts: DefaultMaxAttempts,
		BaseDelay:   DefaultBaseDelay,
		Sleep:       ContextSleep,
	}
}

func (p Policy) normalized() Policy {
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = DefaultMaxAttempts
	}
	if p.BaseDelay < 0 {
		p.BaseDelay = 0
	}
	if p.Sleep == nil {
		p.Sleep = ContextSleep
	}
	return p
}

// Delay returns the wait before the retry that follows the given zero-based attempt.
func (p Policy) Delay(attempt int) time.Duration {
	return p.BaseDelay * time.Duration(attempt+1)
}

// RateLimitError is returned once every attempt was rejected by rate limiting.
type RateLimitError struct {
	Attempts int
	Err      error
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("rate limited after %d attempts: %v", e.Attempts, e.Err)
}

func (e *RateLimitError) Unwrap() error {
	return e.Err
}

// ProviderError wraps a failure that is not worth retrying.
type ProviderError struct {
	Err error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("provider error: %v", e.Err)
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

// statusCoder is implemented by HTTP-ish SDK errors.
type statusCoder interface {
	StatusCode() int
}

// IsRateLimit reports whether err signals provider throttling.
func IsRateLimit(err error) bool {
	if err == nil {
		return false
	}

	var apiErr genai.APIError
	if errors.As(err, &apiErr) && apiErr.Code == http.StatusTooManyRequests {
		return true
	}
	var apiErrPtr *genai.APIError
	if errors.As(err, &apiErrPtr) && apiErrPtr != nil && apiErrPtr.Code == http.StatusTooManyRequests {
		return true
	}
	var sc statusCoder
	if errors.As(err, &sc) && sc.StatusCode() == http.StatusTooManyRequests {
		return true
	}

	text := strings.ToLower(err.Error())
	for _, marker := range rateLimitMarkers {
		if strings.Contains(text, marker) {
			return true
		}
	}
	return false
}

// Do calls fn until it succeeds, fails with an error that is not a rate limit, or
// the attempt budget runs out. Between rate-limited attempts it waits
// BaseDelay*(attempt+1).
func Do[T any](ctx context.Context, p Policy, fn func(context.Context) (T, error)) (T, error) {
	p = p.normalized()
	var zero T

	for attempt := 0; attempt < p.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return zero, err
		}
		v, err := fn(ctx)
		if err == nil {
			return v, nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return zero, ctxErr
		}
		if !IsRateLimit(err) {
			return zero, &ProviderError{Err: err}
		}
		if attempt == p.MaxAttempts-1 {
			return zero, &RateLimitError{Attempts: p.MaxAttempts, Err: err}
		}

		wait := p.Delay(attempt)
		log.Warn().
			Int("attempt", attempt+1).
			Int("max_attempts", p.MaxAttempts).
			Dur("wait", wait).
			Msg("rate limited, backing off")
		if err := p.Sleep(ctx, wait); err != nil {
			return zero, err
		}
	}

	return zero, &RateLimitError{Attempts: p.MaxAttempts}
}

// ContextSleep waits for d unless ctx finishes first.
func ContextSleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
