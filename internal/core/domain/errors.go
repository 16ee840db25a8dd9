package domain

import (
	"errors"
	"fmt"
	"math"
	"time"
)

// Domain errors represent business logic failures.
var (
	// ErrNotFound indicates a requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrInvalidInput indicates malformed or invalid input.
	ErrInvalidInput = errors.New("invalid input")

	// ErrForbidden indicates the caller may not act on the entity.
	ErrForbidden = errors.New("forbidden")

	// ErrProviderUnavailable indicates a geocoding provider has no credentials
	// or was disabled. The resolver skips such providers silently.
	ErrProviderUnavailable = errors.New("geocoding provider unavailable")

	// ErrResolutionFailed indicates every configured provider failed.
	ErrResolutionFailed = errors.New("location resolution failed")

	// ErrRateLimited indicates admission was denied by the rate limiter.
	ErrRateLimited = errors.New("rate limited")

	// ErrLocationUnresolved blocks shop creation when the address cannot be geocoded.
	ErrLocationUnresolved = errors.New("could not determine location")
)

// ValidationError describes malformed input.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Reason
	}
	return e.Field + ": " + e.Reason
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrInvalidInput
}

// ProviderError is a network, status or parse failure from one provider.
type ProviderError struct {
	Provider string
	Reason   string
	Err      error
}

func (e *ProviderError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Provider, e.Reason, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Provider, e.Reason)
}

func (e *ProviderError) Unwrap() error { return e.Err }

// ResolutionFailedError is returned once the whole provider chain is exhausted.
type ResolutionFailedError struct {
	Attempts int
	Last     error
}

func (e *ResolutionFailedError) Error() string {
	if e.Last == nil {
		return ErrResolutionFailed.Error()
	}
	return fmt.Sprintf("%s after %d attempt(s): %v", ErrResolutionFailed, e.Attempts, e.Last)
}

func (e *ResolutionFailedError) Unwrap() []error {
	if e.Last == nil {
		return []error{ErrResolutionFailed}
	}
	return []error{ErrResolutionFailed, e.Last}
}

// RateLimitedError carries the back-off hint for a denied admission.
type RateLimitedError struct {
	RetryAfter time.Duration
}

func (e *RateLimitedError) Error() string {
	return fmt.Sprintf("%s: retry after %ds", ErrRateLimited, e.RetryAfterSeconds())
}

func (e *RateLimitedError) Is(target error) bool {
	return target == ErrRateLimited
}

// RetryAfterSeconds rounds the hint up to whole seconds, minimum 1.
func (e *RateLimitedError) RetryAfterSeconds() int {
	s := int(math.Ceil(e.RetryAfter.Seconds()))
	if s < 1 {
		return 1
	}
	return s
}
