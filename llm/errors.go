// Error classification for remote model service failures.
//
// Information Hiding:
// - Status-code to category mapping hidden
// - Retry eligibility rules hidden

package llm

import (
	"context"
	"errors"
	"fmt"
	"net"

	openai "github.com/openai/openai-go/v3"
)

// ErrorCategory classifies a remote service failure by status class.
type ErrorCategory int

const (
	CategoryAuth ErrorCategory = iota
	CategoryRateLimit
	CategoryBadRequest
	CategoryTransport
	CategoryOther
)

// String returns the category name for logging.
func (c ErrorCategory) String() string {
	switch c {
	case CategoryAuth:
		return "auth"
	case CategoryRateLimit:
		return "rate_limit"
	case CategoryBadRequest:
		return "bad_request"
	case CategoryTransport:
		return "transport"
	default:
		return "other"
	}
}

// Retryable reports whether failures of this category may be retried.
// Auth and bad-request failures must surface immediately.
func (c ErrorCategory) Retryable() bool {
	return c == CategoryRateLimit || c == CategoryTransport
}

// APIError wraps a remote service failure with its category.
type APIError struct {
	Category   ErrorCategory
	StatusCode int
	Err        error
}

// Error implements the error interface.
func (e *APIError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("model service error (%s, status %d): %v", e.Category, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("model service error (%s): %v", e.Category, e.Err)
}

// Unwrap returns the underlying error.
func (e *APIError) Unwrap() error {
	return e.Err
}

// Classify maps an error from the SDK or transport to an APIError.
// Already-classified errors pass through unchanged.
func Classify(err error) *APIError {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr
	}

	var sdkErr *openai.Error
	if errors.As(err, &sdkErr) {
		return &APIError{
			Category:   categoryForStatus(sdkErr.StatusCode),
			StatusCode: sdkErr.StatusCode,
			Err:        err,
		}
	}

	var netErr net.Error
	if errors.As(err, &netErr) || errors.Is(err, context.DeadlineExceeded) {
		return &APIError{Category: CategoryTransport, Err: err}
	}

	return &APIError{Category: CategoryOther, Err: err}
}

func categoryForStatus(status int) ErrorCategory {
	switch {
	case status == 401 || status == 403:
		return CategoryAuth
	case status == 429:
		return CategoryRateLimit
	case status >= 400 && status < 500:
		return CategoryBadRequest
	case status >= 500:
		return CategoryTransport
	default:
		return CategoryOther
	}
}
