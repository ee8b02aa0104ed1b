package provider

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"
)

// Sentinel errors for common provider failures.
var (
	// Configuration errors
	ErrMissingAPIKey = errors.New("api key not configured")

	// Safety/Content errors
	ErrContentBlocked = errors.New("content blocked by safety filters")

	// Response errors
	ErrEmptyResponse = errors.New("empty response")
)

// ErrorCode is the coarse classification carried in error events.
type ErrorCode string

const (
	ErrorCodeAuth           ErrorCode = "auth"
	ErrorCodeRateLimit      ErrorCode = "rate_limit"
	ErrorCodeNetwork        ErrorCode = "network"
	ErrorCodeContentBlocked ErrorCode = "content_blocked"
	ErrorCodeInvalidRequest ErrorCode = "invalid_request"
	ErrorCodeServer         ErrorCode = "server_error"
	ErrorCodeTimeout        ErrorCode = "timeout"
	ErrorCodeUnknown        ErrorCode = "unknown"
)

// ProviderError wraps errors with additional context.
type ProviderError struct {
	Provider   string
	Code       ErrorCode
	Message    string
	StatusCode int
	Underlying error
	Retryable  bool
	RetryAfter *time.Duration
}

// Error implements the error interface.
func (e *ProviderError) Error() string {
	prefix := string(e.Code)
	if e.Provider != "" {
		prefix = e.Provider + ": " + prefix
	}
	if e.Underlying != nil {
		return fmt.Sprintf("%s: %s (%v)", prefix, e.Message, e.Underlying)
	}
	return fmt.Sprintf("%s: %s", prefix, e.Message)
}

// Unwrap returns the underlying error.
func (e *ProviderError) Unwrap() error {
	return e.Underlying
}

// IsRetryable returns true if the error is retryable.
func IsRetryable(err error) bool {
	var providerErr *ProviderError
	if errors.As(err, &providerErr) {
		return providerErr.Retryable
	}
	return false
}

// GetRetryAfter returns the retry-after duration if present.
func GetRetryAfter(err error) *time.Duration {
	var providerErr *ProviderError
	if errors.As(err, &providerErr) {
		return providerErr.RetryAfter
	}
	return nil
}

// Classify returns the coarse error code for err.
func Classify(err error) ErrorCode {
	if err == nil {
		return ""
	}
	var providerErr *ProviderError
	if errors.As(err, &providerErr) && providerErr.Code != "" {
		return providerErr.Code
	}
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return ErrorCodeTimeout
	case errors.Is(err, ErrMissingAPIKey):
		return ErrorCodeAuth
	case errors.Is(err, ErrContentBlocked):
		return ErrorCodeContentBlocked
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		if netErr.Timeout() {
			return ErrorCodeTimeout
		}
		return ErrorCodeNetwork
	}
	return ErrorCodeUnknown
}

// StatusError builds a ProviderError from a non-2xx HTTP status.
func StatusError(providerName string, status int, message string) *ProviderError {
	e := &ProviderError{Provider: providerName, StatusCode: status, Message: message}
	switch {
	case status == 401 || status == 403:
		e.Code = ErrorCodeAuth
	case status == 429:
		e.Code = ErrorCodeRateLimit
		e.Retryable = true
	case status == 408 || status == 504:
		e.Code = ErrorCodeTimeout
		e.Retryable = true
	case status >= 500:
		e.Code = ErrorCodeServer
		e.Retryable = true
	case status >= 400:
		e.Code = ErrorCodeInvalidRequest
	default:
		e.Code = ErrorCodeUnknown
	}
	if e.Message == "" {
		e.Message = fmt.Sprintf("request failed with status %d", status)
	}
	return e
}
