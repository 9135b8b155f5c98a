package provider

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// ErrUnavailable indicates the provider has no API key or is disabled.
var ErrUnavailable = errors.New("provider unavailable")

// BackendReason categorises backend failures for routing and failover.
type BackendReason string

const (
	// ReasonTimeout means the configured per-request deadline was exceeded.
	ReasonTimeout BackendReason = "timeout"

	// ReasonRejected means the backend returned a non-success status.
	ReasonRejected BackendReason = "rejected"

	// ReasonMalformed means the backend response did not parse.
	ReasonMalformed BackendReason = "malformed"
)

// BackendError wraps a backend failure with its provider and classification.
type BackendError struct {
	// Provider is the provider name.
	Provider string

	// Model is the model the request targeted, if known.
	Model string

	// Reason classifies the failure.
	Reason BackendReason

	// Cause is the underlying error.
	Cause error
}

// Error implements the error interface.
func (e *BackendError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: backend %s: %v", e.Provider, e.Reason, e.Cause)
	}
	return fmt.Sprintf("%s: backend %s", e.Provider, e.Reason)
}

// Unwrap returns the underlying error.
func (e *BackendError) Unwrap() error {
	return e.Cause
}

// NewBackendError classifies cause and wraps it for the named provider.
func NewBackendError(providerName, model string, cause error) *BackendError {
	return &BackendError{
		Provider: providerName,
		Model:    model,
		Reason:   classifyBackendError(cause),
		Cause:    cause,
	}
}

// classifyBackendError determines the failure reason from the error content.
func classifyBackendError(err error) BackendReason {
	if err == nil {
		return ReasonRejected
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return ReasonTimeout
	}

	errStr := strings.ToLower(err.Error())

	if strings.Contains(errStr, "timeout") ||
		strings.Contains(errStr, "deadline exceeded") ||
		strings.Contains(errStr, "context deadline") {
		return ReasonTimeout
	}

	if strings.Contains(errStr, "unmarshal") ||
		strings.Contains(errStr, "unexpected end") ||
		strings.Contains(errStr, "parse") ||
		strings.Contains(errStr, "decode") {
		return ReasonMalformed
	}

	return ReasonRejected
}

// Retryable reports whether the error is worth retrying on the same provider.
func Retryable(err error) bool {
	if err == nil {
		return false
	}
	errStr := strings.ToLower(err.Error())
	return strings.Contains(errStr, "timeout") ||
		strings.Contains(errStr, "rate limit") ||
		strings.Contains(errStr, "rate_limit") ||
		strings.Contains(errStr, "too many requests") ||
		strings.Contains(errStr, "429") ||
		strings.Contains(errStr, "500") ||
		strings.Contains(errStr, "502") ||
		strings.Contains(errStr, "503") ||
		strings.Contains(errStr, "504")
}

// ShouldFailover reports whether the error warrants trying another provider
// rather than retrying the same one.
func ShouldFailover(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrUnavailable) {
		return true
	}
	var be *BackendError
	if errors.As(err, &be) {
		return true
	}
	errStr := strings.ToLower(err.Error())
	return strings.Contains(errStr, "unauthorized") ||
		strings.Contains(errStr, "invalid api key") ||
		strings.Contains(errStr, "401") ||
		strings.Contains(errStr, "403") ||
		strings.Contains(errStr, "quota") ||
		strings.Contains(errStr, "billing") ||
		strings.Contains(errStr, "model not found")
}
