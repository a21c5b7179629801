package domain

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Domain errors represent business logic failures.
// These are distinct from infrastructure errors.
var (
	// ErrNotFound indicates a requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrInvalidInput indicates malformed or invalid input.
	ErrInvalidInput = errors.New("invalid input")

	// ErrUnsupportedType indicates an unknown provider, store or similarity type.
	ErrUnsupportedType = errors.New("unsupported type")

	// ErrNoProviders indicates a run was requested with no usable provider.
	ErrNoProviders = errors.New("no providers configured")

	// ErrUnknownProvider indicates a run named a provider that is not registered.
	ErrUnknownProvider = errors.New("unknown provider")

	// ErrAllProvidersFailed indicates a run ended FAILED.
	ErrAllProvidersFailed = errors.New("all providers failed")

	// ErrRunInProgress indicates the run id is already active.
	ErrRunInProgress = errors.New("run in progress")

	// ErrLLMUnavailable indicates the LLM service is not configured.
	// Extraction and tagging are disabled.
	ErrLLMUnavailable = errors.New("LLM service unavailable")

	// ErrEmbeddingUnavailable indicates the embedding service is not configured.
	// Embedding similarity falls back to fingerprint similarity.
	ErrEmbeddingUnavailable = errors.New("embedding service unavailable")

	// ErrRateLimited indicates the API rate limit was exceeded.
	ErrRateLimited = errors.New("rate limited")

	// ErrAuthInvalid indicates the provider rejected the credentials.
	ErrAuthInvalid = errors.New("authentication invalid")

	// ErrInvalidTransition indicates a run state machine was driven out of order.
	ErrInvalidTransition = errors.New("invalid run state transition")
)

// ProviderErrorKind classifies a provider failure.
type ProviderErrorKind string

// Provider failure kinds.
const (
	ProviderErrorNetwork   ProviderErrorKind = "network"
	ProviderErrorAuth      ProviderErrorKind = "auth"
	ProviderErrorRateLimit ProviderErrorKind = "rate_limit"
	ProviderErrorMalformed ProviderErrorKind = "malformed"
	ProviderErrorTimeout   ProviderErrorKind = "timeout"
	ProviderErrorUnknown   ProviderErrorKind = "unknown"
)

// ProviderError reports a failed provider call. It is non-fatal to the run.
type ProviderError struct {
	ProviderID string
	Kind       ProviderErrorKind
	StatusCode int
	Cause      error
}

// NewProviderError wraps cause as a ProviderError.
func NewProviderError(providerID string, kind ProviderErrorKind, cause error) *ProviderError {
	return &ProviderError{ProviderID: providerID, Kind: kind, Cause: cause}
}

func (e *ProviderError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("provider %s: %s (status %d): %v", e.ProviderID, e.Kind, e.StatusCode, e.Cause)
	}
	return fmt.Sprintf("provider %s: %s: %v", e.ProviderID, e.Kind, e.Cause)
}

func (e *ProviderError) Unwrap() error {
	return e.Cause
}

// Is lets errors.Is match the rate-limit and auth sentinels by kind.
func (e *ProviderError) Is(target error) bool {
	switch target {
	case ErrRateLimited:
		return e.Kind == ProviderErrorRateLimit
	case ErrAuthInvalid:
		return e.Kind == ProviderErrorAuth
	}
	return false
}

// AsProviderError returns err as a ProviderError for providerID.
// Errors that are not already ProviderErrors are classified by cause.
func AsProviderError(providerID string, err error) *ProviderError {
	var pe *ProviderError
	if errors.As(err, &pe) {
		if pe.ProviderID == "" {
			pe.ProviderID = providerID
		}
		return pe
	}
	kind := ProviderErrorUnknown
	switch {
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		kind = ProviderErrorTimeout
	case errors.Is(err, ErrRateLimited):
		kind = ProviderErrorRateLimit
	case errors.Is(err, ErrAuthInvalid):
		kind = ProviderErrorAuth
	}
	return NewProviderError(providerID, kind, err)
}

// ExtractionError reports that structured extraction failed for one hit.
// The candidate keeps its normaliser defaults.
type ExtractionError struct {
	Reason string
	Cause  error
}

func (e *ExtractionError) Error() string {
	if e.Cause == nil {
		return "extraction failed: " + e.Reason
	}
	return fmt.Sprintf("extraction failed: %s: %v", e.Reason, e.Cause)
}

func (e *ExtractionError) Unwrap() error {
	return e.Cause
}

// ValidationError reports a raw hit that cannot become an item.
type ValidationError struct {
	Field  string
	Value  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Value == "" {
		return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
	}
	return fmt.Sprintf("invalid %s %q: %s", e.Field, e.Value, e.Reason)
}

// Unwrap ties every validation failure to ErrInvalidInput.
func (e *ValidationError) Unwrap() error {
	return ErrInvalidInput
}

// StoreError reports a failed store operation for a single item.
type StoreError struct {
	ItemID string
	Op     string
	Cause  error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("store %s %s: %v", e.Op, e.ItemID, e.Cause)
}

func (e *StoreError) Unwrap() error {
	return e.Cause
}

// RunTimeoutError reports that the run-level deadline expired.
type RunTimeoutError struct {
	Stage   RunStatus
	Timeout time.Duration
}

func (e *RunTimeoutError) Error() string {
	return fmt.Sprintf("run timed out after %s during %s", e.Timeout, e.Stage)
}

// Unwrap ties the timeout to context.DeadlineExceeded.
func (e *RunTimeoutError) Unwrap() error {
	return context.DeadlineExceeded
}

// IsProviderError reports whether err is a ProviderError and returns it.
func IsProviderError(err error) (*ProviderError, bool) {
	var pe *ProviderError
	ok := errors.As(err, &pe)
	return pe, ok
}

// IsValidationError reports whether err is a ValidationError.
func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// IsExtractionError reports whether err is an ExtractionError.
func IsExtractionError(err error) bool {
	var ee *ExtractionError
	return errors.As(err, &ee)
}
