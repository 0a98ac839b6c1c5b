// Package errors provides standardized error handling for the assistant pipeline.
package errors

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ==========================
// 1. Standard Error Types
// ==========================

// ErrorCode represents standardized internal error codes.
type ErrorCode string

// Pipeline taxonomy
const (
	ErrCodeUnsafeQuery        ErrorCode = "UNSAFE_QUERY"
	ErrCodeNoMatchingTemplate ErrorCode = "NO_MATCHING_TEMPLATE"
	ErrCodeAmbiguousQuery     ErrorCode = "AMBIGUOUS_QUERY"
	ErrCodeResolverFailure    ErrorCode = "RESOLVER_FAILURE"
	ErrCodeCacheUnavailable   ErrorCode = "CACHE_UNAVAILABLE"
	ErrCodeUnknownIntent      ErrorCode = "UNKNOWN_INTENT"

	ErrCodeInvalidInput     ErrorCode = "INVALID_INPUT"
	ErrCodeCatalogInvalid   ErrorCode = "CATALOG_INVALID"
	ErrCodeStoreFailure     ErrorCode = "STORE_FAILURE"
	ErrCodeSessionNotFound  ErrorCode = "SESSION_NOT_FOUND"
	ErrCodeRoundLimit       ErrorCode = "CLARIFICATION_ROUND_LIMIT"
	ErrCodeInternal         ErrorCode = "INTERNAL_ERROR"
	ErrCodeSearchFailed     ErrorCode = "SEARCH_QUERY_FAILED"
	ErrCodeConnectionFailed ErrorCode = "CONNECTION_FAILED"
)

// Sentinel errors shared across stages. Stage packages wrap these with
// fmt.Errorf("%w: ...") so callers can match with errors.Is.
var (
	ErrUnsafeQuery        = errors.New("UNSAFE_QUERY")
	ErrNoMatchingTemplate = errors.New("NO_MATCHING_TEMPLATE")
	ErrAmbiguousQuery     = errors.New("AMBIGUOUS_QUERY")
	ErrResolverFailure    = errors.New("RESOLVER_FAILURE")
	ErrCacheUnavailable   = errors.New("CACHE_UNAVAILABLE")
	ErrUnknownIntent      = errors.New("UNKNOWN_INTENT")
)

// StandardError represents a structured application error.
type StandardError struct {
	Code      ErrorCode              `json:"code"`
	Message   string                 `json:"message"`
	Details   string                 `json:"details,omitempty"`
	Retryable bool                   `json:"retryable"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	Timestamp time.Time              `json:"timestamp"`

	cause error
}

func (e *StandardError) Error() string {
	return fmt.Sprintf("StandardError[%s]: %s", e.Code, e.Message)
}

// Unwrap exposes the underlying cause and, for taxonomy codes, the matching
// sentinel so errors.Is(err, ErrUnsafeQuery) holds for both forms.
func (e *StandardError) Unwrap() []error {
	out := make([]error, 0, 2)
	if e.cause != nil {
		out = append(out, e.cause)
	}
	if s, ok := sentinels[e.Code]; ok {
		out = append(out, s)
	}
	return out
}

// WithMetadata attaches a key/value pair and returns the same error.
func (e *StandardError) WithMetadata(key string, value interface{}) *StandardError {
	if e.Metadata == nil {
		e.Metadata = make(map[string]interface{})
	}
	e.Metadata[key] = value
	return e
}

var sentinels = map[ErrorCode]error{
	ErrCodeUnsafeQuery:        ErrUnsafeQuery,
	ErrCodeNoMatchingTemplate: ErrNoMatchingTemplate,
	ErrCodeAmbiguousQuery:     ErrAmbiguousQuery,
	ErrCodeResolverFailure:    ErrResolverFailure,
	ErrCodeCacheUnavailable:   ErrCacheUnavailable,
	ErrCodeUnknownIntent:      ErrUnknownIntent,
}

// ==========================
// 2. Error Constructors
// ==========================

// NewUnsafeQueryError reports a sandbox validation failure at the given layer.
func NewUnsafeQueryError(layer, reason string) *StandardError {
	return &StandardError{
		Code:      ErrCodeUnsafeQuery,
		Message:   "Query rejected by sandbox",
		Details:   reason,
		Retryable: false,
		Metadata:  map[string]interface{}{"layer": layer},
		Timestamp: time.Now().UTC(),
	}
}

// NewNoMatchingTemplateError is returned when no template candidate succeeded.
func NewNoMatchingTemplateError(query string) *StandardError {
	return &StandardError{
		Code:      ErrCodeNoMatchingTemplate,
		Message:   "No template produced a result",
		Details:   query,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewAmbiguousQueryError marks a query routed to clarification.
func NewAmbiguousQueryError(issueType string) *StandardError {
	return &StandardError{
		Code:      ErrCodeAmbiguousQuery,
		Message:   "Query needs clarification",
		Details:   issueType,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewResolverFailureError wraps an isolated resolver failure.
func NewResolverFailureError(resolver string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeResolverFailure,
		Message:   fmt.Sprintf("Resolver %s failed", resolver),
		Details:   errString(err),
		Retryable: false,
		Metadata:  map[string]interface{}{"resolver": resolver},
		Timestamp: time.Now().UTC(),
		cause:     err,
	}
}

// NewCacheUnavailableError wraps a cache/session store failure. Retryable.
func NewCacheUnavailableError(op string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeCacheUnavailable,
		Message:   fmt.Sprintf("Cache %s failed", op),
		Details:   errString(err),
		Retryable: true,
		Timestamp: time.Now().UTC(),
		cause:     err,
	}
}

// NewUnknownIntentError is returned when no intent scored above zero.
func NewUnknownIntentError(message string) *StandardError {
	return &StandardError{
		Code:      ErrCodeUnknownIntent,
		Message:   "Intent could not be determined",
		Details:   message,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewInvalidInputError reports malformed caller input.
func NewInvalidInputError(details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeInvalidInput,
		Message:   "Invalid input",
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewCatalogInvalidError reports a catalog that failed schema validation.
func NewCatalogInvalidError(catalog string, details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeCatalogInvalid,
		Message:   fmt.Sprintf("Catalog %s is invalid", catalog),
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewStoreFailureError wraps a record store or query log failure. Retryable.
func NewStoreFailureError(op string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeStoreFailure,
		Message:   fmt.Sprintf("Record store %s failed", op),
		Details:   errString(err),
		Retryable: true,
		Timestamp: time.Now().UTC(),
		cause:     err,
	}
}

// NewSearchFailedError wraps an Elasticsearch request failure.
func NewSearchFailedError(index string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeSearchFailed,
		Message:   fmt.Sprintf("Search on %s failed", index),
		Details:   errString(err),
		Retryable: true,
		Timestamp: time.Now().UTC(),
		cause:     err,
	}
}

// NewConnectionFailedError wraps a failed backend connection attempt.
func NewConnectionFailedError(service string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeConnectionFailed,
		Message:   fmt.Sprintf("%s connection failed", service),
		Details:   errString(err),
		Retryable: true,
		Timestamp: time.Now().UTC(),
		cause:     err,
	}
}

// NewSessionNotFoundError reports an expired or abandoned clarification session.
func NewSessionNotFoundError(sessionID string) *StandardError {
	return &StandardError{
		Code:      ErrCodeSessionNotFound,
		Message:   "Clarification session not found",
		Details:   sessionID,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewRoundLimitError is returned when a clarification chain exceeds its cap.
func NewRoundLimitError(rounds int) *StandardError {
	return &StandardError{
		Code:      ErrCodeRoundLimit,
		Message:   "Clarification round limit reached",
		Details:   fmt.Sprintf("rounds=%d", rounds),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewInternalError wraps an unexpected failure.
func NewInternalError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeInternal,
		Message:   "Unexpected error",
		Details:   errString(err),
		Retryable: false,
		Timestamp: time.Now().UTC(),
		cause:     err,
	}
}

// ==========================
// 3. Utility Functions
// ==========================

// CodeOf extracts the error code from err, mapping bare sentinels to their code.
func CodeOf(err error) ErrorCode {
	if err == nil {
		return ""
	}
	var stdErr *StandardError
	if errors.As(err, &stdErr) {
		return stdErr.Code
	}
	for code, sentinel := range sentinels {
		if errors.Is(err, sentinel) {
			return code
		}
	}
	return ErrCodeInternal
}

// IsCode reports whether err carries the given code.
func IsCode(err error, code ErrorCode) bool {
	return err != nil && CodeOf(err) == code
}

// IsRetryableErrorCode checks if an error code is retryable.
func IsRetryableErrorCode(code ErrorCode) bool {
	switch code {
	case ErrCodeCacheUnavailable, ErrCodeStoreFailure, ErrCodeSearchFailed, ErrCodeConnectionFailed:
		return true
	default:
		return false
	}
}

// GetErrorCategory returns the category of the error code.
func GetErrorCategory(code ErrorCode) string {
	codeStr := string(code)
	switch {
	case strings.Contains(codeStr, "SEARCH"):
		return "SEARCH"
	case strings.Contains(codeStr, "QUERY") || strings.Contains(codeStr, "TEMPLATE"):
		return "QUERY"
	case strings.Contains(codeStr, "CACHE") || strings.Contains(codeStr, "STORE") || strings.Contains(codeStr, "CONNECTION"):
		return "STORAGE"
	case strings.Contains(codeStr, "INTENT") || strings.Contains(codeStr, "RESOLVER"):
		return "UNDERSTANDING"
	case strings.Contains(codeStr, "SESSION") || strings.Contains(codeStr, "CLARIFICATION"):
		return "CLARIFICATION"
	case strings.Contains(codeStr, "INVALID"):
		return "VALIDATION"
	default:
		return "OTHER"
	}
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
