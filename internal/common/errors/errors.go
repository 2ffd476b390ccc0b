// Package errors provides standardized error handling for marketplace transactions.
package errors

import (
	stderrors "errors"
	"fmt"
	"strings"
	"time"
)

// ==========================
// 1. Standard Error Types
// ==========================

// ErrorCode represents standardized internal error codes.
type ErrorCode string

const (
	// Input / business-rule rejections, surfaced before a transaction starts.
	ErrCodeValidationFailed ErrorCode = "VALIDATION_FAILED"
	ErrCodeAlreadyUnlocked  ErrorCode = "ALREADY_UNLOCKED"
	ErrCodeRoleNotEligible  ErrorCode = "ROLE_NOT_ELIGIBLE"
	ErrCodeConflict         ErrorCode = "CONFLICT"

	// Backend failures, recoverable by retry. The core guarantees no partial
	// state was written when one of these surfaces.
	ErrCodeConnectivity  ErrorCode = "CONNECTIVITY"
	ErrCodeWriteFailed   ErrorCode = "WRITE_FAILED"
	ErrCodeUploadFailed  ErrorCode = "UPLOAD_FAILED"
	ErrCodePaymentFailed ErrorCode = "PAYMENT_FAILED"

	// Session missing. Not recoverable without re-authenticating.
	ErrCodeAuthRequired ErrorCode = "AUTH_REQUIRED"

	// Data-integrity guard: inline-encoded photos at activation time.
	ErrCodeIncompleteUpload ErrorCode = "INCOMPLETE_UPLOAD"

	ErrCodeNotFound ErrorCode = "NOT_FOUND"
)

// StandardError represents a structured application error.
type StandardError struct {
	Code      ErrorCode              `json:"code"`
	Message   string                 `json:"message"`
	Details   string                 `json:"details,omitempty"`
	Retryable bool                   `json:"retryable"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
}

func (e *StandardError) Error() string {
	return fmt.Sprintf("StandardError[%s]: %s", e.Code, e.Message)
}

// Is lets errors.Is match two StandardErrors by code.
func (e *StandardError) Is(target error) bool {
	var se *StandardError
	if !stderrors.As(target, &se) {
		return false
	}
	return e.Code == se.Code
}

// CodeOf extracts the ErrorCode from err, or "" if err is not a StandardError.
func CodeOf(err error) ErrorCode {
	var se *StandardError
	if stderrors.As(err, &se) {
		return se.Code
	}
	return ""
}

// IsCode reports whether err carries the given code.
func IsCode(err error, code ErrorCode) bool {
	return CodeOf(err) == code
}

// ==========================
// 2. Error Constructors
// ==========================

// NewValidationError creates a non-retryable bad-input error. No side effect
// has occurred; the user can correct the input and resubmit.
func NewValidationError(details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeValidationFailed,
		Message:   "Input validation failed",
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewAlreadyUnlockedError rejects an unlock for a listing the payer already holds.
func NewAlreadyUnlockedError(payerID, listingID string) *StandardError {
	return &StandardError{
		Code:      ErrCodeAlreadyUnlocked,
		Message:   "Listing already unlocked for this account",
		Details:   fmt.Sprintf("payerId: %s, listingId: %s", payerID, listingID),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewRoleNotEligibleError rejects an operation the account's role cannot perform.
func NewRoleNotEligibleError(role, operation string) *StandardError {
	return &StandardError{
		Code:      ErrCodeRoleNotEligible,
		Message:   "Account role is not eligible for this operation",
		Details:   fmt.Sprintf("role: %s, operation: %s", role, operation),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewConflictError rejects a duplicate in-flight transaction. Recoverable by
// waiting for the running transaction to reach a terminal state.
func NewConflictError(details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeConflict,
		Message:   "A transaction is already in flight for this resource",
		Details:   details,
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewConnectivityError creates a retryable transport error. Callers fall back
// to the cached dataset rather than hard-failing.
func NewConnectivityError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeConnectivity,
		Message:   "Backend store unreachable",
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewWriteError creates a retryable backend write error.
func NewWriteError(resource string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeWriteFailed,
		Message:   "Backend write rejected",
		Details:   fmt.Sprintf("resource: %s, error: %s", resource, err.Error()),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewUploadError creates a retryable blob upload error.
func NewUploadError(path string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeUploadFailed,
		Message:   "Blob upload failed",
		Details:   fmt.Sprintf("path: %s, error: %s", path, err.Error()),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewPaymentFailedError creates a retryable gateway rejection or timeout.
func NewPaymentFailedError(details string) *StandardError {
	return &StandardError{
		Code:      ErrCodePaymentFailed,
		Message:   "Payment was not confirmed",
		Details:   details,
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewAuthRequiredError creates a non-retryable missing-session error.
func NewAuthRequiredError(details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeAuthRequired,
		Message:   "An authenticated session is required",
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewIncompleteUploadError blocks activation when inline-encoded photos remain.
func NewIncompleteUploadError(inlineCount int) *StandardError {
	return &StandardError{
		Code:      ErrCodeIncompleteUpload,
		Message:   "Draft still contains inline-encoded photos",
		Details:   fmt.Sprintf("inlineEntries: %d", inlineCount),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewNotFoundError creates a non-retryable missing-record error.
func NewNotFoundError(resource, id string) *StandardError {
	return &StandardError{
		Code:      ErrCodeNotFound,
		Message:   fmt.Sprintf("%s not found", resource),
		Details:   fmt.Sprintf("id: %s", id),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// ==========================
// 3. Utility Functions
// ==========================

// GetRetryCount returns the recommended retry count per error class.
func GetRetryCount(code ErrorCode) int {
	switch code {
	case ErrCodeConnectivity,
		ErrCodeWriteFailed,
		ErrCodeUploadFailed:
		return 3 // Retryable technical errors

	case ErrCodePaymentFailed:
		return 1 // User re-enters the payment loop explicitly

	default:
		return 0 // Business and input errors: no retry
	}
}

// IsRetryableErrorCode checks if an error code is retryable.
func IsRetryableErrorCode(code ErrorCode) bool {
	return GetRetryCount(code) > 0
}

// GetErrorCategory returns the category of the error code.
func GetErrorCategory(code ErrorCode) string {
	codeStr := string(code)
	switch {
	case strings.Contains(codeStr, "VALIDATION"):
		return "VALIDATION"
	case strings.Contains(codeStr, "UNLOCKED") || strings.Contains(codeStr, "ROLE") || strings.Contains(codeStr, "CONFLICT"):
		return "BUSINESS_RULE"
	case strings.Contains(codeStr, "AUTH"):
		return "AUTH"
	case strings.Contains(codeStr, "UPLOAD"):
		return "STORAGE"
	case strings.Contains(codeStr, "PAYMENT"):
		return "PAYMENT"
	case strings.Contains(codeStr, "CONNECTIVITY") || strings.Contains(codeStr, "WRITE") || strings.Contains(codeStr, "NOT_FOUND"):
		return "DATABASE"
	default:
		return "OTHER"
	}
}
