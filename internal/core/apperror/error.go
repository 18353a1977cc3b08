// Package apperror provides structured error handling following RFC 7807 Problem Details.
// All business errors must use AppError so callers receive a typed result
// instead of an opaque failure.
package apperror

import (
	"errors"
	"fmt"
	"net/http"
)

// Error codes
const (
	// Infrastructure errors (5xx)
	CodeInternal    = "INTERNAL_ERROR"
	CodePersistence = "PERSISTENCE_ERROR"

	// Validation errors (400)
	CodeValidation           = "VALIDATION_ERROR"
	CodeInvalidAmount        = "INVALID_AMOUNT"
	CodeInvalidQuantity      = "INVALID_QUANTITY"
	CodeConfirmationRequired = "CONFIRMATION_REQUIRED"

	// Business rule violations (422)
	CodeBusinessRule      = "BUSINESS_RULE_VIOLATION"
	CodeInsufficientStock = "INSUFFICIENT_STOCK"
	CodeRemnantConsumed   = "REMNANT_CONSUMED"

	// Informational: reported, never returned as a failure of the operation
	CodeReconciliationMismatch = "RECONCILIATION_MISMATCH"

	// Not found (404)
	CodeNotFound      = "NOT_FOUND"
	CodePartyNotFound = "PARTY_NOT_FOUND"
	CodeSheetNotFound = "SHEET_NOT_FOUND"
	CodeBatchNotFound = "BATCH_NOT_FOUND"
	CodeSaleNotFound  = "SALE_NOT_FOUND"

	// Conflict (409)
	CodeConflict             = "CONFLICT"
	CodeIdempotencyConflict  = "IDEMPOTENCY_IN_PROGRESS"
	CodeIdempotencyKeyReused = "IDEMPOTENCY_KEY_REUSED"
)

// AppError is the standard error type for the engine.
type AppError struct {
	// Code is a machine-readable error identifier
	Code string `json:"code"`

	// Message is a human-readable error description
	Message string `json:"message"`

	// Details contains additional context (field errors, quantities, etc.)
	Details map[string]any `json:"details,omitempty"`

	// HTTPStatus is the suggested HTTP status code
	HTTPStatus int `json:"-"`

	// Err is the underlying error (not exposed in JSON)
	Err error `json:"-"`
}

// Error implements error interface
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying error for errors.Is/As support
func (e *AppError) Unwrap() error {
	return e.Err
}

// WithDetail adds a key-value pair to error details
func (e *AppError) WithDetail(key string, value any) *AppError {
	if e.Details == nil {
		e.Details = make(map[string]any)
	}
	e.Details[key] = value
	return e
}

// WithCause sets the underlying error
func (e *AppError) WithCause(err error) *AppError {
	e.Err = err
	return e
}

// --- Factory functions ---

// NewValidation creates a validation error (400)
func NewValidation(message string) *AppError {
	return &AppError{
		Code:       CodeValidation,
		Message:    message,
		HTTPStatus: http.StatusBadRequest,
	}
}

// NewInvalidAmount is returned for non-positive payment or settlement amounts.
func NewInvalidAmount(amount any) *AppError {
	return &AppError{
		Code:       CodeInvalidAmount,
		Message:    "Amount must be positive",
		HTTPStatus: http.StatusBadRequest,
		Details:    map[string]any{"amount": amount},
	}
}

// NewInvalidQuantity is returned when a quantity change would leave a batch out of range.
func NewInvalidQuantity(batchID any, requested, remaining float64) *AppError {
	return &AppError{
		Code:       CodeInvalidQuantity,
		Message:    "Quantity out of range for batch",
		HTTPStatus: http.StatusUnprocessableEntity,
		Details: map[string]any{
			"batch_id":  batchID,
			"requested": requested,
			"remaining": remaining,
		},
	}
}

// NewNotFound creates a generic not found error (404)
func NewNotFound(entity string, id any) *AppError {
	return &AppError{
		Code:       CodeNotFound,
		Message:    fmt.Sprintf("%s not found", entity),
		HTTPStatus: http.StatusNotFound,
		Details:    map[string]any{"entity": entity, "id": id},
	}
}

func newTypedNotFound(code, entity string, id any) *AppError {
	e := NewNotFound(entity, id)
	e.Code = code
	return e
}

// NewPartyNotFound creates a not found error for a customer or supplier.
func NewPartyNotFound(id any) *AppError {
	return newTypedNotFound(CodePartyNotFound, "party", id)
}

// NewSheetNotFound creates a not found error for a sheet.
func NewSheetNotFound(id any) *AppError {
	return newTypedNotFound(CodeSheetNotFound, "sheet", id)
}

// NewBatchNotFound creates a not found error for a batch.
func NewBatchNotFound(id any) *AppError {
	return newTypedNotFound(CodeBatchNotFound, "batch", id)
}

// NewSaleNotFound creates a not found error for a sale.
func NewSaleNotFound(id any) *AppError {
	return newTypedNotFound(CodeSaleNotFound, "sale", id)
}

// NewBusinessRule creates a business rule violation error (422)
func NewBusinessRule(code, message string) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: http.StatusUnprocessableEntity,
	}
}

// NewInsufficientStock creates a stock shortage error
func NewInsufficientStock(sheetID string, requested, available float64) *AppError {
	return &AppError{
		Code:       CodeInsufficientStock,
		Message:    "Insufficient stock",
		HTTPStatus: http.StatusUnprocessableEntity,
		Details: map[string]any{
			"sheet_id":  sheetID,
			"requested": requested,
			"available": available,
		},
	}
}

// NewPersistence wraps a storage failure that aborted the current operation.
func NewPersistence(err error) *AppError {
	return &AppError{
		Code:       CodePersistence,
		Message:    "Storage failure, changes were rolled back",
		HTTPStatus: http.StatusInternalServerError,
		Err:        err,
	}
}

// NewReconciliationMismatch describes drift between a cached balance and the ledger.
// It is informational: reconciliation reports and corrects instead of failing.
func NewReconciliationMismatch(partyID any, cached, recomputed string) *AppError {
	return &AppError{
		Code:       CodeReconciliationMismatch,
		Message:    "Cached balance differs from ledger history",
		HTTPStatus: http.StatusOK,
		Details: map[string]any{
			"party_id":   partyID,
			"cached":     cached,
			"recomputed": recomputed,
		},
	}
}

// NewConfirmationRequired guards destructive maintenance operations.
func NewConfirmationRequired(operation, token string) *AppError {
	return &AppError{
		Code:       CodeConfirmationRequired,
		Message:    fmt.Sprintf("%s is irreversible; pass confirm=%q", operation, token),
		HTTPStatus: http.StatusBadRequest,
		Details:    map[string]any{"operation": operation},
	}
}

// NewInternal creates an internal server error (hides details from client)
func NewInternal(err error) *AppError {
	return &AppError{
		Code:       CodeInternal,
		Message:    "Internal server error",
		HTTPStatus: http.StatusInternalServerError,
		Err:        err,
	}
}

// NewConflict creates a conflict error (409)
func NewConflict(message string) *AppError {
	return &AppError{
		Code:       CodeConflict,
		Message:    message,
		HTTPStatus: http.StatusConflict,
	}
}

// NewIdempotencyConflict reports a key whose first request is still running (409).
func NewIdempotencyConflict(key string) *AppError {
	return &AppError{
		Code:       CodeIdempotencyConflict,
		Message:    "request with this idempotency key is still being processed",
		Details:    map[string]any{"idempotency_key": key},
		HTTPStatus: http.StatusConflict,
	}
}

// NewIdempotencyMismatch reports a key reused for a different request (422).
func NewIdempotencyMismatch(key string) *AppError {
	return &AppError{
		Code:       CodeIdempotencyKeyReused,
		Message:    "idempotency key was already used for a different request",
		Details:    map[string]any{"idempotency_key": key},
		HTTPStatus: http.StatusUnprocessableEntity,
	}
}

// --- Helper functions ---

// IsAppError checks if error is AppError
func IsAppError(err error) bool {
	var appErr *AppError
	return errors.As(err, &appErr)
}

// AsAppError extracts AppError from error chain
func AsAppError(err error) (*AppError, bool) {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// Is reports whether err carries an AppError with the given code.
func Is(err error, code string) bool {
	if appErr, ok := AsAppError(err); ok {
		return appErr.Code == code
	}
	return false
}

// GetHTTPStatus returns appropriate HTTP status for any error
func GetHTTPStatus(err error) int {
	if appErr, ok := AsAppError(err); ok {
		return appErr.HTTPStatus
	}
	return http.StatusInternalServerError
}

// IsNotFound checks for any of the not-found codes.
func IsNotFound(err error) bool {
	appErr, ok := AsAppError(err)
	if !ok {
		return false
	}
	switch appErr.Code {
	case CodeNotFound, CodePartyNotFound, CodeSheetNotFound, CodeBatchNotFound, CodeSaleNotFound:
		return true
	}
	return false
}

// Normalize maps arbitrary errors to AppError, treating unknown errors as persistence failures.
func Normalize(err error) *AppError {
	if err == nil {
		return nil
	}
	if appErr, ok := AsAppError(err); ok {
		return appErr
	}
	return NewPersistence(err)
}
