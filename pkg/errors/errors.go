package errors

import (
	"errors"
	"fmt"
	"net/http"
)

const (
	CodeInvalidArgument    = "INVALID_ARGUMENT"
	CodeInsufficientStock  = "INSUFFICIENT_STOCK"
	CodeInsufficientFunds  = "INSUFFICIENT_FUNDS"
	CodePaymentFailed      = "PAYMENT_FAILED"
	CodePermissionDenied   = "PERMISSION_DENIED"
	CodeNotFound           = "NOT_FOUND"
	CodeInvalidState       = "INVALID_STATE"
	CodeDuplicateReview    = "DUPLICATE_REVIEW"
	CodeAlreadyExists      = "ALREADY_EXISTS"
	CodeStorageUnavailable = "STORAGE_UNAVAILABLE"
	CodeIntegrityViolation = "INTEGRITY_VIOLATION"
	CodeUnauthorized       = "UNAUTHORIZED"
	CodeTooManyRequests    = "TOO_MANY_REQUESTS"
	CodeInternal           = "INTERNAL_ERROR"
)

type AppError struct {
	Code    string
	Message string
	Status  int
	Err     error
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func New(code string, message string, status int, err error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Status:  status,
		Err:     err,
	}
}

func InvalidArgument(message string, err error) *AppError {
	return New(CodeInvalidArgument, message, http.StatusBadRequest, err)
}

func InsufficientStock(message string) *AppError {
	return New(CodeInsufficientStock, message, http.StatusBadRequest, nil)
}

func InsufficientFunds(message string) *AppError {
	return New(CodeInsufficientFunds, message, http.StatusBadRequest, nil)
}

func PaymentFailed(message string, err error) *AppError {
	return New(CodePaymentFailed, message, http.StatusBadRequest, err)
}

func PermissionDenied(message string) *AppError {
	return New(CodePermissionDenied, message, http.StatusForbidden, nil)
}

func NotFound(resource string, err error) *AppError {
	return New(CodeNotFound, fmt.Sprintf("%s not found", resource), http.StatusNotFound, err)
}

func InvalidState(message string) *AppError {
	return New(CodeInvalidState, message, http.StatusConflict, nil)
}

func AlreadyExists(resource string, err error) *AppError {
	return New(CodeAlreadyExists, fmt.Sprintf("%s already exists", resource), http.StatusConflict, err)
}

func DuplicateReview(message string) *AppError {
	return New(CodeDuplicateReview, message, http.StatusConflict, nil)
}

// StorageUnavailable marks a transient storage failure. Callers may retry.
func StorageUnavailable(message string, err error) *AppError {
	return New(CodeStorageUnavailable, message, http.StatusServiceUnavailable, err)
}

// IntegrityViolation marks a ledger/wallet mismatch. It is never retried.
func IntegrityViolation(message string, err error) *AppError {
	return New(CodeIntegrityViolation, message, http.StatusInternalServerError, err)
}

func Unauthorized(message string, err error) *AppError {
	return New(CodeUnauthorized, message, http.StatusUnauthorized, err)
}

func TooManyRequests(message string) *AppError {
	return New(CodeTooManyRequests, message, http.StatusTooManyRequests, nil)
}

func Internal(message string, err error) *AppError {
	return New(CodeInternal, message, http.StatusInternalServerError, err)
}

// Code returns the AppError code carried by err, or "" when err is not an AppError.
func Code(err error) string {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return ""
}

func Is(err error, code string) bool {
	return err != nil && Code(err) == code
}

func IsRetryable(err error) bool {
	return Is(err, CodeStorageUnavailable)
}
