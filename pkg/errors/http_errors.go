package errors

import (
	stderrors "errors"
	"net/http"
)

// ValidationError creates a 400 error carrying per-field details
func ValidationError(message string, details any) *AppError {
	return NewBadRequestError("VALIDATION_ERROR", message).WithDetails(details)
}

// FromError converts a standard error to an AppError.
// AppErrors anywhere in the chain are returned as-is, everything else becomes a
// generic internal error so that internals never leak to clients.
func FromError(err error) *AppError {
	if err == nil {
		return nil
	}

	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr
	}

	return NewInternalServerError("INTERNAL_ERROR", "An unexpected error occurred").Wrap(err)
}

// GetStatusCode extracts the HTTP status code from an AppError, returns 500 if not an AppError
func GetStatusCode(err error) int {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr.StatusCode
	}
	return http.StatusInternalServerError
}

// GetErrorCode extracts the error code from an AppError, returns "UNKNOWN_ERROR" if not an AppError
func GetErrorCode(err error) string {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr.Code
	}
	return "UNKNOWN_ERROR"
}
